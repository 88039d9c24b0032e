package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// DefaultListLimit caps ListEvents when the filter sets no limit.
const DefaultListLimit = 100

const selectGateEvents = "SELECT request_id, workspace_id, timestamp, hook, session_id, " +
	"tool_name, arguments_json, decision, check_name, reason, " +
	"active_intent, user_confirmed, snapshots, traced, latency_ms, source " +
	"FROM intent_guard_events"

// EventReader queries gate events back out of ClickHouse.
type EventReader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewEventReader opens a ClickHouse connection for read queries.
func NewEventReader(dsn string, logger *zap.Logger) (*EventReader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewEventReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewEventReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewEventReader: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventReader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *EventReader) Close() error {
	return r.conn.Close()
}

// EventFilter selects events. Zero fields do not filter.
type EventFilter struct {
	WorkspaceID string
	SessionID   string
	Hook        string
	Decision    string
	Since       time.Time
	Limit       int
}

// ListEvents returns matching events, newest first.
func (r *EventReader) ListEvents(ctx context.Context, f EventFilter) ([]GateEvent, error) {
	query, args := buildEventQuery(f)
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []GateEvent
	for rows.Next() {
		var (
			e                 GateEvent
			confirmed, traced uint8
		)
		if err := rows.Scan(
			&e.RequestID, &e.WorkspaceID, &e.Timestamp, &e.Hook, &e.SessionID,
			&e.ToolName, &e.ArgumentsJSON, &e.Decision, &e.Check, &e.Reason,
			&e.ActiveIntent, &confirmed, &e.Snapshots, &traced, &e.LatencyMs, &e.Source,
		); err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		e.UserConfirmed = confirmed == 1
		e.Traced = traced == 1
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEvents: %w", err)
	}

	r.logger.Debug("events listed",
		zap.String("workspace_id", f.WorkspaceID),
		zap.Int("count", len(events)),
	)
	return events, nil
}

func buildEventQuery(f EventFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(column, name string, value any) {
		conditions = append(conditions, column+" = @"+name)
		args = append(args, clickhouse.Named(name, value))
	}
	if f.WorkspaceID != "" {
		add("workspace_id", "workspace_id", f.WorkspaceID)
	}
	if f.SessionID != "" {
		add("session_id", "session_id", f.SessionID)
	}
	if f.Hook != "" {
		add("hook", "hook", f.Hook)
	}
	if f.Decision != "" {
		add("decision", "decision", f.Decision)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "timestamp >= @since")
		args = append(args, clickhouse.Named("since", f.Since))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var b strings.Builder
	b.WriteString(selectGateEvents)
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC LIMIT @limit")
	args = append(args, clickhouse.Named("limit", uint32(limit)))
	return b.String(), args
}
