package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// BatchConfig tunes the asynchronous ClickHouse writer.
type BatchConfig struct {
	// BufferSize bounds queued events; writes beyond it are dropped.
	BufferSize    int
	FlushInterval time.Duration
	MaxBatch      int
	SendTimeout   time.Duration
	// DrainTimeout bounds how long Close keeps collecting queued events.
	DrainTimeout time.Duration
}

// DefaultBatchConfig returns the production batching parameters.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BufferSize:    10_000,
		FlushInterval: 100 * time.Millisecond,
		MaxBatch:      1000,
		SendTimeout:   5 * time.Second,
		DrainTimeout:  2 * time.Second,
	}
}

const insertGateEvents = `
	INSERT INTO intent_guard_events (
		request_id, workspace_id, timestamp, hook, session_id,
		tool_name, arguments_json, decision, check_name, reason,
		active_intent, user_confirmed, snapshots, traced,
		latency_ms, source
	)
`

type sendFunc func(ctx context.Context, events []*GateEvent) error

// ClickHouseWriter persists gate events in batches from a background
// goroutine. Write never blocks the gate.
type ClickHouseWriter struct {
	cfg     BatchConfig
	send    sendFunc
	queue   chan *GateEvent
	dropped atomic.Int64
	stop    chan struct{}
	stopped chan struct{}
	logger  *zap.Logger
}

// NewClickHouseWriter connects to dsn and starts the flush loop.
func NewClickHouseWriter(dsn string, cfg BatchConfig, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseWriter: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseWriter: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewClickHouseWriter: %w", err)
	}

	return newBatchWriter(func(ctx context.Context, events []*GateEvent) error {
		return sendBatch(ctx, conn, events, logger)
	}, cfg, logger), nil
}

func newBatchWriter(send sendFunc, cfg BatchConfig, logger *zap.Logger) *ClickHouseWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ClickHouseWriter{
		cfg:     cfg,
		send:    send,
		queue:   make(chan *GateEvent, cfg.BufferSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	go w.run()
	return w
}

// Write queues event. A full queue drops it and counts the drop.
func (w *ClickHouseWriter) Write(event *GateEvent) {
	select {
	case w.queue <- event:
	default:
		n := w.dropped.Add(1)
		w.logger.Warn("event queue full, dropping gate event",
			zap.String("request_id", event.RequestID),
			zap.Int64("dropped_total", n),
		)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (w *ClickHouseWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Close stops the flush loop after draining what is queued.
func (w *ClickHouseWriter) Close() {
	close(w.stop)
	<-w.stopped
}

func (w *ClickHouseWriter) run() {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	pending := make([]*GateEvent, 0, w.cfg.MaxBatch)
	flushPending := func() {
		if len(pending) > 0 {
			w.flush(pending)
			pending = pending[:0]
		}
	}

	for {
		select {
		case event := <-w.queue:
			pending = append(pending, event)
			if len(pending) >= w.cfg.MaxBatch {
				flushPending()
			}
		case <-ticker.C:
			flushPending()
		case <-w.stop:
			pending = w.drain(pending)
			flushPending()
			return
		}
	}
}

// drain moves queued events into pending until the queue is empty or the
// drain deadline passes.
func (w *ClickHouseWriter) drain(pending []*GateEvent) []*GateEvent {
	deadline := time.After(w.cfg.DrainTimeout)
	for {
		select {
		case event := <-w.queue:
			pending = append(pending, event)
		case <-deadline:
			return pending
		default:
			return pending
		}
	}
}

func (w *ClickHouseWriter) flush(events []*GateEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SendTimeout)
	defer cancel()

	if err := w.send(ctx, events); err != nil {
		w.logger.Error("gate event batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

func sendBatch(ctx context.Context, conn driver.Conn, events []*GateEvent, logger *zap.Logger) error {
	batch, err := conn.PrepareBatch(ctx, insertGateEvents)
	if err != nil {
		return err
	}

	for _, e := range events {
		if err := batch.Append(
			e.RequestID,
			e.WorkspaceID,
			e.Timestamp,
			e.Hook,
			e.SessionID,
			e.ToolName,
			e.ArgumentsJSON,
			e.Decision,
			e.Check,
			e.Reason,
			e.ActiveIntent,
			boolToUint8(e.UserConfirmed),
			e.Snapshots,
			boolToUint8(e.Traced),
			e.LatencyMs,
			e.Source,
		); err != nil {
			logger.Error("clickhouse append event failed",
				zap.String("request_id", e.RequestID),
				zap.Error(err),
			)
		}
	}

	return batch.Send()
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// LogWriter is a fallback EventWriter for local development.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *GateEvent) {
	w.logger.Info("intent_guard_event",
		zap.String("request_id", event.RequestID),
		zap.String("workspace_id", event.WorkspaceID),
		zap.String("hook", event.Hook),
		zap.String("session_id", event.SessionID),
		zap.String("tool_name", event.ToolName),
		zap.String("decision", event.Decision),
		zap.String("check", event.Check),
		zap.String("reason", event.Reason),
		zap.String("active_intent", event.ActiveIntent),
		zap.Int32("snapshots", event.Snapshots),
		zap.Bool("traced", event.Traced),
		zap.Float32("latency_ms", event.LatencyMs),
	)
}

func (w *LogWriter) Close() {}
