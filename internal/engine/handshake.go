package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/intent_guard/internal/intents"
)

const handshakeCheck = "handshake"

// selectIntent resolves select_active_intent. The handshake always owns
// its result, so every outcome is KindHandled.
func (e *IntentGuardEngine) selectIntent(req *Request) Decision {
	id := req.Args.Trimmed("intent_id")
	if id == "" {
		return *Handled(handshakeCheck, MsgHandshakeMissingID)
	}

	intent, ok := e.intents.Load(req.Root).Find(id)
	if !ok {
		return *Handled(handshakeCheck, MsgUnknownIntent(id))
	}

	if err := e.intents.SetActive(req.Root, id); err != nil {
		e.logger.Error("failed to persist active intent",
			zap.String("intent_id", id),
			zap.String("workspace_root", req.Root),
			zap.Error(err),
		)
		return *Handled(handshakeCheck, MsgHandshakeFailed)
	}
	return *Handled(handshakeCheck, IntentContext(intent))
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// IntentContext renders the <intent_context> block returned to the agent
// after a successful handshake.
func IntentContext(in *intents.Intent) string {
	var b strings.Builder
	b.WriteString("<intent_context>\n")
	b.WriteString("  <id>" + xmlEscaper.Replace(in.ID) + "</id>\n")
	b.WriteString("  <title>" + xmlEscaper.Replace(in.Title) + "</title>")
	if len(in.Constraints) > 0 {
		b.WriteString("\n  <constraints>")
		for _, c := range in.Constraints {
			b.WriteString("\n    <constraint>" + xmlEscaper.Replace(c) + "</constraint>")
		}
		b.WriteString("\n  </constraints>")
	}
	if len(in.ScopePaths) > 0 {
		b.WriteString("\n  <scope>")
		for _, p := range in.ScopePaths {
			b.WriteString("\n    <path>" + xmlEscaper.Replace(p) + "</path>")
		}
		b.WriteString("\n  </scope>")
	}
	b.WriteString("\n</intent_context>")
	return b.String()
}
