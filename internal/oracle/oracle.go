// Package oracle is the language-model adapter. The core hands it the
// chat log, the structured observation and a registry summary; it
// returns raw text that should contain a JSON decision object. Parsing
// and fallback live in the ReAct decide node, not here.
package oracle

import (
	"context"

	"robotbrain/internal/state"
)

// Oracle produces raw decision text for one ReAct iteration.
type Oracle interface {
	Decide(ctx context.Context, messages []state.Message, observation string, registrySummary string) (string, error)
}
