package oracle

import (
	"context"
	"sync"

	"robotbrain/internal/state"
)

// Mock replays a scripted sequence of raw responses. The last response
// repeats once the script is exhausted.
type Mock struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

// NewMock builds a scripted oracle. With no responses it answers a
// bare CONTINUE decision.
func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses}
}

func (m *Mock) Decide(_ context.Context, _ []state.Message, _ string, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.responses) == 0 {
		return `{"type": "CONTINUE", "reason": "task in progress", "ops": []}`, nil
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// Calls reports how many decisions were requested.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
