package mock

import (
	"context"
	"errors"
	"sync"
)

// ErrNoScriptedResponse is returned when a MockGenerator runs out of responses.
var ErrNoScriptedResponse = errors.New("mock generator: no scripted response left")

// GenerateCall records the arguments of one Generate invocation.
type GenerateCall struct {
	System string
	Prompt string
}

// MockGenerator is a test double for ai.Generator.
// Responses are served in order; the last one repeats once the script is exhausted
// unless Strict is set.
type MockGenerator struct {
	// GenerateFunc replaces the scripted behavior when set.
	GenerateFunc func(ctx context.Context, system, prompt string) (string, error)

	// Strict makes an exhausted script return ErrNoScriptedResponse.
	Strict bool

	mu        sync.Mutex
	responses []string
	next      int
	calls     []GenerateCall
}

// NewMockGenerator creates a generator that replies with responses in order.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{responses: responses}
}

// Generate returns the next scripted response.
func (m *MockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{System: system, Prompt: prompt})
	fn := m.GenerateFunc
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fn != nil {
		return fn(ctx, system, prompt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 || (m.Strict && m.next >= len(m.responses)) {
		return "", ErrNoScriptedResponse
	}
	idx := min(m.next, len(m.responses)-1)
	m.next++
	return m.responses[idx], nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GenerateCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Generate invocations.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset rewinds the script and clears recorded calls.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.calls = nil
}
