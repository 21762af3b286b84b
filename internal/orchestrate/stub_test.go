package orchestrate

import (
	"context"
	"testing"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// stubInvoker scripts provider responses per payload.
type stubInvoker struct {
	fn func(p provider.Payload) (string, provider.Tokens, error)
}

func (s *stubInvoker) Invoke(_ context.Context, p provider.Payload) (string, provider.Tokens, error) {
	return s.fn(p)
}

// stubRegistry routes all three providers to the same scripted function.
func stubRegistry(fn func(p provider.Payload) (string, provider.Tokens, error)) provider.Registry {
	inv := &stubInvoker{fn: fn}
	return provider.Registry{"anthropic": inv, "gemini": inv, "openai": inv}
}

// emptyRegistry answers every call with an empty object.
func emptyRegistry() provider.Registry {
	return stubRegistry(func(provider.Payload) (string, provider.Tokens, error) {
		return "{}", provider.Tokens{}, nil
	})
}

// newTestState builds a repaired memory rooted in a temp workspace plus a
// minimal task record.
func newTestState(t *testing.T, phase string) *State {
	t.Helper()
	root := t.TempDir()
	mem, err := memory.Repair(nil, root)
	if err != nil {
		t.Fatal(err)
	}
	return &State{
		Memory: mem,
		Root:   root,
		Task: &task.Task{
			Goal:     "test goal",
			Language: "python",
			Phase:    phase,
			Style:    "clean",
		},
		Prompts:         map[string]string{"rules": "rules text", "architect": "architect prompt", "implementer": "implementer prompt", "chairman": "chairman prompt", "overview": "overview prompt"},
		RoleAssignments: map[string]string{},
	}
}
