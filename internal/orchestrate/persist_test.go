package orchestrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

func TestNextRunID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"run_000001", "run_000002"},
		{"run_000099", "run_000100"},
		{"run_999999", "run_1000000"},
		{"run_abc", "run_000001"},
		{"bogus", "run_000001"},
		{"", "run_000001"},
	}
	for _, tt := range tests {
		if got := NextRunID(tt.in); got != tt.want {
			t.Errorf("NextRunID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyEditsPathConfinement(t *testing.T) {
	st := newTestState(t, task.PhaseBootstrap)
	mem := st.Memory
	m1Base := mem.DirectoryStructure.Models["M1"].Path

	inside := filepath.Join(m1Base, "pkg", "a.py")
	outside := "/etc/der-test-escape"
	sneaky := filepath.Join(m1Base, "..", "M2", "b.py") // resolves into M2, outside M1's base

	mem.ChairmanEdits.Bootstrap["M1"] = memory.EditBucket{ApprovedEdits: []memory.Edit{
		{Path: inside, Content: "X = 1\n", ProposalIDs: []string{"p1"}},
		{Path: outside, Content: "nope", ProposalIDs: []string{"p2"}},
		{Path: sneaky, Content: "nope", ProposalIDs: []string{"p3"}},
		{Path: filepath.Join(m1Base, "empty.py"), Content: "   ", ProposalIDs: []string{"p4"}},
	}}

	ApplyEdits(st)

	data, err := os.ReadFile(inside)
	if err != nil {
		t.Fatalf("confined edit not written: %v", err)
	}
	if string(data) != "X = 1" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(outside); err == nil {
		t.Error("escaping edit must not create a file")
	}
	if _, err := os.Stat(filepath.Join(mem.DirectoryStructure.Models["M2"].Path, "b.py")); err == nil {
		t.Error("dot-dot edit must not create a file")
	}
	if _, err := os.Stat(filepath.Join(m1Base, "empty.py")); err == nil {
		t.Error("empty-content edit must not create a file")
	}
}

func TestApplyEditsIterateUsesFinalModel(t *testing.T) {
	st := newTestState(t, task.PhaseIterate)
	mem := st.Memory
	mem.FinalModel = "M2"
	target := filepath.Join(mem.DirectoryStructure.Models["M2"].Path, "main.py")

	mem.ChairmanEdits.Iterate = memory.EditBucket{ApprovedEdits: []memory.Edit{
		{Path: target, Content: "def main():\n    pass\n", ProposalIDs: []string{"p1"}},
	}}

	ApplyEdits(st)
	if _, err := os.Stat(target); err != nil {
		t.Errorf("iterate edit not written under final model: %v", err)
	}
}

func TestWriteMemoryAdvancesRunIDs(t *testing.T) {
	st := newTestState(t, task.PhaseBootstrap)

	oldRunID := st.Memory.CurrentRunID
	if err := WriteMemory(context.Background(), st, emptyRegistry(), nil); err != nil {
		t.Fatalf("WriteMemory failed: %v", err)
	}

	if st.Memory.LastRunID != oldRunID {
		t.Errorf("last_run_id = %q, want %q", st.Memory.LastRunID, oldRunID)
	}
	if st.Memory.CurrentRunID != NextRunID(oldRunID) {
		t.Errorf("current_run_id = %q, want %q", st.Memory.CurrentRunID, NextRunID(oldRunID))
	}
	if st.Memory.Exploration.RunsCompleted != 1 {
		t.Errorf("runs_completed = %d, want 1", st.Memory.Exploration.RunsCompleted)
	}

	if _, err := os.Stat(filepath.Join(st.Root, "memory", "memory.json")); err != nil {
		t.Errorf("memory.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(st.Root, "task", "task.json")); err != nil {
		t.Errorf("task.json missing: %v", err)
	}
}

func TestWriteMemorySelectsFinalModelAtWarmupBoundary(t *testing.T) {
	st := newTestState(t, task.PhaseBootstrap)
	mem := st.Memory
	mem.Exploration.WarmupRuns = 3
	mem.Exploration.RunsCompleted = 2 // this run completes the warm-up
	mem.RoleModelStats[RoleArchitect] = map[string]memory.Cell{
		"M1": {N: 2, UCB: 0.55},
		"M2": {N: 2, UCB: 0.72},
	}
	// The implementer bandit must not influence the choice.
	mem.RoleModelStats[RoleImplementer] = map[string]memory.Cell{
		"M1": {N: 2, UCB: 9.9},
		"M2": {N: 2, UCB: 0.1},
	}

	overviewCalled := false
	reg := stubRegistry(func(p provider.Payload) (string, provider.Tokens, error) {
		overviewCalled = true
		return `{"next_priorities":["finish the parser"]}`, provider.Tokens{}, nil
	})

	if err := WriteMemory(context.Background(), st, reg, nil); err != nil {
		t.Fatalf("WriteMemory failed: %v", err)
	}

	if st.Memory.FinalModel != "M2" {
		t.Errorf("final_model = %q, want M2 (highest architect UCB)", st.Memory.FinalModel)
	}
	// runs_completed hit 3, so the periodic overview ran too.
	if !overviewCalled {
		t.Error("every third completed run should trigger the chairman overview")
	}
	got := st.Memory.ChairmanSummaryStore.Iterate.NextPriorities
	if len(got) == 0 || got[0] != "finish the parser" {
		t.Errorf("overview priorities not prepended: %v", got)
	}
}

func TestWriteMemoryFinalModelTieBreaksLexicographically(t *testing.T) {
	st := newTestState(t, task.PhaseBootstrap)
	mem := st.Memory
	mem.Exploration.WarmupRuns = 1
	mem.Exploration.RunsCompleted = 0
	mem.RoleModelStats[RoleArchitect] = map[string]memory.Cell{
		"M1": {N: 1, UCB: 0.5},
		"M2": {N: 1, UCB: 0.5},
	}
	mem.FinalModel = "M2"

	if err := WriteMemory(context.Background(), st, emptyRegistry(), nil); err != nil {
		t.Fatalf("WriteMemory failed: %v", err)
	}
	if st.Memory.FinalModel != "M1" {
		t.Errorf("tied final_model = %q, want M1", st.Memory.FinalModel)
	}
}
