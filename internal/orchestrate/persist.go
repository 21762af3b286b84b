package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/history"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// NextRunID advances a "run_NNNNNN" token. Malformed input restarts the
// sequence at run_000001.
func NextRunID(runID string) string {
	if strings.HasPrefix(runID, "run_") {
		if n, err := strconv.Atoi(runID[len("run_"):]); err == nil {
			return fmt.Sprintf("run_%06d", n+1)
		}
	}
	return "run_000001"
}

// ApplyEdits writes the chairman-approved edits to disk. Edits with empty
// content or a path outside the model's base directory are skipped
// silently; write failures are logged and skipped.
func ApplyEdits(st *State) {
	mem := st.Memory

	if st.phase() == task.PhaseBootstrap {
		for _, modelID := range memory.SortedIDs(mem.ModelPool) {
			writeEdits(mem.ChairmanEdits.Bootstrap[modelID], modelBasePath(mem, modelID))
		}
		return
	}

	if mem.FinalModel == "" {
		return
	}
	writeEdits(mem.ChairmanEdits.Iterate, modelBasePath(mem, mem.FinalModel))
}

func writeEdits(bucket memory.EditBucket, basePath string) {
	for _, edit := range bucket.ApprovedEdits {
		path := strings.TrimSpace(edit.Path)
		content := strings.TrimSpace(edit.Content)
		if path == "" || content == "" {
			continue
		}
		if !WithinBase(path, basePath) {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[files] creating parent of %s: %v\n", abs, err)
			continue
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "[files] writing %s: %v\n", abs, err)
		}
	}
}

// WriteMemory finishes the run: rotate the task record, advance run ids,
// bump the exploration counter, pin final_model at the warm-up boundary,
// re-repair, run the periodic chairman overview on the repaired record, and
// atomically swap memory.json.
func WriteMemory(ctx context.Context, st *State, reg provider.Registry, ledger *history.DB) error {
	mem := st.Memory

	if err := task.Rotate(st.Task, st.Root); err != nil {
		fmt.Fprintf(os.Stderr, "[persist] rotating task record: %v\n", err)
		if err := task.Rotate(st.Task, st.Root); err != nil {
			fmt.Fprintf(os.Stderr, "[persist] retry failed: %v\n", err)
		}
	}

	completedRunID := mem.CurrentRunID
	mem.CurrentRunID = NextRunID(completedRunID)
	mem.LastRunID = completedRunID

	mem.Exploration.RunsCompleted++
	runsCompleted := mem.Exploration.RunsCompleted

	overviewDue := runsCompleted >= 3 && runsCompleted%3 == 0

	if runsCompleted == mem.Exploration.WarmupRuns {
		if best := bestArchitectModel(mem); best != "" {
			mem.FinalModel = best
		}
	}

	raw, err := reMarshal(mem)
	if err != nil {
		return fmt.Errorf("serializing memory for repair: %w", err)
	}
	repaired, err := memory.Repair(raw, st.Root)
	if err != nil {
		return err
	}

	if overviewDue {
		ChairmanOverview(ctx, repaired, st.Prompts, st.Task, reg, ledger)
	}

	memoryDir := filepath.Join(st.Root, "memory")
	if err := os.MkdirAll(memoryDir, 0755); err != nil {
		return fmt.Errorf("creating memory directory: %w", err)
	}
	if err := memory.WriteRotated(repaired, memoryDir); err != nil {
		fmt.Fprintf(os.Stderr, "[persist] %v\n", err)
		if err := memory.WriteRotated(repaired, memoryDir); err != nil {
			return err
		}
	}

	st.Memory = repaired
	return nil
}

// bestArchitectModel picks the architect-role model with the highest UCB,
// scanning sorted ids so ties break lexicographically. Only the architect
// bandit decides the authoritative workspace; the implementer bandit keeps
// evolving but never picks final_model.
func bestArchitectModel(mem *memory.Memory) string {
	cells := mem.RoleModelStats[RoleArchitect]
	best := ""
	bestUCB := 0.0
	for _, id := range memory.SortedIDs(cells) {
		if best == "" || cells[id].UCB > bestUCB {
			best = id
			bestUCB = cells[id].UCB
		}
	}
	return best
}

// reMarshal turns the typed record back into a generic JSON value so the
// repair pass sees exactly what a reader of the file would.
func reMarshal(mem *memory.Memory) (any, error) {
	data, err := memory.Marshal(mem)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
