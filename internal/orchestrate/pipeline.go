package orchestrate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/history"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// Pipeline drives one full run through the ten stages in order. Providers
// are required; the ledger, the intake streams and Log are optional.
type Pipeline struct {
	Providers provider.Registry
	Ledger    *history.DB
	In        io.Reader
	Out       io.Writer
	Log       io.Writer
}

func (p *Pipeline) logf(format string, args ...any) {
	w := p.Log
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, format, args...)
}

// Run executes one pipeline pass against the workspace at root. Stage
// failures other than workspace-root creation are contained inside the
// stages; an error here is fatal for the run.
func (p *Pipeline) Run(ctx context.Context, root string) (*State, error) {
	st := &State{Root: root}

	p.logf("[run] loading memory\n")
	mem, firstRun, err := memory.LoadOrCreate(root)
	if err != nil {
		return nil, err
	}
	st.Memory = mem
	st.FirstRun = firstRun

	p.logf("[run] normalizing task\n")
	intake := &task.Intake{In: p.In, Out: p.Out}
	t, err := intake.Normalize(root, mem, firstRun)
	if err != nil {
		return nil, err
	}
	st.Task = t

	p.logf("[run] %s: phase=%s goal=%q\n", mem.CurrentRunID, t.Phase, t.Goal)

	if p.Ledger != nil {
		if err := p.Ledger.RecordRunStart(mem.CurrentRunID, t.Phase, t.Goal); err != nil {
			p.logf("[ledger] %v\n", err)
		}
	}

	p.logf("[run] loading prompts\n")
	st.Prompts = LoadPrompts(root)

	p.logf("[run] assigning roles\n")
	st.RoleAssignments = SelectRoleAssignments(st)

	p.logf("[run] building agent calls\n")
	st.AgentCalls = BuildAgentCalls(st)

	p.logf("[run] calling agents (%d calls)\n", len(st.AgentCalls))
	RunAgents(ctx, st, p.Providers, p.Ledger)

	p.logf("[run] calling chairman\n")
	ChairmanMerge(ctx, st, p.Providers, p.Ledger)

	p.logf("[run] applying approved edits\n")
	ApplyEdits(st)

	p.logf("[run] reindexing directory structure\n")
	UpdateDirectoryStructure(st)

	p.logf("[run] writing memory\n")
	if err := WriteMemory(ctx, st, p.Providers, p.Ledger); err != nil {
		return st, err
	}

	if p.Ledger != nil {
		if err := p.Ledger.RecordRunFinish(st.Memory.LastRunID); err != nil {
			p.logf("[ledger] %v\n", err)
		}
	}

	p.logf("[run] complete: %s -> %s\n", st.Memory.LastRunID, st.Memory.CurrentRunID)
	return st, nil
}
