package orchestrate

import (
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// BuildAgentCalls composes the invocation list for this run.
//
// Bootstrap fans out: one call per (role, model) over the sorted model
// pool, each carrying that model's bootstrap chairman summary. Iterate
// emits one call per role against the bandit-assigned model (falling back
// to the first pool model when the assignment is missing), carrying the
// single iterate summary.
func BuildAgentCalls(st *State) []AgentCall {
	mem := st.Memory
	modelIDs := memory.SortedIDs(mem.ModelPool)
	if len(modelIDs) == 0 {
		return nil
	}

	weights := memory.NormalizeRoleWeights(mem.WeightedInputs, memory.Roles)
	rules := st.prompt("rules")
	taskCopy := *st.Task

	var calls []AgentCall

	if st.phase() == task.PhaseBootstrap {
		for _, role := range memory.Roles {
			for _, modelID := range modelIDs {
				calls = append(calls, AgentCall{
					AgentID:         role,
					AgentWeight:     weights[role],
					CallID:          role + "_" + modelID,
					ChairmanSummary: mem.ChairmanSummaryStore.Bootstrap[modelID],
					ModelID:         modelID,
					RolePrompt:      st.prompt(role),
					Rules:           rules,
					Task:            taskCopy,
				})
			}
		}
		return calls
	}

	for _, role := range memory.Roles {
		modelID := st.RoleAssignments[role]
		if _, inPool := mem.ModelPool[modelID]; !inPool {
			modelID = modelIDs[0]
		}
		calls = append(calls, AgentCall{
			AgentID:         role,
			AgentWeight:     weights[role],
			CallID:          role + "_" + modelID,
			ChairmanSummary: mem.ChairmanSummaryStore.Iterate,
			ModelID:         modelID,
			RolePrompt:      st.prompt(role),
			Rules:           rules,
			Task:            taskCopy,
		})
	}
	return calls
}
