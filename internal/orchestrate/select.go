package orchestrate

import (
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// SelectRoleAssignments picks one model per role for the iterate phase
// using the cells' UCB values. Candidates are scanned in sorted model-id
// order and a strictly greater UCB is required to displace the incumbent,
// so ties break lexicographically. Bootstrap returns an empty assignment:
// the call builder fans out to every model instead.
func SelectRoleAssignments(st *State) map[string]string {
	assignments := map[string]string{}
	if st.phase() != task.PhaseIterate {
		return assignments
	}

	for _, role := range memory.Roles {
		cells, ok := st.Memory.RoleModelStats[role]
		if !ok || len(cells) == 0 {
			continue
		}
		best := ""
		bestUCB := 0.0
		for _, id := range memory.SortedIDs(cells) {
			if best == "" || cells[id].UCB > bestUCB {
				best = id
				bestUCB = cells[id].UCB
			}
		}
		assignments[role] = best
	}
	return assignments
}
