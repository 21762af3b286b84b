// Package orchestrate is the engine: per-run state, bandit role selection,
// agent fan-out, chairman adjudication, and persistence of the results.
package orchestrate

import (
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// Role identifiers for the two pipeline agents.
const (
	RoleArchitect   = "architect"
	RoleImplementer = "implementer"
	roleChairman    = "chairman"
)

// roleOrder fixes architect-before-implementer execution so that an
// implementer call can read its architect's output.
var roleOrder = map[string]int{RoleArchitect: 0, RoleImplementer: 1}

// AgentCall is one planned agent invocation.
type AgentCall struct {
	AgentID         string
	AgentWeight     float64
	CallID          string
	ChairmanSummary memory.ChairmanSummary
	ModelID         string
	RolePrompt      string
	Rules           string
	Task            task.Task
}

// DesignMove is one architect proposal.
type DesignMove struct {
	Constraints []string `json:"constraints"`
	Function    string   `json:"function"`
	Goal        string   `json:"goal"`
	Path        string   `json:"path"`
	ProposalID  string   `json:"proposal_id"`
}

// ArchitectOutput is the architect's parsed result.
type ArchitectOutput struct {
	DesignMoves []DesignMove `json:"design_moves"`
}

// ModuleConstant is a constant an implementer claims to have included. The
// value passes through untyped; only the reindexer assigns meaning to
// constants, and it reads them from source.
type ModuleConstant struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ModuleUpdate is one implementer-produced module.
type ModuleUpdate struct {
	Content           string           `json:"content"`
	IncludedConstants []ModuleConstant `json:"included_constants"`
	IncludedFunctions []string         `json:"included_functions"`
	IncludedImports   []string         `json:"included_imports"`
	Path              string           `json:"path"`
	ProposalIDs       []string         `json:"proposal_ids"`
}

// ImplementerOutput is the implementer's parsed result.
type ImplementerOutput struct {
	ModulesAddedAndUpdated []ModuleUpdate `json:"modules_added_and_updated"`
}

// AgentResult captures one executed agent call. At most one of Architect
// and Implementer is set, matching the call's role; a provider failure fills
// Err and leaves that role's parsed output with no entries.
type AgentResult struct {
	AgentID     string
	Architect   *ArchitectOutput
	Err         string
	Implementer *ImplementerOutput
	LatencyMS   int64
	ModelID     string
	Tokens      provider.Tokens

	// rawOutput holds the provider text between invocation and parsing;
	// it is cleared once the parsed output is attached.
	rawOutput string
}

// State threads the run through the pipeline stages.
type State struct {
	AgentCalls      []AgentCall
	AgentResults    map[string]*AgentResult
	FirstRun        bool
	Memory          *memory.Memory
	Prompts         map[string]string
	RoleAssignments map[string]string
	Root            string
	Task            *task.Task
}

func (s *State) phase() string {
	if s.Task != nil && s.Task.Phase == task.PhaseIterate {
		return task.PhaseIterate
	}
	return task.PhaseBootstrap
}

func (s *State) prompt(name string) string {
	if s.Prompts == nil {
		return ""
	}
	return s.Prompts[name]
}
