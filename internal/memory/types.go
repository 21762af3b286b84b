// Package memory owns the durable per-workspace record: its typed shape,
// the idempotent repair pass that coerces arbitrary JSON into that shape,
// and load/write with previous-file rotation.
//
// Struct fields are declared in alphabetical json-tag order so that
// encoding/json emits sorted keys for structs the same way it does for maps.
// Serialisation determinism matters: repair idempotence is checked
// byte-for-byte.
package memory

import "encoding/json"

// Roles is the fixed role set of the pipeline, in execution order.
var Roles = []string{"architect", "implementer"}

// Memory is the durable record, one per workspace.
type Memory struct {
	ChairmanActive       string                     `json:"chairman_active"`
	ChairmanEdits        EditStore                  `json:"chairman_edits"`
	ChairmanPool         map[string]ModelSpec       `json:"chairman_pool"`
	ChairmanSummaryStore SummaryStore               `json:"chairman_summary_store"`
	CurrentRunID         string                     `json:"current_run_id"`
	DirectoryStructure   DirectoryStructure         `json:"directory_structure"`
	Exploration          Exploration                `json:"exploration"`
	FinalModel           string                     `json:"final_model"`
	LastRunID            string                     `json:"last_run_id"`
	ModelPool            map[string]ModelSpec       `json:"model_pool"`
	RoleModelStats       map[string]map[string]Cell `json:"role_model_stats"`
	RoutingPolicy        RoutingPolicy              `json:"routing_policy"`
	TimeoutDefaults      TimeoutDefaults            `json:"timeout_defaults"`
	WeightedInputs       map[string]float64         `json:"weighted_inputs"`
}

// ModelSpec describes one configured backing model (or chairman).
type ModelSpec struct {
	CostTier      string `json:"cost_tier"`
	Label         string `json:"label"`
	Params        Params `json:"params"`
	Provider      string `json:"provider"`
	ProviderModel string `json:"provider_model"`
}

// Params holds per-model sampling parameters.
type Params struct {
	Temperature float64 `json:"temperature"`
}

// Cell is the bandit statistic for one (role, model) pair.
type Cell struct {
	LastUsedRunID *string `json:"last_used_run_id"`
	MeanCost      float64 `json:"mean_cost"`
	MeanReward    float64 `json:"mean_reward"`
	N             int     `json:"n"`
	UCB           float64 `json:"ucb"`
}

// RoutingPolicy tunes the cost-penalised UCB formula.
type RoutingPolicy struct {
	CostPenalty float64 `json:"cost_penalty"`
	UCBC        float64 `json:"ucb_c"`
}

// Exploration tracks the bootstrap warm-up window.
type Exploration struct {
	RunsCompleted int `json:"runs_completed"`
	WarmupRuns    int `json:"warmup_runs"`
}

// TimeoutDefaults bounds the two provider-facing stages, in seconds.
type TimeoutDefaults struct {
	ChairmanTimeoutS  int `json:"chairman_timeout_s"`
	RunAgentsTimeoutS int `json:"run_agents_timeout_s"`
}

// ChairmanSummary is the chairman's digest of one adjudication, injected
// into the next run's agent prompts.
type ChairmanSummary struct {
	AcceptedDesignMoves []MoveNote     `json:"accepted_design_moves"`
	AddedDesignMoves    []MoveNote     `json:"added_design_moves"`
	FilesChanged        []string       `json:"files_changed"`
	FilesCreated        []string       `json:"files_created"`
	NextPriorities      []string       `json:"next_priorities"`
	RejectedDesignMoves []RejectedMove `json:"rejected_design_moves"`
}

// MoveNote references a design move by proposal id.
type MoveNote struct {
	Goal       string `json:"goal"`
	ProposalID string `json:"proposal_id"`
}

// RejectedMove records why the chairman turned a proposal down.
type RejectedMove struct {
	ProposalID string `json:"proposal_id"`
	Reason     string `json:"reason"`
}

// SummaryStore keeps chairman summaries per phase: one per model while
// bootstrapping, a single record once iterating.
type SummaryStore struct {
	Bootstrap map[string]ChairmanSummary `json:"bootstrap"`
	Iterate   ChairmanSummary            `json:"iterate"`
}

// Edit is a chairman-approved file write.
type Edit struct {
	Content     string   `json:"content"`
	Path        string   `json:"path"`
	ProposalIDs []string `json:"proposal_ids"`
}

// EditBucket holds the approved edits of one adjudication.
type EditBucket struct {
	ApprovedEdits []Edit `json:"approved_edits"`
}

// EditStore mirrors SummaryStore for approved edits.
type EditStore struct {
	Bootstrap map[string]EditBucket `json:"bootstrap"`
	Iterate   EditBucket            `json:"iterate"`
}

// Constant is one top-level constant indexed from a generated module.
type Constant struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FileRecord indexes one generated source file.
type FileRecord struct {
	Constants []Constant `json:"constants"`
	Functions []string   `json:"functions"`
	Imports   []string   `json:"imports"`
	Module    string     `json:"module"`
	Path      string     `json:"path"`
}

// CodeDir is one node of a model's indexed code tree.
type CodeDir struct {
	Dirs  map[string]*CodeDir `json:"dirs"`
	Files []FileRecord        `json:"files"`
	Path  string              `json:"path"`
}

// DirectoryStructure maps each model id to its code tree. It serialises as
// a single object carrying base_path alongside the model-id keys, which is
// how the record is stored on disk.
type DirectoryStructure struct {
	BasePath string
	Models   map[string]*CodeDir
}

func (d DirectoryStructure) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Models)+1)
	out["base_path"] = d.BasePath
	for id, dir := range d.Models {
		out[id] = dir
	}
	return json.Marshal(out)
}

func (d *DirectoryStructure) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Models = map[string]*CodeDir{}
	for key, val := range raw {
		if key == "base_path" {
			var base string
			if err := json.Unmarshal(val, &base); err != nil {
				return err
			}
			d.BasePath = base
			continue
		}
		dir := &CodeDir{}
		if err := json.Unmarshal(val, dir); err != nil {
			return err
		}
		d.Models[key] = dir
	}
	return nil
}

// normalize replaces nil slices with empty ones so the record always
// serialises the same way regardless of how it was built.
func (s *ChairmanSummary) normalize() {
	if s.AcceptedDesignMoves == nil {
		s.AcceptedDesignMoves = []MoveNote{}
	}
	if s.AddedDesignMoves == nil {
		s.AddedDesignMoves = []MoveNote{}
	}
	if s.FilesChanged == nil {
		s.FilesChanged = []string{}
	}
	if s.FilesCreated == nil {
		s.FilesCreated = []string{}
	}
	if s.NextPriorities == nil {
		s.NextPriorities = []string{}
	}
	if s.RejectedDesignMoves == nil {
		s.RejectedDesignMoves = []RejectedMove{}
	}
}

func (b *EditBucket) normalize() {
	if b.ApprovedEdits == nil {
		b.ApprovedEdits = []Edit{}
	}
	for i := range b.ApprovedEdits {
		if b.ApprovedEdits[i].ProposalIDs == nil {
			b.ApprovedEdits[i].ProposalIDs = []string{}
		}
	}
}

func (c *CodeDir) normalize() {
	if c.Dirs == nil {
		c.Dirs = map[string]*CodeDir{}
	}
	if c.Files == nil {
		c.Files = []FileRecord{}
	}
	for i := range c.Files {
		if c.Files[i].Constants == nil {
			c.Files[i].Constants = []Constant{}
		}
		if c.Files[i].Functions == nil {
			c.Files[i].Functions = []string{}
		}
		if c.Files[i].Imports == nil {
			c.Files[i].Imports = []string{}
		}
	}
	for _, child := range c.Dirs {
		if child != nil {
			child.normalize()
		}
	}
}
