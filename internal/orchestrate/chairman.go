package orchestrate

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/history"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/jsonx"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// RoleScore is the chairman's judgement of one role's output.
type RoleScore struct {
	CostScore  float64 `json:"cost_score"`
	JudgeScore float64 `json:"judge_score"`
}

// Scoring carries both role scores of one adjudication.
type Scoring struct {
	Architect   RoleScore `json:"architect"`
	Implementer RoleScore `json:"implementer"`
}

func (s Scoring) forRole(role string) RoleScore {
	if role == RoleImplementer {
		return s.Implementer
	}
	return s.Architect
}

// ChairmanVerdict is the chairman's parsed response: the edits it
// approved, its summary of the round, and its scores.
type ChairmanVerdict struct {
	ApprovedEdits []memory.Edit
	Scoring       Scoring
	Summary       memory.ChairmanSummary
}

// ParseChairmanVerdict coerces a leniently-extracted object into the
// verdict schema. Scores are clamped to [0,1]; judge defaults to 0 and
// cost to 0.5 when missing or out of range.
func ParseChairmanVerdict(raw map[string]any) *ChairmanVerdict {
	v := &ChairmanVerdict{ApprovedEdits: []memory.Edit{}}

	for _, item := range jsonx.AsList(raw["approved_edits"]) {
		m := jsonx.AsMap(item)
		if m == nil {
			continue
		}
		edit := memory.Edit{ProposalIDs: []string{}}
		for key, value := range m {
			switch normalizeKey(key) {
			case "proposal_ids":
				edit.ProposalIDs = jsonx.StringList(value)
			case "path":
				edit.Path = requiredString(value)
			case "content":
				edit.Content = requiredString(value)
			}
		}
		v.ApprovedEdits = append(v.ApprovedEdits, edit)
	}

	v.Summary = parseSummary(jsonx.AsMap(raw["chairman_summary"]))

	scoring := jsonx.AsMap(raw["scoring"])
	v.Scoring = Scoring{
		Architect:   parseRoleScore(jsonx.AsMap(scoring[RoleArchitect])),
		Implementer: parseRoleScore(jsonx.AsMap(scoring[RoleImplementer])),
	}
	return v
}

func parseRoleScore(m map[string]any) RoleScore {
	score := RoleScore{CostScore: 0.5, JudgeScore: 0.0}
	if j, ok := jsonx.AsNumber(m["judge_score"]); ok && j >= 0 && j <= 1 {
		score.JudgeScore = j
	}
	if c, ok := jsonx.AsNumber(m["cost_score"]); ok && c >= 0 && c <= 1 {
		score.CostScore = c
	}
	return score
}

func parseSummary(m map[string]any) memory.ChairmanSummary {
	s := memory.ChairmanSummary{
		AcceptedDesignMoves: []memory.MoveNote{},
		AddedDesignMoves:    []memory.MoveNote{},
		FilesChanged:        jsonx.StringList(m["files_changed"]),
		FilesCreated:        jsonx.StringList(m["files_created"]),
		NextPriorities:      jsonx.StringList(m["next_priorities"]),
		RejectedDesignMoves: []memory.RejectedMove{},
	}
	for _, item := range jsonx.AsList(m["accepted_design_moves"]) {
		if move := jsonx.AsMap(item); move != nil {
			s.AcceptedDesignMoves = append(s.AcceptedDesignMoves, memory.MoveNote{
				Goal:       requiredString(move["goal"]),
				ProposalID: requiredString(move["proposal_id"]),
			})
		}
	}
	for _, item := range jsonx.AsList(m["added_design_moves"]) {
		if move := jsonx.AsMap(item); move != nil {
			s.AddedDesignMoves = append(s.AddedDesignMoves, memory.MoveNote{
				Goal:       requiredString(move["goal"]),
				ProposalID: requiredString(move["proposal_id"]),
			})
		}
	}
	for _, item := range jsonx.AsList(m["rejected_design_moves"]) {
		if move := jsonx.AsMap(item); move != nil {
			s.RejectedDesignMoves = append(s.RejectedDesignMoves, memory.RejectedMove{
				ProposalID: requiredString(move["proposal_id"]),
				Reason:     requiredString(move["reason"]),
			})
		}
	}
	return s
}

// UpdateCell folds one observation into a bandit cell and recomputes its
// UCB:
//
//	ucb = meanReward − costPenalty·meanCost + ucbC·√(ln(max(totalRuns,2)) / max(n,1))
//
// totalRuns is the role's observation count across all models, after this
// observation.
func UpdateCell(cell memory.Cell, totalRuns int, policy memory.RoutingPolicy, score RoleScore) memory.Cell {
	n := cell.N + 1
	meanReward := cell.MeanReward + (score.JudgeScore-cell.MeanReward)/float64(n)
	meanCost := cell.MeanCost + (score.CostScore-cell.MeanCost)/float64(n)

	total := totalRuns
	if total < 2 {
		total = 2
	}
	ucb := meanReward - policy.CostPenalty*meanCost +
		policy.UCBC*math.Sqrt(math.Log(float64(total))/float64(n))

	cell.N = n
	cell.MeanReward = meanReward
	cell.MeanCost = meanCost
	cell.UCB = ucb
	return cell
}

// ProposedUpdate pairs a module's current and proposed content for the
// chairman prompt.
type ProposedUpdate struct {
	CurrentModuleContent string   `json:"current_module_content"`
	Path                 string   `json:"path"`
	ProposalIDs          []string `json:"proposal_ids"`
	UpdatedModuleContent string   `json:"updated_module_content"`
}

// ModuleComparison is the MODULE_COMPARISON_JSON payload.
type ModuleComparison struct {
	ProposedUpdates []ProposedUpdate `json:"proposed_updates"`
}

// generateModuleComparison reads the current content of each implementer
// module (empty when the file does not exist yet) and pairs it with the
// proposed replacement. Modules whose path escapes basePath are rejected.
func generateModuleComparison(impl *ImplementerOutput, basePath string) ModuleComparison {
	cmp := ModuleComparison{ProposedUpdates: []ProposedUpdate{}}
	if impl == nil {
		return cmp
	}
	for _, mod := range impl.ModulesAddedAndUpdated {
		if mod.Path == "" || !WithinBase(mod.Path, basePath) {
			continue
		}
		path, err := filepath.Abs(mod.Path)
		if err != nil {
			continue
		}
		current := ""
		if data, err := os.ReadFile(path); err == nil {
			current = string(data)
		}
		ids := mod.ProposalIDs
		if ids == nil {
			ids = []string{}
		}
		cmp.ProposedUpdates = append(cmp.ProposedUpdates, ProposedUpdate{
			CurrentModuleContent: current,
			Path:                 path,
			ProposalIDs:          ids,
			UpdatedModuleContent: strings.TrimSpace(mod.Content),
		})
	}
	return cmp
}

// chairmanSpec resolves the active chairman and its model spec. An active
// id that fell out of the pool falls back to the first chairman, then the
// first model.
func chairmanSpec(mem *memory.Memory) (string, memory.ModelSpec) {
	chairmanIDs := memory.SortedIDs(mem.ChairmanPool)
	active := mem.ChairmanActive
	found := false
	for _, id := range chairmanIDs {
		if id == active {
			found = true
			break
		}
	}
	if !found {
		if len(chairmanIDs) > 0 {
			active = chairmanIDs[0]
		} else if ids := memory.SortedIDs(mem.ModelPool); len(ids) > 0 {
			active = ids[0]
		}
	}
	return active, mem.ChairmanPool[active]
}

func chairmanPayload(mem *memory.Memory, phase, systemText, userText string) provider.Payload {
	id, spec := chairmanSpec(mem)
	temperature := spec.Params.Temperature
	if temperature < 0 || temperature > 1 {
		temperature = 0.0
	}
	return provider.Payload{
		AgentID: roleChairman,
		CallID:  roleChairman + "_" + id,
		Metadata: provider.Metadata{
			CostTier: spec.CostTier,
			Phase:    phase,
			RunID:    mem.CurrentRunID,
		},
		ModelID:       id,
		Params:        provider.Params{Temperature: temperature},
		Provider:      spec.Provider,
		ProviderModel: spec.ProviderModel,
		SystemText:    systemText,
		TimeoutS:      mem.TimeoutDefaults.ChairmanTimeoutS,
		UserText:      userText,
	}
}

// invokeChairman runs one chairman call and parses its verdict. Failures
// yield an empty verdict and the run continues.
func invokeChairman(ctx context.Context, reg provider.Registry, ledger *history.DB, p provider.Payload) *ChairmanVerdict {
	result := runProvider(ctx, reg, p)
	recordInvocation(ledger, p.Metadata.RunID, p, result)
	if result.Err != "" {
		fmt.Fprintf(os.Stderr, "[chairman] %s: %s\n", p.CallID, result.Err)
	}
	raw, _ := jsonx.ExtractObject(result.rawOutput)
	return ParseChairmanVerdict(raw)
}

// applyScoring updates the two (role, model) cells touched by one
// adjudication and stamps them with the current run id.
func applyScoring(mem *memory.Memory, scoring Scoring, modelFor func(role string) string) {
	runID := mem.CurrentRunID
	for _, role := range memory.Roles {
		modelID := modelFor(role)
		cells := mem.RoleModelStats[role]
		if cells == nil {
			cells = map[string]memory.Cell{}
			mem.RoleModelStats[role] = cells
		}
		cell := cells[modelID]

		totalRuns := 1
		for _, c := range cells {
			totalRuns += c.N
		}

		updated := UpdateCell(cell, totalRuns, mem.RoutingPolicy, scoring.forRole(role))
		id := runID
		updated.LastUsedRunID = &id
		cells[modelID] = updated
	}
}

// ChairmanMerge adjudicates the run: once per model in bootstrap, once in
// iterate. Each adjudication updates the bandit cells, stores the summary
// for the next run's prompts, and records the approved edits.
func ChairmanMerge(ctx context.Context, st *State, reg provider.Registry, ledger *history.DB) {
	mem := st.Memory
	phase := st.phase()
	sysText := systemText(st.prompt("rules"), st.prompt("chairman"))
	taskJSON := compactJSON(*st.Task)

	if phase == task.PhaseBootstrap {
		for _, modelID := range memory.SortedIDs(mem.ModelPool) {
			codeDir := mem.DirectoryStructure.Models[modelID]
			basePath := modelBasePath(mem, modelID)

			arch, impl := resultsFor(st, modelID, modelID)
			comparison := generateModuleComparison(impl, basePath)

			userText := fmt.Sprintf(
				"TASK_JSON:\n%s\n\nDIRECTORY_STRUCTURE_JSON:\n%s\n\nARCHITECT_OUTPUT_JSON:\n%s\n\nMODULE_COMPARISON_JSON:\n%s\n",
				taskJSON, compactJSON(codeDir), compactJSON(architectOrEmpty(arch)), compactJSON(comparison))

			verdict := invokeChairman(ctx, reg, ledger, chairmanPayload(mem, phase, sysText, userText))

			model := modelID
			applyScoring(mem, verdict.Scoring, func(string) string { return model })
			mem.ChairmanSummaryStore.Bootstrap[modelID] = verdict.Summary
			mem.ChairmanEdits.Bootstrap[modelID] = memory.EditBucket{ApprovedEdits: verdict.ApprovedEdits}
		}
		return
	}

	codeDir := mem.DirectoryStructure.Models[mem.FinalModel]
	basePath := modelBasePath(mem, mem.FinalModel)

	arch, impl := resultsFor(st, st.RoleAssignments[RoleArchitect], st.RoleAssignments[RoleImplementer])
	comparison := generateModuleComparison(impl, basePath)

	userText := fmt.Sprintf(
		"TASK_JSON:\n%s\n\nDIRECTORY_STRUCTURE_JSON:\n%s\n\nARCHITECT_OUTPUT_JSON:\n%s\n\nMODULE_COMPARISON_JSON:\n%s\n",
		taskJSON, compactJSON(codeDir), compactJSON(architectOrEmpty(arch)), compactJSON(comparison))

	verdict := invokeChairman(ctx, reg, ledger, chairmanPayload(mem, phase, sysText, userText))

	applyScoring(mem, verdict.Scoring, func(role string) string { return st.RoleAssignments[role] })
	mem.ChairmanSummaryStore.Iterate = verdict.Summary
	mem.ChairmanEdits.Iterate = memory.EditBucket{ApprovedEdits: verdict.ApprovedEdits}
}

// resultsFor pulls the parsed architect and implementer outputs for the
// given model assignment out of the result map.
func resultsFor(st *State, architectModel, implementerModel string) (*ArchitectOutput, *ImplementerOutput) {
	var arch *ArchitectOutput
	var impl *ImplementerOutput
	if res := st.AgentResults[RoleArchitect+"_"+architectModel]; res != nil {
		arch = res.Architect
	}
	if res := st.AgentResults[RoleImplementer+"_"+implementerModel]; res != nil {
		impl = res.Implementer
	}
	return arch, impl
}

func architectOrEmpty(arch *ArchitectOutput) *ArchitectOutput {
	if arch == nil {
		return &ArchitectOutput{DesignMoves: []DesignMove{}}
	}
	return arch
}

// modelBasePath returns the model's code directory path, falling back to
// <base_path>/<model_id> when the index carries no path yet.
func modelBasePath(mem *memory.Memory, modelID string) string {
	if dir := mem.DirectoryStructure.Models[modelID]; dir != nil && strings.TrimSpace(dir.Path) != "" {
		return dir.Path
	}
	return filepath.Join(mem.DirectoryStructure.BasePath, modelID)
}
