package memory

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/jsonx"
)

func trimmed(s string) string { return strings.TrimSpace(s) }
func lower(s string) string   { return strings.ToLower(s) }

var costTiers = map[string]bool{"low": true, "mid": true, "high": true}
var providers = map[string]bool{"gemini": true, "openai": true, "anthropic": true}

// defaultModelPool returns the canonical model set. Repair pins the pool to
// exactly these ids: unknown ids are dropped, missing ids recreated, and
// present ids merged field by field against these defaults.
func defaultModelPool() map[string]ModelSpec {
	return map[string]ModelSpec{
		"M1": {
			CostTier:      "mid",
			Label:         "Gemini 2.5 Pro",
			Params:        Params{Temperature: 0.0},
			Provider:      "gemini",
			ProviderModel: "gemini-2.5-pro",
		},
		"M2": {
			CostTier:      "mid",
			Label:         "Claude Sonnet 4.5",
			Params:        Params{Temperature: 0.0},
			Provider:      "anthropic",
			ProviderModel: "claude-sonnet-4-5-20250929",
		},
	}
}

func defaultChairmanPool() map[string]ModelSpec {
	return map[string]ModelSpec{
		"C1": {
			CostTier:      "mid",
			Label:         "GPT-4.1 Chairman",
			Params:        Params{Temperature: 0.0},
			Provider:      "openai",
			ProviderModel: "gpt-4.1",
		},
	}
}

// SortedIDs returns the pool's model ids in lexicographic order.
func SortedIDs[V any](pool map[string]V) []string {
	ids := make([]string, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Repair coerces an arbitrary JSON value into a valid Memory. It walks the
// record in a fixed order, verifying structural type, clamping values into
// their domain, substituting defaults on failure, and dropping keys outside
// the canonical schema. Applying it twice yields byte-identical output.
//
// Repair also materialises the code directories on disk; failing to create
// them is the one fatal condition.
func Repair(raw any, root string) (*Memory, error) {
	src := jsonx.AsMap(raw)
	mem := &Memory{}

	mem.CurrentRunID = stringOr(src["current_run_id"], "run_000001")
	mem.LastRunID = stringOr(src["last_run_id"], "run_000000")

	mem.WeightedInputs = repairWeights(src["weighted_inputs"])

	mem.ModelPool = repairPool(jsonx.AsMap(src["model_pool"]), defaultModelPool())
	modelIDs := SortedIDs(mem.ModelPool)

	mem.ChairmanPool = repairPool(jsonx.AsMap(src["chairman_pool"]), defaultChairmanPool())
	chairmanIDs := SortedIDs(mem.ChairmanPool)

	mem.ChairmanActive = memberOr(src["chairman_active"], chairmanIDs, firstOf(chairmanIDs, firstOf(modelIDs, "")))

	mem.RoleModelStats = map[string]map[string]Cell{}
	stats := jsonx.AsMap(src["role_model_stats"])
	for _, role := range Roles {
		roleStats := jsonx.AsMap(stats[role])
		cells := map[string]Cell{}
		for _, id := range modelIDs {
			cells[id] = repairCell(roleStats[id])
		}
		mem.RoleModelStats[role] = cells
	}

	policy := jsonx.AsMap(src["routing_policy"])
	mem.RoutingPolicy = RoutingPolicy{
		CostPenalty: unitOr(policy["cost_penalty"], 0.4),
		UCBC:        unitOr(policy["ucb_c"], 0.5),
	}

	exploration := jsonx.AsMap(src["exploration"])
	mem.Exploration = Exploration{
		RunsCompleted: intDefault(exploration["runs_completed"], 0),
		WarmupRuns:    intInRange(exploration["warmup_runs"], 0, 5, 3),
	}

	mem.ChairmanSummaryStore = repairSummaryStore(jsonx.AsMap(src["chairman_summary_store"]), modelIDs)
	mem.ChairmanEdits = repairEditStore(jsonx.AsMap(src["chairman_edits"]), modelIDs)

	timeouts := jsonx.AsMap(src["timeout_defaults"])
	mem.TimeoutDefaults = TimeoutDefaults{
		ChairmanTimeoutS:  intInRange(timeouts["chairman_timeout_s"], 300, 360, 360),
		RunAgentsTimeoutS: intInRange(timeouts["run_agents_timeout_s"], 300, 360, 300),
	}

	if err := repairDirectoryStructure(mem, jsonx.AsMap(src["directory_structure"]), root, modelIDs); err != nil {
		return nil, err
	}

	mem.FinalModel = memberOr(src["final_model"], modelIDs, firstOf(modelIDs, ""))

	return mem, nil
}

func repairDirectoryStructure(mem *Memory, src map[string]any, root string, modelIDs []string) error {
	base := ""
	if s, ok := jsonx.AsString(src["base_path"]); ok {
		base = trimmed(s)
	}
	if base == "" || !filepath.IsAbs(base) {
		base = filepath.Join(root, "code")
	} else {
		base = filepath.Clean(base)
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return fmt.Errorf("creating code root %s: %w", base, err)
	}

	mem.DirectoryStructure = DirectoryStructure{BasePath: base, Models: map[string]*CodeDir{}}
	for _, id := range modelIDs {
		modelPath := filepath.Join(base, id)
		if err := os.MkdirAll(modelPath, 0755); err != nil {
			return fmt.Errorf("creating model directory %s: %w", modelPath, err)
		}
		dir := repairCodeDir(src[id])
		dir.Path = modelPath
		mem.DirectoryStructure.Models[id] = dir
	}
	return nil
}

func repairCodeDir(v any) *CodeDir {
	src := jsonx.AsMap(v)
	dir := &CodeDir{Dirs: map[string]*CodeDir{}, Files: []FileRecord{}}
	dir.Path = stringOr(src["path"], "")

	for name, child := range jsonx.AsMap(src["dirs"]) {
		dir.Dirs[name] = repairCodeDir(child)
	}

	for _, item := range jsonx.AsList(src["files"]) {
		file := jsonx.AsMap(item)
		if file == nil {
			continue
		}
		rec := FileRecord{
			Constants: repairConstants(file["constants"]),
			Functions: jsonx.StringList(file["functions"]),
			Imports:   jsonx.StringList(file["imports"]),
			Module:    stringOr(file["module"], ""),
			Path:      stringOr(file["path"], ""),
		}
		dir.Files = append(dir.Files, rec)
	}
	return dir
}

func repairConstants(v any) []Constant {
	out := []Constant{}
	for _, item := range jsonx.AsList(v) {
		m := jsonx.AsMap(item)
		if m == nil {
			continue
		}
		name, ok := jsonx.AsString(m["name"])
		if !ok || trimmed(name) == "" {
			continue
		}
		value, _ := jsonx.AsString(m["value"])
		out = append(out, Constant{Name: trimmed(name), Value: value})
	}
	return out
}

func repairSummaryStore(src map[string]any, modelIDs []string) SummaryStore {
	store := SummaryStore{Bootstrap: map[string]ChairmanSummary{}}
	bootstrap := jsonx.AsMap(src["bootstrap"])
	for _, id := range modelIDs {
		store.Bootstrap[id] = repairSummary(bootstrap[id])
	}
	store.Iterate = repairSummary(src["iterate"])
	return store
}

func repairSummary(v any) ChairmanSummary {
	src := jsonx.AsMap(v)
	s := ChairmanSummary{
		FilesChanged:   jsonx.StringList(src["files_changed"]),
		FilesCreated:   jsonx.StringList(src["files_created"]),
		NextPriorities: jsonx.StringList(src["next_priorities"]),
	}
	for _, item := range jsonx.AsList(src["accepted_design_moves"]) {
		if m := jsonx.AsMap(item); m != nil {
			s.AcceptedDesignMoves = append(s.AcceptedDesignMoves, MoveNote{
				Goal:       stringOr(m["goal"], ""),
				ProposalID: stringOr(m["proposal_id"], ""),
			})
		}
	}
	for _, item := range jsonx.AsList(src["added_design_moves"]) {
		if m := jsonx.AsMap(item); m != nil {
			s.AddedDesignMoves = append(s.AddedDesignMoves, MoveNote{
				Goal:       stringOr(m["goal"], ""),
				ProposalID: stringOr(m["proposal_id"], ""),
			})
		}
	}
	for _, item := range jsonx.AsList(src["rejected_design_moves"]) {
		if m := jsonx.AsMap(item); m != nil {
			s.RejectedDesignMoves = append(s.RejectedDesignMoves, RejectedMove{
				ProposalID: stringOr(m["proposal_id"], ""),
				Reason:     stringOr(m["reason"], ""),
			})
		}
	}
	s.normalize()
	return s
}

func repairEditStore(src map[string]any, modelIDs []string) EditStore {
	store := EditStore{Bootstrap: map[string]EditBucket{}}
	bootstrap := jsonx.AsMap(src["bootstrap"])
	for _, id := range modelIDs {
		store.Bootstrap[id] = repairEditBucket(bootstrap[id])
	}
	store.Iterate = repairEditBucket(src["iterate"])
	return store
}

func repairEditBucket(v any) EditBucket {
	src := jsonx.AsMap(v)
	bucket := EditBucket{}
	for _, item := range jsonx.AsList(src["approved_edits"]) {
		m := jsonx.AsMap(item)
		if m == nil {
			continue
		}
		bucket.ApprovedEdits = append(bucket.ApprovedEdits, Edit{
			Content:     stringOr(m["content"], ""),
			Path:        stringOr(m["path"], ""),
			ProposalIDs: jsonx.StringList(m["proposal_ids"]),
		})
	}
	bucket.normalize()
	return bucket
}

// repairWeights coerces role weights and normalises them to sum to 1.
// Missing or negative entries become 0.5 before normalisation; an all-zero
// vector falls back to uniform.
func repairWeights(v any) map[string]float64 {
	src := jsonx.AsMap(v)
	weights := map[string]float64{}
	for _, role := range Roles {
		w, ok := jsonx.AsNumber(src[role])
		if !ok || w < 0 {
			w = 0.5
		}
		weights[role] = w
	}
	return NormalizeRoleWeights(weights, Roles)
}

// NormalizeRoleWeights scales the given weights so they sum to 1 across the
// declared roles, substituting 0.5 for missing or negative entries and
// falling back to uniform when everything is zero.
func NormalizeRoleWeights(weights map[string]float64, roles []string) map[string]float64 {
	if len(roles) == 0 {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(roles))
	total := 0.0
	for _, role := range roles {
		w, ok := weights[role]
		if !ok || w < 0 {
			w = 0.5
		}
		out[role] = w
		total += w
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(roles))
		for _, role := range roles {
			out[role] = uniform
		}
		return out
	}
	// An already-normalised vector passes through untouched, so repeated
	// repair keeps the weights bit-identical.
	if math.Abs(total-1.0) <= 1e-12 {
		return out
	}
	for _, role := range roles {
		out[role] /= total
	}
	return out
}

func repairCell(v any) Cell {
	src := jsonx.AsMap(v)
	cell := Cell{}

	if n, ok := jsonx.AsNumber(src["n"]); ok && n >= 0 {
		cell.N = int(n)
	}
	if r, ok := jsonx.AsNumber(src["mean_reward"]); ok && r >= 0 && r <= 1 {
		cell.MeanReward = r
	}
	if c, ok := jsonx.AsNumber(src["mean_cost"]); ok && c >= 0 && c <= 1 {
		cell.MeanCost = c
	}
	if id, ok := jsonx.AsString(src["last_used_run_id"]); ok && trimmed(id) != "" {
		trimmedID := trimmed(id)
		cell.LastUsedRunID = &trimmedID
	}
	if u, ok := jsonx.AsNumber(src["ucb"]); ok {
		cell.UCB = u
	}
	return cell
}

func repairPool(src map[string]any, defaults map[string]ModelSpec) map[string]ModelSpec {
	pool := make(map[string]ModelSpec, len(defaults))
	for id, def := range defaults {
		entry := jsonx.AsMap(src[id])
		if entry == nil {
			pool[id] = def
			continue
		}
		spec := def
		if label, ok := jsonx.AsString(entry["label"]); ok && label != "" {
			spec.Label = label
		}
		if tier, ok := jsonx.AsString(entry["cost_tier"]); ok {
			if t := lower(trimmed(tier)); costTiers[t] {
				spec.CostTier = t
			}
		}
		if prov, ok := jsonx.AsString(entry["provider"]); ok {
			if p := lower(trimmed(prov)); providers[p] {
				spec.Provider = p
			}
		}
		if pm, ok := jsonx.AsString(entry["provider_model"]); ok && trimmed(pm) != "" {
			spec.ProviderModel = trimmed(pm)
		}
		params := jsonx.AsMap(entry["params"])
		if t, ok := jsonx.AsNumber(params["temperature"]); ok && t >= 0 && t <= 1 {
			spec.Params.Temperature = t
		}
		pool[id] = spec
	}
	return pool
}

func stringOr(v any, def string) string {
	if s, ok := jsonx.AsString(v); ok {
		if t := trimmed(s); t != "" {
			return t
		}
	}
	return def
}

// memberOr returns v when it is a member of the sorted candidate list,
// otherwise the fallback.
func memberOr(v any, members []string, def string) string {
	s, ok := jsonx.AsString(v)
	if !ok {
		return def
	}
	s = trimmed(s)
	for _, m := range members {
		if s == m {
			return s
		}
	}
	return def
}

func firstOf(ids []string, def string) string {
	if len(ids) > 0 {
		return ids[0]
	}
	return def
}

func unitOr(v any, def float64) float64 {
	if n, ok := jsonx.AsNumber(v); ok && n >= 0 && n <= 1 {
		return n
	}
	return def
}

func intDefault(v any, def int) int {
	if n, ok := jsonx.AsNumber(v); ok {
		return int(n)
	}
	return def
}

func intInRange(v any, lo, hi, def int) int {
	if n, ok := jsonx.AsNumber(v); ok {
		i := int(n)
		if i >= lo && i <= hi {
			return i
		}
	}
	return def
}
