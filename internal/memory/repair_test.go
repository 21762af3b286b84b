package memory

import (
	"encoding/json"
	"math"
	"testing"
)

func repairForTest(t *testing.T, raw any) *Memory {
	t.Helper()
	mem, err := Repair(raw, t.TempDir())
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	return mem
}

func TestRepairDefaults(t *testing.T) {
	mem := repairForTest(t, nil)

	if mem.CurrentRunID != "run_000001" {
		t.Errorf("current_run_id = %q, want run_000001", mem.CurrentRunID)
	}
	if mem.LastRunID != "run_000000" {
		t.Errorf("last_run_id = %q, want run_000000", mem.LastRunID)
	}
	if len(mem.ModelPool) != 2 {
		t.Errorf("model pool has %d entries, want 2", len(mem.ModelPool))
	}
	if mem.ModelPool["M1"].Provider != "gemini" || mem.ModelPool["M2"].Provider != "anthropic" {
		t.Errorf("unexpected providers: %+v", mem.ModelPool)
	}
	if mem.ChairmanActive != "C1" {
		t.Errorf("chairman_active = %q, want C1", mem.ChairmanActive)
	}
	if mem.FinalModel != "M1" {
		t.Errorf("final_model = %q, want M1", mem.FinalModel)
	}
	if mem.RoutingPolicy.UCBC != 0.5 || mem.RoutingPolicy.CostPenalty != 0.4 {
		t.Errorf("routing policy = %+v", mem.RoutingPolicy)
	}
	if mem.Exploration.WarmupRuns != 3 || mem.Exploration.RunsCompleted != 0 {
		t.Errorf("exploration = %+v", mem.Exploration)
	}
	if mem.TimeoutDefaults.RunAgentsTimeoutS != 300 || mem.TimeoutDefaults.ChairmanTimeoutS != 360 {
		t.Errorf("timeouts = %+v", mem.TimeoutDefaults)
	}

	for _, role := range Roles {
		for _, id := range []string{"M1", "M2"} {
			cell, ok := mem.RoleModelStats[role][id]
			if !ok {
				t.Fatalf("missing cell for (%s, %s)", role, id)
			}
			if cell.N != 0 || cell.UCB != 0 {
				t.Errorf("fresh cell (%s, %s) = %+v, want zeros", role, id, cell)
			}
		}
	}

	if mem.WeightedInputs["architect"] != 0.5 || mem.WeightedInputs["implementer"] != 0.5 {
		t.Errorf("default weights = %v, want uniform", mem.WeightedInputs)
	}
}

func TestRepairDropsUnknownAndClamps(t *testing.T) {
	raw := map[string]any{
		"model_pool": map[string]any{
			"M1": map[string]any{
				"provider":       "bogus",
				"cost_tier":      "HIGH ",
				"provider_model": "  custom-model  ",
				"params":         map[string]any{"temperature": 3.0},
			},
			"M9": map[string]any{"provider": "openai"},
		},
		"routing_policy":  map[string]any{"ucb_c": 7, "cost_penalty": -1},
		"exploration":     map[string]any{"warmup_runs": 99, "runs_completed": 4},
		"chairman_active": "nope",
		"final_model":     "M9",
		"garbage":         []any{1, 2, 3},
	}
	mem := repairForTest(t, raw)

	if _, ok := mem.ModelPool["M9"]; ok {
		t.Error("unknown model id M9 should be dropped")
	}
	spec := mem.ModelPool["M1"]
	if spec.Provider != "gemini" {
		t.Errorf("invalid provider should fall back, got %q", spec.Provider)
	}
	if spec.CostTier != "high" {
		t.Errorf("cost tier should normalise to high, got %q", spec.CostTier)
	}
	if spec.ProviderModel != "custom-model" {
		t.Errorf("provider model should be trimmed, got %q", spec.ProviderModel)
	}
	if spec.Params.Temperature != 0.0 {
		t.Errorf("out-of-range temperature should reset, got %v", spec.Params.Temperature)
	}
	if mem.RoutingPolicy.UCBC != 0.5 || mem.RoutingPolicy.CostPenalty != 0.4 {
		t.Errorf("out-of-range policy should reset, got %+v", mem.RoutingPolicy)
	}
	if mem.Exploration.WarmupRuns != 3 {
		t.Errorf("out-of-range warmup should reset, got %d", mem.Exploration.WarmupRuns)
	}
	if mem.Exploration.RunsCompleted != 4 {
		t.Errorf("runs_completed should survive, got %d", mem.Exploration.RunsCompleted)
	}
	if mem.ChairmanActive != "C1" {
		t.Errorf("unknown chairman should fall back to C1, got %q", mem.ChairmanActive)
	}
	if mem.FinalModel != "M1" {
		t.Errorf("unknown final model should fall back to M1, got %q", mem.FinalModel)
	}
}

func TestRepairIdempotent(t *testing.T) {
	inputs := []any{
		nil,
		map[string]any{},
		map[string]any{"weighted_inputs": map[string]any{"architect": 3.0}},
		map[string]any{
			"role_model_stats": map[string]any{
				"architect": map[string]any{
					"M1": map[string]any{"n": 2, "mean_reward": 0.7, "mean_cost": 0.3, "ucb": 1.1, "last_used_run_id": "run_000002"},
					"M2": "not a cell",
				},
			},
			"chairman_summary_store": map[string]any{
				"bootstrap": map[string]any{"M1": map[string]any{"next_priorities": []any{"a", 2, "b"}}},
				"iterate":   map[string]any{"files_changed": []any{"x.py"}},
			},
			"chairman_edits": map[string]any{
				"iterate": map[string]any{"approved_edits": []any{map[string]any{"path": "p", "content": "c"}}},
			},
		},
		map[string]any{"directory_structure": map[string]any{
			"base_path": 12,
			"M1": map[string]any{
				"dirs": map[string]any{"pkg": map[string]any{"files": []any{
					map[string]any{"module": "a.py", "path": "x", "functions": []any{"f"}, "imports": []any{}, "constants": []any{map[string]any{"name": "N", "value": "1"}}},
				}}},
				"files": "nope",
			},
		}},
	}

	root := t.TempDir()
	for i, raw := range inputs {
		first, err := Repair(raw, root)
		if err != nil {
			t.Fatalf("input %d: first repair failed: %v", i, err)
		}
		firstBytes, err := Marshal(first)
		if err != nil {
			t.Fatalf("input %d: marshal failed: %v", i, err)
		}

		var roundTrip any
		if err := json.Unmarshal(firstBytes, &roundTrip); err != nil {
			t.Fatalf("input %d: unmarshal failed: %v", i, err)
		}
		second, err := Repair(roundTrip, root)
		if err != nil {
			t.Fatalf("input %d: second repair failed: %v", i, err)
		}
		secondBytes, err := Marshal(second)
		if err != nil {
			t.Fatalf("input %d: marshal failed: %v", i, err)
		}

		if string(firstBytes) != string(secondBytes) {
			t.Errorf("input %d: repair is not idempotent\nfirst:\n%s\nsecond:\n%s", i, firstBytes, secondBytes)
		}
	}
}

func TestNormalizeRoleWeights(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]float64
		want map[string]float64
	}{
		{
			"already normalised",
			map[string]float64{"architect": 0.5, "implementer": 0.5},
			map[string]float64{"architect": 0.5, "implementer": 0.5},
		},
		{
			"scales to one",
			map[string]float64{"architect": 2, "implementer": 2},
			map[string]float64{"architect": 0.5, "implementer": 0.5},
		},
		{
			"missing role gets 0.5 before normalising",
			map[string]float64{"architect": 1.5},
			map[string]float64{"architect": 0.75, "implementer": 0.25},
		},
		{
			"negative becomes 0.5",
			map[string]float64{"architect": -3, "implementer": 0.5},
			map[string]float64{"architect": 0.5, "implementer": 0.5},
		},
		{
			"all zero falls back to uniform",
			map[string]float64{"architect": 0, "implementer": 0},
			map[string]float64{"architect": 0.5, "implementer": 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeRoleWeights(tt.in, Roles)

			sum := 0.0
			for _, role := range Roles {
				w, ok := got[role]
				if !ok {
					t.Fatalf("role %s missing from result %v", role, got)
				}
				sum += w
			}
			if math.Abs(sum-1.0) > 1e-12 {
				t.Errorf("weights sum to %v, want 1", sum)
			}
			for role, want := range tt.want {
				if math.Abs(got[role]-want) > 1e-12 {
					t.Errorf("weight[%s] = %v, want %v", role, got[role], want)
				}
			}
		})
	}
}
