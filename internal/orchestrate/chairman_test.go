package orchestrate

import (
	"math"
	"testing"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
)

func TestUpdateCell(t *testing.T) {
	policy := memory.RoutingPolicy{CostPenalty: 0.4, UCBC: 0.5}

	cell := memory.Cell{N: 3, MeanReward: 0.6, MeanCost: 0.2}
	got := UpdateCell(cell, 5, policy, RoleScore{JudgeScore: 0.8, CostScore: 0.4})

	if got.N != 4 {
		t.Errorf("n = %d, want 4", got.N)
	}
	wantReward := 0.6 + (0.8-0.6)/4
	if math.Abs(got.MeanReward-wantReward) > 1e-12 {
		t.Errorf("mean_reward = %v, want %v", got.MeanReward, wantReward)
	}
	wantCost := 0.2 + (0.4-0.2)/4
	if math.Abs(got.MeanCost-wantCost) > 1e-12 {
		t.Errorf("mean_cost = %v, want %v", got.MeanCost, wantCost)
	}
	wantUCB := wantReward - 0.4*wantCost + 0.5*math.Sqrt(math.Log(5)/4)
	if math.Abs(got.UCB-wantUCB) > 1e-12 {
		t.Errorf("ucb = %v, want %v", got.UCB, wantUCB)
	}
}

func TestUpdateCellFreshCellAndTotalFloor(t *testing.T) {
	policy := memory.RoutingPolicy{CostPenalty: 0.4, UCBC: 0.5}

	got := UpdateCell(memory.Cell{}, 1, policy, RoleScore{JudgeScore: 1.0, CostScore: 0.0})
	if got.N != 1 || got.MeanReward != 1.0 || got.MeanCost != 0.0 {
		t.Errorf("fresh cell update = %+v", got)
	}
	// total_runs below 2 uses ln(2), never ln(1)=0.
	wantUCB := 1.0 + 0.5*math.Sqrt(math.Log(2)/1)
	if math.Abs(got.UCB-wantUCB) > 1e-12 {
		t.Errorf("ucb = %v, want %v", got.UCB, wantUCB)
	}
}

func TestParseChairmanVerdictClampsScores(t *testing.T) {
	raw := map[string]any{
		"scoring": map[string]any{
			"architect":   map[string]any{"judge_score": 1.7, "cost_score": 0.3},
			"implementer": map[string]any{"judge_score": 0.9},
		},
	}
	v := ParseChairmanVerdict(raw)

	if v.Scoring.Architect.JudgeScore != 0.0 {
		t.Errorf("out-of-range judge score should default to 0, got %v", v.Scoring.Architect.JudgeScore)
	}
	if v.Scoring.Architect.CostScore != 0.3 {
		t.Errorf("architect cost = %v, want 0.3", v.Scoring.Architect.CostScore)
	}
	if v.Scoring.Implementer.JudgeScore != 0.9 {
		t.Errorf("implementer judge = %v, want 0.9", v.Scoring.Implementer.JudgeScore)
	}
	if v.Scoring.Implementer.CostScore != 0.5 {
		t.Errorf("missing cost score should default to 0.5, got %v", v.Scoring.Implementer.CostScore)
	}
}

func TestParseChairmanVerdictEmptyInput(t *testing.T) {
	v := ParseChairmanVerdict(nil)
	if len(v.ApprovedEdits) != 0 {
		t.Errorf("edits = %v, want none", v.ApprovedEdits)
	}
	if v.Scoring.Architect.CostScore != 0.5 || v.Scoring.Architect.JudgeScore != 0 {
		t.Errorf("default scoring = %+v", v.Scoring)
	}
	if v.Summary.NextPriorities == nil {
		t.Error("summary lists should be initialised")
	}
}

func TestParseChairmanVerdictEditsAndSummary(t *testing.T) {
	raw := map[string]any{
		"approved_edits": []any{
			map[string]any{"Proposal_IDs": []any{"p1", 2}, "PATH": " /tmp/a.py ", "content": "x = 1\n"},
			"not an edit",
		},
		"chairman_summary": map[string]any{
			"accepted_design_moves": []any{map[string]any{"proposal_id": "p1", "goal": "g"}},
			"rejected_design_moves": []any{map[string]any{"proposal_id": "p2", "reason": "dup"}},
			"files_changed":         []any{"a.py"},
			"next_priorities":       []any{"tests", 7},
		},
	}
	v := ParseChairmanVerdict(raw)

	if len(v.ApprovedEdits) != 1 {
		t.Fatalf("edits = %v, want 1", v.ApprovedEdits)
	}
	edit := v.ApprovedEdits[0]
	if edit.Path != "/tmp/a.py" {
		t.Errorf("path = %q (keys should match case-insensitively, values trimmed)", edit.Path)
	}
	if len(edit.ProposalIDs) != 1 || edit.ProposalIDs[0] != "p1" {
		t.Errorf("proposal ids = %v", edit.ProposalIDs)
	}
	if len(v.Summary.AcceptedDesignMoves) != 1 || v.Summary.AcceptedDesignMoves[0].ProposalID != "p1" {
		t.Errorf("accepted = %v", v.Summary.AcceptedDesignMoves)
	}
	if len(v.Summary.RejectedDesignMoves) != 1 || v.Summary.RejectedDesignMoves[0].Reason != "dup" {
		t.Errorf("rejected = %v", v.Summary.RejectedDesignMoves)
	}
	if len(v.Summary.NextPriorities) != 1 || v.Summary.NextPriorities[0] != "tests" {
		t.Errorf("priorities = %v", v.Summary.NextPriorities)
	}
}
