package orchestrate

import "testing"

func TestParseArchitectOutputDropsIncompleteMoves(t *testing.T) {
	raw := map[string]any{
		"design_moves": []any{
			map[string]any{"proposal_id": "p1", "path": "/base/a.py", "function": "f", "goal": "g", "constraints": []any{"c1", 5}},
			map[string]any{"proposal_id": "p2", "path": "/base/b.py"}, // no function
			map[string]any{"path": "/base/c.py", "function": "h"},    // no proposal id
			map[string]any{"proposal_id": " ", "path": "/base/d.py", "function": "k"},
			"not a move",
		},
		"unknown_key": true,
	}
	out := ParseArchitectOutput(raw)

	if len(out.DesignMoves) != 1 {
		t.Fatalf("moves = %+v, want exactly one survivor", out.DesignMoves)
	}
	move := out.DesignMoves[0]
	if move.ProposalID != "p1" || move.Function != "f" {
		t.Errorf("move = %+v", move)
	}
	if len(move.Constraints) != 1 || move.Constraints[0] != "c1" {
		t.Errorf("constraints = %v, want non-strings dropped", move.Constraints)
	}
}

func TestParseArchitectOutputCaseInsensitiveKeys(t *testing.T) {
	raw := map[string]any{
		"design_moves": []any{
			map[string]any{"Proposal_ID": "p1", " Path ": "/base/a.py", "FUNCTION": "f"},
		},
	}
	out := ParseArchitectOutput(raw)
	if len(out.DesignMoves) != 1 {
		t.Fatalf("moves = %+v", out.DesignMoves)
	}
	if out.DesignMoves[0].Path != "/base/a.py" {
		t.Errorf("path = %q", out.DesignMoves[0].Path)
	}
}

func TestParseArchitectOutputNil(t *testing.T) {
	out := ParseArchitectOutput(nil)
	if out == nil || out.DesignMoves == nil || len(out.DesignMoves) != 0 {
		t.Errorf("nil input should yield empty list, got %+v", out)
	}
}

func TestParseImplementerOutputDropsIncompleteModules(t *testing.T) {
	raw := map[string]any{
		"modules_added_and_updated": []any{
			map[string]any{
				"proposal_ids":       []any{"p1"},
				"path":               "/base/a.py",
				"content":            "def f():\n    return 1\n",
				"included_functions": []any{"f"},
				"included_imports":   []any{"import os"},
				"included_constants": []any{
					map[string]any{"name": "N", "value": 3.0},
					map[string]any{"value": "orphan"},
				},
			},
			map[string]any{"path": "/base/b.py"},      // no content
			map[string]any{"content": "x"},            // no path
			map[string]any{"path": " ", "content": ""},
		},
	}
	out := ParseImplementerOutput(raw)

	if len(out.ModulesAddedAndUpdated) != 1 {
		t.Fatalf("modules = %+v, want exactly one survivor", out.ModulesAddedAndUpdated)
	}
	mod := out.ModulesAddedAndUpdated[0]
	if mod.Path != "/base/a.py" {
		t.Errorf("path = %q", mod.Path)
	}
	if len(mod.IncludedConstants) != 1 || mod.IncludedConstants[0].Name != "N" {
		t.Errorf("constants = %+v, want nameless entries dropped", mod.IncludedConstants)
	}
}
