package orchestrate

import (
	"strings"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/jsonx"
)

// ParseArchitectOutput coerces a leniently-extracted object into the
// architect schema. Keys are matched case-insensitively after trimming;
// a move missing proposal_id, path or function is dropped entirely.
func ParseArchitectOutput(raw map[string]any) *ArchitectOutput {
	out := &ArchitectOutput{DesignMoves: []DesignMove{}}
	if raw == nil {
		return out
	}

	for _, item := range jsonx.AsList(raw["design_moves"]) {
		m := jsonx.AsMap(item)
		if m == nil {
			continue
		}
		move := DesignMove{Constraints: []string{}}
		for key, value := range m {
			switch normalizeKey(key) {
			case "proposal_id":
				move.ProposalID = requiredString(value)
			case "path":
				move.Path = requiredString(value)
			case "function":
				move.Function = requiredString(value)
			case "goal":
				if s, ok := jsonx.AsString(value); ok {
					move.Goal = strings.TrimSpace(s)
				}
			case "constraints":
				move.Constraints = jsonx.StringList(value)
			}
		}
		if move.ProposalID == "" || move.Path == "" || move.Function == "" {
			continue
		}
		out.DesignMoves = append(out.DesignMoves, move)
	}
	return out
}

// ParseImplementerOutput coerces a leniently-extracted object into the
// implementer schema. A module missing path or content is dropped.
func ParseImplementerOutput(raw map[string]any) *ImplementerOutput {
	out := &ImplementerOutput{ModulesAddedAndUpdated: []ModuleUpdate{}}
	if raw == nil {
		return out
	}

	for _, item := range jsonx.AsList(raw["modules_added_and_updated"]) {
		m := jsonx.AsMap(item)
		if m == nil {
			continue
		}
		mod := ModuleUpdate{
			IncludedConstants: []ModuleConstant{},
			IncludedFunctions: []string{},
			IncludedImports:   []string{},
			ProposalIDs:       []string{},
		}
		for key, value := range m {
			switch normalizeKey(key) {
			case "proposal_ids":
				mod.ProposalIDs = jsonx.StringList(value)
			case "path":
				mod.Path = requiredString(value)
			case "content":
				mod.Content = requiredString(value)
			case "included_functions":
				mod.IncludedFunctions = jsonx.StringList(value)
			case "included_imports":
				mod.IncludedImports = jsonx.StringList(value)
			case "included_constants":
				for _, c := range jsonx.AsList(value) {
					cm := jsonx.AsMap(c)
					if cm == nil {
						continue
					}
					name, ok := jsonx.AsString(cm["name"])
					if !ok || strings.TrimSpace(name) == "" {
						continue
					}
					mod.IncludedConstants = append(mod.IncludedConstants, ModuleConstant{
						Name:  strings.TrimSpace(name),
						Value: cm["value"],
					})
				}
			}
		}
		if mod.Path == "" || mod.Content == "" {
			continue
		}
		out.ModulesAddedAndUpdated = append(out.ModulesAddedAndUpdated, mod)
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// requiredString trims the value, returning "" for non-strings and blanks
// so callers can treat empty as missing.
func requiredString(v any) string {
	s, ok := jsonx.AsString(v)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
