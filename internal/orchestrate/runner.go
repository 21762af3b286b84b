package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/history"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/jsonx"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// compactJSON serialises prompt payload sections. Struct fields are
// declared in alphabetical tag order and maps sort natively, so the bytes
// are stable for identical values.
func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ValidateCallIDContract reports whether every call id equals
// "<role>_<model>". The runner relies on that shape to find the architect
// result an implementer call depends on.
func ValidateCallIDContract(calls []AgentCall) bool {
	for _, call := range calls {
		if call.CallID != call.AgentID+"_"+call.ModelID {
			return false
		}
	}
	return true
}

// buildRoleModelIndex maps (role, model) to the actual call id, used as a
// fallback when the contract does not hold.
func buildRoleModelIndex(calls []AgentCall) map[[2]string]string {
	index := map[[2]string]string{}
	for _, call := range calls {
		if call.AgentID != "" && call.ModelID != "" && call.CallID != "" {
			index[[2]string{call.AgentID, call.ModelID}] = call.CallID
		}
	}
	return index
}

// sortCalls orders the calls deterministically: architect before
// implementer, then by model id, then by call id.
func sortCalls(calls []AgentCall) {
	sort.SliceStable(calls, func(i, j int) bool {
		oi, oj := roleOrder[calls[i].AgentID], roleOrder[calls[j].AgentID]
		if _, ok := roleOrder[calls[i].AgentID]; !ok {
			oi = len(roleOrder)
		}
		if _, ok := roleOrder[calls[j].AgentID]; !ok {
			oj = len(roleOrder)
		}
		if oi != oj {
			return oi < oj
		}
		if calls[i].ModelID != calls[j].ModelID {
			return calls[i].ModelID < calls[j].ModelID
		}
		return calls[i].CallID < calls[j].CallID
	})
}

// RunAgents executes the planned calls in deterministic order, threading
// each architect's parsed output into the matching implementer prompt.
// Provider failures are contained: the call records its error and an empty
// parsed output, and the run continues.
func RunAgents(ctx context.Context, st *State, reg provider.Registry, ledger *history.DB) {
	st.AgentResults = map[string]*AgentResult{}

	mem := st.Memory
	phase := st.phase()
	runID := mem.CurrentRunID
	basePath := mem.DirectoryStructure.BasePath

	contractOK := ValidateCallIDContract(st.AgentCalls)
	var index map[[2]string]string
	if !contractOK {
		index = buildRoleModelIndex(st.AgentCalls)
	}

	sortCalls(st.AgentCalls)

	for _, call := range st.AgentCalls {
		spec := mem.ModelPool[call.ModelID]

		// Bootstrap prompts see the call's own model directory; iterate
		// prompts always see the authoritative final_model workspace.
		dirModel := call.ModelID
		if phase == task.PhaseIterate {
			dirModel = mem.FinalModel
		}
		modelDir := filepath.Join(basePath, dirModel)
		if err := os.MkdirAll(modelDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[agents] creating %s: %v\n", modelDir, err)
		}
		codeDir := mem.DirectoryStructure.Models[dirModel]

		userText := fmt.Sprintf("TASK_JSON:\n%s\n\nDIRECTORY_STRUCTURE_JSON:\n%s\n",
			compactJSON(call.Task), compactJSON(codeDir))

		switch call.AgentID {
		case RoleArchitect:
			userText += fmt.Sprintf("\nCHAIRMAN_SUMMARY_JSON:\n%s\n", compactJSON(call.ChairmanSummary))
		case RoleImplementer:
			architectModel := call.ModelID
			if phase == task.PhaseIterate {
				architectModel = st.RoleAssignments[RoleArchitect]
			}
			architectCallID := RoleArchitect + "_" + architectModel
			if !contractOK {
				architectCallID = index[[2]string{RoleArchitect, architectModel}]
			}
			if architectCallID != "" {
				var arch *ArchitectOutput
				if res := st.AgentResults[architectCallID]; res != nil {
					arch = res.Architect
				}
				upload := UploadRelevantCode(arch, modelDir)
				userText += fmt.Sprintf("EXISTING_MODULE_CODE:\n%s\n", compactJSON(upload))
			}
		}

		weight := call.AgentWeight
		payload := provider.Payload{
			AgentID: call.AgentID,
			CallID:  call.CallID,
			Metadata: provider.Metadata{
				AgentWeight: &weight,
				CostTier:    spec.CostTier,
				Phase:       phase,
				RunID:       runID,
			},
			ModelID:       call.ModelID,
			Params:        provider.Params{Temperature: spec.Params.Temperature},
			Provider:      spec.Provider,
			ProviderModel: spec.ProviderModel,
			SystemText:    systemText(call.Rules, call.RolePrompt),
			TimeoutS:      mem.TimeoutDefaults.RunAgentsTimeoutS,
			UserText:      userText,
		}

		result := runProvider(ctx, reg, payload)
		recordInvocation(ledger, runID, payload, result)

		raw, _ := jsonx.ExtractObject(resultText(result))
		switch call.AgentID {
		case RoleArchitect:
			result.Architect = ParseArchitectOutput(raw)
		case RoleImplementer:
			result.Implementer = ParseImplementerOutput(raw)
		}
		result.rawOutput = ""

		st.AgentResults[call.CallID] = result
	}
}

func systemText(rules, rolePrompt string) string {
	rules = strings.TrimSpace(rules)
	rolePrompt = strings.TrimSpace(rolePrompt)
	if rules == "" {
		return rolePrompt
	}
	if rolePrompt == "" {
		return rules
	}
	return rules + "\n\n" + rolePrompt
}

// runProvider performs a single bounded invocation, folding every failure
// into the result's error field.
func runProvider(ctx context.Context, reg provider.Registry, p provider.Payload) *AgentResult {
	start := time.Now()
	result := &AgentResult{AgentID: p.AgentID, ModelID: p.ModelID}

	output, tokens, err := reg.Invoke(ctx, p)
	result.LatencyMS = time.Since(start).Milliseconds()
	result.Tokens = tokens
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.rawOutput = output
	return result
}

func resultText(r *AgentResult) string {
	return r.rawOutput
}

func recordInvocation(ledger *history.DB, runID string, p provider.Payload, r *AgentResult) {
	if ledger == nil {
		return
	}
	err := ledger.RecordInvocation(history.Invocation{
		RunID:            runID,
		CallID:           p.CallID,
		AgentID:          p.AgentID,
		ModelID:          p.ModelID,
		Provider:         p.Provider,
		LatencyMS:        r.LatencyMS,
		PromptTokens:     r.Tokens.PromptTokens,
		CompletionTokens: r.Tokens.CompletionTokens,
		TotalTokens:      r.Tokens.TotalTokens,
		Error:            r.Err,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ledger] %v\n", err)
	}
}
