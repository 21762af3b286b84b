package orchestrate

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/history"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/jsonx"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/provider"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// FileContent pairs a path with its text for the overview prompt.
type FileContent struct {
	Content string `json:"content"`
	Path    string `json:"path"`
}

// CurrentCode is the CURRENT_CODE_JSON payload.
type CurrentCode struct {
	Files []FileContent `json:"current_code"`
}

// ExtractFilePaths collects the indexed file paths of a code tree,
// descending into subdirectories (sorted by name) before listing the
// node's own files, de-duplicated in traversal order.
func ExtractFilePaths(dir *memory.CodeDir) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(d *memory.CodeDir)
	walk = func(d *memory.CodeDir) {
		if d == nil {
			return
		}
		names := make([]string, 0, len(d.Dirs))
		for name := range d.Dirs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			walk(d.Dirs[name])
		}
		for _, file := range d.Files {
			path := strings.TrimSpace(file.Path)
			if path == "" || seen[path] {
				continue
			}
			seen[path] = true
			out = append(out, path)
		}
	}
	walk(dir)
	return out
}

// ChairmanOverview is the periodic whole-codebase review: every indexed
// file under final_model's tree is read and sent to the chairman with the
// overview prompt, and the returned next_priorities are prepended to the
// iterate summary's priorities (de-duplicated, first occurrence kept).
func ChairmanOverview(ctx context.Context, mem *memory.Memory, prompts map[string]string, t *task.Task, reg provider.Registry, ledger *history.DB) {
	finalModel := mem.FinalModel
	if finalModel == "" {
		if ids := memory.SortedIDs(mem.ModelPool); len(ids) > 0 {
			finalModel = ids[0]
		} else {
			return
		}
	}

	review := CurrentCode{Files: []FileContent{}}
	for _, path := range ExtractFilePaths(mem.DirectoryStructure.Models[finalModel]) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		review.Files = append(review.Files, FileContent{Content: string(data), Path: path})
	}

	userText := fmt.Sprintf("TASK_JSON:\n%s\n\nCURRENT_CODE_JSON:\n%s\n",
		compactJSON(*t), compactJSON(review))
	sysText := systemText(prompts["rules"], prompts["overview"])

	payload := chairmanPayload(mem, t.Phase, sysText, userText)
	result := runProvider(ctx, reg, payload)
	recordInvocation(ledger, mem.CurrentRunID, payload, result)
	if result.Err != "" {
		fmt.Fprintf(os.Stderr, "[overview] %s\n", result.Err)
	}

	raw, _ := jsonx.ExtractObject(result.rawOutput)
	combined := append(jsonx.StringList(raw["next_priorities"]), mem.ChairmanSummaryStore.Iterate.NextPriorities...)

	priorities := []string{}
	for _, item := range combined {
		if !containsString(priorities, item) {
			priorities = append(priorities, item)
		}
	}
	mem.ChairmanSummaryStore.Iterate.NextPriorities = priorities
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
