package orchestrate

import (
	"path/filepath"
	"strings"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

// UpdateDirectoryStructure walks the approved edits for the phase and
// refreshes the indexed code tree: every confined edit gets (or updates) a
// file entry whose functions, imports and constants come from statically
// scanning the new content.
func UpdateDirectoryStructure(st *State) {
	mem := st.Memory

	if st.phase() == task.PhaseBootstrap {
		for _, modelID := range memory.SortedIDs(mem.ModelPool) {
			reindexModel(mem, modelID, mem.ChairmanEdits.Bootstrap[modelID])
		}
		return
	}

	finalModel := mem.FinalModel
	if finalModel == "" {
		if ids := memory.SortedIDs(mem.ModelPool); len(ids) > 0 {
			finalModel = ids[0]
		} else {
			return
		}
	}
	reindexModel(mem, finalModel, mem.ChairmanEdits.Iterate)
}

func reindexModel(mem *memory.Memory, modelID string, bucket memory.EditBucket) {
	basePath := modelBasePath(mem, modelID)

	node := mem.DirectoryStructure.Models[modelID]
	if node == nil {
		node = &memory.CodeDir{Dirs: map[string]*memory.CodeDir{}, Files: []memory.FileRecord{}}
		mem.DirectoryStructure.Models[modelID] = node
	}
	if strings.TrimSpace(node.Path) == "" {
		node.Path = basePath
	}

	for _, edit := range bucket.ApprovedEdits {
		path := strings.TrimSpace(edit.Path)
		content := strings.TrimSpace(edit.Content)
		if path == "" || content == "" {
			continue
		}
		if !WithinBase(path, basePath) {
			continue
		}
		indexFile(node, basePath, path, content)
	}
}

// indexFile locates or creates the nested directory and file entries for
// one written file and refreshes its indexed members.
func indexFile(node *memory.CodeDir, basePath, path, content string) {
	rel, ok := SafeRelPath(path, basePath)
	if !ok || rel == "." {
		return
	}

	parts := strings.Split(rel, string(filepath.Separator))
	module := parts[len(parts)-1]
	dirs := parts[:len(parts)-1]

	running := basePath
	cur := node
	for _, dir := range dirs {
		running = filepath.Join(running, dir)
		if cur.Dirs == nil {
			cur.Dirs = map[string]*memory.CodeDir{}
		}
		child, ok := cur.Dirs[dir]
		if !ok || child == nil {
			child = &memory.CodeDir{Dirs: map[string]*memory.CodeDir{}, Files: []memory.FileRecord{}}
			cur.Dirs[dir] = child
		}
		child.Path = running
		cur = child
	}

	functions, imports, constants := ScanModuleSource(content)
	record := memory.FileRecord{
		Constants: constants,
		Functions: functions,
		Imports:   imports,
		Module:    module,
		Path:      filepath.Join(running, module),
	}

	for i := range cur.Files {
		if strings.TrimSpace(cur.Files[i].Module) == module {
			cur.Files[i] = record
			return
		}
	}
	cur.Files = append(cur.Files, record)
}
