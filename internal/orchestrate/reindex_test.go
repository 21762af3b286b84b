package orchestrate

import (
	"path/filepath"
	"testing"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/task"
)

func TestUpdateDirectoryStructureIndexesNestedFile(t *testing.T) {
	st := newTestState(t, task.PhaseBootstrap)
	mem := st.Memory
	base := mem.DirectoryStructure.Models["M1"].Path
	path := filepath.Join(base, "log_analyzer", "parser.py")

	content := "import re\n\nMAX_LINES = 500\n\ndef parse(line):\n    return line\n"
	mem.ChairmanEdits.Bootstrap["M1"] = memory.EditBucket{ApprovedEdits: []memory.Edit{
		{Path: path, Content: content, ProposalIDs: []string{"p1"}},
	}}

	UpdateDirectoryStructure(st)

	node := mem.DirectoryStructure.Models["M1"]
	sub, ok := node.Dirs["log_analyzer"]
	if !ok {
		t.Fatalf("nested directory not indexed: %+v", node.Dirs)
	}
	if sub.Path != filepath.Join(base, "log_analyzer") {
		t.Errorf("nested dir path = %q", sub.Path)
	}
	if len(sub.Files) != 1 {
		t.Fatalf("files = %+v, want one record", sub.Files)
	}
	file := sub.Files[0]
	if file.Module != "parser.py" {
		t.Errorf("module = %q", file.Module)
	}
	if file.Path != path {
		t.Errorf("path = %q, want %q", file.Path, path)
	}
	if len(file.Functions) != 1 || file.Functions[0] != "parse" {
		t.Errorf("functions = %v", file.Functions)
	}
	if len(file.Imports) != 1 || file.Imports[0] != "import re" {
		t.Errorf("imports = %v", file.Imports)
	}
	if len(file.Constants) != 1 || file.Constants[0].Name != "MAX_LINES" || file.Constants[0].Value != "500" {
		t.Errorf("constants = %v", file.Constants)
	}
}

func TestUpdateDirectoryStructureReplacesExistingRecord(t *testing.T) {
	st := newTestState(t, task.PhaseBootstrap)
	mem := st.Memory
	base := mem.DirectoryStructure.Models["M1"].Path
	path := filepath.Join(base, "main.py")

	mem.ChairmanEdits.Bootstrap["M1"] = memory.EditBucket{ApprovedEdits: []memory.Edit{
		{Path: path, Content: "def first():\n    pass\n", ProposalIDs: []string{"p1"}},
	}}
	UpdateDirectoryStructure(st)

	mem.ChairmanEdits.Bootstrap["M1"] = memory.EditBucket{ApprovedEdits: []memory.Edit{
		{Path: path, Content: "def second():\n    pass\n", ProposalIDs: []string{"p2"}},
	}}
	UpdateDirectoryStructure(st)

	files := mem.DirectoryStructure.Models["M1"].Files
	if len(files) != 1 {
		t.Fatalf("files = %+v, want record replaced not duplicated", files)
	}
	if len(files[0].Functions) != 1 || files[0].Functions[0] != "second" {
		t.Errorf("functions = %v, want refreshed index", files[0].Functions)
	}
}

func TestUpdateDirectoryStructureSkipsEscapingEdit(t *testing.T) {
	st := newTestState(t, task.PhaseBootstrap)
	mem := st.Memory

	mem.ChairmanEdits.Bootstrap["M1"] = memory.EditBucket{ApprovedEdits: []memory.Edit{
		{Path: "/etc/passwd", Content: "X = 1", ProposalIDs: []string{"p1"}},
	}}
	UpdateDirectoryStructure(st)

	node := mem.DirectoryStructure.Models["M1"]
	if len(node.Files) != 0 || len(node.Dirs) != 0 {
		t.Errorf("escaping edit must not be indexed: %+v", node)
	}
}

func TestUpdateDirectoryStructureIterateTargetsFinalModel(t *testing.T) {
	st := newTestState(t, task.PhaseIterate)
	mem := st.Memory
	mem.FinalModel = "M2"
	path := filepath.Join(mem.DirectoryStructure.Models["M2"].Path, "app.py")

	mem.ChairmanEdits.Iterate = memory.EditBucket{ApprovedEdits: []memory.Edit{
		{Path: path, Content: "def app():\n    pass\n", ProposalIDs: []string{"p1"}},
	}}
	UpdateDirectoryStructure(st)

	if len(mem.DirectoryStructure.Models["M2"].Files) != 1 {
		t.Errorf("iterate edit should index under final model: %+v", mem.DirectoryStructure.Models["M2"])
	}
	if len(mem.DirectoryStructure.Models["M1"].Files) != 0 {
		t.Error("other model trees must stay untouched")
	}
}

func TestExtractFilePaths(t *testing.T) {
	dir := &memory.CodeDir{
		Path: "/base",
		Dirs: map[string]*memory.CodeDir{
			"b": {Files: []memory.FileRecord{{Path: "/base/b/x.py", Module: "x.py"}}},
			"a": {Files: []memory.FileRecord{{Path: "/base/a/y.py", Module: "y.py"}}},
		},
		Files: []memory.FileRecord{
			{Path: "/base/top.py", Module: "top.py"},
			{Path: "/base/top.py", Module: "dup.py"},
		},
	}

	got := ExtractFilePaths(dir)
	want := []string{"/base/a/y.py", "/base/b/x.py", "/base/top.py"}
	if len(got) != len(want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
