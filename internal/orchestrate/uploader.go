package orchestrate

import (
	"os"
	"path/filepath"
)

// UploadEdit is one design move attached to a module in the uploader's
// grouping.
type UploadEdit struct {
	Constraints []string `json:"constraints"`
	Function    string   `json:"function"`
	Goal        string   `json:"goal"`
	ProposalID  string   `json:"proposal_id"`
}

// NewModule is a module the architect wants created.
type NewModule struct {
	Edits      []UploadEdit `json:"edits"`
	ModulePath string       `json:"module_path"`
}

// ModulePatch is an existing module plus its current text.
type ModulePatch struct {
	Edits         []UploadEdit `json:"edits"`
	ModuleContent string       `json:"module_content"`
	ModulePath    string       `json:"module_path"`
}

// CodeUpload is the EXISTING_MODULE_CODE payload for the implementer.
type CodeUpload struct {
	ModulePatches []ModulePatch `json:"module_patches"`
	NewModules    []NewModule   `json:"new_modules"`
}

// UploadRelevantCode groups the architect's design moves by file for the
// implementer prompt. Moves whose path escapes the model directory or
// whose function is empty are rejected; remaining moves are split into
// new_modules (file absent) and module_patches (file present, current text
// included), each carrying its list of edits in proposal order.
func UploadRelevantCode(arch *ArchitectOutput, modelDir string) CodeUpload {
	upload := CodeUpload{ModulePatches: []ModulePatch{}, NewModules: []NewModule{}}
	if arch == nil {
		return upload
	}

	patchIndex := map[string]int{}
	newIndex := map[string]int{}

	for _, move := range arch.DesignMoves {
		if move.Path == "" || !WithinBase(move.Path, modelDir) {
			continue
		}
		if move.Function == "" {
			continue
		}
		path, err := filepath.Abs(move.Path)
		if err != nil {
			continue
		}

		constraints := move.Constraints
		if constraints == nil {
			constraints = []string{}
		}
		edit := UploadEdit{
			Constraints: constraints,
			Function:    move.Function,
			Goal:        move.Goal,
			ProposalID:  move.ProposalID,
		}

		info, statErr := os.Stat(path)
		exists := statErr == nil && info.Mode().IsRegular()

		if exists {
			if idx, ok := patchIndex[path]; ok {
				upload.ModulePatches[idx].Edits = append(upload.ModulePatches[idx].Edits, edit)
				continue
			}
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				continue
			}
			patchIndex[path] = len(upload.ModulePatches)
			upload.ModulePatches = append(upload.ModulePatches, ModulePatch{
				Edits:         []UploadEdit{edit},
				ModuleContent: string(content),
				ModulePath:    path,
			})
		} else {
			if idx, ok := newIndex[path]; ok {
				upload.NewModules[idx].Edits = append(upload.NewModules[idx].Edits, edit)
				continue
			}
			newIndex[path] = len(upload.NewModules)
			upload.NewModules = append(upload.NewModules, NewModule{
				Edits:      []UploadEdit{edit},
				ModulePath: path,
			})
		}
	}
	return upload
}
