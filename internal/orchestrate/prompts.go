package orchestrate

import (
	"embed"
	"os"
	"path/filepath"
)

//go:embed defaults/*.txt
var defaultPrompts embed.FS

// promptFiles maps prompt keys to their filenames under the workspace
// prompts directory.
var promptFiles = map[string]string{
	"architect":   "architect.txt",
	"chairman":    "chairman.txt",
	"implementer": "implementer.txt",
	"overview":    "overview.txt",
	"rules":       "rules.txt",
}

// LoadPrompts reads the prompt files from root/prompts, seeding any missing
// file from the embedded defaults first. Files that still cannot be read
// are simply absent from the returned map; callers treat missing prompts
// as empty strings.
func LoadPrompts(root string) map[string]string {
	promptsDir := filepath.Join(root, "prompts")
	if err := os.MkdirAll(promptsDir, 0755); err != nil {
		return map[string]string{}
	}

	prompts := map[string]string{}
	for key, filename := range promptFiles {
		path := filepath.Join(promptsDir, filename)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if data, err := defaultPrompts.ReadFile("defaults/" + filename); err == nil {
				_ = os.WriteFile(path, data, 0644)
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		prompts[key] = string(data)
	}
	return prompts
}
