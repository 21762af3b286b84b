// Package task owns the per-run task record: interactive intake on a first
// run, reload-and-revalidate on later runs, and rotation of task.json.
package task

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwhisler/Dynamic-Ensemble-Reasoning/internal/memory"
)

const (
	PhaseBootstrap = "bootstrap"
	PhaseIterate   = "iterate"
)

var languages = map[string]bool{"python": true, "java": true, "c++": true}
var styles = map[string]bool{"clean": true, "minimal": true, "performance": true}

// Task is the per-run task record.
type Task struct {
	Goal     string `json:"goal"`
	Language string `json:"language"`
	Phase    string `json:"phase"`
	Style    string `json:"style"`
}

// Intake solicits task values from the user and normalises the record for
// the run. In and Out default to stdin/stdout.
type Intake struct {
	In  io.Reader
	Out io.Writer
}

func (i *Intake) reader() *bufio.Reader {
	in := i.In
	if in == nil {
		in = os.Stdin
	}
	return bufio.NewReader(in)
}

func (i *Intake) out() io.Writer {
	if i.Out == nil {
		return os.Stdout
	}
	return i.Out
}

// Collect asks the four task questions on the terminal. Unsupported phase,
// language and style answers fall back to their defaults.
func (i *Intake) Collect() Task {
	r := i.reader()
	w := i.out()

	phase := ask(r, w, "\nWhat phase is this program in?\nThe supported phases are bootstrap and iterate.\n")
	if phase != PhaseBootstrap && phase != PhaseIterate {
		phase = PhaseBootstrap
	}

	goal := askRaw(r, w, "\nWhat's the overall goal of this program?\n")

	language := ask(r, w, "\nWhat coding language should be used to compose this program?\nThe supported coding languages are python, java, c++\n")
	if !languages[language] {
		language = "python"
	}

	style := ask(r, w, "\nWhat style of programming do you prefer?\nThe supported styles are clean, minimal, performance\n")
	if !styles[style] {
		style = "clean"
	}

	return Task{Goal: goal, Language: language, Phase: phase, Style: style}
}

func ask(r *bufio.Reader, w io.Writer, prompt string) string {
	return strings.ToLower(askRaw(r, w, prompt))
}

func askRaw(r *bufio.Reader, w io.Writer, prompt string) string {
	fmt.Fprint(w, prompt)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// PhaseFor derives the run phase from memory: iterate once the warm-up
// window has been completed, bootstrap before that.
func PhaseFor(mem *memory.Memory) string {
	if mem != nil && mem.Exploration.RunsCompleted >= mem.Exploration.WarmupRuns {
		return PhaseIterate
	}
	return PhaseBootstrap
}

// parsePrior revalidates a stored task record against memory. The phase is
// always recomputed from memory; goal, language and style come from the
// file and are reported missing when blank or unsupported.
func parsePrior(mem *memory.Memory, raw map[string]any) (Task, bool) {
	t := Task{Phase: PhaseFor(mem)}
	complete := true

	if goal, ok := raw["goal"].(string); ok && strings.TrimSpace(goal) != "" {
		t.Goal = strings.TrimSpace(goal)
	} else {
		complete = false
	}

	if lang, ok := raw["language"].(string); ok {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if languages[lang] {
			t.Language = lang
		} else {
			complete = false
		}
	} else {
		complete = false
	}

	if style, ok := raw["style"].(string); ok {
		style = strings.ToLower(strings.TrimSpace(style))
		if styles[style] {
			t.Style = style
		} else {
			complete = false
		}
	} else {
		complete = false
	}

	return t, complete
}

// Normalize produces the task record for this run. First runs solicit all
// four values; later runs reload task.json and re-solicit only when the
// prior record is missing fields. Either way the phase is recomputed from
// memory, overriding any phase answer typed at the prompt.
// The record is written to task.json before returning (one write retry).
func (i *Intake) Normalize(root string, mem *memory.Memory, firstRun bool) (*Task, error) {
	taskDir := filepath.Join(root, "task")
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return nil, fmt.Errorf("creating task directory: %w", err)
	}
	taskPath := filepath.Join(taskDir, "task.json")

	var t Task
	if firstRun {
		t = i.Collect()
	} else {
		raw := loadRaw(taskPath)
		if raw == nil {
			fmt.Fprintln(i.out(), "Previous task file could not be located, please re-input these values:")
			t = i.Collect()
		} else {
			parsed, complete := parsePrior(mem, raw)
			if !complete {
				fmt.Fprintln(i.out(), "Missing information from previous run, please re-input these values:")
				t = i.Collect()
			} else {
				t = parsed
			}
		}
	}
	t.Phase = PhaseFor(mem)

	if err := WriteFile(&t, taskPath); err != nil {
		if err := WriteFile(&t, taskPath); err != nil {
			fmt.Fprintf(os.Stderr, "[task] failed to persist task record: %v\n", err)
		}
	}
	return &t, nil
}

func loadRaw(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	return raw
}

// WriteFile serialises the task record with sorted keys and two-space
// indent, matching the memory store's format.
func WriteFile(t *Task, path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing task: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing task to %s: %w", path, err)
	}
	return nil
}

// Rotate moves task.json to previous_task.json and writes the new record.
func Rotate(t *Task, root string) error {
	taskDir := filepath.Join(root, "task")
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return fmt.Errorf("creating task directory: %w", err)
	}
	taskPath := filepath.Join(taskDir, "task.json")
	if _, err := os.Stat(taskPath); err == nil {
		if err := os.Rename(taskPath, filepath.Join(taskDir, "previous_task.json")); err != nil {
			return fmt.Errorf("rotating task.json: %w", err)
		}
	}
	return WriteFile(t, taskPath)
}
