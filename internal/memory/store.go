package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Marshal serialises a memory record the way it is stored on disk: sorted
// keys, two-space indent.
func Marshal(m *Memory) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Write serialises the record to path, overwriting any existing file.
func Write(m *Memory, path string) error {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("serializing memory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing memory to %s: %w", path, err)
	}
	return nil
}

// WriteRotated atomically swaps in a new memory.json under dir: the record
// is written to a temp file in the same directory, the existing memory.json
// is renamed to previous_memory.json, and the temp file renamed into place.
// A reader therefore sees either the old record or the new one, never a
// partial write.
func WriteRotated(m *Memory, dir string) error {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("serializing memory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "memory-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp memory file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp memory file: %w", err)
	}

	target := filepath.Join(dir, "memory.json")
	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, filepath.Join(dir, "previous_memory.json")); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("rotating memory.json: %w", err)
		}
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("installing memory.json: %w", err)
	}
	return nil
}

// LoadOrCreate reads and repairs memory.json under root/memory, creating a
// fresh default record on the first run or after corruption. The repaired
// record is written back whenever creation or repair changed anything, with
// a single retry on write failure. The second return reports whether this
// is a first run (no readable prior record).
func LoadOrCreate(root string) (*Memory, bool, error) {
	memoryDir := filepath.Join(root, "memory")
	if err := os.MkdirAll(memoryDir, 0755); err != nil {
		return nil, false, fmt.Errorf("creating memory directory: %w", err)
	}

	path := filepath.Join(memoryDir, "memory.json")
	firstRun := false

	var raw any
	data, err := os.ReadFile(path)
	if err != nil || json.Unmarshal(data, &raw) != nil {
		raw = nil
		firstRun = true
	}

	repaired, err := Repair(raw, root)
	if err != nil {
		return nil, firstRun, err
	}

	changed := firstRun
	if !changed {
		canonical, err := Marshal(repaired)
		if err != nil {
			return nil, firstRun, fmt.Errorf("serializing memory: %w", err)
		}
		changed = string(canonical) != string(data)
	}

	if changed {
		if err := Write(repaired, path); err != nil {
			if err := Write(repaired, path); err != nil {
				fmt.Fprintf(os.Stderr, "[memory] failed to persist repaired record: %v\n", err)
			}
		}
	}

	return repaired, firstRun, nil
}
