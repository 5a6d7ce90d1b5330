package props

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// File is a Store persisted as a flat YAML mapping.
type File struct {
	*Memory
	path string

	// Serializes Save; the HTTP API and the tracker both save.
	saveMu sync.Mutex
}

// Open loads path. A missing file yields an empty store that is created on
// the first Save.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("props path is required")
	}
	vals := map[string]string{}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		var raw map[string]yaml.Node
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("props %s: %w", path, err)
		}
		for k, n := range raw {
			if n.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("props %s: key %q must be a scalar", path, k)
			}
			vals[k] = n.Value
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	return &File{Memory: NewMemory(vals), path: path}, nil
}

// Save writes the store when it has unsaved changes.
func (f *File) Save() error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()
	if !f.Dirty() {
		return nil
	}
	b, err := yaml.Marshal(f.Snapshot())
	if err != nil {
		return fmt.Errorf("props marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".props-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return f.Memory.Save()
}

func (f *File) Path() string { return f.path }
