package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// JSONSink stores the whole session store as one JSON file.
type JSONSink struct {
	path string
}

// NewJSONSink returns a sink writing to path. The file and its directory are
// created on the first Save.
func NewJSONSink(path string) *JSONSink {
	return &JSONSink{path: path}
}

// Path returns the file the sink writes to.
func (j *JSONSink) Path() string { return j.path }

// Save writes snap to a temporary file next to the target and renames it
// into place, so a crash mid-write never truncates the previous snapshot.
func (j *JSONSink) Save(snap *Snapshot) error {
	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync sessions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close sessions: %w", err)
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace sessions file: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is not an error.
func (j *JSONSink) Load() (*Snapshot, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal sessions %s: %w", j.path, err)
	}
	return &snap, nil
}

func (j *JSONSink) Close() error { return nil }
