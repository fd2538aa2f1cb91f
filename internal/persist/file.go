package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mzansipos/terminal/internal/domain"
)

// File persists the snapshot as pretty-printed JSON on local disk. This is
// the default backend for a standalone till with no database configured.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(_ context.Context) (*domain.AppState, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var state domain.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("corrupt state file %s: %w", f.path, err)
	}
	return &state, true, nil
}

// Save writes to a temp file in the same directory and renames over the
// target, so a crash mid-write never leaves a truncated snapshot.
func (f *File) Save(_ context.Context, state domain.AppState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".pos-state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, f.path)
}
