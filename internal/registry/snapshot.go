package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Snapshot schema versioning for forward-compatibility.
const snapshotVersion = 1

type snapshot struct {
	Version   int       `json:"version"`
	Selection Selection `json:"selection"`
	Created   int64     `json:"created_unix"`
}

// SnapshotPathFor derives the per-Procfile snapshot location inside dir.
// The file name is the SHA-256 of the absolute Procfile path.
func SnapshotPathFor(dir, procfilePath string) (string, error) {
	abs, err := filepath.Abs(procfilePath)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".json"), nil
}

// LoadSelection restores the selection saved at SnapshotPath, if any.
// A missing snapshot is not an error.
func (r *Registry) LoadSelection() error {
	if r.SnapshotPath == "" {
		return nil
	}
	b, err := os.ReadFile(r.SnapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var s snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	r.Restore(s.Selection)
	return nil
}

// SaveSelection writes the current selection to SnapshotPath atomically.
func (r *Registry) SaveSelection() error {
	if r.SnapshotPath == "" {
		return nil
	}
	path := r.SnapshotPath
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	s := snapshot{
		Version:   snapshotVersion,
		Selection: r.Selection(),
		Created:   now().Unix(),
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
