package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lattice-db/lattice/core"
)

// writeJSONAtomic marshals v and writes it to path via a temp-file-then-
// rename, applied here to every persisted resource (db info, collection
// metadata, one document, one index record).
func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.NewInternal(err, "failed to create directory for %s", path)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return core.NewInternal(err, "failed to marshal %s", path)
	}

	tempPath := path + ".tmp"
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return core.NewInternal(err, "failed to create temp file for %s", path)
	}

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return core.NewInternal(err, "failed to write temp file for %s", path)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return core.NewInternal(err, "failed to sync temp file for %s", path)
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return core.NewInternal(err, "failed to close temp file for %s", path)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return core.NewInternal(err, "failed to rename temp file for %s", path)
	}

	return nil
}

// readJSON reads and unmarshals path into v. It returns a core.NotFound
// error (not a raw os.ErrNotExist) when the file is absent, so callers can
// rely on core.KindOf.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.NewNotFound("no file at %s", path)
		}
		return core.NewInternal(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.NewInternal(err, "failed to parse %s", path)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return core.NewInternal(err, "failed to remove %s", path)
	}
	return nil
}

func removeDirAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return core.NewInternal(err, "failed to remove %s", path)
	}
	return nil
}
