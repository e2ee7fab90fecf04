// Package storage implements the persisted collection store and index
// store, using a file-per-resource layout with an atomic
// temp-file-then-rename write path (see atomicfile.go).
package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lattice-db/lattice/core"
)

const (
	dbInfoFile     = "db_info.json"
	collectionsDir = "collections"
	indexesDir     = "indexes"
	metadataFile   = "metadata.json"
)

// dbInfoPath returns the path to the single database info record.
func dbInfoPath(dataDir string) string {
	return filepath.Join(dataDir, dbInfoFile)
}

// collectionDir returns the directory holding one collection's documents
// and metadata.
func collectionDir(dataDir, name string) string {
	return filepath.Join(dataDir, collectionsDir, name)
}

func collectionMetadataPath(dataDir, name string) string {
	return filepath.Join(collectionDir(dataDir, name), metadataFile)
}

func documentPath(dataDir, collection string, id core.DocumentID) string {
	return filepath.Join(collectionDir(dataDir, collection), string(id)+".json")
}

func indexesRootDir(dataDir string) string {
	return filepath.Join(dataDir, indexesDir)
}

// indexPath returns the path for the (collection, field) index file:
// data/indexes/<collection>_<field>.json. Collection and field names are
// escaped so that neither can introduce a stray path separator or collide
// with the "_" used to join them.
func indexPath(dataDir, collection, field string) string {
	return filepath.Join(indexesRootDir(dataDir), escapeNameComponent(collection)+"_"+escapeNameComponent(field)+".json")
}

// escapeNameComponent percent-escapes (with '~' instead of '%', which is
// filesystem-friendlier) every byte that is not a letter, digit, '-', or
// '.'. In particular it escapes '_' itself, so the literal "_" joining the
// two escaped components in indexPath is always unambiguous.
func escapeNameComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "~%02X", c)
		}
	}
	return b.String()
}

// ValidateName rejects empty names and names that would escape their
// containing directory.
func ValidateName(kind, name string) error {
	if name == "" {
		return core.NewBadRequest("%s name must not be empty", kind)
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return core.NewBadRequest("%s name %q is not a valid path component", kind, name)
	}
	return nil
}
