package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jcelliott/lumber"
	"github.com/lattice-db/lattice/core"
)

// CollectionStore owns collection metadata and document files on disk. It
// performs no cross-operation locking of its own; the engine facade
// serializes access per collection, and every method here assumes the
// caller already holds the appropriate lock.
type CollectionStore struct {
	dataDir string
	log     lumber.Logger
}

// NewCollectionStore creates a store rooted at dataDir, creating the
// directory tree and the database info record if this is a fresh database.
func NewCollectionStore(dataDir string, log lumber.Logger) (*CollectionStore, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, collectionsDir), 0o755); err != nil {
		return nil, core.NewInternal(err, "failed to create data directory %s", dataDir)
	}
	s := &CollectionStore{dataDir: dataDir, log: log}
	if !fileExists(dbInfoPath(dataDir)) {
		info := core.DatabaseInfo{
			Name:        "lattice",
			Version:     "1",
			Created:     time.Now().UTC(),
			Collections: []string{},
		}
		if err := writeJSONAtomic(dbInfoPath(dataDir), &info); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *CollectionStore) readInfo() (*core.DatabaseInfo, error) {
	var info core.DatabaseInfo
	if err := readJSON(dbInfoPath(s.dataDir), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *CollectionStore) writeInfo(info *core.DatabaseInfo) error {
	return writeJSONAtomic(dbInfoPath(s.dataDir), info)
}

// CollectionExists reports whether name has been created.
func (s *CollectionStore) CollectionExists(name string) bool {
	return fileExists(collectionMetadataPath(s.dataDir, name))
}

// CreateCollection creates metadata with documentCount=0, failing if the
// name is already taken or is not a valid path component.
func (s *CollectionStore) CreateCollection(name string) (core.CollectionMeta, error) {
	if err := ValidateName("collection", name); err != nil {
		return core.CollectionMeta{}, err
	}
	if s.CollectionExists(name) {
		return core.CollectionMeta{}, core.NewAlreadyExists("collection %q already exists", name)
	}

	meta := core.CollectionMeta{Name: name, Created: time.Now().UTC(), DocumentCount: 0}
	if err := writeJSONAtomic(collectionMetadataPath(s.dataDir, name), &meta); err != nil {
		return core.CollectionMeta{}, err
	}

	info, err := s.readInfo()
	if err != nil {
		return core.CollectionMeta{}, err
	}
	info.Collections = append(info.Collections, name)
	if err := s.writeInfo(info); err != nil {
		return core.CollectionMeta{}, err
	}

	s.log.Info("created collection %q", name)
	return meta, nil
}

// ListCollections returns every collection's metadata, sorted by name.
func (s *CollectionStore) ListCollections() ([]core.CollectionMeta, error) {
	root := filepath.Join(s.dataDir, collectionsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, core.NewInternal(err, "failed to list collections")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	metas := make([]core.CollectionMeta, 0, len(names))
	for _, name := range names {
		meta, err := s.readMetadata(name)
		if err != nil {
			return nil, err
		}
		metas = append(metas, *meta)
	}
	return metas, nil
}

func (s *CollectionStore) readMetadata(name string) (*core.CollectionMeta, error) {
	var meta core.CollectionMeta
	if err := readJSON(collectionMetadataPath(s.dataDir, name), &meta); err != nil {
		if core.KindOf(err) == core.NotFound {
			return nil, core.NewNotFound("collection %q does not exist", name)
		}
		return nil, err
	}
	return &meta, nil
}

// Metadata returns one collection's metadata (used by engine.Stats).
func (s *CollectionStore) Metadata(name string) (core.CollectionMeta, error) {
	meta, err := s.readMetadata(name)
	if err != nil {
		return core.CollectionMeta{}, err
	}
	return *meta, nil
}

func (s *CollectionStore) writeMetadata(meta *core.CollectionMeta) error {
	return writeJSONAtomic(collectionMetadataPath(s.dataDir, meta.Name), meta)
}

// DeleteCollection removes a collection's documents and metadata. Dropping
// the collection's indexes is the engine's job, since it also owns the
// IndexStore.
func (s *CollectionStore) DeleteCollection(name string) error {
	if !s.CollectionExists(name) {
		return core.NewNotFound("collection %q does not exist", name)
	}

	if err := removeDirAll(collectionDir(s.dataDir, name)); err != nil {
		return err
	}

	info, err := s.readInfo()
	if err != nil {
		return err
	}
	remaining := info.Collections[:0]
	for _, c := range info.Collections {
		if c != name {
			remaining = append(remaining, c)
		}
	}
	info.Collections = remaining
	if err := s.writeInfo(info); err != nil {
		return err
	}

	s.log.Info("deleted collection %q", name)
	return nil
}

// InsertDocument assigns a UUID identifier when doc carries none, rejects
// a colliding identifier, and persists the document and the incremented
// document count.
func (s *CollectionStore) InsertDocument(collection string, doc core.Document) (core.Document, error) {
	meta, err := s.readMetadata(collection)
	if err != nil {
		return nil, err
	}

	stored := doc.Clone()
	id := stored.ID()
	if id == "" {
		id = core.DocumentID(uuid.NewString())
		stored[core.IDField] = string(id)
	}

	path := documentPath(s.dataDir, collection, id)
	if fileExists(path) {
		return nil, core.NewDuplicate("document %q already exists in collection %q", id, collection)
	}

	if err := writeJSONAtomic(path, stored); err != nil {
		return nil, err
	}

	meta.DocumentCount++
	if err := s.writeMetadata(meta); err != nil {
		return nil, err
	}

	s.log.Trace("inserted document %s/%s", collection, id)
	return stored, nil
}

// GetDocument returns one document by id.
func (s *CollectionStore) GetDocument(collection string, id core.DocumentID) (core.Document, error) {
	if !s.CollectionExists(collection) {
		return nil, core.NewNotFound("collection %q does not exist", collection)
	}
	var doc core.Document
	if err := readJSON(documentPath(s.dataDir, collection, id), &doc); err != nil {
		if core.KindOf(err) == core.NotFound {
			return nil, core.NewNotFound("document %q does not exist in collection %q", id, collection)
		}
		return nil, err
	}
	return doc, nil
}

// ScanAll returns every live document in collection, in ascending id
// order. Order is not semantically required, but a stable, deterministic
// order simplifies $sort's stability tests.
func (s *CollectionStore) ScanAll(collection string) ([]core.Document, error) {
	if !s.CollectionExists(collection) {
		return nil, core.NewNotFound("collection %q does not exist", collection)
	}
	dir := collectionDir(s.dataDir, collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, core.NewInternal(err, "failed to scan collection %q", collection)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == metadataFile || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.TrimSuffix(names[i], ".json") < strings.TrimSuffix(names[j], ".json")
	})

	docs := make([]core.Document, 0, len(names))
	for _, name := range names {
		var doc core.Document
		if err := readJSON(filepath.Join(dir, name), &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// GetMany returns the documents named by ids that still exist, preserving
// the relative order ids were given in. Used by the query planner to
// materialize an index-selected candidate set.
func (s *CollectionStore) GetMany(collection string, ids []core.DocumentID) ([]core.Document, error) {
	if !s.CollectionExists(collection) {
		return nil, core.NewNotFound("collection %q does not exist", collection)
	}
	docs := make([]core.Document, 0, len(ids))
	for _, id := range ids {
		var doc core.Document
		if err := readJSON(documentPath(s.dataDir, collection, id), &doc); err != nil {
			if core.KindOf(err) == core.NotFound {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ApplyUpdate applies $set/$unset to doc (unknown top-level operators are
// a no-op; _id is immutable). It returns the mutated document without
// persisting it; UpdateDocument below persists it, and the engine then
// re-indexes it.
func ApplyUpdate(doc core.Document, updateSpec map[string]interface{}) (core.Document, error) {
	out := doc.Clone()
	if setOps, ok := updateSpec["$set"].(map[string]interface{}); ok {
		for field, value := range setOps {
			if field == core.IDField {
				return nil, core.NewBadRequest("_id must not change")
			}
			setFieldPath(out, field, value)
		}
	}
	if unsetOps, ok := updateSpec["$unset"].(map[string]interface{}); ok {
		for field := range unsetOps {
			if field == core.IDField {
				return nil, core.NewBadRequest("_id must not change")
			}
			unsetFieldPath(out, field)
		}
	}
	return out, nil
}

func setFieldPath(doc map[string]interface{}, path string, value interface{}) {
	segments := splitPath(path)
	cur := doc
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[seg] = next
		}
		cur = next
	}
}

func unsetFieldPath(doc map[string]interface{}, path string) {
	segments := splitPath(path)
	cur := doc
	for i, seg := range segments {
		if i == len(segments)-1 {
			delete(cur, seg)
			return
		}
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			return
		}
		cur = next
	}
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	return append(segments, path[start:])
}

// UpdateDocument persists the result of ApplyUpdate for id in collection.
func (s *CollectionStore) UpdateDocument(collection string, id core.DocumentID, updated core.Document) error {
	if !s.CollectionExists(collection) {
		return core.NewNotFound("collection %q does not exist", collection)
	}
	path := documentPath(s.dataDir, collection, id)
	if !fileExists(path) {
		return core.NewNotFound("document %q does not exist in collection %q", id, collection)
	}
	if err := writeJSONAtomic(path, updated); err != nil {
		return err
	}
	s.log.Trace("updated document %s/%s", collection, id)
	return nil
}

// DeleteDocument removes a document's file and decrements the document
// count. The engine removes index entries first, before calling this.
func (s *CollectionStore) DeleteDocument(collection string, id core.DocumentID) error {
	meta, err := s.readMetadata(collection)
	if err != nil {
		return err
	}
	path := documentPath(s.dataDir, collection, id)
	if !fileExists(path) {
		return core.NewNotFound("document %q does not exist in collection %q", id, collection)
	}
	if err := removeFile(path); err != nil {
		return err
	}
	meta.DocumentCount--
	if err := s.writeMetadata(meta); err != nil {
		return err
	}
	s.log.Trace("deleted document %s/%s", collection, id)
	return nil
}
