package storage

import (
	"os"
	"sort"
	"time"

	"github.com/jcelliott/lumber"
	"github.com/lattice-db/lattice/core"
)

// IndexStore owns index files on disk. Like CollectionStore, it performs
// no locking of its own: the engine facade serializes access per
// collection.
type IndexStore struct {
	dataDir string
	log     lumber.Logger
}

// NewIndexStore creates a store rooted at dataDir/indexes.
func NewIndexStore(dataDir string, log lumber.Logger) (*IndexStore, error) {
	if err := os.MkdirAll(indexesRootDir(dataDir), 0o755); err != nil {
		return nil, core.NewInternal(err, "failed to create indexes directory")
	}
	return &IndexStore{dataDir: dataDir, log: log}, nil
}

// CreateIndex builds the index by scanning docs, skipping documents whose
// field resolves to missing, and overwrites any existing index on the
// same (collection, field).
func (s *IndexStore) CreateIndex(collection, field string, docs []core.Document) (core.IndexRecord, error) {
	if err := ValidateName("field", field); err != nil {
		return core.IndexRecord{}, err
	}
	now := time.Now().UTC()
	record := core.IndexRecord{
		CollectionName: collection,
		Field:          field,
		Created:        now,
		Updated:        now,
		KeyEncoding:    core.CanonicalKeyEncoding,
		Index:          make(map[string][]core.DocumentID),
	}
	for _, doc := range docs {
		v := core.ResolveFieldPath(doc, field)
		if core.IsMissing(v) {
			continue
		}
		key := core.CanonicalKey(v)
		record.Index[key] = append(record.Index[key], doc.ID())
	}
	if err := writeJSONAtomic(indexPath(s.dataDir, collection, field), &record); err != nil {
		return core.IndexRecord{}, err
	}
	s.log.Info("created index %s.%s over %d documents", collection, field, len(docs))
	return record, nil
}

// GetIndex returns the full persisted index record for (collection, field).
func (s *IndexStore) GetIndex(collection, field string) (core.IndexRecord, error) {
	var record core.IndexRecord
	if err := readJSON(indexPath(s.dataDir, collection, field), &record); err != nil {
		if core.KindOf(err) == core.NotFound {
			return core.IndexRecord{}, core.NewNotFound("no index on %s.%s", collection, field)
		}
		return core.IndexRecord{}, err
	}
	if record.KeyEncoding != core.CanonicalKeyEncoding {
		return core.IndexRecord{}, core.NewInternal(nil, "index %s.%s uses key encoding %q, expected %q", collection, field, record.KeyEncoding, core.CanonicalKeyEncoding)
	}
	return record, nil
}

// HasIndex reports whether an index exists on (collection, field) without
// loading its full bucket map; used by the planner to pick a field to
// consult.
func (s *IndexStore) HasIndex(collection, field string) bool {
	return fileExists(indexPath(s.dataDir, collection, field))
}

// ListIndexes returns the metadata for every index on collection.
// Collection-wide listing requires scanning the flat indexes directory
// for files whose escaped prefix matches collection, since the on-disk
// layout has no per-collection subdirectory for indexes.
func (s *IndexStore) ListIndexes(collection string) ([]core.IndexMeta, error) {
	entries, err := os.ReadDir(indexesRootDir(s.dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.NewInternal(err, "failed to list indexes")
	}
	prefix := escapeNameComponent(collection) + "_"
	var metas []core.IndexMeta
	for _, e := range entries {
		if e.IsDir() || len(e.Name()) <= len(prefix) || e.Name()[:len(prefix)] != prefix {
			continue
		}
		var record core.IndexRecord
		if err := readJSON(indexesRootDir(s.dataDir)+string(os.PathSeparator)+e.Name(), &record); err != nil {
			return nil, err
		}
		metas = append(metas, core.IndexMeta{
			CollectionName: record.CollectionName,
			Field:          record.Field,
			Created:        record.Created,
			Updated:        record.Updated,
		})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Field < metas[j].Field })
	return metas, nil
}

// DeleteIndex removes the index on (collection, field).
func (s *IndexStore) DeleteIndex(collection, field string) error {
	path := indexPath(s.dataDir, collection, field)
	if !fileExists(path) {
		return core.NewNotFound("no index on %s.%s", collection, field)
	}
	if err := removeFile(path); err != nil {
		return err
	}
	s.log.Info("deleted index %s.%s", collection, field)
	return nil
}

// DeleteCollectionIndexes removes every index on collection, invoked when
// a collection is dropped so no orphaned index files are left behind.
func (s *IndexStore) DeleteCollectionIndexes(collection string) error {
	metas, err := s.ListIndexes(collection)
	if err != nil {
		return err
	}
	for _, m := range metas {
		if err := s.DeleteIndex(collection, m.Field); err != nil && core.KindOf(err) != core.NotFound {
			return err
		}
	}
	return nil
}

// UpdateIndexForDocument removes doc's id from every bucket (cleaning
// emptied ones), then reinserts it under the bucket for the document's
// current field value, unless that value is missing. A no-op if no such
// index exists.
func (s *IndexStore) UpdateIndexForDocument(collection, field string, doc core.Document) error {
	record, err := s.GetIndex(collection, field)
	if err != nil {
		if core.KindOf(err) == core.NotFound {
			return nil
		}
		return err
	}
	removeIDFromAllBuckets(record.Index, doc.ID())

	v := core.ResolveFieldPath(doc, field)
	if !core.IsMissing(v) {
		key := core.CanonicalKey(v)
		record.Index[key] = append(record.Index[key], doc.ID())
	}
	record.Updated = time.Now().UTC()
	return writeJSONAtomic(indexPath(s.dataDir, collection, field), &record)
}

// RemoveDocumentFromIndexes removes id from every bucket across all
// indexes of collection (cleaning emptied buckets).
func (s *IndexStore) RemoveDocumentFromIndexes(collection string, id core.DocumentID) error {
	metas, err := s.ListIndexes(collection)
	if err != nil {
		return err
	}
	for _, m := range metas {
		record, err := s.GetIndex(collection, m.Field)
		if err != nil {
			if core.KindOf(err) == core.NotFound {
				continue
			}
			return err
		}
		removeIDFromAllBuckets(record.Index, id)
		record.Updated = time.Now().UTC()
		if err := writeJSONAtomic(indexPath(s.dataDir, collection, m.Field), &record); err != nil {
			return err
		}
	}
	return nil
}

// removeIDFromAllBuckets deletes id from every bucket of index, dropping
// any bucket that becomes empty: an empty value-key bucket is absent from
// the map, never present as an empty list.
func removeIDFromAllBuckets(index map[string][]core.DocumentID, id core.DocumentID) {
	for key, ids := range index {
		filtered := ids[:0]
		for _, existing := range ids {
			if existing != id {
				filtered = append(filtered, existing)
			}
		}
		if len(filtered) == 0 {
			delete(index, key)
		} else {
			index[key] = filtered
		}
	}
}
