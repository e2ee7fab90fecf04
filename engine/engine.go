package engine

import (
	"github.com/jcelliott/lumber"

	"github.com/lattice-db/lattice/aggregate"
	"github.com/lattice-db/lattice/core"
	"github.com/lattice-db/lattice/query"
	"github.com/lattice-db/lattice/storage"
)

// Engine is the top-level, process-wide object owning the collection
// store and index store, passed by reference into request handlers.
type Engine struct {
	docs    *storage.CollectionStore
	indexes *storage.IndexStore
	locks   *lockRegistry
	log     lumber.Logger
	cfg     Config
}

// New constructs an Engine rooted at cfg.DataDir. If cfg.RebuildIndexesOnStart
// is set, every persisted index is rebuilt from the current document set
// before New returns, a belt-and-braces recovery from a prior unclean
// shutdown that left an index out of sync with its collection.
func New(cfg Config) (*Engine, error) {
	log := newLogger(cfg.LogLevel)

	docs, err := storage.NewCollectionStore(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}
	indexes, err := storage.NewIndexStore(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	e := &Engine{docs: docs, indexes: indexes, locks: newLockRegistry(), log: log, cfg: cfg}

	if cfg.RebuildIndexesOnStart {
		if err := e.rebuildAllIndexes(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func newLogger(level string) lumber.Logger {
	l := lumber.NewConsoleLogger(levelOf(level))
	l.Prefix("docdb")
	return l
}

func levelOf(level string) int {
	switch level {
	case "trace":
		return lumber.TRACE
	case "debug":
		return lumber.DEBUG
	case "warn", "warning":
		return lumber.WARN
	case "error":
		return lumber.ERROR
	case "fatal":
		return lumber.FATAL
	default:
		return lumber.INFO
	}
}

func (e *Engine) rebuildAllIndexes() error {
	metas, err := e.docs.ListCollections()
	if err != nil {
		return err
	}
	for _, meta := range metas {
		indexMetas, err := e.indexes.ListIndexes(meta.Name)
		if err != nil {
			return err
		}
		if len(indexMetas) == 0 {
			continue
		}
		docs, err := e.docs.ScanAll(meta.Name)
		if err != nil {
			return err
		}
		for _, im := range indexMetas {
			if _, err := e.indexes.CreateIndex(meta.Name, im.Field, docs); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListCollections returns every collection's metadata, sorted by name.
func (e *Engine) ListCollections() ([]core.CollectionMeta, error) {
	return e.docs.ListCollections()
}

// CreateCollection creates a new, empty collection named name.
func (e *Engine) CreateCollection(name string) (core.CollectionMeta, error) {
	lock := e.locks.get(name)
	lock.Lock()
	defer lock.Unlock()
	return e.docs.CreateCollection(name)
}

// DeleteCollection removes documents, metadata, and all indexes of the
// collection.
func (e *Engine) DeleteCollection(name string) error {
	lock := e.locks.get(name)
	lock.Lock()
	defer lock.Unlock()

	if err := e.docs.DeleteCollection(name); err != nil {
		return err
	}
	if err := e.indexes.DeleteCollectionIndexes(name); err != nil {
		return err
	}
	e.locks.drop(name)
	return nil
}

// CollectionStats is a read-only convenience view: the same metadata
// listCollections already returns, for one collection, plus its index
// field names.
type CollectionStats struct {
	core.CollectionMeta
	Indexes []string
}

// Stats returns a single collection's metadata plus the names of its
// indexed fields.
func (e *Engine) Stats(name string) (CollectionStats, error) {
	lock := e.locks.get(name)
	lock.RLock()
	defer lock.RUnlock()

	meta, err := e.docs.Metadata(name)
	if err != nil {
		return CollectionStats{}, err
	}
	indexMetas, err := e.indexes.ListIndexes(name)
	if err != nil {
		return CollectionStats{}, err
	}
	fields := make([]string, len(indexMetas))
	for i, im := range indexMetas {
		fields[i] = im.Field
	}
	return CollectionStats{CollectionMeta: meta, Indexes: fields}, nil
}

// InsertDocument persists doc, assigning an identifier if it has none,
// then updates every index of the collection with the stored document.
func (e *Engine) InsertDocument(collection string, doc core.Document) (core.Document, error) {
	lock := e.locks.get(collection)
	lock.Lock()
	defer lock.Unlock()

	stored, err := e.docs.InsertDocument(collection, doc)
	if err != nil {
		return nil, err
	}
	if err := e.reindexDocument(collection, stored); err != nil {
		return stored, err
	}
	return stored, nil
}

// reindexDocument updates every index of collection for doc. An
// index-update failure here does not roll back the document write already
// committed by the caller; it is logged and returned as an Internal error
// so the caller knows RebuildIndex may be needed.
func (e *Engine) reindexDocument(collection string, doc core.Document) error {
	metas, err := e.indexes.ListIndexes(collection)
	if err != nil {
		return err
	}
	for _, m := range metas {
		if err := e.indexes.UpdateIndexForDocument(collection, m.Field, doc); err != nil {
			e.log.Warn("index %s.%s left stale for document %s: %v", collection, m.Field, doc.ID(), err)
			return core.NewInternal(err, "failed to update index %s.%s for document %s", collection, m.Field, doc.ID())
		}
	}
	return nil
}

// FindDocuments returns every document in collection matching filter. The
// planner narrows to an index-backed candidate set when possible, then the
// full filter evaluator re-checks every candidate.
func (e *Engine) FindDocuments(collection string, filter core.OrderedObject) ([]core.Document, error) {
	lock := e.locks.get(collection)
	lock.RLock()
	defer lock.RUnlock()

	candidateIDs, used, err := query.Plan(e.indexes, collection, filter)
	if err != nil {
		return nil, err
	}

	var candidates []core.Document
	if used {
		candidates, err = e.docs.GetMany(collection, candidateIDs)
	} else {
		candidates, err = e.docs.ScanAll(collection)
	}
	if err != nil {
		return nil, err
	}

	out := make([]core.Document, 0, len(candidates))
	q := filter.ToMap()
	for _, doc := range candidates {
		if core.MatchDocument(doc, q) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// UpdateDocument applies $set/$unset, rejects an attempt to change _id,
// persists the result, and re-indexes the document against every index of
// the collection.
func (e *Engine) UpdateDocument(collection string, id core.DocumentID, updateSpec map[string]interface{}) (core.Document, error) {
	lock := e.locks.get(collection)
	lock.Lock()
	defer lock.Unlock()

	existing, err := e.docs.GetDocument(collection, id)
	if err != nil {
		return nil, err
	}
	updated, err := storage.ApplyUpdate(existing, updateSpec)
	if err != nil {
		return nil, err
	}
	if err := e.docs.UpdateDocument(collection, id, updated); err != nil {
		return nil, err
	}
	if err := e.reindexDocument(collection, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// DeleteDocument removes the identifier from every index first, then
// deletes the document, then decrements the document count. This order
// matters for crash recovery: a crash between the two leaves a live
// document missing from its indexes (recoverable with RebuildIndex), not an
// index pointing at a ghost document.
func (e *Engine) DeleteDocument(collection string, id core.DocumentID) error {
	lock := e.locks.get(collection)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.docs.GetDocument(collection, id); err != nil {
		return err
	}
	if err := e.indexes.RemoveDocumentFromIndexes(collection, id); err != nil {
		e.log.Warn("failed to remove document %s/%s from indexes before delete: %v", collection, id, err)
		return core.NewInternal(err, "failed to remove document %s from indexes", id)
	}
	return e.docs.DeleteDocument(collection, id)
}

// ListIndexes returns the metadata for every index on collection.
func (e *Engine) ListIndexes(collection string) ([]core.IndexMeta, error) {
	lock := e.locks.get(collection)
	lock.RLock()
	defer lock.RUnlock()
	return e.indexes.ListIndexes(collection)
}

// GetIndex returns the full persisted index record for (collection, field).
func (e *Engine) GetIndex(collection, field string) (core.IndexRecord, error) {
	lock := e.locks.get(collection)
	lock.RLock()
	defer lock.RUnlock()
	return e.indexes.GetIndex(collection, field)
}

// CreateIndex builds an index on field over collection's current
// documents.
func (e *Engine) CreateIndex(collection, field string) (core.IndexRecord, error) {
	lock := e.locks.get(collection)
	lock.Lock()
	defer lock.Unlock()
	return e.createIndexLocked(collection, field)
}

func (e *Engine) createIndexLocked(collection, field string) (core.IndexRecord, error) {
	docs, err := e.docs.ScanAll(collection)
	if err != nil {
		return core.IndexRecord{}, err
	}
	return e.indexes.CreateIndex(collection, field, docs)
}

// DeleteIndex removes the index on (collection, field).
func (e *Engine) DeleteIndex(collection, field string) error {
	lock := e.locks.get(collection)
	lock.Lock()
	defer lock.Unlock()
	return e.indexes.DeleteIndex(collection, field)
}

// RebuildIndex lets an operator recover from a post-mutation index-update
// failure. It is createIndex re-run against the collection's current live
// documents.
func (e *Engine) RebuildIndex(collection, field string) (core.IndexRecord, error) {
	lock := e.locks.get(collection)
	lock.Lock()
	defer lock.Unlock()
	return e.createIndexLocked(collection, field)
}

// Aggregate runs pipeline over the collection's full current document set.
func (e *Engine) Aggregate(collection string, stages []aggregate.Stage, opts aggregate.Options) ([]core.Document, error) {
	lock := e.locks.get(collection)
	lock.RLock()
	defer lock.RUnlock()

	docs, err := e.docs.ScanAll(collection)
	if err != nil {
		return nil, err
	}
	return aggregate.Run(docs, stages, opts)
}
