package storage

import (
	"os"
	"testing"

	"github.com/jcelliott/lumber"
	"github.com/lattice-db/lattice/core"
)

func newTestCollectionStore(t *testing.T) (*CollectionStore, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "lattice_collections_*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := NewCollectionStore(dir, lumber.NewConsoleLogger(lumber.ERROR))
	if err != nil {
		t.Fatalf("NewCollectionStore: %v", err)
	}
	return store, dir
}

func TestCreateAndListCollections(t *testing.T) {
	store, _ := newTestCollectionStore(t)

	if _, err := store.CreateCollection("orders"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, err := store.CreateCollection("orders"); core.KindOf(err) != core.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}

	metas, err := store.ListCollections()
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(metas) != 1 || metas[0].Name != "orders" {
		t.Fatalf("unexpected collections: %+v", metas)
	}
}

func TestInsertDocumentAssignsUUIDWhenMissing(t *testing.T) {
	store, _ := newTestCollectionStore(t)
	store.CreateCollection("orders")

	doc, err := store.InsertDocument("orders", core.Document{"total": float64(10)})
	if err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if doc.ID() == "" {
		t.Fatal("expected a generated identifier")
	}

	meta, err := store.Metadata("orders")
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta.DocumentCount != 1 {
		t.Fatalf("expected document count 1, got %d", meta.DocumentCount)
	}
}

func TestInsertDocumentDuplicateID(t *testing.T) {
	store, _ := newTestCollectionStore(t)
	store.CreateCollection("orders")

	if _, err := store.InsertDocument("orders", core.Document{"_id": "a"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := store.InsertDocument("orders", core.Document{"_id": "a"}); core.KindOf(err) != core.Duplicate {
		t.Fatalf("expected Duplicate, got %v", err)
	}
}

func TestInsertDeleteRoundTripLeavesCountUnchanged(t *testing.T) {
	store, _ := newTestCollectionStore(t)
	store.CreateCollection("orders")

	before, _ := store.Metadata("orders")
	doc, err := store.InsertDocument("orders", core.Document{"_id": "a", "total": float64(1)})
	if err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if err := store.DeleteDocument("orders", doc.ID()); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	after, _ := store.Metadata("orders")
	if before.DocumentCount != after.DocumentCount {
		t.Fatalf("document count changed across insert+delete: %d -> %d", before.DocumentCount, after.DocumentCount)
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	store, _ := newTestCollectionStore(t)
	store.CreateCollection("orders")
	if err := store.DeleteDocument("orders", "nope"); core.KindOf(err) != core.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestApplyUpdateSetAndUnset(t *testing.T) {
	doc := core.Document{"_id": "a", "status": "pending", "tags": []interface{}{"x"}}
	updated, err := ApplyUpdate(doc, map[string]interface{}{
		"$set":   map[string]interface{}{"status": "completed"},
		"$unset": map[string]interface{}{"tags": nil},
	})
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if updated["status"] != "completed" {
		t.Fatalf("expected status completed, got %v", updated["status"])
	}
	if _, present := updated["tags"]; present {
		t.Fatal("expected tags to be unset")
	}
	if doc["status"] != "pending" {
		t.Fatal("ApplyUpdate must not mutate its input")
	}
}

func TestApplyUpdateCannotChangeID(t *testing.T) {
	doc := core.Document{"_id": "a"}
	_, err := ApplyUpdate(doc, map[string]interface{}{"$set": map[string]interface{}{"_id": "b"}})
	if core.KindOf(err) != core.BadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}

func TestApplyUpdateUnknownOperatorIsNoop(t *testing.T) {
	doc := core.Document{"_id": "a", "x": float64(1)}
	updated, err := ApplyUpdate(doc, map[string]interface{}{"$bogus": map[string]interface{}{"x": float64(2)}})
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if updated["x"] != float64(1) {
		t.Fatalf("expected unknown operator to be a no-op, got x=%v", updated["x"])
	}
}

func TestDeleteCollectionRemovesDocuments(t *testing.T) {
	store, _ := newTestCollectionStore(t)
	store.CreateCollection("orders")
	store.InsertDocument("orders", core.Document{"_id": "a"})

	if err := store.DeleteCollection("orders"); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if store.CollectionExists("orders") {
		t.Fatal("expected collection to be gone")
	}
	if err := store.DeleteCollection("orders"); core.KindOf(err) != core.NotFound {
		t.Fatalf("expected NotFound on second delete, got %v", err)
	}
}

func TestScanAllOrdersByID(t *testing.T) {
	store, _ := newTestCollectionStore(t)
	store.CreateCollection("orders")
	store.InsertDocument("orders", core.Document{"_id": "b"})
	store.InsertDocument("orders", core.Document{"_id": "a"})

	docs, err := store.ScanAll("orders")
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "a" || docs[1].ID() != "b" {
		t.Fatalf("expected deterministic ascending id order, got %+v", docs)
	}
}
