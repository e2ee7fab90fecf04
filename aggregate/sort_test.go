package aggregate

import (
	"testing"

	"github.com/lattice-db/lattice/core"
)

func TestSortSingleKeyAscending(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$sort":{"amount":1}}]`))
	out, err := Run(docsFixture(), stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0]["amount"] != float64(5) || out[1]["amount"] != float64(7) || out[2]["amount"] != float64(10) {
		t.Fatalf("unexpected sort order: %+v", out)
	}
}

func TestSortMultiKeyPriority(t *testing.T) {
	docs := []core.Document{
		{"_id": "1", "customer": "b", "amount": float64(1)},
		{"_id": "2", "customer": "a", "amount": float64(2)},
		{"_id": "3", "customer": "a", "amount": float64(1)},
	}
	// customer ascending first, amount descending second.
	stages, _ := ParseStagesJSON([]byte(`[{"$sort":{"customer":1,"amount":-1}}]`))
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0]["_id"] != "2" || out[1]["_id"] != "3" || out[2]["_id"] != "1" {
		t.Fatalf("unexpected multi-key order: %+v", out)
	}
}

func TestSortMissingFieldsSortSmallest(t *testing.T) {
	docs := []core.Document{
		{"_id": "1", "amount": float64(5)},
		{"_id": "2"},
	}
	stages, _ := ParseStagesJSON([]byte(`[{"$sort":{"amount":1}}]`))
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0]["_id"] != "2" {
		t.Fatalf("expected missing-field document first, got %+v", out)
	}
}

func TestSortInvalidDirection(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$sort":{"amount":2}}]`))
	_, err := Run(docsFixture(), stages, Options{})
	if core.KindOf(err) != core.BadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}

func TestSortStableOnTies(t *testing.T) {
	docs := []core.Document{
		{"_id": "1", "amount": float64(1)},
		{"_id": "2", "amount": float64(1)},
		{"_id": "3", "amount": float64(1)},
	}
	stages, _ := ParseStagesJSON([]byte(`[{"$sort":{"amount":1}}]`))
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0]["_id"] != "1" || out[1]["_id"] != "2" || out[2]["_id"] != "3" {
		t.Fatalf("expected stable order preserved on ties, got %+v", out)
	}
}
