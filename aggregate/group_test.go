package aggregate

import (
	"testing"

	"github.com/lattice-db/lattice/core"
)

func TestGroupSumByCustomer(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$group":{"_id":"$customer","total":{"$sum":"$amount"}}}]`))
	out, err := Run(docsFixture(), stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %+v", out)
	}
	// first-encounter order: acme, then globex
	if out[0]["_id"] != "acme" || out[0]["total"] != float64(15) {
		t.Fatalf("unexpected first group: %+v", out[0])
	}
	if out[1]["_id"] != "globex" || out[1]["total"] != float64(7) {
		t.Fatalf("unexpected second group: %+v", out[1])
	}
}

func TestGroupMissingIDIsBadRequest(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$group":{"total":{"$sum":"$amount"}}}]`))
	_, err := Run(docsFixture(), stages, Options{})
	if core.KindOf(err) != core.BadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}

func TestGroupUnsupportedAccumulator(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$group":{"_id":"$customer","x":{"$bogus":"$amount"}}}]`))
	_, err := Run(docsFixture(), stages, Options{})
	if core.KindOf(err) != core.UnsupportedOperator {
		t.Fatalf("expected UnsupportedOperator, got %v", err)
	}
}

func TestGroupAvgMinMaxPushAddToSet(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$group":{
		"_id":"$customer",
		"avg":{"$avg":"$amount"},
		"min":{"$min":"$amount"},
		"max":{"$max":"$amount"},
		"items":{"$push":"$amount"},
		"uniq":{"$addToSet":"$amount"}
	}}]`))
	docs := []core.Document{
		{"_id": "1", "customer": "acme", "amount": float64(10)},
		{"_id": "2", "customer": "acme", "amount": float64(10)},
		{"_id": "3", "customer": "acme", "amount": float64(20)},
	}
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	g := out[0]
	if g["avg"] != float64(40)/3 {
		t.Fatalf("unexpected avg: %v", g["avg"])
	}
	if g["min"] != float64(10) || g["max"] != float64(20) {
		t.Fatalf("unexpected min/max: %v %v", g["min"], g["max"])
	}
	items, ok := g["items"].([]interface{})
	if !ok || len(items) != 3 {
		t.Fatalf("expected $push to keep every value, got %+v", g["items"])
	}
	uniq, ok := g["uniq"].([]interface{})
	if !ok || len(uniq) != 2 {
		t.Fatalf("expected $addToSet to dedupe, got %+v", g["uniq"])
	}
}

func TestGroupFirstLast(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$group":{"_id":"$customer","first":{"$first":"$amount"},"last":{"$last":"$amount"}}}]`))
	docs := []core.Document{
		{"_id": "1", "customer": "acme", "amount": float64(10)},
		{"_id": "2", "customer": "acme", "amount": float64(20)},
	}
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0]["first"] != float64(10) || out[0]["last"] != float64(20) {
		t.Fatalf("unexpected first/last: %+v", out[0])
	}
}
