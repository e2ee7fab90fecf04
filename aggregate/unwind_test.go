package aggregate

import (
	"testing"

	"github.com/lattice-db/lattice/core"
)

func TestUnwindExpandsArray(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$unwind":"$tags"}]`))
	docs := []core.Document{{"_id": "1", "tags": []interface{}{"a", "b"}}}
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 2 || out[0]["tags"] != "a" || out[1]["tags"] != "b" {
		t.Fatalf("unexpected unwind output: %+v", out)
	}
}

func TestUnwindWithIncludeArrayIndex(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$unwind":{"path":"$tags","includeArrayIndex":"idx"}}]`))
	docs := []core.Document{{"_id": "1", "tags": []interface{}{"a", "b"}}}
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out[0]["idx"] != float64(0) || out[1]["idx"] != float64(1) {
		t.Fatalf("unexpected index field: %+v", out)
	}
}

func TestUnwindMissingFieldDroppedByDefault(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$unwind":"$tags"}]`))
	docs := []core.Document{{"_id": "1"}}
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected document to be dropped, got %+v", out)
	}
}

func TestUnwindMissingFieldPreserved(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$unwind":{"path":"$tags","preserveNullAndEmptyArrays":true}}]`))
	docs := []core.Document{{"_id": "1"}}
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 || out[0]["tags"] != nil {
		t.Fatalf("expected one preserved document with nil field, got %+v", out)
	}
}

func TestUnwindEmptyArrayPreserved(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$unwind":{"path":"$tags","preserveNullAndEmptyArrays":true}}]`))
	docs := []core.Document{{"_id": "1", "tags": []interface{}{}}}
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 || out[0]["tags"] != nil {
		t.Fatalf("expected preserved empty-array document, got %+v", out)
	}
}

func TestUnwindNonArrayScalarDropped(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$unwind":"$tags"}]`))
	docs := []core.Document{{"_id": "1", "tags": "not-an-array"}}
	out, err := Run(docs, stages, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected non-array scalar to be dropped, got %+v", out)
	}
}

func TestUnwindRejectsPathWithoutDollarPrefix(t *testing.T) {
	stages, _ := ParseStagesJSON([]byte(`[{"$unwind":"tags"}]`))
	_, err := Run([]core.Document{{"_id": "1", "tags": []interface{}{"a"}}}, stages, Options{})
	if core.KindOf(err) != core.BadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}
