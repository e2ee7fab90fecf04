package core

import "testing"

func TestResolveFieldPath(t *testing.T) {
	doc := Document{
		"a": map[string]interface{}{
			"b": map[string]interface{}{
				"c": "deep",
			},
			"n": nil,
		},
		"top": "value",
	}

	tests := []struct {
		path string
		want interface{}
	}{
		{"top", "value"},
		{"a.b.c", "deep"},
		{"a.missing", Missing},
		{"a.b.c.d", Missing}, // stepping into a string
		{"a.n.x", Missing},   // stepping into null
		{"nope", Missing},
	}

	for _, tt := range tests {
		got := ResolveFieldPath(doc, tt.path)
		if tt.want == Missing {
			if !IsMissing(got) {
				t.Errorf("ResolveFieldPath(%q) = %v, want Missing", tt.path, got)
			}
			continue
		}
		if !DeepEqual(got, tt.want) {
			t.Errorf("ResolveFieldPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDeepEqual(t *testing.T) {
	tests := []struct {
		a, b interface{}
		want bool
	}{
		{float64(1), float64(1), true},
		{float64(1), float64(2), false},
		{"x", "x", true},
		{"x", "y", false},
		{nil, nil, true},
		{nil, "x", false},
		{[]interface{}{float64(1), "a"}, []interface{}{float64(1), "a"}, true},
		{[]interface{}{float64(1)}, []interface{}{float64(1), float64(2)}, false},
		{map[string]interface{}{"a": float64(1)}, map[string]interface{}{"a": float64(1)}, true},
		{map[string]interface{}{"a": float64(1)}, map[string]interface{}{"a": float64(2)}, false},
		{Missing, Missing, true},
		{Missing, nil, false},
	}
	for _, tt := range tests {
		if got := DeepEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("DeepEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	if r, ok := Compare(float64(1), float64(2)); !ok || r >= 0 {
		t.Errorf("Compare(1, 2) = (%d, %v), want negative, true", r, ok)
	}
	if r, ok := Compare("b", "a"); !ok || r <= 0 {
		t.Errorf("Compare(b, a) = (%d, %v), want positive, true", r, ok)
	}
	if _, ok := Compare("a", float64(1)); ok {
		t.Error("Compare(string, number) should not be ordered")
	}
	if _, ok := Compare(true, false); ok {
		t.Error("Compare(bool, bool) should not be ordered")
	}
}

func TestCanonicalKeyStableForEqualValues(t *testing.T) {
	a := map[string]interface{}{"x": float64(1), "y": "z"}
	b := map[string]interface{}{"y": "z", "x": float64(1)}
	if CanonicalKey(a) != CanonicalKey(b) {
		t.Errorf("CanonicalKey should not depend on map iteration order: %q vs %q", CanonicalKey(a), CanonicalKey(b))
	}
}

func TestCanonicalKeyRoundTrip(t *testing.T) {
	values := []interface{}{float64(42), "hello", true, nil, []interface{}{float64(1), float64(2)}}
	for _, v := range values {
		key := CanonicalKey(v)
		decoded, ok := DecodeCanonicalKey(key)
		if !ok {
			t.Fatalf("DecodeCanonicalKey(%q) failed", key)
		}
		if !DeepEqual(v, decoded) {
			t.Errorf("round trip mismatch: %v -> %q -> %v", v, key, decoded)
		}
	}
}
