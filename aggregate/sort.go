package aggregate

import (
	"encoding/json"
	"sort"

	"github.com/lattice-db/lattice/core"
)

type sortKey struct {
	field string
	desc  bool
}

// stageSort sorts documents by one or more keys: multi-key, stable,
// per-key direction 1/-1, missing values sort smallest in ascending
// order. Key priority follows the stage body's own field order, which
// requires the order-preserving decode (core.ParseOrderedObject) rather
// than a plain map.
func stageSort(docs []core.Document, body json.RawMessage) ([]core.Document, error) {
	ordered, err := core.ParseOrderedObject(body)
	if err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		return nil, core.NewBadRequest("$sort requires at least one field")
	}

	keys := make([]sortKey, 0, len(ordered))
	for _, kv := range ordered {
		dir, ok := asInt(kv.Value)
		if !ok || (dir != 1 && dir != -1) {
			return nil, core.NewBadRequest("$sort direction for %q must be 1 or -1", kv.Key)
		}
		keys = append(keys, sortKey{field: kv.Key, desc: dir == -1})
	}

	out := make([]core.Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			vi := core.ResolveFieldPath(out[i], k.field)
			vj := core.ResolveFieldPath(out[j], k.field)
			cmp := compareForSort(vi, vj)
			if cmp == 0 {
				continue
			}
			if k.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return out, nil
}

// compareForSort orders two Values for $sort: Missing sorts as smallest,
// then falls back to core.Compare for numbers/strings, and finally an
// arbitrary-but-stable tiebreak via canonical key comparison for values
// Compare can't order (booleans, arrays, objects, null vs. non-null).
func compareForSort(a, b interface{}) int {
	aMissing, bMissing := core.IsMissing(a), core.IsMissing(b)
	if aMissing || bMissing {
		switch {
		case aMissing && bMissing:
			return 0
		case aMissing:
			return -1
		default:
			return 1
		}
	}
	if r, ok := core.Compare(a, b); ok {
		return r
	}
	ak, bk := core.CanonicalKey(a), core.CanonicalKey(b)
	switch {
	case ak < bk:
		return -1
	case ak > bk:
		return 1
	default:
		return 0
	}
}
