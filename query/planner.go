// Package query implements the query planner: it opportunistically
// narrows a findDocuments call to an index-backed candidate set before
// the full filter evaluator (core.MatchDocument) runs over it.
package query

import (
	"github.com/lattice-db/lattice/core"
	"github.com/lattice-db/lattice/storage"
)

// supportedPlannerOps are the operators the planner itself understands
// when intersecting buckets. A criterion using any other operator on the
// chosen field makes planWithIndex report ok=false, and Plan falls
// through to try the next field instead of guessing.
var supportedPlannerOps = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
}

// Plan chooses an index to pre-filter candidates. used is false if the
// query is empty or no field of query has an index whose criterion the
// planner can narrow with; the caller must then scan the full collection.
//
// An empty query matches everything, so used is false (no index needed,
// there's nothing to narrow). Otherwise Plan picks the first query field,
// in the query object's own key order (core.OrderedObject preserves it,
// which a plain map[string]interface{} cannot give us).
func Plan(indexStore *storage.IndexStore, collection string, query core.OrderedObject) (ids []core.DocumentID, used bool, err error) {
	if len(query) == 0 {
		return nil, false, nil
	}

	for _, kv := range query {
		field, criterion := kv.Key, kv.Value
		if !indexStore.HasIndex(collection, field) {
			continue
		}
		record, err := indexStore.GetIndex(collection, field)
		if err != nil {
			return nil, false, err
		}
		candidateIDs, ok := planWithIndex(record, criterion)
		if !ok {
			// The field has an index but the criterion shape isn't one the
			// planner can narrow with (e.g. $in/$regex), so move on to the
			// next query field rather than guessing.
			continue
		}
		return candidateIDs, true, nil
	}
	return nil, false, nil
}

// planWithIndex computes the candidate identifier set for criterion
// against one index's bucket map. ok is false when the criterion isn't one
// the planner can evaluate purely from index keys (it only understands
// $eq/$ne/$gt/$gte/$lt/$lte).
func planWithIndex(record core.IndexRecord, criterion interface{}) (ids []core.DocumentID, ok bool) {
	obj, isOperatorObject := operatorObject(criterion)
	if !isOperatorObject {
		return bucket(record, core.CanonicalKey(criterion)), true
	}

	var result map[core.DocumentID]bool
	first := true
	for op, operand := range obj {
		if !supportedPlannerOps[op] {
			return nil, false
		}
		matched := unionForOperator(record, op, operand)
		if first {
			result = matched
			first = false
			continue
		}
		result = intersect(result, matched)
	}
	if result == nil {
		return nil, true
	}
	return setToSlice(result), true
}

func unionForOperator(record core.IndexRecord, op string, operand interface{}) map[core.DocumentID]bool {
	out := make(map[core.DocumentID]bool)
	switch op {
	case "$eq":
		for _, id := range record.Index[core.CanonicalKey(operand)] {
			out[id] = true
		}
	case "$ne":
		target := core.CanonicalKey(operand)
		for key, ids := range record.Index {
			if key == target {
				continue
			}
			for _, id := range ids {
				out[id] = true
			}
		}
	default: // $gt, $gte, $lt, $lte
		for key, ids := range record.Index {
			decoded, ok := core.DecodeCanonicalKey(key)
			if !ok {
				continue
			}
			if matchesRange(decoded, op, operand) {
				for _, id := range ids {
					out[id] = true
				}
			}
		}
	}
	return out
}

func matchesRange(value interface{}, op string, operand interface{}) bool {
	r, ok := core.Compare(value, operand)
	if !ok {
		return false
	}
	switch op {
	case "$gt":
		return r > 0
	case "$gte":
		return r >= 0
	case "$lt":
		return r < 0
	case "$lte":
		return r <= 0
	default:
		return false
	}
}

func bucket(record core.IndexRecord, key string) []core.DocumentID {
	ids := record.Index[key]
	out := make([]core.DocumentID, len(ids))
	copy(out, ids)
	return out
}

func intersect(a map[core.DocumentID]bool, b map[core.DocumentID]bool) map[core.DocumentID]bool {
	out := make(map[core.DocumentID]bool)
	for id := range a {
		if b[id] {
			out[id] = true
		}
	}
	return out
}

func setToSlice(set map[core.DocumentID]bool) []core.DocumentID {
	out := make([]core.DocumentID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func operatorObject(criterion interface{}) (map[string]interface{}, bool) {
	obj, ok := criterion.(map[string]interface{})
	if !ok || len(obj) == 0 {
		return nil, false
	}
	for k := range obj {
		if len(k) == 0 || k[0] != '$' {
			return nil, false
		}
	}
	return obj, true
}
