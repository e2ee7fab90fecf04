package core

import (
	"bytes"
	"encoding/json"
	"sort"
)

// KV is one key/value pair of an order-preserving object decode.
type KV struct {
	Key   string
	Value interface{}
}

// OrderedObject is a JSON object decoded with its top-level key order
// preserved. Go's map[string]interface{} loses that order, but the query
// planner's field-selection rule and $sort's multi-key priority both
// depend on seeing keys in the order the caller wrote them.
type OrderedObject []KV

// ParseOrderedObject decodes a single JSON object, preserving the order
// its keys appear in, with each value decoded as an ordinary interface{}
// (nested objects are NOT recursively order-preserved, only top-level key
// order is semantically significant anywhere in this module).
func ParseOrderedObject(data []byte) (OrderedObject, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, NewBadRequest("malformed object: %v", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, NewBadRequest("expected a JSON object")
	}

	var out OrderedObject
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, NewBadRequest("malformed object key: %v", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, NewBadRequest("object key is not a string")
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, NewBadRequest("malformed value for key %q: %v", key, err)
		}
		out = append(out, KV{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, NewBadRequest("malformed object: %v", err)
	}
	return out, nil
}

// OrderedObjectFromMap builds an OrderedObject from an already-decoded map,
// for callers (tests, programmatic construction) that don't care about a
// particular field order and just want a deterministic one.
func OrderedObjectFromMap(m map[string]interface{}) OrderedObject {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(OrderedObject, 0, len(m))
	for _, k := range keys {
		out = append(out, KV{Key: k, Value: m[k]})
	}
	return out
}

// Keys returns the object's keys in order.
func (o OrderedObject) Keys() []string {
	keys := make([]string, len(o))
	for i, kv := range o {
		keys[i] = kv.Key
	}
	return keys
}

// ToMap collapses the ordered object into a plain map, for evaluators that
// don't care about order (last value for a repeated key wins, matching
// encoding/json's own behavior for duplicate object keys).
func (o OrderedObject) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(o))
	for _, kv := range o {
		m[kv.Key] = kv.Value
	}
	return m
}

// Get returns the first value for key, if present.
func (o OrderedObject) Get(key string) (interface{}, bool) {
	for _, kv := range o {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}
