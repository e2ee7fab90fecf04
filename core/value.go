package core

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// missingType is a value variant distinct from nil, returned when a field
// path does not resolve.
type missingType struct{}

// Missing is the sentinel value produced by resolving an absent field path.
var Missing = missingType{}

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v interface{}) bool {
	_, ok := v.(missingType)
	return ok
}

// ResolveFieldPath walks a dot-separated path into doc, stepping into
// nested objects left to right. If any intermediate value is missing, not
// an object, or null, the path resolves to Missing.
func ResolveFieldPath(doc interface{}, path string) interface{} {
	if path == "" {
		return Missing
	}
	current := doc
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			if d, ok := current.(Document); ok {
				obj = map[string]interface{}(d)
			} else {
				return Missing
			}
		}
		v, ok := obj[segment]
		if !ok {
			return Missing
		}
		current = v
	}
	return current
}

// DeepEqual reports structural equality of two values: same kind, same
// content. Numbers compare numerically (after JSON decode both sides are
// float64, but we tolerate mixed numeric Go types defensively).
func DeepEqual(a, b interface{}) bool {
	if IsMissing(a) || IsMissing(b) {
		return IsMissing(a) && IsMissing(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aIsNum := asFloat(a)
	bn, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		return an == bn
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		bv, ok := objectOf(b)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !DeepEqual(v, other) {
				return false
			}
		}
		return true
	case Document:
		return DeepEqual(map[string]interface{}(av), b)
	default:
		return false
	}
}

func objectOf(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Document:
		return map[string]interface{}(t), true
	default:
		return nil, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Compare orders two values for $gt/$gte/$lt/$lte. Ordering is only
// meaningful for two numbers or two strings (lexicographic); any other
// combination returns ok=false, meaning the operator should yield false
// rather than error.
func Compare(a, b interface{}) (result int, ok bool) {
	if an, aIsNum := asFloat(a); aIsNum {
		bn, bIsNum := asFloat(b)
		if !bIsNum {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// CanonicalKeyEncoding names the scheme CanonicalKey implements, persisted
// alongside every index record so rebuilds stay deterministic across
// versions of this package.
const CanonicalKeyEncoding = "docdb-canonical-v1"

// CanonicalKey returns the canonical value-key used as an index bucket key
// for v: stable for equal values, and for objects/arrays a full canonical
// serialization (they index as a whole, not per element).
//
// encoding/json already sorts map keys when marshaling, which gives us a
// deterministic, order-independent serialization for free; the planner
// recovers numeric/string order (for $gt/$lt over index keys) by decoding
// the key back into a Value and calling Compare, rather than relying on
// the key string itself being lexicographically sortable.
func CanonicalKey(v interface{}) string {
	normalized := normalizeForEncoding(v)
	data, err := json.Marshal(normalized)
	if err != nil {
		// Values reaching here always originate from a prior json.Unmarshal,
		// so this can only happen for a value containing something
		// unencodable (NaN/Inf); fall back to a type-tagged string form.
		return "err:" + strconv.Quote(err.Error())
	}
	return string(data)
}

func normalizeForEncoding(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return normalizeForEncoding(map[string]interface{}(t))
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(t))
		for _, k := range keys {
			out[k] = normalizeForEncoding(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeForEncoding(e)
		}
		return out
	default:
		return t
	}
}

// DecodeCanonicalKey reverses CanonicalKey, for the planner's range
// operators which need the original Value back to call Compare.
func DecodeCanonicalKey(key string) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(key), &v); err != nil {
		return nil, false
	}
	return v, true
}
