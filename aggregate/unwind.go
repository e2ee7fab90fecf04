package aggregate

import (
	"encoding/json"

	"github.com/lattice-db/lattice/core"
)

type unwindSpec struct {
	Path                       string
	PreserveNullAndEmptyArrays bool
	IncludeArrayIndex          string
}

// parseUnwindSpec accepts either the bare "$path" string form or the
// {path, preserveNullAndEmptyArrays?, includeArrayIndex?} object form of
// $unwind.
func parseUnwindSpec(body json.RawMessage) (unwindSpec, error) {
	var asString string
	if err := json.Unmarshal(body, &asString); err == nil {
		if len(asString) == 0 || asString[0] != '$' {
			return unwindSpec{}, core.NewBadRequest("$unwind path must start with '$'")
		}
		return unwindSpec{Path: asString[1:]}, nil
	}

	var obj struct {
		Path                       string `json:"path"`
		PreserveNullAndEmptyArrays bool   `json:"preserveNullAndEmptyArrays"`
		IncludeArrayIndex          string `json:"includeArrayIndex"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return unwindSpec{}, core.NewBadRequest("malformed $unwind spec: %v", err)
	}
	if len(obj.Path) == 0 || obj.Path[0] != '$' {
		return unwindSpec{}, core.NewBadRequest("$unwind path must start with '$'")
	}
	return unwindSpec{
		Path:                       obj.Path[1:],
		PreserveNullAndEmptyArrays: obj.PreserveNullAndEmptyArrays,
		IncludeArrayIndex:          obj.IncludeArrayIndex,
	}, nil
}

// stageUnwind expands an array field into one document per element,
// dropping the document where the field holds a non-array scalar.
func stageUnwind(docs []core.Document, body json.RawMessage) ([]core.Document, error) {
	spec, err := parseUnwindSpec(body)
	if err != nil {
		return nil, err
	}

	var out []core.Document
	for _, doc := range docs {
		v := core.ResolveFieldPath(doc, spec.Path)
		switch {
		case core.IsMissing(v):
			if spec.PreserveNullAndEmptyArrays {
				out = append(out, withFieldPath(doc, spec.Path, nil))
			}
		case isArray(v):
			arr := v.([]interface{})
			if len(arr) == 0 {
				if spec.PreserveNullAndEmptyArrays {
					out = append(out, withFieldPath(doc, spec.Path, nil))
				}
				continue
			}
			for i, elem := range arr {
				copied := withFieldPath(doc, spec.Path, elem)
				if spec.IncludeArrayIndex != "" {
					copied = withFieldPath(copied, spec.IncludeArrayIndex, float64(i))
				}
				out = append(out, copied)
			}
		default:
			// non-array scalar: drop the document.
		}
	}
	if out == nil {
		out = []core.Document{}
	}
	return out, nil
}

func isArray(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

// withFieldPath returns a clone of doc with path set to value, creating
// intermediate objects as needed (mirrors storage.setFieldPath, but
// aggregate must stay independent of the storage package).
func withFieldPath(doc core.Document, path string, value interface{}) core.Document {
	out := doc.Clone()
	segments := splitDotPath(path)
	cur := map[string]interface{}(out)
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			break
		}
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[seg] = next
		}
		cur = next
	}
	return out
}

func splitDotPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	return append(segments, path[start:])
}
