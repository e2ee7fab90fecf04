package aggregate

import (
	"encoding/json"

	"github.com/lattice-db/lattice/core"
)

// stageProject reshapes each document: all-0 is exclusion (delete named
// fields from the source document); any 1 or expression value is
// inclusion (build a fresh document from named fields/expressions, with
// _id kept by default). Mixing the two modes is BadRequest.
func stageProject(docs []core.Document, body json.RawMessage) ([]core.Document, error) {
	var spec map[string]interface{}
	if err := decodeBody(body, &spec); err != nil {
		return nil, err
	}
	if len(spec) == 0 {
		return nil, core.NewBadRequest("$project requires at least one field")
	}

	exclusion, err := isExclusionProjection(spec)
	if err != nil {
		return nil, err
	}

	out := make([]core.Document, len(docs))
	for i, doc := range docs {
		var projected core.Document
		var err error
		if exclusion {
			projected = projectExclude(doc, spec)
		} else {
			projected, err = projectInclude(doc, spec)
		}
		if err != nil {
			return nil, err
		}
		out[i] = projected
	}
	return out, nil
}

// isExclusionProjection classifies the projection: it is exclusion only
// when every non-_id value is literally 0 (any 1 or expression switches
// the whole stage to inclusion). Mixing a 0 with a 1/expression is an
// error.
func isExclusionProjection(spec map[string]interface{}) (bool, error) {
	sawZero := false
	sawOther := false
	for field, v := range spec {
		if field == core.IDField {
			// _id:0 is allowed alongside an inclusion projection, to drop
			// the otherwise-default-included identifier.
			continue
		}
		if isZero(v) {
			sawZero = true
			continue
		}
		sawOther = true
	}
	if sawZero && sawOther {
		return false, core.NewBadRequest("$project cannot mix inclusion and exclusion")
	}
	if !sawZero && !sawOther {
		// Only _id is named: {_id: 0} is an all-0 (exclusion) projection.
		return isZero(spec[core.IDField]), nil
	}
	return sawZero, nil
}

func isZero(v interface{}) bool {
	n, ok := v.(float64)
	return ok && n == 0
}

func isOne(v interface{}) bool {
	n, ok := v.(float64)
	return ok && n == 1
}

func projectExclude(doc core.Document, spec map[string]interface{}) core.Document {
	out := doc.Clone()
	for field, v := range spec {
		if isZero(v) {
			delete(out, field)
		}
	}
	return out
}

func projectInclude(doc core.Document, spec map[string]interface{}) (core.Document, error) {
	out := core.Document{}
	if v, explicit := spec[core.IDField]; !explicit || !isZero(v) {
		if id, ok := doc[core.IDField]; ok {
			out[core.IDField] = id
		}
	}
	for field, v := range spec {
		if field == core.IDField {
			continue
		}
		if isOne(v) {
			val := core.ResolveFieldPath(doc, field)
			if !core.IsMissing(val) {
				out[field] = val
			}
			continue
		}
		expr := core.ParseExpr(v)
		val, err := expr.Eval(doc)
		if err != nil {
			return nil, err
		}
		if !core.IsMissing(val) {
			out[field] = val
		}
	}
	return out, nil
}
