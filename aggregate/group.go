package aggregate

import (
	"encoding/json"

	"github.com/lattice-db/lattice/core"
)

// accumulatorState accumulates one $group output field across the
// documents of one group, in first-encounter field order for $push /
// $addToSet semantics.
type accumulatorState struct {
	op          string
	sum         float64
	count       int
	min, max    interface{}
	haveMinMax  bool
	first, last interface{}
	haveFirst   bool
	values      []interface{} // $push / $addToSet
}

func (a *accumulatorState) observe(v interface{}) {
	if core.IsMissing(v) {
		switch a.op {
		case "$sum", "$avg":
			// undefined counts as zero for numeric accumulators
			a.count++
		}
		return
	}
	switch a.op {
	case "$sum":
		n, _ := numericOrZero(v)
		a.sum += n
		a.count++
	case "$avg":
		n, _ := numericOrZero(v)
		a.sum += n
		a.count++
	case "$min":
		if !a.haveMinMax {
			a.min, a.haveMinMax = v, true
			return
		}
		if r, ok := core.Compare(v, a.min); ok && r < 0 {
			a.min = v
		}
	case "$max":
		if !a.haveMinMax {
			a.max, a.haveMinMax = v, true
			return
		}
		if r, ok := core.Compare(v, a.max); ok && r > 0 {
			a.max = v
		}
	case "$first":
		if !a.haveFirst {
			a.first, a.haveFirst = v, true
		}
	case "$last":
		a.last = v
	case "$push":
		a.values = append(a.values, v)
	case "$addToSet":
		for _, existing := range a.values {
			if core.DeepEqual(existing, v) {
				return
			}
		}
		a.values = append(a.values, v)
	}
}

func numericOrZero(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func (a *accumulatorState) result() interface{} {
	switch a.op {
	case "$sum":
		return a.sum
	case "$avg":
		if a.count == 0 {
			return float64(0)
		}
		return a.sum / float64(a.count)
	case "$min":
		if !a.haveMinMax {
			return core.Missing
		}
		return a.min
	case "$max":
		if !a.haveMinMax {
			return core.Missing
		}
		return a.max
	case "$first":
		if !a.haveFirst {
			return core.Missing
		}
		return a.first
	case "$last":
		return a.last
	case "$push", "$addToSet":
		if a.values == nil {
			return []interface{}{}
		}
		return a.values
	default:
		return core.Missing
	}
}

// stageGroup groups documents by a key expression: the stage body's _id
// is the group-key expression, every other key names an accumulator
// {$op: expression}. Group order in the output follows first-encounter
// order of group keys.
func stageGroup(docs []core.Document, body json.RawMessage) ([]core.Document, error) {
	var spec map[string]interface{}
	if err := decodeBody(body, &spec); err != nil {
		return nil, err
	}
	idExprRaw, hasID := spec["_id"]
	if !hasID {
		return nil, core.NewBadRequest("$group requires an _id expression")
	}
	idExpr := core.ParseExpr(idExprRaw)

	type accumulatorSpec struct {
		field string
		op    string
		expr  *core.Expr
	}
	var accSpecs []accumulatorSpec
	for field, raw := range spec {
		if field == "_id" {
			continue
		}
		obj, ok := raw.(map[string]interface{})
		if !ok || len(obj) != 1 {
			return nil, core.NewBadRequest("$group accumulator %q must be a single-operator object", field)
		}
		for op, argRaw := range obj {
			if !isKnownAccumulator(op) {
				return nil, core.NewUnsupportedOperator("unsupported $group accumulator %q", op)
			}
			accSpecs = append(accSpecs, accumulatorSpec{field: field, op: op, expr: core.ParseExpr(argRaw)})
		}
	}

	var order []string
	groups := make(map[string]map[string]*accumulatorState)
	groupKeyValue := make(map[string]interface{})

	for _, doc := range docs {
		keyVal, err := idExpr.Eval(doc)
		if err != nil {
			return nil, err
		}
		key := core.CanonicalKey(keyVal)
		accs, exists := groups[key]
		if !exists {
			accs = make(map[string]*accumulatorState, len(accSpecs))
			for _, as := range accSpecs {
				accs[as.field] = &accumulatorState{op: as.op}
			}
			groups[key] = accs
			groupKeyValue[key] = keyVal
			order = append(order, key)
		}
		for _, as := range accSpecs {
			v, err := as.expr.Eval(doc)
			if err != nil {
				return nil, err
			}
			accs[as.field].observe(v)
		}
	}

	out := make([]core.Document, 0, len(order))
	for _, key := range order {
		doc := core.Document{"_id": groupKeyValue[key]}
		accs := groups[key]
		for _, as := range accSpecs {
			doc[as.field] = accs[as.field].result()
		}
		out = append(out, doc)
	}
	return out, nil
}

func isKnownAccumulator(op string) bool {
	switch op {
	case "$sum", "$avg", "$min", "$max", "$first", "$last", "$push", "$addToSet":
		return true
	default:
		return false
	}
}
