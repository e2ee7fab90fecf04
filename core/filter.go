package core

import "regexp"

// MatchQuery evaluates an OrderedObject query against doc. Field order
// does not affect the result (matching is a conjunction, which is
// commutative); only the planner cares about order, for choosing which
// field's index to consult first.
func MatchQuery(doc Document, query OrderedObject) bool {
	return MatchDocument(doc, query.ToMap())
}

// MatchDocument evaluates query against doc: a document matches iff every
// key in query matches. Unknown operators evaluate to false rather than
// erroring.
func MatchDocument(doc Document, query map[string]interface{}) bool {
	for field, criterion := range query {
		actual := ResolveFieldPath(doc, field)
		if !matchCriterion(actual, criterion) {
			return false
		}
	}
	return true
}

func matchCriterion(actual interface{}, criterion interface{}) bool {
	ops, isOperatorObject := asOperatorObject(criterion)
	if !isOperatorObject {
		return DeepEqual(actual, criterion)
	}
	for op, operand := range ops {
		if !evalOperator(actual, op, operand) {
			return false
		}
	}
	return true
}

// asOperatorObject reports whether criterion is a non-nil object all of
// whose keys look like operators ("$..."). A non-object (or null)
// criterion is always a bare-equality match, never an operator set.
func asOperatorObject(criterion interface{}) (map[string]interface{}, bool) {
	obj, ok := objectOf(criterion)
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

func evalOperator(actual interface{}, op string, operand interface{}) bool {
	switch op {
	case "$eq":
		return DeepEqual(actual, operand)
	case "$ne":
		return !DeepEqual(actual, operand)
	case "$gt":
		r, ok := Compare(actual, operand)
		return ok && r > 0
	case "$gte":
		r, ok := Compare(actual, operand)
		return ok && r >= 0
	case "$lt":
		r, ok := Compare(actual, operand)
		return ok && r < 0
	case "$lte":
		r, ok := Compare(actual, operand)
		return ok && r <= 0
	case "$in":
		arr, ok := operand.([]interface{})
		if !ok {
			return false
		}
		for _, candidate := range arr {
			if DeepEqual(actual, candidate) {
				return true
			}
		}
		return false
	case "$nin":
		arr, ok := operand.([]interface{})
		if !ok {
			return false
		}
		for _, candidate := range arr {
			if DeepEqual(actual, candidate) {
				return false
			}
		}
		return true
	case "$exists":
		want, _ := operand.(bool)
		present := !IsMissing(actual)
		return present == want
	case "$regex":
		pattern, ok := operand.(string)
		if !ok {
			return false
		}
		s, ok := actual.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	default:
		// Unknown operators are "no match", never an error.
		return false
	}
}
