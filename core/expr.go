package core

import (
	"math"
	"strings"
)

// ExprKind tags the variants of the expression AST built once by ParseExpr
// and then evaluated per document, rather than re-interpreting the raw
// JSON object on every call.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprField
	ExprOperator
	ExprDocument
)

// Expr is an aggregation expression, used by $project and $group
// accumulators.
type Expr struct {
	Kind     ExprKind
	Literal  interface{}      // ExprLiteral
	Field    string           // ExprField: path after the leading '$'
	Op       string           // ExprOperator: "$add", "$concat", ...
	Args     []*Expr          // ExprOperator
	Document map[string]*Expr // ExprDocument
}

// ParseExpr builds an Expr from the raw JSON-decoded criterion: a "$field"
// string is a field reference, any other non-object value is a literal, an
// object with one key starting with '$' is an operator application, and
// any other object is a nested document whose fields are themselves
// parsed.
func ParseExpr(raw interface{}) *Expr {
	if s, ok := raw.(string); ok && strings.HasPrefix(s, "$") {
		return &Expr{Kind: ExprField, Field: s[1:]}
	}
	obj, ok := objectOf(raw)
	if !ok {
		return &Expr{Kind: ExprLiteral, Literal: raw}
	}
	if len(obj) == 1 {
		for k, v := range obj {
			if len(k) > 0 && k[0] == '$' {
				return &Expr{Kind: ExprOperator, Op: k, Args: parseArgs(v)}
			}
		}
	}
	fields := make(map[string]*Expr, len(obj))
	for k, v := range obj {
		fields[k] = ParseExpr(v)
	}
	return &Expr{Kind: ExprDocument, Document: fields}
}

func parseArgs(v interface{}) []*Expr {
	if arr, ok := v.([]interface{}); ok {
		out := make([]*Expr, len(arr))
		for i, e := range arr {
			out[i] = ParseExpr(e)
		}
		return out
	}
	return []*Expr{ParseExpr(v)}
}

// Eval evaluates e against doc. Returns Missing for a field reference that
// does not resolve; BadRequest/DivisionByZero/UnsupportedOperator errors
// propagate from operator evaluation.
func (e *Expr) Eval(doc Document) (interface{}, error) {
	switch e.Kind {
	case ExprLiteral:
		return e.Literal, nil
	case ExprField:
		return ResolveFieldPath(doc, e.Field), nil
	case ExprDocument:
		out := make(map[string]interface{}, len(e.Document))
		for k, sub := range e.Document {
			v, err := sub.Eval(doc)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case ExprOperator:
		return evalOperatorExpr(e.Op, e.Args, doc)
	default:
		return nil, NewInternal(nil, "unreachable expr kind")
	}
}

func evalOperatorExpr(op string, args []*Expr, doc Document) (interface{}, error) {
	values := make([]interface{}, len(args))
	for i, a := range args {
		v, err := a.Eval(doc)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	switch op {
	case "$literal":
		if len(values) != 1 {
			return nil, NewBadRequest("$literal takes exactly one argument")
		}
		return values[0], nil
	case "$add":
		return numericFold(values, 0, func(acc, v float64) float64 { return acc + v })
	case "$multiply":
		return numericFold(values, 1, func(acc, v float64) float64 { return acc * v })
	case "$subtract":
		if len(values) != 2 {
			return nil, NewBadRequest("$subtract takes exactly two arguments")
		}
		a, aOK := numericOf(values[0])
		b, bOK := numericOf(values[1])
		if !aOK || !bOK {
			return nil, NewBadRequest("$subtract requires numeric arguments")
		}
		return a - b, nil
	case "$divide":
		if len(values) != 2 {
			return nil, NewBadRequest("$divide takes exactly two arguments")
		}
		a, aOK := numericOf(values[0])
		b, bOK := numericOf(values[1])
		if !aOK || !bOK {
			return nil, NewBadRequest("$divide requires numeric arguments")
		}
		if b == 0 {
			return nil, NewDivisionByZero("division by zero")
		}
		return a / b, nil
	case "$concat":
		var sb strings.Builder
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, NewBadRequest("$concat requires string arguments")
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	case "$toLower":
		if len(values) != 1 {
			return nil, NewBadRequest("$toLower takes exactly one argument")
		}
		s, ok := values[0].(string)
		if !ok {
			return nil, NewBadRequest("$toLower requires a string argument")
		}
		return strings.ToLower(s), nil
	case "$toUpper":
		if len(values) != 1 {
			return nil, NewBadRequest("$toUpper takes exactly one argument")
		}
		s, ok := values[0].(string)
		if !ok {
			return nil, NewBadRequest("$toUpper requires a string argument")
		}
		return strings.ToUpper(s), nil
	case "$round":
		if len(values) != 2 {
			return nil, NewBadRequest("$round takes exactly two arguments")
		}
		n, ok := numericOf(values[0])
		if !ok {
			return nil, NewBadRequest("$round requires a numeric first argument")
		}
		places, ok := numericOf(values[1])
		if !ok {
			return nil, NewBadRequest("$round requires a numeric second argument")
		}
		factor := math.Pow(10, places)
		return math.Round(n*factor) / factor, nil
	case "$first":
		if len(values) != 1 {
			return nil, NewBadRequest("$first takes exactly one argument")
		}
		arr, ok := values[0].([]interface{})
		if !ok {
			return nil, NewBadRequest("$first requires an array argument")
		}
		if len(arr) == 0 {
			return Missing, nil
		}
		return arr[0], nil
	default:
		return nil, NewUnsupportedOperator("unsupported expression operator %q", op)
	}
}

func numericOf(v interface{}) (float64, bool) {
	if IsMissing(v) {
		return 0, false
	}
	return asFloat(v)
}

func numericFold(values []interface{}, identity float64, fn func(acc, v float64) float64) (interface{}, error) {
	acc := identity
	for _, v := range values {
		n, ok := numericOf(v)
		if !ok {
			return nil, NewBadRequest("expression requires numeric arguments")
		}
		acc = fn(acc, n)
	}
	return acc, nil
}
