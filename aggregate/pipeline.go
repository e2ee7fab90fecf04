// Package aggregate implements the multi-stage aggregation pipeline,
// consuming the expression evaluator of core for $project and $group.
package aggregate

import (
	"encoding/json"

	"github.com/lattice-db/lattice/core"
)

// LookupFunc lets a caller plug in a real cross-collection join behind
// $lookup. Run's default behavior with a nil hook is to fill the "as"
// field with an empty array, leaving $lookup a stub until one is supplied.
type LookupFunc func(from, localField, foreignField string, doc core.Document) ([]interface{}, error)

// Options configures a pipeline run.
type Options struct {
	Lookup LookupFunc
}

// Stage is one decoded pipeline stage: exactly one "$name" key. Body keeps
// the stage's raw, undecoded JSON so a handler that needs object-key
// order (only $sort does) can re-decode it with core.ParseOrderedObject
// instead of going through a plain map and losing that order.
type Stage struct {
	Name string
	Body json.RawMessage
}

// ParseStages decodes a pipeline array (one object per stage, one key
// each) into Stage values, preserving stage order as given.
func ParseStages(pipeline []map[string]json.RawMessage) ([]Stage, error) {
	stages := make([]Stage, 0, len(pipeline))
	for _, raw := range pipeline {
		if len(raw) != 1 {
			return nil, core.NewBadRequest("each pipeline stage must have exactly one operator key")
		}
		for name, body := range raw {
			stages = append(stages, Stage{Name: name, Body: body})
		}
	}
	return stages, nil
}

// ParseStagesJSON decodes a raw JSON pipeline array, preserving both
// stage order and (via Stage.Body) each stage's internal key order.
func ParseStagesJSON(data []byte) ([]Stage, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.NewBadRequest("malformed pipeline: %v", err)
	}
	return ParseStages(raw)
}

// decodeBody unmarshals a stage body into v, wrapping decode failure as
// BadRequest.
func decodeBody(body json.RawMessage, v interface{}) error {
	if len(body) == 0 {
		return core.NewBadRequest("missing stage body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return core.NewBadRequest("malformed stage body: %v", err)
	}
	return nil
}

// Run executes stages over docs in order, feeding each stage's output into
// the next.
func Run(docs []core.Document, stages []Stage, opts Options) ([]core.Document, error) {
	current := docs
	var err error
	for _, stage := range stages {
		current, err = runStage(current, stage, opts)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

func runStage(docs []core.Document, stage Stage, opts Options) ([]core.Document, error) {
	switch stage.Name {
	case "$match":
		return stageMatch(docs, stage.Body)
	case "$project":
		return stageProject(docs, stage.Body)
	case "$group":
		return stageGroup(docs, stage.Body)
	case "$sort":
		return stageSort(docs, stage.Body)
	case "$limit":
		return stageLimit(docs, stage.Body)
	case "$skip":
		return stageSkip(docs, stage.Body)
	case "$unwind":
		return stageUnwind(docs, stage.Body)
	case "$lookup":
		return stageLookup(docs, stage.Body, opts)
	case "$count":
		return stageCount(docs, stage.Body)
	default:
		return nil, core.NewUnsupportedStage("unsupported aggregation stage %q", stage.Name)
	}
}

func stageMatch(docs []core.Document, body json.RawMessage) ([]core.Document, error) {
	var criteria map[string]interface{}
	if err := decodeBody(body, &criteria); err != nil {
		return nil, err
	}
	out := make([]core.Document, 0, len(docs))
	for _, doc := range docs {
		if core.MatchDocument(doc, criteria) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func stageLimit(docs []core.Document, body json.RawMessage) ([]core.Document, error) {
	var raw interface{}
	if err := decodeBody(body, &raw); err != nil {
		return nil, err
	}
	n, ok := asInt(raw)
	if !ok || n < 0 {
		return nil, core.NewBadRequest("$limit requires a non-negative integer")
	}
	if n > len(docs) {
		n = len(docs)
	}
	return docs[:n], nil
}

func stageSkip(docs []core.Document, body json.RawMessage) ([]core.Document, error) {
	var raw interface{}
	if err := decodeBody(body, &raw); err != nil {
		return nil, err
	}
	n, ok := asInt(raw)
	if !ok || n < 0 {
		return nil, core.NewBadRequest("$skip requires a non-negative integer")
	}
	if n > len(docs) {
		n = len(docs)
	}
	return docs[n:], nil
}

func stageCount(docs []core.Document, body json.RawMessage) ([]core.Document, error) {
	var name string
	if err := decodeBody(body, &name); err != nil || name == "" {
		return nil, core.NewBadRequest("$count requires a non-empty field name")
	}
	return []core.Document{{name: float64(len(docs))}}, nil
}

func stageLookup(docs []core.Document, body json.RawMessage, opts Options) ([]core.Document, error) {
	var spec map[string]interface{}
	if err := decodeBody(body, &spec); err != nil {
		return nil, err
	}
	from, _ := spec["from"].(string)
	localField, _ := spec["localField"].(string)
	foreignField, _ := spec["foreignField"].(string)
	as, ok := spec["as"].(string)
	if !ok || as == "" {
		return nil, core.NewBadRequest("$lookup requires an \"as\" field name")
	}

	out := make([]core.Document, len(docs))
	for i, doc := range docs {
		cloned := doc.Clone()
		var joined []interface{}
		if opts.Lookup != nil {
			var err error
			joined, err = opts.Lookup(from, localField, foreignField, doc)
			if err != nil {
				return nil, err
			}
		}
		if joined == nil {
			joined = []interface{}{}
		}
		cloned[as] = joined
		out[i] = cloned
	}
	return out, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), n == float64(int(n))
	case int:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return int(f), err == nil
	default:
		return 0, false
	}
}

