package etl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/orggraph/orggraph/internal/graph"
)

// Engine is the single write path into the graph. Merge is its only
// primitive: nodes and relationships are created when absent and
// updated in place otherwise, so repeated records and whole-pipeline
// reruns are harmless.
type Engine struct {
	sink   graph.Sink
	logger *logrus.Logger
}

func NewEngine(sink graph.Sink, logger *logrus.Logger) *Engine {
	return &Engine{sink: sink, logger: logger}
}

// UpsertNode derives the entity key for label from props, stamps it
// into the key field, and merges the node. The full property set is
// written on every application; identical applications are no-ops.
func (e *Engine) UpsertNode(ctx context.Context, label string, props map[string]any) (*graph.NodeRef, error) {
	key, err := DeriveKey(label, props)
	if err != nil {
		return nil, err
	}

	keyField := KeyField(label)
	merged := make(map[string]any, len(props)+1)
	for k, v := range props {
		merged[k] = v
	}
	merged[keyField] = key

	ref, err := e.sink.MergeNode(ctx, label, keyField, merged)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{"label": label, "key": key}).Debug("node merged")
	return ref, nil
}

// UpsertRelationship merges a directed edge between two resolved
// nodes. Both refs must be non-nil: callers are responsible for
// resolving or synthesizing both ends first and skipping the call
// (with a warning) when a handle is missing.
func (e *Engine) UpsertRelationship(ctx context.Context, from *graph.NodeRef, relType string, to *graph.NodeRef) error {
	if from == nil || to == nil {
		return fmt.Errorf("upsert relationship %s: nil endpoint", relType)
	}

	if err := e.sink.MergeRelationship(ctx, from, relType, to); err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"rel_type": relType,
		"from":     fmt.Sprintf("%s:%v", from.Label, from.KeyValue),
		"to":       fmt.Sprintf("%s:%v", to.Label, to.KeyValue),
	}).Debug("relationship merged")
	return nil
}

// GetNode returns a handle to the first node of label matching all
// given properties, or nil when none exists. Absence is a legitimate
// outcome, not an error.
func (e *Engine) GetNode(ctx context.Context, label string, match map[string]any) (*graph.NodeRef, error) {
	return e.sink.MatchNode(ctx, label, KeyField(label), match)
}

// Sink exposes the underlying store for read queries.
func (e *Engine) Sink() graph.Sink {
	return e.sink
}
