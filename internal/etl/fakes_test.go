package etl

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/orggraph/orggraph/internal/connector"
	"github.com/orggraph/orggraph/internal/graph"
	"github.com/orggraph/orggraph/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeSink is an in-memory Sink with the same merge semantics as the
// real store: nodes keyed by (label, key value), edges deduplicated by
// (from, type, to), relationship merges failing when an endpoint is
// absent.
type fakeSink struct {
	nodes      map[string]map[string]any
	edges      map[string]bool
	mergeCalls int
	queryRows  []map[string]any
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		nodes: make(map[string]map[string]any),
		edges: make(map[string]bool),
	}
}

func nodeKey(label string, keyValue any) string {
	return fmt.Sprintf("%s|%v", label, keyValue)
}

func edgeKey(from *graph.NodeRef, relType string, to *graph.NodeRef) string {
	return fmt.Sprintf("%s|%v|%s|%s|%v", from.Label, from.KeyValue, relType, to.Label, to.KeyValue)
}

func (s *fakeSink) MergeNode(_ context.Context, label, keyField string, props map[string]any) (*graph.NodeRef, error) {
	s.mergeCalls++
	keyValue, ok := props[keyField]
	if !ok || keyValue == nil {
		return nil, fmt.Errorf("merge %s: props missing key field %q", label, keyField)
	}

	stored := make(map[string]any, len(props))
	for k, v := range props {
		stored[k] = v
	}
	stored["__label"] = label
	s.nodes[nodeKey(label, keyValue)] = stored

	return &graph.NodeRef{Label: label, KeyField: keyField, KeyValue: keyValue}, nil
}

func (s *fakeSink) MergeRelationship(_ context.Context, from *graph.NodeRef, relType string, to *graph.NodeRef) error {
	if _, ok := s.nodes[nodeKey(from.Label, from.KeyValue)]; !ok {
		return fmt.Errorf("merge relationship %s: endpoint missing", relType)
	}
	if _, ok := s.nodes[nodeKey(to.Label, to.KeyValue)]; !ok {
		return fmt.Errorf("merge relationship %s: endpoint missing", relType)
	}
	s.edges[edgeKey(from, relType, to)] = true
	return nil
}

func (s *fakeSink) MatchNode(_ context.Context, label, keyField string, match map[string]any) (*graph.NodeRef, error) {
	for _, props := range s.nodes {
		if props["__label"] != label {
			continue
		}
		matched := true
		for k, want := range match {
			if fmt.Sprintf("%v", props[k]) != fmt.Sprintf("%v", want) {
				matched = false
				break
			}
		}
		if matched {
			return &graph.NodeRef{Label: label, KeyField: keyField, KeyValue: props[keyField]}, nil
		}
	}
	return nil, nil
}

func (s *fakeSink) Query(_ context.Context, _ string, _ map[string]any) ([]map[string]any, error) {
	return s.queryRows, nil
}

func (s *fakeSink) Close(context.Context) error { return nil }

func (s *fakeSink) hasNode(label string, keyValue any) bool {
	_, ok := s.nodes[nodeKey(label, keyValue)]
	return ok
}

func (s *fakeSink) hasEdge(fromLabel string, fromKey any, relType, toLabel string, toKey any) bool {
	return s.edges[fmt.Sprintf("%s|%v|%s|%s|%v", fromLabel, fromKey, relType, toLabel, toKey)]
}

func (s *fakeSink) countNodes(label string) int {
	count := 0
	for _, props := range s.nodes {
		if props["__label"] == label {
			count++
		}
	}
	return count
}

// fakeStreams serves canned stream batches.
type fakeStreams struct {
	data map[string][]connector.Record
}

func (f *fakeStreams) Has(stream string) bool {
	_, ok := f.data[stream]
	return ok
}

func (f *fakeStreams) Stream(_ context.Context, stream string) ([]connector.Record, error) {
	return f.data[stream], nil
}

// fakeDirectory serves canned organization listings.
type fakeDirectory struct {
	organization string
	teams        []models.TeamWithMembers
	projects     []models.Project
}

func (f *fakeDirectory) Organization() string { return f.organization }

func (f *fakeDirectory) ListTeamsWithMembers(context.Context) ([]models.TeamWithMembers, error) {
	return f.teams, nil
}

func (f *fakeDirectory) ListProjects(context.Context) ([]models.Project, error) {
	return f.projects, nil
}
