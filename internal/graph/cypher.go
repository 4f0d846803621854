package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CypherBuilder assembles parameterized Cypher statements. Labels,
// relationship types and property keys are validated against a strict
// identifier pattern; every value travels as a query parameter, never
// as interpolated text.
type CypherBuilder struct {
	params  map[string]any
	counter int
}

func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{params: make(map[string]any)}
}

// AddParam registers a value and returns its $placeholder.
func (b *CypherBuilder) AddParam(value any) string {
	name := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[name] = value
	return "$" + name
}

func (b *CypherBuilder) Params() map[string]any {
	return b.params
}

// MergeNode builds a MERGE keyed on a single property, overwriting the
// full property set on every application. The SET uses += with a map
// parameter so repeated applications are no-ops.
func (b *CypherBuilder) MergeNode(label, keyField string, keyValue any, props map[string]any) (string, error) {
	if !validIdentifier(label) {
		return "", fmt.Errorf("invalid node label %q", label)
	}
	if !validIdentifier(keyField) {
		return "", fmt.Errorf("invalid key field %q", keyField)
	}
	for k := range props {
		if !validIdentifier(k) {
			return "", fmt.Errorf("invalid property key %q", k)
		}
	}
	keyParam := b.AddParam(keyValue)
	propsParam := b.AddParam(props)
	return fmt.Sprintf("MERGE (n:%s {%s: %s}) SET n += %s RETURN n",
		label, keyField, keyParam, propsParam), nil
}

// MergeRelationship builds MATCH/MATCH/MERGE for a directed edge.
// MERGE on the relationship pattern prevents duplicate parallel edges
// with the same type between the same two nodes.
func (b *CypherBuilder) MergeRelationship(from *NodeRef, relType string, to *NodeRef) (string, error) {
	if !validIdentifier(relType) {
		return "", fmt.Errorf("invalid relationship type %q", relType)
	}
	for _, ref := range []*NodeRef{from, to} {
		if !validIdentifier(ref.Label) {
			return "", fmt.Errorf("invalid node label %q", ref.Label)
		}
		if !validIdentifier(ref.KeyField) {
			return "", fmt.Errorf("invalid key field %q", ref.KeyField)
		}
	}
	fromParam := b.AddParam(from.KeyValue)
	toParam := b.AddParam(to.KeyValue)
	return fmt.Sprintf(
		"MATCH (a:%s {%s: %s}) MATCH (b:%s {%s: %s}) MERGE (a)-[r:%s]->(b) RETURN a, b",
		from.Label, from.KeyField, fromParam,
		to.Label, to.KeyField, toParam,
		relType), nil
}

// MatchNode builds a lookup by label and property conjunction. Match
// keys are emitted in sorted order so the statement is deterministic.
func (b *CypherBuilder) MatchNode(label string, match map[string]any) (string, error) {
	if !validIdentifier(label) {
		return "", fmt.Errorf("invalid node label %q", label)
	}
	keys := make([]string, 0, len(match))
	for k := range match {
		if !validIdentifier(k) {
			return "", fmt.Errorf("invalid match key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s: %s", k, b.AddParam(match[k])))
	}
	return fmt.Sprintf("MATCH (n:%s {%s}) RETURN n LIMIT 1",
		label, strings.Join(clauses, ", ")), nil
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}
