package graph

import "context"

// NodeRef is a handle to a node that already exists in the store. It
// carries enough identity to anchor a relationship MERGE without
// re-reading the node.
type NodeRef struct {
	Label    string
	KeyField string
	KeyValue any
}

// Sink is the write surface of the property-graph store. Merge is the
// only write primitive: a node or relationship is created if absent and
// updated in place otherwise, so every operation is safe to repeat.
type Sink interface {
	// MergeNode creates or updates a node matched by (label, keyField).
	// props must contain keyField.
	MergeNode(ctx context.Context, label, keyField string, props map[string]any) (*NodeRef, error)

	// MergeRelationship creates the edge (from)-[relType]->(to) if it
	// does not already exist. Both refs must be non-nil.
	MergeRelationship(ctx context.Context, from *NodeRef, relType string, to *NodeRef) error

	// MatchNode returns a ref to the first node of label matching all
	// given properties, or nil when no such node exists. Absence is not
	// an error. keyField names the property used to anchor later
	// relationship merges against the returned ref.
	MatchNode(ctx context.Context, label, keyField string, match map[string]any) (*NodeRef, error)

	// Query runs a read query and returns rows as maps.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	Close(ctx context.Context) error
}
