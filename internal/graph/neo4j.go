package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/sirupsen/logrus"
)

// Neo4jSink implements Sink over the bolt driver. All statements go
// through CypherBuilder so values are always parameterized.
type Neo4jSink struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *logrus.Logger
}

// NewNeo4jSink connects, verifies connectivity and returns the sink.
// Fails fast on bad credentials or an unreachable server.
func NewNeo4jSink(ctx context.Context, uri, username, password, database string, logger *logrus.Logger) (*Neo4jSink, error) {
	if uri == "" || username == "" {
		return nil, fmt.Errorf("neo4j credentials missing: uri=%q user=%q", uri, username)
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", uri, err)
	}

	logger.WithFields(logrus.Fields{"uri": uri, "database": database}).Info("neo4j sink connected")

	return &Neo4jSink{driver: driver, database: database, logger: logger}, nil
}

func (s *Neo4jSink) MergeNode(ctx context.Context, label, keyField string, props map[string]any) (*NodeRef, error) {
	keyValue, ok := props[keyField]
	if !ok || keyValue == nil {
		return nil, fmt.Errorf("merge %s: properties missing key field %q", label, keyField)
	}

	builder := NewCypherBuilder()
	cypher, err := builder.MergeNode(label, keyField, keyValue, props)
	if err != nil {
		return nil, fmt.Errorf("build merge for %s: %w", label, err)
	}

	_, err = neo4j.ExecuteQuery(ctx, s.driver, cypher, builder.Params(),
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"label":      label,
			"key_field":  keyField,
			"key_value":  keyValue,
			"properties": props,
		}).WithError(err).Error("node merge failed")
		return nil, fmt.Errorf("merge %s node: %w", label, err)
	}

	return &NodeRef{Label: label, KeyField: keyField, KeyValue: keyValue}, nil
}

func (s *Neo4jSink) MergeRelationship(ctx context.Context, from *NodeRef, relType string, to *NodeRef) error {
	builder := NewCypherBuilder()
	cypher, err := builder.MergeRelationship(from, relType, to)
	if err != nil {
		return fmt.Errorf("build relationship merge: %w", err)
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, builder.Params(),
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"rel_type": relType,
			"from":     fmt.Sprintf("%s:%v", from.Label, from.KeyValue),
			"to":       fmt.Sprintf("%s:%v", to.Label, to.KeyValue),
		}).WithError(err).Error("relationship merge failed")
		return fmt.Errorf("merge relationship %s: %w", relType, err)
	}

	// MATCH+MATCH yields no rows when either endpoint is gone. The
	// merge silently did nothing in that case; surface it.
	if len(result.Records) == 0 {
		return fmt.Errorf("relationship %s not created: endpoint missing (%s:%v -> %s:%v)",
			relType, from.Label, from.KeyValue, to.Label, to.KeyValue)
	}

	return nil
}

func (s *Neo4jSink) MatchNode(ctx context.Context, label, keyField string, match map[string]any) (*NodeRef, error) {
	builder := NewCypherBuilder()
	cypher, err := builder.MatchNode(label, match)
	if err != nil {
		return nil, fmt.Errorf("build match for %s: %w", label, err)
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, builder.Params(),
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("match %s node: %w", label, err)
	}

	if len(result.Records) == 0 {
		return nil, nil
	}

	value, ok := result.Records[0].Get("n")
	if !ok {
		return nil, fmt.Errorf("match %s: result has no node column", label)
	}
	node, ok := value.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("match %s: unexpected result type %T", label, value)
	}

	keyValue, ok := node.Props[keyField]
	if !ok {
		return nil, fmt.Errorf("match %s: node has no %q property", label, keyField)
	}

	return &NodeRef{Label: label, KeyField: keyField, KeyValue: keyValue}, nil
}

func (s *Neo4jSink) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}

func (s *Neo4jSink) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
