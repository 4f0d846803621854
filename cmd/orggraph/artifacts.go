package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/orggraph/orggraph/internal/etl"
	"github.com/orggraph/orggraph/internal/github"
	"github.com/orggraph/orggraph/internal/graph"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Enrich loaded commits with the files they changed",
	Long: `Reads every commit already in the graph, fetches its changed files
from the API with a worker pool, and merges them as software
artifacts linked to their commits. Run after a full pipeline run.`,
	RunE: runArtifacts,
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	sink, err := graph.NewNeo4jSink(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database, logger)
	if err != nil {
		return err
	}
	defer sink.Close(ctx)

	engine := etl.NewEngine(sink, logger)
	org, err := etl.BootstrapOrganization(ctx, engine, cfg.Organization.ID, cfg.Organization.Name)
	if err != nil {
		return err
	}
	resolver := etl.NewResolver(engine, org, logger)

	fetcher := github.NewArtifactFetcher(cfg.GitHub.Token, cfg.Artifacts.Workers, cfg.GitHub.RateLimit, logger)
	loader := etl.NewArtifactLoader(engine, resolver, fetcher, logger)

	stats, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"nodes":    stats.Nodes,
		"edges":    stats.Edges,
		"warnings": stats.Warnings,
	}).Info("artifact enrichment complete")
	return nil
}
