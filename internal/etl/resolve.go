package etl

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/orggraph/orggraph/internal/graph"
	"github.com/orggraph/orggraph/internal/models"
)

// Resolver turns embedded reference payloads into node handles.
//
// Person references are synthesizable: their payload always carries a
// login, which is enough for a minimal node. Labels, milestones,
// commit parents and pull requests are referenced by id only, so a
// miss is logged and the link skipped rather than fabricating a node
// from partial data.
type Resolver struct {
	engine *Engine
	org    *graph.NodeRef
	logger *logrus.Logger
}

func NewResolver(engine *Engine, org *graph.NodeRef, logger *logrus.Logger) *Resolver {
	return &Resolver{engine: engine, org: org, logger: logger}
}

// ResolvePerson returns a handle for the person referenced by payload,
// synthesizing a minimal Person node linked to the Organization when
// none exists yet. A malformed or empty payload yields (nil, nil) with
// a warning; only store failures return an error.
func (r *Resolver) ResolvePerson(ctx context.Context, payload any) (*graph.NodeRef, error) {
	var ref models.UserRef
	ok, err := models.DecodeRef(payload, &ref)
	if err != nil {
		r.logger.WithError(err).Warn("malformed person payload, skipping reference")
		return nil, nil
	}
	if !ok || ref.Login == "" {
		return nil, nil
	}

	node, err := r.engine.GetNode(ctx, "Person", map[string]any{"login": ref.Login})
	if err != nil {
		return nil, err
	}
	if node != nil {
		return node, nil
	}

	// First mention: synthesize from what the payload carries. The
	// node is never enriched afterwards.
	props := map[string]any{
		"login": ref.Login,
		"name":  ref.Login,
	}
	if ref.Name != "" {
		props["name"] = ref.Name
	}
	if ref.Email != "" {
		props["email"] = ref.Email
	}
	if ref.AvatarURL != "" {
		props["avatar_url"] = ref.AvatarURL
	}
	if ref.HTMLURL != "" {
		props["html_url"] = ref.HTMLURL
	}

	node, err = r.engine.UpsertNode(ctx, "Person", props)
	if err != nil {
		return nil, err
	}
	if err := r.engine.UpsertRelationship(ctx, node, "present_in", r.org); err != nil {
		return nil, err
	}

	r.logger.WithField("login", ref.Login).Info("person synthesized from reference")
	return node, nil
}

// Lookup resolves an id-only reference against the store. A miss is
// warned about and reported as (nil, nil); nothing is fabricated.
func (r *Resolver) Lookup(ctx context.Context, label string, match map[string]any) (*graph.NodeRef, error) {
	node, err := r.engine.GetNode(ctx, label, match)
	if err != nil {
		return nil, err
	}
	if node == nil {
		r.logger.WithFields(logrus.Fields{"label": label, "match": match}).Warn("referenced node not found, skipping link")
		return nil, nil
	}
	return node, nil
}
