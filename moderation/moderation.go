// Package moderation implements admin moderation actions. Actions that
// sever relationships in bulk record a severance snapshot before any
// edge is destroyed, so affected users can later see what was lost.
package moderation

import (
	"context"
	"errors"
	"net/http"

	"github.com/angusmcleod/mastodon/internal/httpx"
	"github.com/angusmcleod/mastodon/models"
	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
)

type Env struct {
	*models.Env
}

// BlockDomain severs every follow relationship with the given domain.
// The snapshot is recorded first; only once the event and its rows are
// durable are the follow edges destroyed. Re-triggering the same block
// is safe: an already severed domain simply has no edges left to record.
func (e *Env) BlockDomain(ctx context.Context, domain string) (*models.RelationshipSeveranceEvent, error) {
	action := uuid.NewString()
	db := e.DB.WithContext(ctx)

	follows, err := models.NewRelationships(db).FollowsWithDomain(domain)
	if err != nil {
		return nil, err
	}
	event, err := models.NewSeveranceEvents(db).CreateFromFollows(models.SeveranceKindDomainBlock, domain, action, follows)
	if err != nil {
		return nil, err
	}
	if err := models.NewRelationships(db).Destroy(follows); err != nil {
		return nil, err
	}
	e.Log().Info("domain blocked", "action", action, "domain", domain, "severed", len(follows), "event", uint64(event.ID))
	return event, nil
}

// DomainBlocksCreate is the admin endpoint that blocks a domain.
func DomainBlocksCreate(e *Env, w http.ResponseWriter, r *http.Request) error {
	var params struct {
		Domain string `json:"domain" schema:"domain,required"`
	}
	if err := httpx.Params(r, &params); err != nil {
		return err
	}
	if params.Domain == "" {
		return httpx.Error(http.StatusBadRequest, errors.New("domain is required"))
	}

	event, err := e.BlockDomain(r.Context(), params.Domain)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.MarshalFull(w, map[string]any{
		"id":        uint64(event.ID),
		"action_id": event.ActionID,
		"domain":    params.Domain,
		"severity":  "suspend",
	})
}
