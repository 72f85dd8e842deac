package activitypub

import (
	"context"

	"github.com/angusmcleod/mastodon/models"
	"github.com/go-json-experiment/json"
)

// An Activity is the typed, actor-bound unit of work produced by the
// resolver. Activities are not persisted; only their effects are.
type Activity struct {
	// ID is the sender-assigned identifier. It is namespaced to the
	// sender and not globally unique.
	ID   string
	Type string
	// Actor is the authenticated signer. It is the only trusted
	// identity for the rest of processing.
	Actor *models.Actor
	// Object is the activity's payload, embedded or fetched. Nil when
	// the payload was a bare reference that could not be materialized.
	Object map[string]any
	// ObjectURI is the payload's URI, when known.
	ObjectURI string
}

// ObjectType returns the type of the activity's payload, or the empty
// string when the payload is not materialized.
func (a *Activity) ObjectType() string {
	return stringFromAny(a.Object["type"])
}

// ResolveActivity turns verified body bytes into an Activity bound to the
// authenticated signer. The body's own actor field is cross-checked
// against the signer and the activity rejected on mismatch.
//
// A bare object reference is fetched; a permanent fetch failure degrades
// to an activity without a materialized object rather than an error,
// since the remote object may be deleted or access restricted.
func (e *Env) ResolveActivity(ctx context.Context, body []byte, signer *models.Actor) (*Activity, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, dataError{err}
	}
	typ := stringFromAny(obj["type"])
	if typ == "" {
		return nil, dataError{errMissingType}
	}

	if actor := uriFromAny(obj["actor"]); actor != "" && actor != signer.URI {
		return nil, rejectionf("body actor %q does not match authenticated signer %q", actor, signer.URI)
	}

	act := &Activity{
		ID:    stringFromAny(obj["id"]),
		Type:  typ,
		Actor: signer,
	}

	switch object := obj["object"].(type) {
	case map[string]any:
		act.Object = object
		act.ObjectURI = stringFromAny(object["id"])
	case string:
		act.ObjectURI = object
		fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout())
		defer cancel()
		fetched, err := e.fetcher().Fetch(fetchCtx, object)
		switch {
		case err == nil:
			act.Object = fetched
		case permanentFetchError(err):
			// acknowledged, object not materialized
			e.Log().Info("object not materialized", "uri", object, "error", err)
		default:
			return nil, err
		}
	}
	return act, nil
}
