package activitypub

import (
	"io"
	"net/http"

	"github.com/angusmcleod/mastodon/internal/httpx"
)

// InboxCreate handles an inbound POST to an inbox: authenticate the
// signature, resolve the body into a typed activity, dispatch it.
//
// Applied and ignored activities are both acknowledged with 202; a sender
// must never be made to retry a payload we have chosen not to act on.
// Authentication failures are 401 and never retried; transient
// dependency failures are 500 and eligible for sender-side retry.
func InboxCreate(e *Env, w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err)
	}

	actor, outcome, err := e.VerifySignature(r, body)
	switch outcome {
	case Verified:
		// continue
	case Rejected:
		e.Log().Info("rejected inbound request", "path", r.URL.Path, "error", err)
		return httpx.Error(http.StatusUnauthorized, err)
	default:
		return err
	}

	act, err := e.ResolveActivity(r.Context(), body, actor)
	switch {
	case err == nil:
		// continue
	case IsRejection(err):
		e.Log().Info("rejected activity", "actor", actor.URI, "error", err)
		return httpx.Error(http.StatusUnauthorized, err)
	case isDataError(err):
		e.Log().Info("ignoring unresolvable payload", "actor", actor.URI, "error", err)
		w.WriteHeader(http.StatusAccepted)
		return nil
	default:
		return err
	}

	result, err := e.Dispatch(r.Context(), act)
	switch {
	case err == nil:
		e.Log().Debug("processed activity", "type", act.Type, "id", act.ID, "result", result)
		w.WriteHeader(http.StatusAccepted)
		return nil
	case IsRejection(err):
		e.Log().Info("rejected activity", "type", act.Type, "id", act.ID, "actor", actor.URI, "error", err)
		return httpx.Error(http.StatusUnauthorized, err)
	default:
		return err
	}
}
