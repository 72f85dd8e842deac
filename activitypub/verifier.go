package activitypub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/angusmcleod/mastodon/internal/httpsig"
	"github.com/angusmcleod/mastodon/models"
	"gorm.io/gorm"
)

// Outcome is the result of verifying an inbound signed request.
type Outcome int

const (
	// Verified means the signature checked out; the returned actor is
	// the only trusted identity for the rest of processing.
	Verified Outcome = iota
	// Rejected means the request must not be processed and must not be
	// retried by the sender.
	Rejected
	// TransientFailure means a dependency needed to verify the request
	// was unavailable; the sender may retry.
	TransientFailure
)

// VerifySignature authenticates an inbound request against the signing
// actor's public key. The body must be the raw request body; the Digest
// header is checked against it before the signature is trusted.
//
// If verification with the locally cached key fails, the actor's own
// document is refetched once to pick up a rotated key, and verification
// is retried exactly once.
func (e *Env) VerifySignature(r *http.Request, body []byte) (*models.Actor, Outcome, error) {
	for _, header := range []string{"Date", "Digest", "Signature"} {
		if r.Header.Get(header) == "" {
			return nil, Rejected, fmt.Errorf("missing %s header", header)
		}
	}
	if r.Host == "" {
		return nil, Rejected, errors.New("missing Host header")
	}

	if err := httpsig.CheckDigest(r.Header.Get("Digest"), body); err != nil {
		return nil, Rejected, err
	}

	date, err := http.ParseTime(r.Header.Get("Date"))
	if err != nil {
		return nil, Rejected, fmt.Errorf("malformed Date header: %w", err)
	}
	if skew := time.Since(date); skew > e.clockSkew() || skew < -e.clockSkew() {
		return nil, Rejected, fmt.Errorf("Date header outside clock skew window: %s", date)
	}

	sig, err := httpsig.ParseSignature(r.Header.Get("Signature"))
	if err != nil {
		return nil, Rejected, err
	}

	signingString, err := httpsig.SigningString(r, sig.Headers)
	if err != nil {
		return nil, Rejected, err
	}

	actorURI := trimKeyId(sig.KeyID)
	actor, err := models.NewActors(e.DB).FindByURI(actorURI)
	switch {
	case err == nil:
		return e.verifyKnownActor(r.Context(), actor, sig, signingString)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return e.verifyUnknownActor(r.Context(), actorURI, sig, signingString)
	default:
		return nil, TransientFailure, err
	}
}

// verifyKnownActor verifies against the cached key, refetching the
// actor's document once if the cached key no longer validates.
func (e *Env) verifyKnownActor(ctx context.Context, actor *models.Actor, sig *httpsig.Signature, signingString string) (*models.Actor, Outcome, error) {
	if err := verifyWithKey(actor.PublicKey, sig, signingString); err == nil {
		return actor, Verified, nil
	}

	// the key may have rotated; refetch the actor's own document, once
	fetched, err := NewRemoteActorFetcher(ctx, e).Fetch(actor.URI)
	if err != nil {
		if permanentFetchError(err) {
			return nil, Rejected, fmt.Errorf("signature invalid and key document unavailable: %w", err)
		}
		return nil, TransientFailure, fmt.Errorf("refetching key for %s: %w", actor.URI, err)
	}

	if err := verifyWithKey(fetched.PublicKey, sig, signingString); err != nil {
		return nil, Rejected, fmt.Errorf("signature invalid after key refetch: %w", err)
	}
	if err := models.NewActors(e.DB).SetPublicKey(actor, fetched.PublicKey); err != nil {
		return nil, TransientFailure, err
	}
	e.Log().Info("rotated key for actor", "uri", actor.URI)
	return actor, Verified, nil
}

// verifyUnknownActor fetches and stores the signing actor on first
// contact, then verifies once.
func (e *Env) verifyUnknownActor(ctx context.Context, actorURI string, sig *httpsig.Signature, signingString string) (*models.Actor, Outcome, error) {
	fetcher := NewRemoteActorFetcher(ctx, e)
	actor, err := models.NewActors(e.DB).FindOrCreate(actorURI, fetcher.Fetch)
	if err != nil {
		if permanentFetchError(err) {
			return nil, Rejected, fmt.Errorf("signing actor unavailable: %w", err)
		}
		return nil, TransientFailure, err
	}
	if err := verifyWithKey(actor.PublicKey, sig, signingString); err != nil {
		return nil, Rejected, err
	}
	return actor, Verified, nil
}

func verifyWithKey(pemKey []byte, sig *httpsig.Signature, signingString string) error {
	pubKey, err := pemToPublicKey(pemKey)
	if err != nil {
		return err
	}
	return httpsig.Verify(pubKey, sig.Algorithm, signingString, sig.Signature)
}
