// Package activitypub implements the inbound half of federation: it
// authenticates signed requests from remote peers, resolves their payload
// into a typed Activity and dispatches it to per-type handlers.
package activitypub

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angusmcleod/mastodon/internal/cache"
	"github.com/angusmcleod/mastodon/models"
)

// Env is the environment for inbound federation handlers.
type Env struct {
	*models.Env

	// Cache fronts outbound object fetches. Optional, a nil cache
	// always misses.
	Cache *cache.Cache

	// ClockSkew is how far either side of now the Date header of a
	// signed request may fall. Zero means one hour.
	ClockSkew time.Duration

	// FetchTimeout bounds outbound fetches. Zero means ten seconds.
	FetchTimeout time.Duration

	// Fetcher retrieves remote documents by URI. If nil, a signed
	// client authenticated as the instance admin is used.
	Fetcher ObjectFetcher

	// Finger resolves a user@domain handle to the canonical actor URI
	// asserted by that domain's directory. If nil, webfinger is used.
	Finger HandleResolver

	renames keyedMutex
}

// ObjectFetcher retrieves a remote document by its URI.
type ObjectFetcher interface {
	Fetch(ctx context.Context, uri string) (map[string]any, error)
}

// HandleResolver maps a username and domain to the canonical actor URI
// the domain's own directory asserts for that handle.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, username, domain string) (string, error)
}

func (e *Env) clockSkew() time.Duration {
	if e.ClockSkew == 0 {
		return time.Hour
	}
	return e.ClockSkew
}

func (e *Env) fetchTimeout() time.Duration {
	if e.FetchTimeout == 0 {
		return 10 * time.Second
	}
	return e.FetchTimeout
}

func (e *Env) fetcher() ObjectFetcher {
	if e.Fetcher != nil {
		return e.Fetcher
	}
	return &signedFetcher{env: e}
}

func (e *Env) finger() HandleResolver {
	if e.Finger != nil {
		return e.Finger
	}
	return webfingerResolver{}
}

// keyedMutex provides advisory mutual exclusion per string key. The zero
// value is ready to use.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func pemToPublicKey(key []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(key)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("pemToPublicKey: invalid pem block")
	}
	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("pemToPublicKey: parsepkixpublickey: %w", err)
	}
	return publicKey, nil
}

// trimKeyId removes the #main-key suffix from the key id.
func trimKeyId(id string) string {
	if i := strings.Index(id, "#"); i != -1 {
		return id[:i]
	}
	return id
}

func boolFromAny(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return s
}

func mapFromAny(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// uriFromAny extracts an object reference, which senders express as a
// bare string, an embedded object with an id, or an array of either.
func uriFromAny(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any:
		return stringFromAny(v["id"])
	case []any:
		if len(v) > 0 {
			return uriFromAny(v[0])
		}
	}
	return ""
}

func timeFromAnyOrZero(v any) time.Time {
	switch v := v.(type) {
	case string:
		t, _ := time.Parse(time.RFC3339, v)
		return t
	case time.Time:
		return v
	default:
		return time.Time{}
	}
}

func timeFromAny(v any) (time.Time, error) {
	switch v := v.(type) {
	case string:
		return time.Parse(time.RFC3339, v)
	case time.Time:
		return v, nil
	default:
		return time.Time{}, errors.New("timeFromAny: invalid type")
	}
}

func intFromAny(v any) int {
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		// shakes fist at json number type
		return int(v)
	}
	return 0
}

func anyToSlice(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	default:
		return nil
	}
}
