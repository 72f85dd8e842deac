package activitypub

import (
	"context"
	"crypto"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/angusmcleod/mastodon/internal/httpsig"
	"github.com/angusmcleod/mastodon/internal/webfinger"
	"github.com/angusmcleod/mastodon/models"
	"github.com/carlmjohnson/requests"
	"github.com/go-json-experiment/json"
)

// Client is an ActivityPub client which can be used to fetch remote
// ActivityPub resources.
type Client struct {
	keyID      string
	privateKey crypto.PrivateKey
}

// Signer represents an object that can sign HTTP requests.
type Signer interface {
	PublicKeyID() string
	PrivKey() (*rsa.PrivateKey, error)
}

// NewClient returns a new ActivityPub client.
func NewClient(signAs Signer) (*Client, error) {
	privateKey, err := signAs.PrivKey()
	if err != nil {
		return nil, err
	}
	return &Client{
		keyID:      signAs.PublicKeyID(),
		privateKey: privateKey,
	}, nil
}

// Fetch fetches the ActivityPub resource at the given URL and decodes it
// into the given object.
func (c *Client) Fetch(ctx context.Context, uri string, obj interface{}) error {
	return requests.URL(uri).
		Accept(`application/ld+json; profile="https://www.w3.org/ns/activitystreams"`).
		Transport(requests.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			if err := httpsig.Sign(req, c.keyID, c.privateKey, nil); err != nil {
				return nil, fmt.Errorf("failed to sign request: %w", err)
			}
			return http.DefaultTransport.RoundTrip(req)
		})).
		CheckContentType(
			"application/ld+json",
			"application/activity+json",
			"application/json",
			"application/octet-stream", // sigh
		).
		CheckStatus(http.StatusOK).
		ToJSON(obj).
		Fetch(ctx)
}

// ErrGone marks a remote resource that is permanently unavailable:
// deleted, access restricted, or never there.
var ErrGone = errors.New("remote resource gone")

// permanentFetchError reports whether the fetch failed in a way that a
// retry cannot fix; the resource is gone or we are not allowed to see it.
func permanentFetchError(err error) bool {
	if errors.Is(err, ErrGone) {
		return true
	}
	return requests.HasStatusErr(err,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusGone,
	)
}

// signedFetcher is the default ObjectFetcher. It fetches documents over a
// connection signed as the instance admin, through the cache when one is
// configured.
type signedFetcher struct {
	env *Env
}

func (f *signedFetcher) Fetch(ctx context.Context, uri string) (map[string]any, error) {
	if cached, err := f.env.Cache.Get(ctx, uri); err == nil {
		var obj map[string]any
		if err := json.Unmarshal([]byte(cached), &obj); err == nil {
			return obj, nil
		}
	}

	signAs, err := models.NewInstances(f.env.DB).AdminAccount()
	if err != nil {
		return nil, fmt.Errorf("resolving signing account: %w", err)
	}
	c, err := NewClient(signAs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.env.fetchTimeout())
	defer cancel()
	var obj map[string]any
	if err := c.Fetch(ctx, uri, &obj); err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(obj); err == nil {
		if err := f.env.Cache.Set(ctx, uri, string(raw), 5*time.Minute); err != nil {
			f.env.Log().Warn("caching fetched object", "uri", uri, "error", err)
		}
	}
	return obj, nil
}

// webfingerResolver is the default HandleResolver, backed by the remote
// domain's webfinger endpoint.
type webfingerResolver struct{}

func (webfingerResolver) ResolveHandle(ctx context.Context, username, domain string) (string, error) {
	acct := &webfinger.Acct{User: username, Host: domain}
	wf, err := acct.Fetch(ctx)
	if err != nil {
		return "", err
	}
	return wf.ActivityPub()
}
