package activitypub

import (
	"context"
	"net/url"
	"time"

	"github.com/angusmcleod/mastodon/internal/snowflake"
	"github.com/angusmcleod/mastodon/models"
)

// RemoteActorFetcher fetches an actor's own document and converts it into
// a models.Actor. The document is always fetched from the actor's URI,
// never taken from request data supplied by the peer being verified.
type RemoteActorFetcher struct {
	ctx context.Context
	env *Env
}

func NewRemoteActorFetcher(ctx context.Context, env *Env) *RemoteActorFetcher {
	return &RemoteActorFetcher{
		ctx: ctx,
		env: env,
	}
}

func (f *RemoteActorFetcher) Fetch(uri string) (*models.Actor, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}

	obj, err := f.env.fetcher().Fetch(f.ctx, uri)
	if err != nil {
		return nil, err
	}

	published := timeFromAnyOrZero(obj["published"])
	if published.IsZero() {
		published = time.Now()
	}

	return &models.Actor{
		ID:           snowflake.TimeToID(published),
		Type:         models.ActorType(stringFromAny(obj["type"])),
		Name:         stringFromAny(obj["preferredUsername"]),
		Domain:       u.Host,
		URI:          stringFromAny(obj["id"]),
		DisplayName:  stringFromAny(obj["name"]),
		Locked:       boolFromAny(obj["manuallyApprovesFollowers"]),
		Note:         stringFromAny(obj["summary"]),
		Avatar:       stringFromAny(mapFromAny(obj["icon"])["url"]),
		Header:       stringFromAny(mapFromAny(obj["image"])["url"]),
		LastStatusAt: time.Now(),
		PublicKey:    []byte(stringFromAny(mapFromAny(obj["publicKey"])["publicKeyPem"])),
		Attributes:   attachmentsToActorAttributes(anyToSlice(obj["attachment"])),
	}, nil
}

func attachmentsToActorAttributes(attachments []any) []*models.ActorAttribute {
	var attrs []*models.ActorAttribute
	for _, attachment := range attachments {
		obj := mapFromAny(attachment)
		if obj["type"] != "PropertyValue" {
			continue
		}
		attrs = append(attrs, &models.ActorAttribute{
			Name:  stringFromAny(obj["name"]),
			Value: stringFromAny(obj["value"]),
		})
	}
	return attrs
}
