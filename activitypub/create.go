package activitypub

import (
	"context"
	"time"

	"github.com/angusmcleod/mastodon/internal/snowflake"
	"github.com/angusmcleod/mastodon/models"
)

// createStatus materializes a Create Note or Create Question as a local
// Status. A status already known by URI is left as is.
func createStatus(ctx context.Context, e *Env, act *Activity) error {
	obj := act.Object
	if obj == nil {
		return dataErrorf("create %s has no materialized object", act.ObjectURI)
	}
	uri := stringFromAny(obj["id"])
	if uri == "" {
		return dataErrorf("create object has no id")
	}
	if attributedTo := stringFromAny(obj["attributedTo"]); attributedTo != act.Actor.URI {
		return rejectionf("object attributed to %q but signed by %q", attributedTo, act.Actor.URI)
	}

	_, err := models.NewStatuses(e.DB).FindOrCreate(uri, func(string) (*models.Status, error) {
		return objToStatus(act.Actor, obj)
	})
	return err
}

func objToStatus(actor *models.Actor, obj map[string]any) (*models.Status, error) {
	published := timeFromAnyOrZero(obj["published"])
	if published.IsZero() {
		published = time.Now()
	}

	status := &models.Status{
		ID:          snowflake.TimeToID(published),
		ActorID:     actor.ID,
		Actor:       actor,
		Sensitive:   boolFromAny(obj["sensitive"]),
		SpoilerText: stringFromAny(obj["summary"]),
		Visibility:  objVisibility(obj),
		Language:    stringFromAny(obj["language"]),
		URI:         stringFromAny(obj["id"]),
		Note:        stringFromAny(obj["content"]),
	}

	_, oneOf := obj["oneOf"]
	_, anyOf := obj["anyOf"]
	if oneOf || anyOf {
		poll, err := objToStatusPoll(obj)
		if err != nil {
			return nil, err
		}
		poll.StatusID = status.ID
		status.Poll = poll
	}
	return status, nil
}

func objVisibility(obj map[string]any) models.Visibility {
	followers := stringFromAny(obj["attributedTo"]) + "/followers"
	for _, recipient := range anyToSlice(obj["to"]) {
		switch recipient {
		case "https://www.w3.org/ns/activitystreams#Public":
			return "public"
		case followers:
			return "limited"
		}
	}
	for _, recipient := range anyToSlice(obj["cc"]) {
		switch recipient {
		case "https://www.w3.org/ns/activitystreams#Public":
			return "unlisted"
		case followers:
			return "limited"
		}
	}
	return "direct"
}

// objToStatusPoll builds a poll from a Question object. Option order is
// taken from the payload and is fixed for the life of the poll.
func objToStatusPoll(obj map[string]any) (*models.StatusPoll, error) {
	poll := &models.StatusPoll{
		ExpiresAt: timeFromAnyOrZero(obj["endTime"]),
	}
	options := anyToSlice(obj["oneOf"])
	if anyOf := anyToSlice(obj["anyOf"]); len(anyOf) > 0 {
		options = anyOf
		poll.Multiple = true
	}
	for _, option := range options {
		m := mapFromAny(option)
		if stringFromAny(m["type"]) != "Note" {
			return nil, dataErrorf("unknown poll option type %q", m["type"])
		}
		poll.Options = append(poll.Options, models.StatusPollOption{
			Title: stringFromAny(m["name"]),
			Count: intFromAny(mapFromAny(m["replies"])["totalItems"]),
		})
	}
	return poll, nil
}
