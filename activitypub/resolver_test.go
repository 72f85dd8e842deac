package activitypub

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/angusmcleod/mastodon/models"
	"github.com/stretchr/testify/require"
)

func TestResolveActivity(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	t.Run("body actor must match signer", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		signer, _ := mockRemoteActor(t, tx, "alice", "remote.example")
		env := newTestEnv(tx, &fakeFetcher{}, &fakeFinger{})

		body := []byte(`{"type":"Create","actor":"https://remote.example/users/mallory","object":{"type":"Note"}}`)
		_, err := env.ResolveActivity(ctx, body, signer)
		require.Error(err)
		require.True(IsRejection(err))
	})

	t.Run("object-form body actor must match signer", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		signer, _ := mockRemoteActor(t, tx, "alice", "remote.example")
		env := newTestEnv(tx, &fakeFetcher{}, &fakeFinger{})

		body := []byte(`{"type":"Create","actor":{"id":"https://remote.example/users/mallory","type":"Person"},"object":{"type":"Note"}}`)
		_, err := env.ResolveActivity(ctx, body, signer)
		require.Error(err)
		require.True(IsRejection(err))

		body = []byte(`{"type":"Create","actor":["https://remote.example/users/mallory"],"object":{"type":"Note"}}`)
		_, err = env.ResolveActivity(ctx, body, signer)
		require.Error(err)
		require.True(IsRejection(err))

		// object form naming the signer still resolves
		body = []byte(fmt.Sprintf(`{"type":"Create","actor":{"id":%q},"object":{"type":"Note"}}`, signer.URI))
		_, err = env.ResolveActivity(ctx, body, signer)
		require.NoError(err)
	})

	t.Run("embedded object bound as is", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		signer, _ := mockRemoteActor(t, tx, "alice", "remote.example")
		env := newTestEnv(tx, &fakeFetcher{}, &fakeFinger{})

		body := []byte(fmt.Sprintf(`{"type":"Create","actor":%q,"object":{"id":"https://remote.example/statuses/1","type":"Note","content":"hi"}}`, signer.URI))
		act, err := env.ResolveActivity(ctx, body, signer)
		require.NoError(err)
		require.Equal("Create", act.Type)
		require.Equal("Note", act.ObjectType())
		require.Equal("https://remote.example/statuses/1", act.ObjectURI)
		require.Equal(signer.URI, act.Actor.URI)
	})

	t.Run("bare reference fetched through collaborator", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		signer, _ := mockRemoteActor(t, tx, "alice", "remote.example")
		uri := "https://remote.example/statuses/2"
		fetcher := &fakeFetcher{objects: map[string]map[string]any{
			uri: {"id": uri, "type": "Note", "content": "fetched"},
		}}
		env := newTestEnv(tx, fetcher, &fakeFinger{})

		body := []byte(fmt.Sprintf(`{"type":"Create","actor":%q,"object":%q}`, signer.URI, uri))
		act, err := env.ResolveActivity(ctx, body, signer)
		require.NoError(err)
		require.Equal("Note", act.ObjectType())
		require.Equal("fetched", stringFromAny(act.Object["content"]))
		require.Equal(1, fetcher.calls[uri])
	})

	t.Run("unfetchable reference degrades to unmaterialized", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		signer, _ := mockRemoteActor(t, tx, "alice", "remote.example")
		env := newTestEnv(tx, &fakeFetcher{}, &fakeFinger{})

		uri := "https://remote.example/statuses/deleted"
		body := []byte(fmt.Sprintf(`{"type":"Create","actor":%q,"object":%q}`, signer.URI, uri))
		act, err := env.ResolveActivity(ctx, body, signer)
		require.NoError(err)
		require.Nil(act.Object)
		require.Equal(uri, act.ObjectURI)

		// and the activity then dispatches to the ignore path
		result, err := env.Dispatch(ctx, act)
		require.NoError(err)
		require.Equal(Ignored, result)
	})

	t.Run("transient fetch failure surfaces for retry", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		signer, _ := mockRemoteActor(t, tx, "alice", "remote.example")
		uri := "https://remote.example/statuses/3"
		fetcher := &fakeFetcher{errs: map[string]error{uri: errors.New("dial tcp: i/o timeout")}}
		env := newTestEnv(tx, fetcher, &fakeFinger{})

		body := []byte(fmt.Sprintf(`{"type":"Create","actor":%q,"object":%q}`, signer.URI, uri))
		_, err := env.ResolveActivity(ctx, body, signer)
		require.Error(err)
		require.False(IsRejection(err))
		require.False(isDataError(err))
	})

	t.Run("unknown activity type is acknowledged and ignored", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		signer, _ := mockRemoteActor(t, tx, "alice", "remote.example")
		env := newTestEnv(tx, &fakeFetcher{}, &fakeFinger{})

		body := []byte(fmt.Sprintf(`{"type":"Listen","actor":%q,"object":{"type":"Audio"}}`, signer.URI))
		act, err := env.ResolveActivity(ctx, body, signer)
		require.NoError(err)

		result, err := env.Dispatch(ctx, act)
		require.NoError(err)
		require.Equal(Ignored, result)
	})

	t.Run("malformed body is a data error", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		signer := &models.Actor{URI: "https://remote.example/users/alice"}
		env := newTestEnv(tx, &fakeFetcher{}, &fakeFinger{})

		_, err := env.ResolveActivity(ctx, []byte(`{"type":`), signer)
		require.Error(err)
		require.True(isDataError(err))

		_, err = env.ResolveActivity(ctx, []byte(`{"actor":"x"}`), signer)
		require.Error(err)
		require.True(isDataError(err))
	})
}
