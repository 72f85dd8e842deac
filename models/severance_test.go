package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSeveranceEvents(t *testing.T) {
	db := setupTestDB(t)

	t.Run("CreateFromFollows snapshots each edge verbatim", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := MockActor(t, tx, "alice", "example.com")
		bob := MockActor(t, tx, "bob", "blocked.example")
		carol := MockActor(t, tx, "carol", "blocked.example")

		MockFollow(t, tx, alice, bob, func(r *Relationship) {
			r.ShowReblogs = false
			r.Notify = true
			r.Languages = Languages{"en", "fr"}
		})
		MockFollow(t, tx, carol, alice)

		follows, err := NewRelationships(tx).FollowsWithDomain("blocked.example")
		require.NoError(err)
		require.Len(follows, 2)

		event, err := NewSeveranceEvents(tx).CreateFromFollows(SeveranceKindDomainBlock, "blocked.example", uuid.NewString(), follows)
		require.NoError(err)
		require.Equal(SeveranceKindDomainBlock, event.Kind)

		got, err := NewSeveranceEvents(tx).Find(event.ID)
		require.NoError(err)
		require.Equal(event.ActionID, got.ActionID)
		require.Len(got.Relationships, 2)

		byActor := map[string]SeveredRelationship{}
		for _, rel := range got.Relationships {
			switch rel.ActorID {
			case alice.ID:
				byActor["alice"] = rel
			case carol.ID:
				byActor["carol"] = rel
			}
		}
		require.Equal(bob.ID, byActor["alice"].TargetID)
		require.False(byActor["alice"].ShowReblogs)
		require.True(byActor["alice"].Notify)
		require.Equal(Languages{"en", "fr"}, byActor["alice"].Languages)

		require.Equal(alice.ID, byActor["carol"].TargetID)
		require.True(byActor["carol"].ShowReblogs)
		require.False(byActor["carol"].Notify)
	})

	t.Run("Record is idempotent per edge", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := MockActor(t, tx, "alice", "example.com")
		bob := MockActor(t, tx, "bob", "blocked.example")
		follow := MockFollow(t, tx, alice, bob)

		events := NewSeveranceEvents(tx)
		event, err := events.CreateFromFollows(SeveranceKindDomainBlock, "blocked.example", uuid.NewString(), []Relationship{*follow})
		require.NoError(err)

		// a retried severance records the same edges again
		require.NoError(events.Record(event, []Relationship{*follow}))

		got, err := events.Find(event.ID)
		require.NoError(err)
		require.Len(got.Relationships, 1)
	})

	t.Run("Destroy removes severed edges", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := MockActor(t, tx, "alice", "example.com")
		bob := MockActor(t, tx, "bob", "blocked.example")
		MockFollow(t, tx, alice, bob)

		rels := NewRelationships(tx)
		follows, err := rels.FollowsWithDomain("blocked.example")
		require.NoError(err)
		require.Len(follows, 1)

		require.NoError(rels.Destroy(follows))

		follows, err = rels.FollowsWithDomain("blocked.example")
		require.NoError(err)
		require.Empty(follows)
	})
}
