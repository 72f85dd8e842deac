package activitypub

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"testing"

	"github.com/angusmcleod/mastodon/internal/crypto"
	"github.com/angusmcleod/mastodon/internal/snowflake"
	"github.com/angusmcleod/mastodon/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeFetcher serves canned documents by URI.
type fakeFetcher struct {
	objects map[string]map[string]any
	// errs overrides objects; a fetch for a URI in errs fails with it
	errs map[string]error
	// calls counts fetches per URI
	calls map[string]int
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) (map[string]any, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[uri]++
	if err, ok := f.errs[uri]; ok {
		return nil, err
	}
	obj, ok := f.objects[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGone, uri)
	}
	return obj, nil
}

// fakeFinger resolves handles from a canned handle -> URI table.
type fakeFinger struct {
	handles map[string]string
	err     error
}

func (f *fakeFinger) ResolveHandle(ctx context.Context, username, domain string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	uri, ok := f.handles[username+"@"+domain]
	if !ok {
		return "", fmt.Errorf("%w: %s@%s", ErrGone, username, domain)
	}
	return uri, nil
}

func newTestEnv(tx *gorm.DB, fetcher *fakeFetcher, finger *fakeFinger) *Env {
	return &Env{
		Env: &models.Env{
			DB:     tx,
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
		Fetcher: fetcher,
		Finger:  finger,
	}
}

// mockRemoteActor creates a remote actor in the database and returns it
// with the private half of its keypair.
func mockRemoteActor(t *testing.T, tx *gorm.DB, name, domain string) (*models.Actor, *rsa.PrivateKey) {
	t.Helper()
	require := require.New(t)

	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)
	_, priv, err := crypto.ParseRSAPrivateKey(kp.PrivateKey)
	require.NoError(err)

	actor := &models.Actor{
		ID:          snowflake.Now(),
		URI:         fmt.Sprintf("https://%s/users/%s", domain, name),
		Name:        name,
		Domain:      domain,
		Type:        "Person",
		DisplayName: name,
		PublicKey:   kp.PublicKey,
	}
	require.NoError(tx.Create(actor).Error)
	return actor, priv
}

func mockRemoteStatus(t *testing.T, tx *gorm.DB, actor *models.Actor, note string) *models.Status {
	t.Helper()
	require := require.New(t)

	id := snowflake.Now()
	status := &models.Status{
		ID:         id,
		URI:        fmt.Sprintf("https://%s/statuses/%d", actor.Domain, id),
		ActorID:    actor.ID,
		Visibility: "public",
		Note:       note,
	}
	require.NoError(tx.Create(status).Error)
	return status
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	require.NoError(err)

	err = db.AutoMigrate(models.AllTables()...)
	require.NoError(err)

	err = db.Exec("PRAGMA foreign_keys = ON").Error
	require.NoError(err)

	return db
}
