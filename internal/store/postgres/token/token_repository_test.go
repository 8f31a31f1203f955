//go:build !unit_test
// +build !unit_test

package token_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/odpf/salt/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/odpf/hpcjob/config"
	"github.com/odpf/hpcjob/internal/errors"
	"github.com/odpf/hpcjob/internal/store/postgres"
	"github.com/odpf/hpcjob/internal/store/postgres/token"
)

func TestPostgresTokenRepository(t *testing.T) {
	dbURL, ok := os.LookupEnv("TEST_HPCJOB_DB_URL")
	if !ok {
		t.Skip("TEST_HPCJOB_DB_URL is not set")
	}
	ctx := context.Background()

	m, err := postgres.NewMigration(log.NewNoop(), "integration_test", dbURL)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	db, err := postgres.Connect(config.DBConfig{DSN: dbURL, MaxIdleConnection: 1, MaxOpenConnection: 1}, os.Stdout)
	require.NoError(t, err)
	db.Exec("TRUNCATE TABLE oauth_token")

	repo := token.NewTokenRepository(db)

	t.Run("returns not found for an unknown owner", func(t *testing.T) {
		_, err := repo.Get(ctx, "nobody")

		assert.True(t, errors.IsErrorType(err, errors.ErrNotFound))
	})
	t.Run("replaces the token of an owner", func(t *testing.T) {
		expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		require.NoError(t, repo.Save(ctx, "user", &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}))
		require.NoError(t, repo.Save(ctx, "user", &oauth2.Token{AccessToken: "a2", RefreshToken: "r2", Expiry: expiry}))

		stored, err := repo.Get(ctx, "user")

		require.NoError(t, err)
		assert.Equal(t, "a2", stored.AccessToken)
		assert.Equal(t, "r2", stored.RefreshToken)
		assert.True(t, expiry.Equal(stored.Expiry))
	})
}
