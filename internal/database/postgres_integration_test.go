//go:build integration

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

func TestPostgresDrivers(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("stackit"),
		tcpostgres.WithUsername("stackit"),
		tcpostgres.WithPassword("stackit"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// "" is native pgx, "pgx" goes through pgx/v5/stdlib, "postgres" through lib/pq.
	for _, driver := range []string{"", "pgx", "postgres"} {
		t.Run("driver="+driver, func(t *testing.T) {
			db, err := Open(config.DatabaseConfig{
				Driver:         "postgres",
				PostgresDriver: driver,
				URL:            dsn,
				MaxOpenConns:   5,
				MaxIdleConns:   1,
				LogLevel:       "silent",
			}, zap.NewNop().Sugar())
			require.NoError(t, err)
			defer Close(db)

			require.NoError(t, Migrate(db))
			require.NoError(t, db.Exec("DELETE FROM votes").Error)

			require.NoError(t, db.Create(&models.Vote{UserID: 1, TargetID: 1, TargetKind: "answer", Direction: "up"}).Error)
			err = db.Create(&models.Vote{UserID: 1, TargetID: 1, TargetKind: "answer", Direction: "down"}).Error
			assert.True(t, IsUniqueViolation(err), "got %v", err)

			assert.Equal(t, "up", Health(ctx, db)["status"])
		})
	}
}
