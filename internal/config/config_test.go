package config

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "secret")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "be-commercial-intelligence", cfg.Service.Name)
		assert.Equal(t, 8086, cfg.Server.Port)
		assert.Equal(t, 9086, cfg.Server.GRPCPort)
		assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, int32(10), cfg.Database.MaxConns)
		assert.Equal(t, 4, cfg.Patterns.Concurrency)
		assert.False(t, cfg.NATS.Enabled)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "secret")
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("DB_HOST", "db.internal")
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("PATTERNS_CONCURRENCY", "8")
		t.Setenv("NATS_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 8, cfg.Patterns.Concurrency)
		assert.True(t, cfg.NATS.Enabled)
		assert.Equal(t, "postgres://postgres:pw@db.internal:5432/commercial_intelligence?sslmode=disable", cfg.Database.DSN())
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "secret")
		t.Setenv("PATTERNS_CONCURRENCY", "0")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestDSNEscapesCredentials(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "svc user",
		Password: "p@ss/w#rd?:x",
		Database: "commercial_intelligence",
		SSLMode:  "require",
	}

	parsed, err := pgconn.ParseConfig(d.DSN())
	require.NoError(t, err)

	assert.Equal(t, "db.internal", parsed.Host)
	assert.Equal(t, uint16(5433), parsed.Port)
	assert.Equal(t, "svc user", parsed.User)
	assert.Equal(t, "p@ss/w#rd?:x", parsed.Password)
	assert.Equal(t, "commercial_intelligence", parsed.Database)
}
