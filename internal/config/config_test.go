package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(testLogger())
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Neo4j.IsConfigured())
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9001")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("NEO4J_URI", "bolt://localhost:7687")

	cfg, err := NewConfig(testLogger())
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.ServerPort)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Neo4j.IsConfigured())
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ai4kg",
		Password: "pw",
		Database: "graphs",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://ai4kg:pw@localhost:5432/graphs?sslmode=disable", d.DSN())
}
