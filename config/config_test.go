package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("BACKEND", "file")

	config, err := ReadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendFile, config.Backend)
	assert.Equal(t, slog.LevelInfo, config.LogLevel)
	assert.Equal(t, 50000, config.MaxRecords)
	assert.Equal(t, "reports.db", config.ReportsDBPath)
	assert.False(t, config.IsProduction)
}

func TestBackendSections(t *testing.T) {
	t.Run("missing required variable", func(t *testing.T) {
		t.Setenv("BACKEND", "postgres")
		t.Setenv("POSTGRES_URL", "")
		require.NoError(t, os.Unsetenv("POSTGRES_URL"))

		_, err := ReadFromEnv()
		assert.ErrorContains(t, err, "postgres")
	})

	t.Run("postgres", func(t *testing.T) {
		t.Setenv("BACKEND", "postgres")
		t.Setenv("POSTGRES_URL", "postgres://localhost:5432/reports")
		t.Setenv("LOG_LEVEL", "DEBUG")

		config, err := ReadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, BackendPostgres, config.Backend)
		assert.Equal(t, "postgres://localhost:5432/reports", config.Postgres.URL)
		assert.Equal(t, slog.LevelDebug, config.LogLevel)
	})

	t.Run("elasticsearch", func(t *testing.T) {
		t.Setenv("BACKEND", "elasticsearch")
		t.Setenv("ELASTICSEARCH_ADDRESS", "http://localhost:9200")

		config, err := ReadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9200", config.Elasticsearch.Address)
		assert.False(t, config.Elasticsearch.Debug)
	})
}

func TestInvalidValues(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("BACKEND", "mysql")

		_, err := ReadFromEnv()
		assert.Error(t, err)
	})

	t.Run("non-positive max records", func(t *testing.T) {
		t.Setenv("BACKEND", "file")
		t.Setenv("MAX_RECORDS", "0")

		_, err := ReadFromEnv()
		assert.ErrorContains(t, err, "MAX_RECORDS")
	})
}

func TestBackendText(t *testing.T) {
	var backend Backend
	require.NoError(t, backend.UnmarshalText([]byte("clickhouse")))
	assert.Equal(t, BackendClickHouse, backend)

	text, err := backend.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", string(text))

	assert.Error(t, backend.UnmarshalText([]byte("oracle")))
}
