package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"
)

type Config struct {
	BaseConfig
	ClickHouse    ClickHouse
	Elasticsearch Elasticsearch
	Postgres      Postgres
}

type BaseConfig struct {
	IsProduction  bool       `env:"PRODUCTION" envDefault:"false"`
	LogLevel      slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	Backend       Backend    `env:"BACKEND" envDefault:"file"`
	DataDir       string     `env:"DATA_DIR" envDefault:"data"`
	ReportsDBPath string     `env:"REPORTS_DB_PATH" envDefault:"reports.db"`
	MaxRecords    int        `env:"MAX_RECORDS" envDefault:"50000"`
}

type ClickHouse struct {
	Address      string `env:"CLICKHOUSE_ADDRESS"`
	DatabaseName string `env:"CLICKHOUSE_DB_NAME"`
	Username     string `env:"CLICKHOUSE_USERNAME"`
	Password     string `env:"CLICKHOUSE_PASSWORD"`
	Debug        bool   `env:"CLICKHOUSE_DEBUG_ENABLED" envDefault:"false"`
}

type Elasticsearch struct {
	Address string `env:"ELASTICSEARCH_ADDRESS"`
	Debug   bool   `env:"ELASTICSEARCH_DEBUG_ENABLED" envDefault:"false"`
}

type Postgres struct {
	URL string `env:"POSTGRES_URL"`
}

// Backend is the database that records are fetched from.
type Backend int8

const (
	BackendFile Backend = iota + 1
	BackendClickHouse
	BackendElasticsearch
	BackendPostgres
)

var backendMap = enumnames.NewMap(map[Backend]string{
	BackendFile:          "file",
	BackendClickHouse:    "clickhouse",
	BackendElasticsearch: "elasticsearch",
	BackendPostgres:      "postgres",
})

func (backend Backend) IsValid() bool {
	return backendMap.ContainsKey(backend)
}

func (backend Backend) String() string {
	return backendMap.GetNameOrFallback(backend, "INVALID_BACKEND")
}

func (backend Backend) MarshalText() ([]byte, error) {
	name, ok := backendMap.GetName(backend)
	if !ok {
		return nil, fmt.Errorf("invalid backend %d", backend)
	}
	return []byte(name), nil
}

func (backend *Backend) UnmarshalText(text []byte) error {
	quoted, err := json.Marshal(string(text))
	if err != nil {
		return err
	}
	if err := backendMap.UnmarshalFromNameJSON(quoted, backend); err != nil {
		return errors.New("must be one of: file, clickhouse, elasticsearch, postgres")
	}
	return nil
}

// Reads config from environment variables, loading a .env file first if there is one. Only the
// section of the selected backend is read.
func ReadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, wrap.Error(err, "failed to load .env file")
	}

	parseOptions := env.Options{RequiredIfNoDef: true}

	var config Config

	if err := env.ParseWithOptions(&config.BaseConfig, parseOptions); err != nil {
		return Config{}, err
	}

	var err error
	switch config.Backend {
	case BackendFile:
	case BackendClickHouse:
		err = env.ParseWithOptions(&config.ClickHouse, parseOptions)
	case BackendElasticsearch:
		err = env.ParseWithOptions(&config.Elasticsearch, parseOptions)
	case BackendPostgres:
		err = env.ParseWithOptions(&config.Postgres, parseOptions)
	}
	if err != nil {
		return Config{}, wrap.Errorf(err, "invalid config for backend '%s'", config.Backend)
	}

	if config.MaxRecords <= 0 {
		return Config{}, fmt.Errorf("MAX_RECORDS must be positive, got %d", config.MaxRecords)
	}

	return config, nil
}
