package elasticsearch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/config"
	"hermannm.dev/pivot/db"
	"hermannm.dev/wrap"
)

// Implements db.SchemaSource for Elasticsearch, with one data source per index.
type ElasticsearchDB struct {
	client     *elasticsearch.TypedClient
	maxRecords int
}

func NewElasticsearchDB(config config.Elasticsearch, maxRecords int) (ElasticsearchDB, error) {
	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses:         []string{config.Address},
		EnableDebugLogger: config.Debug,
	})
	if err != nil {
		return ElasticsearchDB{}, wrap.Error(err, "failed to connect to Elasticsearch")
	}

	log.Info("database client created", slog.String("db", "Elasticsearch"))
	return ElasticsearchDB{client: client, maxRecords: maxRecords}, nil
}

// The typed client holds no connections that need closing.
func (elastic ElasticsearchDB) Close() error {
	return nil
}

var ErrJoinNotSupported = errors.New("joins across indices are not supported by Elasticsearch")

func (elastic ElasticsearchDB) FetchJoin(ctx context.Context, query db.JoinQuery) (db.Dataset, error) {
	return db.Dataset{}, ErrJoinNotSupported
}
