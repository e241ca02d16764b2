package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ClickHouse/clickhouse-go/v2/lib/proto"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/config"
	"hermannm.dev/wrap"
)

// Implements db.SchemaSource and db.ReportStore for ClickHouse.
type ClickHouseDB struct {
	conn       driver.Conn
	maxRecords int
}

func NewClickHouseDB(
	ctx context.Context,
	config config.ClickHouse,
	maxRecords int,
) (ClickHouseDB, error) {
	// Options docs: https://clickhouse.com/docs/en/integrations/go#connection-settings
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Address},
		Auth: clickhouse.Auth{
			Database: config.DatabaseName,
			Username: config.Username,
			Password: config.Password,
		},
		Debug: config.Debug,
		Debugf: func(format string, v ...any) {
			log.Debug(fmt.Sprintf(format, v...), slog.String("db", "ClickHouse"))
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return ClickHouseDB{}, wrap.Error(err, "failed to connect to ClickHouse")
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return ClickHouseDB{}, wrap.Error(err, "failed to ping ClickHouse connection")
	}

	log.Info("database connection established", slog.String("db", "ClickHouse"))
	return ClickHouseDB{conn: conn, maxRecords: maxRecords}, nil
}

func (clickhouse ClickHouseDB) Close() error {
	return clickhouse.conn.Close()
}

// See https://github.com/ClickHouse/ClickHouse/blob/bd387f6d2c30f67f2822244c0648f2169adab4d3/src/Common/ErrorCodes.cpp#L66
const clickhouseUnknownTableErrorCode = 60

func isUnknownTableError(err error) bool {
	var clickHouseErr *proto.Exception
	return errors.As(err, &clickHouseErr) && clickHouseErr.Code == clickhouseUnknownTableErrorCode
}
