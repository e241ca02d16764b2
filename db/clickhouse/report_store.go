package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"hermannm.dev/pivot/db"
	"hermannm.dev/pivot/report"
	"hermannm.dev/wrap"
)

const (
	savedReportsTable        = "saved_reports"
	savedReportIDColumn      = "id"
	savedReportNameColumn    = "name"
	savedReportDataSource    = "data_source"
	savedReportSpecColumn    = "report"
	savedReportSavedAtColumn = "saved_at"
)

var savedReportSelectedColumns = []string{
	savedReportIDColumn,
	savedReportSavedAtColumn,
	savedReportSpecColumn,
}

func (clickhouse ClickHouseDB) CreateSavedReportsTable(ctx context.Context) error {
	var query QueryBuilder
	query.WriteString("CREATE TABLE IF NOT EXISTS ")
	query.WriteIdentifier(savedReportsTable)
	query.WriteString(" (")

	query.WriteIdentifier(savedReportIDColumn)
	query.WriteString(" UUID, ")

	query.WriteIdentifier(savedReportNameColumn)
	query.WriteString(" String, ")

	query.WriteIdentifier(savedReportDataSource)
	query.WriteString(" String, ")

	query.WriteIdentifier(savedReportSpecColumn)
	query.WriteString(" String, ")

	query.WriteIdentifier(savedReportSavedAtColumn)
	query.WriteString(" DateTime64(3))")

	query.WriteString(" ENGINE = MergeTree()")
	query.WriteString(" PRIMARY KEY (")
	query.WriteIdentifier(savedReportIDColumn)
	query.WriteByte(')')

	if err := clickhouse.conn.Exec(ctx, query.String()); err != nil {
		return wrap.Error(err, "failed to create saved reports table")
	}
	return nil
}

func (clickhouse ClickHouseDB) SaveReport(
	ctx context.Context,
	savedReport report.SavedReport,
) (uuid.UUID, error) {
	if errs := savedReport.Validate(); len(errs) != 0 {
		return uuid.UUID{}, wrap.Errors("invalid report", errs...)
	}

	reportJSON, err := json.Marshal(savedReport)
	if err != nil {
		return uuid.UUID{}, wrap.Error(err, "failed to serialize report")
	}

	var query QueryBuilder
	query.WriteString("INSERT INTO ")
	query.WriteIdentifier(savedReportsTable)
	query.WriteString(" VALUES (?, ?, ?, ?, ?)")

	id := uuid.New()

	shouldWaitForResult := true
	if err := clickhouse.conn.AsyncInsert(
		ctx,
		query.String(),
		shouldWaitForResult,
		id,
		savedReport.ReportName,
		savedReport.DataSource,
		string(reportJSON),
		time.Now(),
	); err != nil {
		return uuid.UUID{}, wrap.Error(err, "failed to insert report into ClickHouse")
	}

	return id, nil
}

func (clickhouse ClickHouseDB) GetReport(ctx context.Context, id uuid.UUID) (db.StoredReport, error) {
	var query QueryBuilder
	query.WriteString("SELECT ")
	query.WriteIdentifiers(savedReportSelectedColumns...)
	query.WriteString(" FROM ")
	query.WriteIdentifier(savedReportsTable)
	query.WriteWhereEquals(savedReportIDColumn)

	row := clickhouse.conn.QueryRow(ctx, query.String(), id)
	if err := row.Err(); err != nil {
		return db.StoredReport{}, wrap.Error(err, "saved report query failed")
	}

	stored, err := scanStoredReport(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.StoredReport{}, db.ErrReportNotFound
		}
		return db.StoredReport{}, err
	}
	return stored, nil
}

func (clickhouse ClickHouseDB) ListReports(ctx context.Context) ([]db.StoredReport, error) {
	var query QueryBuilder
	query.WriteString("SELECT ")
	query.WriteIdentifiers(savedReportSelectedColumns...)
	query.WriteString(" FROM ")
	query.WriteIdentifier(savedReportsTable)
	query.WriteString(" ORDER BY ")
	query.WriteIdentifier(savedReportSavedAtColumn)
	query.WriteString(" DESC")

	rows, err := clickhouse.conn.Query(ctx, query.String())
	if err != nil {
		return nil, wrap.Error(err, "saved reports query failed")
	}
	defer rows.Close()

	reports := []db.StoredReport{}
	for rows.Next() {
		stored, err := scanStoredReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		reports = append(reports, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap.Error(err, "failed to read saved report rows")
	}

	return reports, nil
}

func scanStoredReport(scan func(dest ...any) error) (db.StoredReport, error) {
	var stored db.StoredReport
	var reportJSON string
	if err := scan(&stored.ID, &stored.SavedAt, &reportJSON); err != nil {
		return db.StoredReport{}, wrap.Error(err, "failed to scan saved report")
	}

	savedReport, err := report.ParseSavedReport([]byte(reportJSON))
	if err != nil {
		return db.StoredReport{}, wrap.Errorf(err, "failed to parse stored report '%v'", stored.ID)
	}
	stored.Report = savedReport

	return stored, nil
}

func (clickhouse ClickHouseDB) DeleteReport(ctx context.Context, id uuid.UUID) error {
	var countQuery QueryBuilder
	countQuery.WriteString("SELECT count() FROM ")
	countQuery.WriteIdentifier(savedReportsTable)
	countQuery.WriteWhereEquals(savedReportIDColumn)

	var count uint64
	if err := clickhouse.conn.QueryRow(ctx, countQuery.String(), id).Scan(&count); err != nil {
		return wrap.Error(err, "saved report count query failed")
	}
	if count == 0 {
		return db.ErrReportNotFound
	}

	var query QueryBuilder
	query.WriteString("DELETE FROM ")
	query.WriteIdentifier(savedReportsTable)
	query.WriteWhereEquals(savedReportIDColumn)

	if err := clickhouse.conn.Exec(ctx, query.String(), id); err != nil {
		return wrap.Error(err, "delete saved report query failed")
	}

	return nil
}
