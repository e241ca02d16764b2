package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"hermannm.dev/pivot/db"
	"hermannm.dev/pivot/report"
	"hermannm.dev/wrap"
)

const savedReportsTable = "saved_reports"

func (postgres PostgresDB) CreateSavedReportsTable(ctx context.Context) error {
	if _, err := postgres.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS saved_reports (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			data_source TEXT NOT NULL,
			report JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL
		)`,
	); err != nil {
		return wrap.Error(err, "failed to create saved reports table")
	}
	return nil
}

func (postgres PostgresDB) SaveReport(
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

	id := uuid.New()
	if _, err := postgres.pool.Exec(
		ctx,
		`INSERT INTO saved_reports (id, name, data_source, report, saved_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id,
		savedReport.ReportName,
		savedReport.DataSource,
		reportJSON,
		time.Now(),
	); err != nil {
		return uuid.UUID{}, wrap.Error(err, "failed to insert report into PostgreSQL")
	}

	return id, nil
}

func (postgres PostgresDB) GetReport(ctx context.Context, id uuid.UUID) (db.StoredReport, error) {
	row := postgres.pool.QueryRow(
		ctx,
		"SELECT id, saved_at, report FROM saved_reports WHERE id = $1",
		id,
	)

	stored, err := scanStoredReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.StoredReport{}, db.ErrReportNotFound
		}
		return db.StoredReport{}, err
	}
	return stored, nil
}

func (postgres PostgresDB) ListReports(ctx context.Context) ([]db.StoredReport, error) {
	rows, err := postgres.pool.Query(
		ctx,
		"SELECT id, saved_at, report FROM saved_reports ORDER BY saved_at DESC",
	)
	if err != nil {
		return nil, wrap.Error(err, "saved reports query failed")
	}

	reports, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (db.StoredReport, error) {
		return scanStoredReport(row)
	})
	if err != nil {
		return nil, wrap.Error(err, "failed to read saved reports")
	}
	return reports, nil
}

func scanStoredReport(row pgx.Row) (db.StoredReport, error) {
	var stored db.StoredReport
	var reportJSON []byte
	if err := row.Scan(&stored.ID, &stored.SavedAt, &reportJSON); err != nil {
		return db.StoredReport{}, wrap.Error(err, "failed to scan saved report")
	}

	savedReport, err := report.ParseSavedReport(reportJSON)
	if err != nil {
		return db.StoredReport{}, wrap.Errorf(err, "failed to parse stored report '%v'", stored.ID)
	}
	stored.Report = savedReport

	return stored, nil
}

func (postgres PostgresDB) DeleteReport(ctx context.Context, id uuid.UUID) error {
	tag, err := postgres.pool.Exec(ctx, "DELETE FROM saved_reports WHERE id = $1", id)
	if err != nil {
		return wrap.Error(err, "delete saved report query failed")
	}
	if tag.RowsAffected() == 0 {
		return db.ErrReportNotFound
	}
	return nil
}
