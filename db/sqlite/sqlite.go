package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/db"
	"hermannm.dev/pivot/report"
	"hermannm.dev/wrap"
)

// Implements db.ReportStore with a local SQLite database file.
type ReportStore struct {
	db *sql.DB
}

// Opens the SQLite database at the given path, creating it and its saved reports table if they do
// not exist.
func NewReportStore(ctx context.Context, dbPath string) (ReportStore, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return ReportStore{}, wrap.Errorf(err, "failed to open SQLite database '%s'", dbPath)
	}

	reportsTable := `
	CREATE TABLE IF NOT EXISTS saved_reports (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		data_source TEXT NOT NULL,
		report TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);
	`
	if _, err := sqlDB.ExecContext(ctx, reportsTable); err != nil {
		sqlDB.Close()
		return ReportStore{}, wrap.Error(err, "failed to create saved reports table")
	}

	log.Debug("opened report store", slog.String("db", "SQLite"), slog.String("path", dbPath))
	return ReportStore{db: sqlDB}, nil
}

func (store ReportStore) Close() error {
	return store.db.Close()
}

func (store ReportStore) SaveReport(
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
	now := time.Now().UTC()
	if _, err := store.db.ExecContext(
		ctx,
		`INSERT INTO saved_reports (id, name, data_source, report, saved_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(),
		savedReport.ReportName,
		savedReport.DataSource,
		string(reportJSON),
		now,
	); err != nil {
		return uuid.UUID{}, wrap.Error(err, "failed to insert saved report")
	}

	return id, nil
}

func (store ReportStore) GetReport(ctx context.Context, id uuid.UUID) (db.StoredReport, error) {
	row := store.db.QueryRowContext(
		ctx,
		`SELECT id, saved_at, report FROM saved_reports WHERE id = ?`,
		id.String(),
	)

	stored, err := scanStoredReport(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.StoredReport{}, db.ErrReportNotFound
		}
		return db.StoredReport{}, err
	}
	return stored, nil
}

func (store ReportStore) ListReports(ctx context.Context) ([]db.StoredReport, error) {
	rows, err := store.db.QueryContext(
		ctx,
		`SELECT id, saved_at, report FROM saved_reports ORDER BY saved_at DESC, rowid DESC`,
	)
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

func (store ReportStore) DeleteReport(ctx context.Context, id uuid.UUID) error {
	result, err := store.db.ExecContext(ctx, `DELETE FROM saved_reports WHERE id = ?`, id.String())
	if err != nil {
		return wrap.Error(err, "delete saved report query failed")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return wrap.Error(err, "failed to get deleted row count")
	}
	if deleted == 0 {
		return db.ErrReportNotFound
	}
	return nil
}
