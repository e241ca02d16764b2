package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/pivot"
	"hermannm.dev/pivot/report"
)

// Dataset is a set of records along with the fields describing them.
type Dataset struct {
	Records []datatypes.Record
	Fields  []datatypes.Field
}

// Returns the dataset as an ad-hoc result, with an initial pivot config grouping rows by the
// first text field and summing the first number field.
func (dataset Dataset) AdHoc(dataSourceID string) report.AdHocResult {
	return report.AdHocResult{
		DataSourceID: dataSourceID,
		Data:         dataset.Records,
		Fields:       dataset.Fields,
		PivotConfig:  DefaultPivotConfig(dataset.Fields),
	}
}

func DefaultPivotConfig(fields []datatypes.Field) pivot.Config {
	config := pivot.Config{Rows: []string{}, Columns: []string{}, Values: []pivot.ValueField{}}

	for _, field := range fields {
		if field.Type == datatypes.DataTypeText {
			config.Rows = append(config.Rows, field.Key)
			break
		}
	}
	for _, field := range fields {
		if field.Type == datatypes.DataTypeNumber {
			config.Values = append(
				config.Values,
				pivot.ValueField{Field: field.Key, Aggregation: pivot.AggregationSum},
			)
			break
		}
	}

	return config
}

// SchemaSource is a record source that can describe its tables and run ad-hoc joins across them.
type SchemaSource interface {
	report.RecordSource
	Schema(ctx context.Context) (datatypes.Schema, error)
	// Returns the fields of a data source's table, or an empty list if there is no such table.
	Fields(ctx context.Context, dataSourceID string) ([]datatypes.Field, error)
	FetchJoin(ctx context.Context, query JoinQuery) (Dataset, error)
	Close() error
}

var ErrReportNotFound = errors.New("saved report not found")

type StoredReport struct {
	ID      uuid.UUID          `json:"id"`
	SavedAt time.Time          `json:"savedAt"`
	Report  report.SavedReport `json:"report"`
}

// ReportStore persists saved reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report report.SavedReport) (uuid.UUID, error)
	GetReport(ctx context.Context, id uuid.UUID) (StoredReport, error)
	// Returns reports ordered by most recently saved first.
	ListReports(ctx context.Context) ([]StoredReport, error)
	DeleteReport(ctx context.Context, id uuid.UUID) error
	Close() error
}

// Finds the most recently saved report with the given ID or name.
func FindReport(ctx context.Context, store ReportStore, idOrName string) (StoredReport, error) {
	if id, err := uuid.Parse(idOrName); err == nil {
		return store.GetReport(ctx, id)
	}

	reports, err := store.ListReports(ctx)
	if err != nil {
		return StoredReport{}, err
	}

	for _, stored := range reports {
		if stored.Report.ReportName == idOrName {
			return stored, nil
		}
	}

	return StoredReport{}, ErrReportNotFound
}
