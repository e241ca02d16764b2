package report

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/filter"
	"hermannm.dev/pivot/pivot"
	"hermannm.dev/wrap"
)

// The whole result set is held in memory and re-aggregated on every recompute, which stays
// responsive up to around this many records.
const DefaultMaxRecords = 50_000

// Data source ID used for ad-hoc results that do not name one.
const AdHocDataSource = "adhoc"

var ErrNotLoaded = errors.New("no records loaded for the selected data source")

// RecordSource fetches the raw records of a data source.
type RecordSource interface {
	FetchRecords(ctx context.Context, dataSourceID string) ([]datatypes.Record, error)
}

// AdHocResult is the output of an ad-hoc join: records along with the fields describing them and
// an initial pivot config.
type AdHocResult struct {
	DataSourceID string             `json:"dataSourceId"`
	Data         []datatypes.Record `json:"data"`
	Fields       []datatypes.Field  `json:"fields"`
	PivotConfig  pivot.Config       `json:"pivotConfig"`
}

// Session holds the state of one report being built: the selected data source and its records,
// filters, pivot config and expanded rows. State changes never aggregate by themselves; callers
// run the pipeline with Recompute after changing state.
type Session struct {
	registry   *datatypes.Registry
	maxRecords int

	dataSourceID string
	fields       []datatypes.Field
	records      []datatypes.Record
	loaded       bool

	filters  []filter.Condition
	config   pivot.Config
	expanded *pivot.ExpandedSet

	filtered []datatypes.Record
	result   pivot.Result
}

// Creates a session resolving fields from the given registry. A maxRecords of 0 or below uses
// DefaultMaxRecords.
func NewSession(registry *datatypes.Registry, maxRecords int) *Session {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}

	return &Session{
		registry:   registry,
		maxRecords: maxRecords,
		expanded:   pivot.NewExpandedSet(),
		result:     emptyResult(),
	}
}

func emptyResult() pivot.Result {
	return pivot.Result{Rows: []*pivot.Node{}, Columns: []pivot.ColumnKey{}, Tree: []*pivot.Node{}}
}

// Selects a data source, resolving its fields from the registry. Loaded records, filters, pivot
// config and expanded rows are cleared.
func (session *Session) SelectDataSource(dataSourceID string) {
	session.dataSourceID = dataSourceID
	session.fields = session.registry.Fields(dataSourceID)
	session.filters = nil
	session.config = pivot.Config{}
	session.unload()
	session.expanded.Clear()
}

// Uses the records and fields of an ad-hoc join as the data source, treated like any other data
// source from here on. The fields are registered so that saved reports can resolve them later.
func (session *Session) UseAdHoc(adHoc AdHocResult) {
	dataSourceID := adHoc.DataSourceID
	if dataSourceID == "" {
		dataSourceID = AdHocDataSource
	}

	if !session.registry.Register(dataSourceID, adHoc.Fields) {
		log.Warnf("ad-hoc data source '%s' shadows a static data source, using static fields", dataSourceID)
	}

	session.SelectDataSource(dataSourceID)
	session.config = adHoc.PivotConfig.Clone()
	session.SetRecords(adHoc.Data)
}

// Fetches the records of the selected data source. If fetching fails, the session is left without
// records, and Recompute fails with ErrNotLoaded until records are loaded.
func (session *Session) Load(ctx context.Context, source RecordSource) error {
	session.unload()

	records, err := source.FetchRecords(ctx, session.dataSourceID)
	if err != nil {
		return wrap.Errorf(err, "failed to load records for data source '%s'", session.dataSourceID)
	}

	session.SetRecords(records)
	return nil
}

func (session *Session) SetRecords(records []datatypes.Record) {
	if len(records) > session.maxRecords {
		log.Warn(
			"record count exceeds the configured maximum, pivoting may be slow",
			slog.Int("records", len(records)),
			slog.Int("maxRecords", session.maxRecords),
			slog.String("dataSource", session.dataSourceID),
		)
	}

	session.records = records
	session.loaded = true
}

func (session *Session) unload() {
	session.records = nil
	session.loaded = false
	session.filtered = nil
	session.result = emptyResult()
}

func (session *Session) SetFilters(filters []filter.Condition) {
	session.filters = slices.Clone(filters)
}

// Sets the pivot config. Expanded rows are cleared if the row fields changed, since their keys no
// longer identify the same rows.
func (session *Session) SetConfig(config pivot.Config) {
	if session.config.RowsChanged(config) {
		session.expanded.Clear()
	}
	session.config = config.Clone()
}

// Toggles expansion of the row with the given key, returning whether it is now expanded.
func (session *Session) Toggle(rowKey string) bool {
	return session.expanded.Toggle(rowKey)
}

// Expands every row of the last computed result.
func (session *Session) ExpandAll() {
	session.expanded.ExpandAll(session.result.Tree)
}

func (session *Session) ExpandToLevel(level int) {
	session.expanded.ExpandToLevel(session.result.Tree, level)
}

func (session *Session) CollapseAll() {
	session.expanded.Clear()
}

// Applies a saved report's data source, pivot config and filters, and clears expanded rows.
// Records are kept if the data source is unchanged, otherwise they must be loaded again.
func (session *Session) LoadReport(report SavedReport) {
	if report.DataSource != session.dataSourceID {
		session.SelectDataSource(report.DataSource)
	}

	session.config = report.PivotConfig.Clone()
	session.filters = slices.Clone(report.Filters)
	session.expanded.Clear()
}

// Captures the session's current state as a report with the given name.
func (session *Session) SavedReport(name string) SavedReport {
	return SavedReport{
		DataSource:  session.dataSourceID,
		ReportName:  name,
		PivotConfig: session.config.Clone(),
		Filters:     slices.Clone(session.filters),
	}
}

// Runs the full pipeline over the loaded records: date normalization and filtering, normalization
// of the remaining fields, then aggregation. Fails with ErrNotLoaded if no records are loaded, in
// which case the engine is not run.
func (session *Session) Recompute() (pivot.Result, error) {
	if !session.loaded {
		session.filtered = nil
		session.result = emptyResult()
		return session.result, ErrNotLoaded
	}

	filtered := filter.Apply(session.records, session.filters, session.fields)
	session.filtered = datatypes.Normalize(filtered, session.fields)
	session.result = pivot.Aggregate(session.filtered, session.config, session.fields, session.expanded)

	log.Debug(
		"recomputed report",
		slog.String("dataSource", session.dataSourceID),
		slog.Int("records", len(session.records)),
		slog.Int("filtered", len(session.filtered)),
	)

	return session.result, nil
}

func (session *Session) Result() pivot.Result {
	return session.result
}

// Returns the filtered and normalized records of the last recompute.
func (session *Session) Filtered() []datatypes.Record {
	return session.filtered
}

func (session *Session) DataSourceID() string {
	return session.dataSourceID
}

func (session *Session) Fields() []datatypes.Field {
	return slices.Clone(session.fields)
}

func (session *Session) Config() pivot.Config {
	return session.config.Clone()
}

func (session *Session) Filters() []filter.Condition {
	return slices.Clone(session.filters)
}

func (session *Session) ExpandedKeys() []string {
	return session.expanded.Keys()
}

func (session *Session) IsLoaded() bool {
	return session.loaded
}
