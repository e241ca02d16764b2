package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/devlog"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/filter"
	"hermannm.dev/pivot/pivot"
)

func TestMain(m *testing.M) {
	logHandler := devlog.NewHandler(os.Stdout, &devlog.Options{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(logHandler))

	os.Exit(m.Run())
}

type stubSource struct {
	records map[string][]datatypes.Record
	err     error
}

func (source stubSource) FetchRecords(
	ctx context.Context,
	dataSourceID string,
) ([]datatypes.Record, error) {
	if source.err != nil {
		return nil, source.err
	}
	return source.records[dataSourceID], nil
}

var timeEntries = []datatypes.Record{
	{"project": "Apollo", "user": "ann", "status": "open", "hours": "2", "date": "2026-03-01T10:00:00Z"},
	{"project": "Apollo", "user": "bob", "status": "done", "hours": 3.0, "date": "2026-03-02"},
	{"project": "Gemini", "user": "bob", "status": "open", "hours": nil, "date": "2026-03-02"},
	{"project": "Gemini", "user": "cat", "status": "Open", "hours": 4.0, "date": "2026-03-03"},
}

var hoursByProject = pivot.Config{
	Rows:   []string{"project"},
	Values: []pivot.ValueField{{Field: "hours", Aggregation: pivot.AggregationSum}},
}

func loadedSession(t *testing.T) *Session {
	t.Helper()

	session := NewSession(datatypes.NewRegistry(), 0)
	session.SelectDataSource(datatypes.DataSourceTimeEntries)

	source := stubSource{
		records: map[string][]datatypes.Record{datatypes.DataSourceTimeEntries: timeEntries},
	}
	require.NoError(t, session.Load(context.Background(), source))
	return session
}

func TestRecomputePipeline(t *testing.T) {
	session := loadedSession(t)
	session.SetConfig(hoursByProject)
	session.SetFilters([]filter.Condition{
		{Field: "status", Operator: filter.OperatorEquals, Value: "open"},
	})

	result, err := session.Recompute()
	require.NoError(t, err)

	hours := pivot.TotalColumn("hours", pivot.AggregationSum)
	assert.Equal(t, []pivot.ColumnKey{hours}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Apollo", result.Rows[0].Key)
	assert.Equal(t, 2.0, result.Rows[0].Data[hours])
	assert.Equal(t, "Gemini", result.Rows[1].Key)
	assert.Equal(t, 4.0, result.Rows[1].Data[hours])

	filtered := session.Filtered()
	require.Len(t, filtered, 3)
	assert.Equal(t, "2026-03-01", filtered[0]["date"])
	assert.Equal(t, 0.0, filtered[1]["hours"])

	// Source records are not mutated by normalization
	assert.Nil(t, timeEntries[2]["hours"])
	assert.Equal(t, "2026-03-01T10:00:00Z", timeEntries[0]["date"])
}

func TestRecomputeWithoutRecords(t *testing.T) {
	session := NewSession(datatypes.NewRegistry(), 0)
	session.SelectDataSource(datatypes.DataSourceTimeEntries)
	session.SetConfig(hoursByProject)

	result, err := session.Recompute()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Empty(t, result.Rows)
	assert.Empty(t, result.Columns)
}

func TestFailedLoadLeavesSessionUnloaded(t *testing.T) {
	session := loadedSession(t)
	session.SetConfig(hoursByProject)
	_, err := session.Recompute()
	require.NoError(t, err)

	fetchErr := errors.New("connection refused")
	err = session.Load(context.Background(), stubSource{err: fetchErr})
	require.ErrorIs(t, err, fetchErr)
	assert.ErrorContains(t, err, "timeEntries")

	assert.False(t, session.IsLoaded())
	assert.Empty(t, session.Result().Rows)

	_, err = session.Recompute()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestSelectDataSourceResetsState(t *testing.T) {
	session := loadedSession(t)
	session.SetConfig(hoursByProject)
	session.SetFilters([]filter.Condition{{Field: "status", Operator: filter.OperatorIsEmpty}})
	session.Toggle("Apollo")

	session.SelectDataSource(datatypes.DataSourceTasks)

	assert.Equal(t, datatypes.DataSourceTasks, session.DataSourceID())
	assert.Equal(t, datatypes.NewRegistry().Fields(datatypes.DataSourceTasks), session.Fields())
	assert.False(t, session.IsLoaded())
	assert.Empty(t, session.Filters())
	assert.Empty(t, session.Config().Rows)
	assert.Empty(t, session.ExpandedKeys())
}

func TestSetConfigClearsExpandedOnRowChange(t *testing.T) {
	session := loadedSession(t)
	session.SetConfig(hoursByProject)
	session.Toggle("Apollo")

	sameRows := hoursByProject.Clone()
	sameRows.Columns = []string{"status"}
	session.SetConfig(sameRows)
	assert.Equal(t, []string{"Apollo"}, session.ExpandedKeys())

	otherRows := hoursByProject.Clone()
	otherRows.Rows = []string{"user"}
	session.SetConfig(otherRows)
	assert.Empty(t, session.ExpandedKeys())
}

func TestExpandAndCollapse(t *testing.T) {
	session := loadedSession(t)
	config := hoursByProject.Clone()
	config.Rows = []string{"project", "user"}
	session.SetConfig(config)

	result, err := session.Recompute()
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)

	session.ExpandAll()
	result, err = session.Recompute()
	require.NoError(t, err)
	assert.Len(t, result.Rows, 6)

	assert.False(t, session.Toggle("Apollo"))
	result, err = session.Recompute()
	require.NoError(t, err)
	assert.Len(t, result.Rows, 4)

	session.CollapseAll()
	result, err = session.Recompute()
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
}

func TestSavedReportRoundTrip(t *testing.T) {
	config := pivot.Config{
		Rows:    []string{"project", "user"},
		Columns: []string{"status"},
		Values: []pivot.ValueField{
			{Field: "hours", Aggregation: pivot.AggregationSum},
			{Field: "hours", Aggregation: pivot.AggregationCount},
		},
	}

	session := loadedSession(t)
	session.SetConfig(config)
	session.SetFilters([]filter.Condition{
		{Field: "hours", Operator: filter.OperatorBetween, Value: "1", Value2: "3"},
	})
	session.Toggle("Apollo")

	saved := session.SavedReport("Hours per project")
	assert.Empty(t, saved.Validate())

	bytes, err := json.Marshal(saved)
	require.NoError(t, err)
	parsed, err := ParseSavedReport(bytes)
	require.NoError(t, err)
	assert.Equal(t, "Hours per project", parsed.ReportName)
	assert.Equal(t, datatypes.DataSourceTimeEntries, parsed.DataSource)
	assert.Equal(t, saved.PivotConfig, parsed.PivotConfig)
	assert.Equal(t, saved.Filters, parsed.Filters)

	// Loading a report clears the expanded set, so compare against the collapsed original
	session.CollapseAll()
	original, err := session.Recompute()
	require.NoError(t, err)

	reloaded := loadedSession(t)
	reloaded.LoadReport(parsed)
	assert.Empty(t, reloaded.ExpandedKeys())
	assert.True(t, reloaded.IsLoaded())

	result, err := reloaded.Recompute()
	require.NoError(t, err)
	assert.Equal(t, original, result)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Apollo", result.Rows[0].Key)
	// done and open, each with sum and count
	assert.Len(t, result.Columns, 4)
	assert.Equal(t, 7.0, pivot.RowTotal(result.Rows[0], result.Columns))
}

func TestSavedReportJSONShape(t *testing.T) {
	saved := SavedReport{DataSource: "tasks", ReportName: "Empty"}

	bytes, err := json.Marshal(saved)
	require.NoError(t, err)

	var shape map[string]any
	require.NoError(t, json.Unmarshal(bytes, &shape))
	assert.ElementsMatch(
		t,
		[]string{"dataSource", "reportName", "pivotConfig", "filters"},
		mapKeys(shape),
	)
	assert.Equal(t, []any{}, shape["filters"])
}

func TestSavedReportValidate(t *testing.T) {
	saved := SavedReport{
		Filters: []filter.Condition{{Field: "hours", Operator: filter.OperatorBetween, Value: "1"}},
	}

	// Blank name, blank data source, no row fields, and the incomplete between filter
	errs := saved.Validate()
	assert.Len(t, errs, 4)
}

func TestLoadReportForOtherDataSource(t *testing.T) {
	session := loadedSession(t)

	session.LoadReport(SavedReport{
		DataSource:  datatypes.DataSourceTickets,
		ReportName:  "Tickets",
		PivotConfig: pivot.Config{Rows: []string{"status"}},
	})

	assert.Equal(t, datatypes.DataSourceTickets, session.DataSourceID())
	assert.False(t, session.IsLoaded())
	assert.Equal(t, []string{"status"}, session.Config().Rows)
}

func TestUseAdHoc(t *testing.T) {
	registry := datatypes.NewRegistry()
	session := NewSession(registry, 0)

	fields := []datatypes.Field{
		{Key: "orders.customer", Label: "Orders: Customer", Type: datatypes.DataTypeText},
		{Key: "orders.amount", Label: "Orders: Amount", Type: datatypes.DataTypeNumber},
	}
	session.UseAdHoc(AdHocResult{
		Data: []datatypes.Record{
			{"orders.customer": "acme", "orders.amount": 10},
			{"orders.customer": "acme", "orders.amount": "N/A"},
			{"orders.customer": "globex", "orders.amount": 5},
		},
		Fields: fields,
		PivotConfig: pivot.Config{
			Rows: []string{"orders.customer"},
			Values: []pivot.ValueField{
				{Field: "orders.amount", Aggregation: pivot.AggregationAverage},
			},
		},
	})

	assert.Equal(t, AdHocDataSource, session.DataSourceID())
	assert.Equal(t, fields, registry.Fields(AdHocDataSource))

	result, err := session.Recompute()
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	average := pivot.TotalColumn("orders.amount", pivot.AggregationAverage)
	assert.Equal(t, 5.0, result.Rows[0].Data[average])
	assert.Equal(t, 5.0, result.Rows[1].Data[average])
}

func mapKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	return keys
}
