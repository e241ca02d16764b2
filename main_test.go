package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/devlog"
	"hermannm.dev/pivot/config"
	"hermannm.dev/pivot/csv"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/db/sqlite"
	"hermannm.dev/pivot/pivot"
	"hermannm.dev/pivot/render"
)

func TestMain(m *testing.M) {
	logHandler := devlog.NewHandler(os.Stdout, &devlog.Options{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(logHandler))

	os.Exit(m.Run())
}

const timeEntriesCSV = `project,user,status,hours,date
Apollo,ann,open,2,2026-03-01
Apollo,bob,done,3,2026-03-02
Gemini,bob,open,5,2026-03-03
`

func newTestBackend(t *testing.T) dataBackend {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, datatypes.DataSourceTimeEntries+".csv"),
		[]byte(timeEntriesCSV),
		0o644,
	))

	store, err := sqlite.NewReportStore(context.Background(), filepath.Join(dir, "reports.db"))
	require.NoError(t, err)

	backend := dataBackend{
		source:  csv.FileSource{Dir: dir},
		store:   store,
		closers: nil,
	}
	t.Cleanup(func() {
		store.Close()
	})
	return backend
}

func runWithArgs(t *testing.T, backend dataBackend, args ...string) (string, error) {
	t.Helper()

	flags, err := parseFlags(args)
	require.NoError(t, err)

	conf := config.Config{BaseConfig: config.BaseConfig{MaxRecords: 1000}}

	var output bytes.Buffer
	err = run(context.Background(), conf, flags, backend, &output)
	return output.String(), err
}

func TestRunCSVReport(t *testing.T) {
	backend := newTestBackend(t)

	output, err := runWithArgs(
		t, backend,
		"-source", "timeEntries", "-rows", "project", "-values", "hours:sum", "-format", "csv",
		"-save", "Hours per project",
	)
	require.NoError(t, err)

	expected := "Project,Total | Hours (sum),Total\n" +
		"Apollo,5.00,5.00\n" +
		"Gemini,5.00,5.00\n"
	assert.Equal(t, expected, output)

	output, err = runWithArgs(t, backend, "-report", "Hours per project", "-format", "csv")
	require.NoError(t, err)
	assert.Equal(t, expected, output)

	output, err = runWithArgs(t, backend, "-list")
	require.NoError(t, err)
	assert.Contains(t, output, "Hours per project")
	assert.Contains(t, output, "timeEntries")
}

func TestRunWithFilters(t *testing.T) {
	backend := newTestBackend(t)

	filtersFile := filepath.Join(t.TempDir(), "filters.json")
	require.NoError(t, os.WriteFile(
		filtersFile,
		[]byte(`[{"field": "status", "operator": "equals", "value": "open"}]`),
		0o644,
	))

	output, err := runWithArgs(
		t, backend,
		"-source", "timeEntries", "-rows", "project", "-columns", "user",
		"-values", "hours", "-filters", filtersFile, "-format", "csv",
	)
	require.NoError(t, err)

	assert.Equal(
		t,
		"Project,ann | Hours (sum),bob | Hours (sum),Total\n"+
			"Apollo,2.00,0.00,2.00\n"+
			"Gemini,0.00,5.00,5.00\n",
		output,
	)
}

func TestRunDrillDown(t *testing.T) {
	backend := newTestBackend(t)

	output, err := runWithArgs(
		t, backend,
		"-source", "timeEntries", "-rows", "project", "-columns", "user",
		"-values", "hours:count", "-drill-row", "Apollo", "-drill-column", "bob|||hours|||count",
	)
	require.NoError(t, err)

	var records []datatypes.Record
	require.NoError(t, json.Unmarshal([]byte(output), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "bob", records[0]["user"])
	assert.Equal(t, "done", records[0]["status"])
}

func TestRunExpandedJSON(t *testing.T) {
	backend := newTestBackend(t)

	output, err := runWithArgs(
		t, backend,
		"-source", "timeEntries", "-rows", "project,user", "-values", "hours:sum",
		"-format", "json", "-expand-all",
	)
	require.NoError(t, err)

	var table render.TableData
	require.NoError(t, json.Unmarshal([]byte(output), &table))
	assert.Len(t, table.Rows, 5)
}

func TestRunErrors(t *testing.T) {
	backend := newTestBackend(t)

	_, err := runWithArgs(t, backend, "-rows", "project")
	assert.ErrorContains(t, err, "no data source")

	_, err = runWithArgs(t, backend, "-source", "missing", "-rows", "project")
	assert.Error(t, err)

	_, err = runWithArgs(t, backend, "-report", "Missing")
	assert.Error(t, err)

	joinFile := filepath.Join(t.TempDir(), "join.json")
	require.NoError(t, os.WriteFile(
		joinFile,
		[]byte(`{"baseTable": "a", "columns": [{"table": "a", "column": "x"}]}`),
		0o644,
	))
	_, err = runWithArgs(t, backend, "-join", joinFile)
	assert.ErrorContains(t, err, "database backend")
}

func TestParseFlags(t *testing.T) {
	flags, err := parseFlags([]string{"-source", "tasks"})
	require.NoError(t, err)
	assert.Equal(t, "tasks", flags.dataSource)
	assert.Equal(t, string(formatTable), flags.format)
	assert.True(t, flags.rowTotals)

	_, err = parseFlags([]string{"-format", "pdf"})
	assert.Error(t, err)
}

func TestParseValueFields(t *testing.T) {
	values, err := parseValueFields("hours:avg, hours, ticket:distinctCount")
	require.NoError(t, err)
	assert.Equal(t, []pivot.ValueField{
		{Field: "hours", Aggregation: pivot.AggregationAverage},
		{Field: "hours", Aggregation: pivot.AggregationSum},
		{Field: "ticket", Aggregation: pivot.AggregationDistinctCount},
	}, values)

	_, err = parseValueFields("hours:median")
	assert.ErrorContains(t, err, "median")

	values, err = parseValueFields("")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestParseColorRule(t *testing.T) {
	rule, err := parseColorRule("8,#ff0000,#00ff00")
	require.NoError(t, err)
	assert.Equal(t, &render.ColorRule{Threshold: 8, ColorLow: "#ff0000", ColorHigh: "#00ff00"}, rule)

	rule, err = parseColorRule("")
	require.NoError(t, err)
	assert.Nil(t, rule)

	_, err = parseColorRule("8,red,green")
	assert.Error(t, err)

	_, err = parseColorRule("high,#ff0000,#00ff00")
	assert.Error(t, err)
}

func TestParseRenderEnums(t *testing.T) {
	orientation, err := parseOrientation("landscape")
	require.NoError(t, err)
	assert.Equal(t, render.OrientationLandscape, orientation)

	_, err = parseOrientation("sideways")
	assert.Error(t, err)

	kind, err := parseChartKind("line")
	require.NoError(t, err)
	assert.Equal(t, render.ChartKindLine, kind)
}
