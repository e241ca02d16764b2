package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/pivot"
)

var fields = []datatypes.Field{
	{Key: "project", Label: "Project", Type: datatypes.DataTypeText},
	{Key: "status", Label: "Status", Type: datatypes.DataTypeText},
	{Key: "hours", Label: "Hours", Type: datatypes.DataTypeNumber},
}

var records = []datatypes.Record{
	{"project": "A", "status": "open", "hours": 2.0},
	{"project": "A", "status": "done", "hours": 3.0},
	{"project": "B,1", "status": "open", "hours": 5.0},
}

var config = pivot.Config{
	Rows:    []string{"project", "status"},
	Columns: []string{"status"},
	Values:  []pivot.ValueField{{Field: "hours", Aggregation: pivot.AggregationSum}},
}

func TestColorRule(t *testing.T) {
	rule := ColorRule{Threshold: 10, ColorLow: "#ff0000", ColorHigh: "#00ff00"}

	assert.Equal(t, "#00ff0080", rule.Background(15))
	assert.Equal(t, "#00ff0000", rule.Background(10))
	assert.Equal(t, "#ff0000ff", rule.Background(0))
	assert.Equal(t, "#ff000080", rule.Background(5))
	assert.Equal(t, "#00ff00ff", rule.Background(30))

	zeroThreshold := ColorRule{Threshold: 0, ColorLow: "#ff0000", ColorHigh: "#00ff00"}
	assert.Equal(t, "#00ff0000", zeroThreshold.Background(5))
	assert.Equal(t, "#ff000000", zeroThreshold.Background(-5))

	assert.NoError(t, rule.Validate())
	assert.Error(t, ColorRule{ColorLow: "red", ColorHigh: "#00ff00"}.Validate())
}

func TestTable(t *testing.T) {
	expanded := pivot.NewExpandedSet("A")
	result := pivot.Aggregate(records, config, fields, expanded)

	table := Table(result, config, fields, TableOptions{
		ShowRowTotals:   true,
		ShowGrandTotals: true,
		ColorRule:       &ColorRule{Threshold: 4, ColorLow: "#ff0000", ColorHigh: "#00ff00"},
	})

	assert.Equal(
		t,
		[]string{"Project / Status", "done | Hours (sum)", "open | Hours (sum)", "Total"},
		table.Headers(),
	)

	require.Len(t, table.Rows, 4)
	assert.Equal(t, "A", table.Rows[0].Label)
	assert.True(t, table.Rows[0].Expanded)
	assert.Equal(t, 1, table.Rows[1].Level)
	assert.False(t, table.Rows[1].HasChildren)
	assert.False(t, table.Rows[3].Expanded)

	assert.Equal(t, "3.00", table.Rows[0].Cells[0].Text)
	assert.Equal(t, "2.00", table.Rows[0].Cells[1].Text)
	assert.Equal(t, "#ff000080", table.Rows[0].Cells[1].Background)
	require.NotNil(t, table.Rows[0].Total)
	assert.Equal(t, "5.00", table.Rows[0].Total.Text)

	require.NotNil(t, table.GrandTotal)
	assert.Equal(t, "3.00", table.GrandTotal.Cells[0].Text)
	assert.Equal(t, "7.00", table.GrandTotal.Cells[1].Text)
	assert.Equal(t, "10.00", table.GrandTotal.Total.Text)
	assert.Empty(t, table.GrandTotal.Cells[0].Background)

	assert.Equal(t, "- A", table.Rows[0].IndentedLabel())
	assert.Equal(t, "    done", table.Rows[1].IndentedLabel())
	assert.Equal(t, "+ B,1", table.Rows[3].IndentedLabel())

	var text bytes.Buffer
	require.NoError(t, WriteText(&text, table))
	lines := strings.Split(strings.TrimSpace(text.String()), "\n")
	assert.Len(t, lines, 6)
	assert.Contains(t, lines[5], "Grand Total")
}

func TestCSV(t *testing.T) {
	result := pivot.Aggregate(records, config, fields, pivot.NewExpandedSet("A"))

	var output bytes.Buffer
	require.NoError(t, CSV(&output, result, config, fields))

	expected := "" +
		"Project,Status,done | Hours (sum),open | Hours (sum),Total\n" +
		"A,,3.00,2.00,5.00\n" +
		"A,done,3.00,0.00,3.00\n" +
		"A,open,0.00,2.00,2.00\n" +
		"\"B,1\",,0.00,5.00,5.00\n"
	assert.Equal(t, expected, output.String())
}

func TestCSVQuoting(t *testing.T) {
	quoted := []datatypes.Record{{"project": `say "hi"`, "hours": 1.0}, {"project": "two\nlines"}}
	quotedConfig := pivot.Config{
		Rows:   []string{"project"},
		Values: []pivot.ValueField{{Field: "hours", Aggregation: pivot.AggregationSum}},
	}
	result := pivot.Aggregate(quoted, quotedConfig, fields, nil)

	var output bytes.Buffer
	require.NoError(t, CSV(&output, result, quotedConfig, fields))

	expected := "" +
		"Project,Total | Hours (sum),Total\n" +
		"\"say \"\"hi\"\"\",1.00,1.00\n" +
		"\"two\nlines\",0.00,0.00\n"
	assert.Equal(t, expected, output.String())
}

func TestPrintHTML(t *testing.T) {
	result := pivot.Aggregate(records, config, fields, nil)

	var portrait bytes.Buffer
	require.NoError(t, PrintHTML(&portrait, result, config, fields, PrintOptions{
		Title:       "Hours <by> project",
		Orientation: OrientationPortrait,
		GeneratedAt: time.Date(2026, time.March, 15, 9, 30, 0, 0, time.UTC),
		Table:       TableOptions{ShowGrandTotals: true},
	}))

	html := portrait.String()
	assert.Contains(t, html, "size: A4 portrait")
	assert.Contains(t, html, `onload="window.print()"`)
	assert.Contains(t, html, "Hours &lt;by&gt; project")
	assert.Contains(t, html, "Generated 2026-03-15 09:30")
	assert.Contains(t, html, "B,1")
	assert.Contains(t, html, "Grand Total")

	var landscape bytes.Buffer
	require.NoError(t, PrintHTML(&landscape, result, config, fields, PrintOptions{
		Orientation: OrientationLandscape,
	}))
	assert.Contains(t, landscape.String(), "size: A4 landscape")
	assert.Contains(t, landscape.String(), "margin: 10mm")
}

func TestChart(t *testing.T) {
	chartRecords := []datatypes.Record{
		{"project": "A", "hours": 5.0},
		{"project": "B", "hours": 10.0},
	}
	chartConfig := pivot.Config{
		Rows:   []string{"project"},
		Values: []pivot.ValueField{{Field: "hours", Aggregation: pivot.AggregationSum}},
	}
	result := pivot.Aggregate(chartRecords, chartConfig, fields, nil)

	bar := Chart(result, ChartOptions{Kind: ChartKindBar, Width: 200, Height: 100, Padding: 10})
	assert.Equal(t, 10.0, bar.Max)
	require.Len(t, bar.Points, 2)
	assert.InDelta(t, 40, bar.Points[0].Height, 1e-9)
	assert.InDelta(t, 50, bar.Points[0].Y, 1e-9)
	assert.InDelta(t, 19, bar.Points[0].X, 1e-9)
	assert.InDelta(t, 72, bar.Points[0].Width, 1e-9)
	assert.InDelta(t, 80, bar.Points[1].Height, 1e-9)
	assert.InDelta(t, 10, bar.Points[1].Y, 1e-9)
	assert.InDelta(t, 109, bar.Points[1].X, 1e-9)

	line := Chart(result, ChartOptions{Kind: ChartKindLine, Width: 200, Height: 100, Padding: 10})
	assert.InDelta(t, 10, line.Points[0].X, 1e-9)
	assert.InDelta(t, 190, line.Points[1].X, 1e-9)
	assert.Zero(t, line.Points[0].Width)

	zero := pivot.Aggregate(
		[]datatypes.Record{{"project": "A", "hours": 0.0}},
		chartConfig,
		fields,
		nil,
	)
	for _, point := range Chart(zero, ChartOptions{}).Points {
		assert.Zero(t, point.Height)
	}

	var svg bytes.Buffer
	require.NoError(t, WriteSVG(&svg, bar))
	assert.Equal(t, 2, strings.Count(svg.String(), "<rect"))
}

func TestDrillDown(t *testing.T) {
	drillRecords := []datatypes.Record{
		{"project": "A", "status": "open|x", "hours": 1.0},
		{"project": "A", "status": "open", "hours": 2.0},
		{"project": "A", "status": "done", "hours": 3.0},
		{"project": "A", "hours": 4.0},
	}
	drillConfig := pivot.Config{
		Rows:    []string{"project"},
		Columns: []string{"status"},
		Values:  []pivot.ValueField{{Field: "hours", Aggregation: pivot.AggregationSum}},
	}
	result := pivot.Aggregate(drillRecords, drillConfig, fields, nil)
	node := result.Tree[0]

	for _, column := range result.Columns {
		drilled := DrillDown(node, column, drillConfig.Columns)
		assert.LessOrEqual(t, len(drilled), len(node.RawRecords))
		for _, record := range drilled {
			assert.Equal(t, column.Group, pivot.ColumnGroupOf(record, drillConfig.Columns))
		}
		assert.Equal(t, node.Data[column], pivot.AggregateCell(drilled, column))
	}

	open := DrillDown(
		node,
		pivot.GroupColumn(pivot.NewColumnGroup("open"), "hours", pivot.AggregationSum),
		drillConfig.Columns,
	)
	assert.Equal(t, []datatypes.Record{drillRecords[1]}, open)

	missing := DrillDown(
		node,
		pivot.GroupColumn(pivot.NewColumnGroup(datatypes.MissingGroupValue), "hours", pivot.AggregationSum),
		drillConfig.Columns,
	)
	assert.Equal(t, []datatypes.Record{drillRecords[3]}, missing)

	all := DrillDown(node, pivot.TotalColumn("hours", pivot.AggregationSum), drillConfig.Columns)
	assert.Len(t, all, 4)

	assert.Empty(t, DrillDown(nil, pivot.LegacyTotalColumn, nil))
}
