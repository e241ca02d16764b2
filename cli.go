package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"hermannm.dev/pivot/db"
	"hermannm.dev/pivot/filter"
	"hermannm.dev/pivot/pivot"
	"hermannm.dev/pivot/render"
	"hermannm.dev/wrap"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatCSV   outputFormat = "csv"
	formatHTML  outputFormat = "html"
	formatChart outputFormat = "chart"
	formatJSON  outputFormat = "json"
)

type flags struct {
	dataSource   string
	joinFile     string
	reportName   string
	saveAs       string
	list         bool
	deleteReport string

	rows        string
	columns     string
	values      string
	filtersFile string

	format      string
	title       string
	orientation string
	chartKind   string
	color       string
	expandAll   bool
	expandLevel int
	rowTotals   bool
	grandTotals bool
	drillRow    string
	drillColumn string
}

func parseFlags(args []string) (flags, error) {
	var parsed flags

	flagSet := flag.NewFlagSet("pivot", flag.ContinueOnError)
	flagSet.StringVar(&parsed.dataSource, "source", "", "data source ID to pivot")
	flagSet.StringVar(&parsed.joinFile, "join", "", "JSON file with an ad-hoc join query to pivot")
	flagSet.StringVar(&parsed.reportName, "report", "", "saved report to load, by ID or name")
	flagSet.StringVar(&parsed.saveAs, "save", "", "save the resulting report under this name")
	flagSet.BoolVar(&parsed.list, "list", false, "list saved reports")
	flagSet.StringVar(&parsed.deleteReport, "delete", "", "delete a saved report, by ID or name")

	flagSet.StringVar(&parsed.rows, "rows", "", "comma-separated row fields")
	flagSet.StringVar(&parsed.columns, "columns", "", "comma-separated column fields")
	flagSet.StringVar(
		&parsed.values, "values", "", "comma-separated value fields as field:aggregation",
	)
	flagSet.StringVar(&parsed.filtersFile, "filters", "", "JSON file with a list of filter conditions")

	flagSet.StringVar(
		&parsed.format, "format", string(formatTable), "output format: table, csv, html, chart or json",
	)
	flagSet.StringVar(&parsed.title, "title", "", "title of printed reports")
	flagSet.StringVar(
		&parsed.orientation,
		"orientation",
		render.OrientationPortrait.String(),
		"page orientation of printed reports: portrait or landscape",
	)
	flagSet.StringVar(&parsed.chartKind, "chart", render.ChartKindBar.String(), "chart kind: bar or line")
	flagSet.StringVar(
		&parsed.color, "color", "", "conditional cell color as threshold,#lowColor,#highColor",
	)
	flagSet.BoolVar(&parsed.expandAll, "expand-all", false, "expand every row group")
	flagSet.IntVar(&parsed.expandLevel, "expand-level", 0, "expand row groups above this level")
	flagSet.BoolVar(&parsed.rowTotals, "row-totals", true, "show a total per row")
	flagSet.BoolVar(&parsed.grandTotals, "grand-totals", true, "show a grand total row")
	flagSet.StringVar(&parsed.drillRow, "drill-row", "", "print the records behind this row key")
	flagSet.StringVar(&parsed.drillColumn, "drill-column", "", "limit -drill-row to this column key")

	if err := flagSet.Parse(args); err != nil {
		return flags{}, err
	}

	switch outputFormat(parsed.format) {
	case formatTable, formatCSV, formatHTML, formatChart, formatJSON:
	default:
		return flags{}, fmt.Errorf("unsupported output format '%s'", parsed.format)
	}

	return parsed, nil
}

func splitList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}

	items := strings.Split(list, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}

// Parses value fields in the form "field:aggregation", where the aggregation defaults to sum.
func parseValueFields(list string) ([]pivot.ValueField, error) {
	items := splitList(list)
	values := make([]pivot.ValueField, 0, len(items))

	for _, item := range items {
		field, aggregationName, hasAggregation := strings.Cut(item, ":")
		if !hasAggregation {
			aggregationName = pivot.AggregationSum.String()
		}

		aggregation := pivot.ParseAggregation(aggregationName)
		if !aggregation.IsValid() {
			return nil, fmt.Errorf(
				"unknown aggregation '%s' for value field '%s'", aggregationName, field,
			)
		}

		values = append(values, pivot.ValueField{Field: field, Aggregation: aggregation})
	}

	return values, nil
}

func parseColorRule(rule string) (*render.ColorRule, error) {
	if rule == "" {
		return nil, nil
	}

	parts := splitList(rule)
	if len(parts) != 3 {
		return nil, errors.New("expected color rule in the form threshold,#lowColor,#highColor")
	}

	threshold, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, wrap.Errorf(err, "invalid color threshold '%s'", parts[0])
	}

	colorRule := render.ColorRule{Threshold: threshold, ColorLow: parts[1], ColorHigh: parts[2]}
	if err := colorRule.Validate(); err != nil {
		return nil, err
	}
	return &colorRule, nil
}

func parseOrientation(name string) (render.Orientation, error) {
	var orientation render.Orientation
	if err := orientation.UnmarshalJSON([]byte(strconv.Quote(name))); err != nil {
		return 0, wrap.Errorf(err, "invalid orientation '%s'", name)
	}
	return orientation, nil
}

func parseChartKind(name string) (render.ChartKind, error) {
	var kind render.ChartKind
	if err := kind.UnmarshalJSON([]byte(strconv.Quote(name))); err != nil {
		return 0, wrap.Errorf(err, "invalid chart kind '%s'", name)
	}
	return kind, nil
}

func readFilters(path string) ([]filter.Condition, error) {
	var conditions []filter.Condition
	if err := readJSONFile(path, &conditions); err != nil {
		return nil, err
	}

	if errs := filter.ValidateAll(conditions); len(errs) != 0 {
		return nil, wrap.Errors("invalid filters", errs...)
	}
	return conditions, nil
}

func readJoinQuery(path string) (db.JoinQuery, error) {
	var query db.JoinQuery
	if err := readJSONFile(path, &query); err != nil {
		return db.JoinQuery{}, err
	}

	if errs := query.Validate(); len(errs) != 0 {
		return db.JoinQuery{}, wrap.Errors("invalid join query", errs...)
	}
	return query, nil
}

func readJSONFile(path string, target any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return wrap.Errorf(err, "failed to read '%s'", path)
	}

	if err := json.Unmarshal(content, target); err != nil {
		return wrap.Errorf(err, "failed to parse JSON in '%s'", path)
	}
	return nil
}
