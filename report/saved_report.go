package report

import (
	"encoding/json"
	"errors"

	"hermannm.dev/pivot/filter"
	"hermannm.dev/pivot/pivot"
	"hermannm.dev/wrap"
)

// SavedReport is the persisted form of a report. Its JSON shape is exactly
// {dataSource, reportName, pivotConfig, filters}.
type SavedReport struct {
	DataSource  string             `json:"dataSource"`
	ReportName  string             `json:"reportName"`
	PivotConfig pivot.Config       `json:"pivotConfig"`
	Filters     []filter.Condition `json:"filters"`
}

func (report SavedReport) MarshalJSON() ([]byte, error) {
	type plainReport SavedReport
	plain := plainReport(report)
	if plain.Filters == nil {
		plain.Filters = []filter.Condition{}
	}
	return json.Marshal(plain)
}

func ParseSavedReport(bytes []byte) (SavedReport, error) {
	var report SavedReport
	if err := json.Unmarshal(bytes, &report); err != nil {
		return SavedReport{}, wrap.Error(err, "failed to parse saved report JSON")
	}
	return report, nil
}

func (report SavedReport) Validate() []error {
	var errs []error

	if report.ReportName == "" {
		errs = append(errs, errors.New("report name is blank"))
	}
	if report.DataSource == "" {
		errs = append(errs, errors.New("data source is blank"))
	}

	for _, err := range report.PivotConfig.Validate() {
		errs = append(errs, wrap.Error(err, "invalid pivot config"))
	}
	errs = append(errs, filter.ValidateAll(report.Filters)...)

	return errs
}
