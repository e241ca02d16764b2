package pivot

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Config selects how records are cross-tabulated. The order of Rows defines the grouping hierarchy
// (Rows[0] is the outermost level), and Columns are combined into one composite column group.
type Config struct {
	Rows    []string     `json:"rows"`
	Columns []string     `json:"columns"`
	Values  []ValueField `json:"values"`
}

type ValueField struct {
	Field       string      `json:"field"`
	Aggregation Aggregation `json:"aggregation"`
}

// A pivot table is only rendered when at least one row field is configured.
func (config Config) CanRender() bool {
	return len(config.Rows) != 0
}

// Reports whether the row fields differ, which invalidates expanded row keys.
func (config Config) RowsChanged(other Config) bool {
	return !slices.Equal(config.Rows, other.Rows)
}

func (config Config) Clone() Config {
	return Config{
		Rows:    slices.Clone(config.Rows),
		Columns: slices.Clone(config.Columns),
		Values:  slices.Clone(config.Values),
	}
}

// Encodes empty field lists as [] rather than null.
func (config Config) MarshalJSON() ([]byte, error) {
	type plainConfig Config
	plain := plainConfig(config)
	if plain.Rows == nil {
		plain.Rows = []string{}
	}
	if plain.Columns == nil {
		plain.Columns = []string{}
	}
	if plain.Values == nil {
		plain.Values = []ValueField{}
	}
	return json.Marshal(plain)
}

func (config Config) Validate() []error {
	var errs []error

	if !config.CanRender() {
		errs = append(errs, errors.New("no row fields configured"))
	}

	for i, row := range config.Rows {
		if row == "" {
			errs = append(errs, fmt.Errorf("row field %d is blank", i))
		}
	}
	for i, column := range config.Columns {
		if column == "" {
			errs = append(errs, fmt.Errorf("column field %d is blank", i))
		}
	}
	for i, value := range config.Values {
		if value.Field == "" {
			errs = append(errs, fmt.Errorf("value field %d is blank", i))
		}
		if !value.Aggregation.IsValid() {
			errs = append(errs, fmt.Errorf("value field %d ('%s') has unknown aggregation", i, value.Field))
		}
	}

	return errs
}
