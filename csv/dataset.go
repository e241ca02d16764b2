package csv

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/db"
	"hermannm.dev/wrap"
)

// Reads a CSV file with a header row into records keyed by header. Field types are deduced from
// the cells of each column: number if every non-blank cell is numeric, date if every non-blank
// cell is a date, otherwise text. Blank cells become nil, and numeric cells become float64.
//
// At most maxRecords rows are read, or all rows if maxRecords is 0.
func ReadDataset(csvFile io.ReadSeeker, maxRecords int) (db.Dataset, error) {
	reader, err := NewReader(csvFile)
	if err != nil {
		return db.Dataset{}, wrap.Error(err, "failed to initialize CSV reader")
	}

	header := reader.Header()
	if err := validateHeader(header); err != nil {
		return db.Dataset{}, wrap.Error(err, "invalid CSV header row")
	}

	columns, err := reader.deduceColumnTypes(header, maxRecords)
	if err != nil {
		return db.Dataset{}, err
	}

	if err := reader.Rewind(); err != nil {
		return db.Dataset{}, wrap.Error(err, "failed to reset CSV file after deducing field types")
	}

	records := []datatypes.Record{}
	for maxRecords <= 0 || len(records) < maxRecords {
		row, err := reader.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return db.Dataset{}, err
		}

		record := make(datatypes.Record, len(header))
		for i, cell := range row {
			record[header[i]] = columns[i].value(cell)
		}
		records = append(records, record)
	}

	fields := make([]datatypes.Field, len(header))
	for i, name := range header {
		fields[i] = datatypes.Field{Key: name, Label: name, Type: columns[i].fieldType()}
	}

	log.Debug(
		"read CSV dataset",
		slog.String("delimiter", string(reader.Delimiter())),
		slog.Int("records", len(records)),
		slog.Int("fields", len(fields)),
	)

	return db.Dataset{Records: records, Fields: fields}, nil
}

func validateHeader(header []string) error {
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		if name == "" {
			return fmt.Errorf("column %d has a blank name", i+1)
		}
		if _, duplicate := seen[name]; duplicate {
			return fmt.Errorf("column name '%s' appears more than once", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

type columnType struct {
	dataType datatypes.DataType
}

func (reader *Reader) deduceColumnTypes(header []string, maxRows int) ([]columnType, error) {
	columns := make([]columnType, len(header))

	for rows := 0; maxRows <= 0 || rows < maxRows; rows++ {
		row, err := reader.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		for i, cell := range row {
			columns[i].addCell(cell)
		}
	}

	return columns, nil
}

func (column *columnType) addCell(cell string) {
	cell = strings.TrimSpace(cell)
	if cell == "" || column.dataType == datatypes.DataTypeText {
		return
	}

	cellType := deduceCellType(cell)
	if column.dataType == 0 {
		column.dataType = cellType
	} else if column.dataType != cellType {
		column.dataType = datatypes.DataTypeText
	}
}

// Columns with only blank cells are text.
func (column columnType) fieldType() datatypes.DataType {
	if column.dataType == 0 {
		return datatypes.DataTypeText
	}
	return column.dataType
}

func (column columnType) value(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}

	if column.dataType == datatypes.DataTypeNumber {
		if number, ok := parseNumber(trimmed); ok {
			return number
		}
	}
	return strings.Clone(cell)
}

// UUIDs are identifiers, even when every digit is decimal.
func deduceCellType(cell string) datatypes.DataType {
	if _, err := uuid.Parse(cell); err == nil {
		return datatypes.DataTypeText
	}
	if _, ok := parseNumber(cell); ok {
		return datatypes.DataTypeNumber
	}
	if _, ok := datatypes.ParseDate(cell); ok {
		return datatypes.DataTypeDate
	}
	return datatypes.DataTypeText
}

// Parses decimal numbers, rejecting the special values accepted by strconv.
func parseNumber(cell string) (float64, bool) {
	number, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return number, true
}
