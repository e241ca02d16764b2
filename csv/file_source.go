package csv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/db"
	"hermannm.dev/wrap"
)

const fileExtension = ".csv"

// FileSource reads data sources from CSV files in a directory, where the data source ID is the file
// name without its extension.
type FileSource struct {
	Dir        string
	MaxRecords int
}

func (source FileSource) FetchRecords(
	ctx context.Context,
	dataSourceID string,
) ([]datatypes.Record, error) {
	dataset, err := source.ReadDataset(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	return dataset.Records, nil
}

// Returns the fields deduced from the data source's CSV file, or an empty list if there is no such
// file.
func (source FileSource) Fields(ctx context.Context, dataSourceID string) ([]datatypes.Field, error) {
	dataset, err := source.ReadDataset(ctx, dataSourceID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []datatypes.Field{}, nil
		}
		return nil, err
	}
	return dataset.Fields, nil
}

func (source FileSource) ReadDataset(ctx context.Context, dataSourceID string) (db.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return db.Dataset{}, err
	}

	path, err := source.path(dataSourceID)
	if err != nil {
		return db.Dataset{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return db.Dataset{}, wrap.Errorf(err, "failed to open CSV file for data source '%s'", dataSourceID)
	}
	defer file.Close()

	dataset, err := ReadDataset(file, source.MaxRecords)
	if err != nil {
		return db.Dataset{}, wrap.Errorf(err, "failed to read CSV file '%s'", path)
	}
	return dataset, nil
}

func (source FileSource) path(dataSourceID string) (string, error) {
	if dataSourceID == "" || dataSourceID == "." || dataSourceID == ".." ||
		strings.ContainsAny(dataSourceID, `/\`) {
		return "", fmt.Errorf("invalid data source ID '%s' for CSV file", dataSourceID)
	}
	return filepath.Join(source.Dir, dataSourceID+fileExtension), nil
}

// Lists the data source IDs of the CSV files in the directory, sorted.
func (source FileSource) DataSources() ([]string, error) {
	entries, err := os.ReadDir(source.Dir)
	if err != nil {
		return nil, wrap.Errorf(err, "failed to read data directory '%s'", source.Dir)
	}

	dataSources := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(name), fileExtension) {
			dataSources = append(dataSources, strings.TrimSuffix(name, filepath.Ext(name)))
		}
	}
	slices.Sort(dataSources)

	return dataSources, nil
}
