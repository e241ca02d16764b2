package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/wrap"
)

// Elasticsearch rejects searches past this many hits unless index.max_result_window is raised.
const maxResultWindow = 10_000

// Fetches the documents of the index named by the data source ID. Nested objects are flattened to
// dot-separated keys, matching the fields from Fields.
func (elastic ElasticsearchDB) FetchRecords(
	ctx context.Context,
	dataSourceID string,
) ([]datatypes.Record, error) {
	size := elastic.maxRecords
	if size <= 0 || size > maxResultWindow {
		log.Debug(
			"limiting Elasticsearch search size to max result window",
			slog.Int("maxRecords", elastic.maxRecords),
			slog.Int("maxResultWindow", maxResultWindow),
		)
		size = maxResultWindow
	}

	response, err := elastic.client.Search().
		Index(dataSourceID).
		Request(&search.Request{
			Query: &types.Query{MatchAll: &types.MatchAllQuery{}},
			Size:  &size,
		}).
		Do(ctx)
	if err != nil {
		if isIndexNotFoundError(err) {
			return nil, wrapElasticErrorf(
				err, "no Elasticsearch index found for data source '%s'", dataSourceID,
			)
		}
		return nil, wrapElasticErrorf(err, "Elasticsearch search request failed")
	}

	records := make([]datatypes.Record, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		record, err := parseSource(hit.Source_)
		if err != nil {
			return nil, wrap.Errorf(err, "failed to parse source of document in index '%s'", dataSourceID)
		}
		records = append(records, record)
	}

	if total := response.Hits.Total; total != nil && total.Value > int64(len(records)) {
		log.Warnf(
			"fetched %d of %d documents from index '%s'",
			len(records), total.Value, dataSourceID,
		)
	}

	return records, nil
}

func parseSource(source json.RawMessage) (datatypes.Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(source))
	decoder.UseNumber()

	var document map[string]any
	if err := decoder.Decode(&document); err != nil {
		return nil, err
	}

	record := make(datatypes.Record, len(document))
	flattenObject(record, "", document)
	return record, nil
}

func flattenObject(record datatypes.Record, prefix string, object map[string]any) {
	for key, value := range object {
		if prefix != "" {
			key = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			flattenObject(record, key, nested)
		} else {
			record[key] = value
		}
	}
}

// Returns the fields of the index named by the data source ID, from its mapping.
func (elastic ElasticsearchDB) Fields(
	ctx context.Context,
	dataSourceID string,
) ([]datatypes.Field, error) {
	schema, err := elastic.mappingSchema(ctx, dataSourceID)
	if err != nil {
		if isIndexNotFoundError(err) {
			return []datatypes.Field{}, nil
		}
		return nil, err
	}

	table, ok := schema.Table(dataSourceID)
	if !ok {
		return []datatypes.Field{}, nil
	}

	fields := make([]datatypes.Field, 0, len(table.Columns))
	for _, column := range table.Columns {
		fields = append(fields, datatypes.Field{
			Key:   column.Name,
			Label: column.Name,
			Type:  datatypes.DataTypeFromDatabaseType(column.DataType),
		})
	}
	return fields, nil
}

// Describes every non-hidden index as a table. Indices have no relations.
func (elastic ElasticsearchDB) Schema(ctx context.Context) (datatypes.Schema, error) {
	return elastic.mappingSchema(ctx, "")
}

func (elastic ElasticsearchDB) mappingSchema(ctx context.Context, index string) (datatypes.Schema, error) {
	request := elastic.client.Indices.GetMapping()
	if index != "" {
		request = request.Index(index)
	}

	response, err := request.Do(ctx)
	if err != nil {
		return datatypes.Schema{}, wrapElasticErrorf(err, "Elasticsearch get mapping request failed")
	}

	indices := make([]string, 0, len(response))
	for name := range response {
		if !strings.HasPrefix(name, ".") {
			indices = append(indices, name)
		}
	}
	sort.Strings(indices)

	schema := datatypes.Schema{Tables: make([]datatypes.TableSchema, 0, len(indices))}
	for _, name := range indices {
		columns, err := mappingColumns(response[name].Mappings.Properties)
		if err != nil {
			return datatypes.Schema{}, wrap.Errorf(err, "failed to parse mapping of index '%s'", name)
		}
		schema.Tables = append(schema.Tables, datatypes.TableSchema{Name: name, Columns: columns})
	}

	return schema, nil
}

type mappingProperty struct {
	Type       string                     `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// Returns a column per leaf property, with nested object properties flattened to dot-separated
// names, sorted by name.
func mappingColumns(properties map[string]types.Property) ([]datatypes.ColumnSchema, error) {
	rawProperties := make(map[string]json.RawMessage, len(properties))
	for name, property := range properties {
		raw, err := json.Marshal(property)
		if err != nil {
			return nil, wrap.Errorf(err, "failed to serialize mapping property '%s'", name)
		}
		rawProperties[name] = raw
	}

	columns := []datatypes.ColumnSchema{}
	if err := appendMappingColumns(&columns, "", rawProperties); err != nil {
		return nil, err
	}

	sort.Slice(columns, func(i, j int) bool {
		return columns[i].Name < columns[j].Name
	})
	return columns, nil
}

func appendMappingColumns(
	columns *[]datatypes.ColumnSchema,
	prefix string,
	properties map[string]json.RawMessage,
) error {
	for name, raw := range properties {
		if prefix != "" {
			name = prefix + "." + name
		}

		var property mappingProperty
		if err := json.Unmarshal(raw, &property); err != nil {
			return wrap.Errorf(err, "failed to parse mapping property '%s'", name)
		}

		if len(property.Properties) != 0 {
			if err := appendMappingColumns(columns, name, property.Properties); err != nil {
				return err
			}
			continue
		}

		*columns = append(*columns, datatypes.ColumnSchema{Name: name, DataType: property.Type})
	}
	return nil
}
