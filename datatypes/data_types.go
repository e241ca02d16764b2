package datatypes

import (
	"strings"

	"hermannm.dev/enumnames"
)

type DataType int8

const (
	DataTypeText DataType = iota + 1
	DataTypeNumber
	DataTypeDate
)

var dataTypeMap = enumnames.NewMap(map[DataType]string{
	DataTypeText:   "text",
	DataTypeNumber: "number",
	DataTypeDate:   "date",
})

func (dataType DataType) IsValid() bool {
	return dataTypeMap.ContainsKey(dataType)
}

func (dataType DataType) String() string {
	return dataTypeMap.GetNameOrFallback(dataType, "INVALID_DATA_TYPE")
}

func (dataType DataType) MarshalJSON() ([]byte, error) {
	return dataTypeMap.MarshalToNameJSON(dataType)
}

func (dataType *DataType) UnmarshalJSON(bytes []byte) error {
	return dataTypeMap.UnmarshalFromNameJSON(bytes, dataType)
}

// Maps a column type name from SQL databases, ClickHouse or Elasticsearch mappings to the data type
// used when pivoting on that column. Unrecognized types are treated as text.
func DataTypeFromDatabaseType(dbType string) DataType {
	name := strings.ToLower(strings.TrimSpace(dbType))

	// ClickHouse wraps types in e.g. Nullable(...) and LowCardinality(...)
	for unwrapped := false; !unwrapped; {
		unwrapped = true
		for _, wrapper := range []string{"nullable(", "lowcardinality("} {
			if strings.HasPrefix(name, wrapper) && strings.HasSuffix(name, ")") {
				name = name[len(wrapper) : len(name)-1]
				unwrapped = false
			}
		}
	}

	if index := strings.IndexAny(name, "( "); index != -1 {
		switch {
		case strings.HasPrefix(name, "timestamp"), strings.HasPrefix(name, "double precision"):
		default:
			name = name[:index]
		}
	}

	if name == "interval" {
		return DataTypeText
	}

	switch {
	case strings.HasPrefix(name, "int"), strings.HasPrefix(name, "uint"),
		strings.HasPrefix(name, "float"), strings.HasPrefix(name, "decimal"):
		return DataTypeNumber
	case strings.HasPrefix(name, "timestamp"), strings.HasPrefix(name, "datetime"):
		return DataTypeDate
	}

	switch name {
	case "smallint", "bigint", "tinyint", "mediumint", "serial", "bigserial", "smallserial",
		"numeric", "real", "double", "double precision", "money", "number",
		"long", "short", "byte", "half_float", "scaled_float", "unsigned_long":
		return DataTypeNumber
	case "date", "date32", "date_nanos":
		return DataTypeDate
	default:
		return DataTypeText
	}
}
