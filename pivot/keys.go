package pivot

import (
	"errors"
	"fmt"
	"strings"

	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/wrap"
)

const (
	// Separates the group, field and aggregation of a column key in its text form.
	columnKeySeparator = "|||"
	// Separates the components of a composite column group in its display form.
	groupLabelSeparator = " | "
	// Separates the path components of a row node key.
	rowKeySeparator = '|'

	totalMarker = "Total"
)

// ColumnGroup is the composite value of a record's column fields, with one component per field.
// Components are escaped before joining, so a ColumnGroup is comparable and collision-free even
// when values contain separators.
type ColumnGroup string

func NewColumnGroup(components ...string) ColumnGroup {
	return ColumnGroup(joinEscaped(components, rowKeySeparator))
}

func ColumnGroupOf(record datatypes.Record, columnFields []string) ColumnGroup {
	components := make([]string, len(columnFields))
	for i, field := range columnFields {
		components[i] = datatypes.GroupValue(record, field)
	}
	return NewColumnGroup(components...)
}

func (group ColumnGroup) Components() []string {
	return splitEscaped(string(group), rowKeySeparator)
}

// Returns the group's components joined by " | ".
func (group ColumnGroup) Label() string {
	return strings.Join(group.Components(), groupLabelSeparator)
}

// ColumnKey identifies a materialized pivot column: a value field aggregated over the records of a
// column group, or over all of a row's records when Total is set. The legacy total column, used
// when no value fields are configured, has Total set and no field.
type ColumnKey struct {
	Group       ColumnGroup
	Total       bool
	Field       string
	Aggregation Aggregation
}

// Column used when no value fields are configured. Its cells count records.
var LegacyTotalColumn = ColumnKey{Total: true}

func TotalColumn(field string, aggregation Aggregation) ColumnKey {
	return ColumnKey{Total: true, Field: field, Aggregation: aggregation}
}

func GroupColumn(group ColumnGroup, field string, aggregation Aggregation) ColumnKey {
	return ColumnKey{Group: group, Field: field, Aggregation: aggregation}
}

func (key ColumnKey) IsLegacyTotal() bool {
	return key.Total && key.Field == ""
}

// Returns the display label of the column group, or "Total".
func (key ColumnKey) GroupLabel() string {
	if key.Total {
		return totalMarker
	}
	return key.Group.Label()
}

// Returns the unescaped form "<group>|||<field>|||<aggregation>" for display. Use MarshalText for
// a form that can be parsed back.
func (key ColumnKey) String() string {
	if key.IsLegacyTotal() {
		return totalMarker
	}
	return key.GroupLabel() + columnKeySeparator + key.Field + columnKeySeparator +
		key.Aggregation.String()
}

// Label in the form "<group> | <field label> (<aggregation>)".
func (key ColumnKey) Label(fields []datatypes.Field) string {
	if key.IsLegacyTotal() {
		return totalMarker
	}
	return fmt.Sprintf(
		"%s%s%s (%s)",
		key.GroupLabel(),
		groupLabelSeparator,
		datatypes.Label(fields, key.Field),
		key.Aggregation,
	)
}

// Encodes the key as "<group>|||<field>|||<aggregation>", "Total|||<field>|||<aggregation>" or
// "Total". Backslashes and pipes inside values are escaped with a backslash, and a group spelled
// exactly "Total" is written as `\Total`.
func (key ColumnKey) MarshalText() ([]byte, error) {
	if key.IsLegacyTotal() {
		return []byte(totalMarker), nil
	}

	var builder strings.Builder

	if key.Total {
		builder.WriteString(totalMarker)
	} else {
		components := key.Group.Components()
		for i, component := range components {
			if i != 0 {
				builder.WriteString(groupLabelSeparator)
			}
			escaped := escape(component)
			if len(components) == 1 && escaped == totalMarker {
				builder.WriteByte('\\')
			}
			builder.WriteString(escaped)
		}
	}

	builder.WriteString(columnKeySeparator)
	builder.WriteString(escape(key.Field))
	builder.WriteString(columnKeySeparator)
	builder.WriteString(key.Aggregation.String())

	return []byte(builder.String()), nil
}

func (key *ColumnKey) UnmarshalText(text []byte) error {
	parsed, err := ParseColumnKey(string(text))
	if err != nil {
		return err
	}
	*key = parsed
	return nil
}

// Parses the text form produced by MarshalText. Unknown aggregation names parse to
// AggregationUnknown.
func ParseColumnKey(text string) (ColumnKey, error) {
	if text == totalMarker {
		return LegacyTotalColumn, nil
	}

	segments := splitSegments(text)
	if len(segments) != 3 {
		return ColumnKey{}, fmt.Errorf(
			"invalid column key '%s': expected 3 segments separated by '%s', got %d",
			text,
			columnKeySeparator,
			len(segments),
		)
	}

	field, err := unescape(segments[1])
	if err != nil {
		return ColumnKey{}, wrap.Errorf(err, "invalid field in column key '%s'", text)
	}
	if field == "" {
		return ColumnKey{}, fmt.Errorf("invalid column key '%s': field is blank", text)
	}

	aggregation := ParseAggregation(segments[2])

	if segments[0] == totalMarker {
		return TotalColumn(field, aggregation), nil
	}

	var components []string
	for _, rawComponent := range splitUnescaped(segments[0], rowKeySeparator) {
		component, err := unescape(rawComponent)
		if err != nil {
			return ColumnKey{}, wrap.Errorf(err, "invalid column group in column key '%s'", text)
		}
		components = append(components, component)
	}
	trimGroupSeparatorSpaces(components)

	return GroupColumn(NewColumnGroup(components...), field, aggregation), nil
}

// Removes the spaces that surround each separator in " | "-joined components.
func trimGroupSeparatorSpaces(components []string) {
	for i := range components {
		if i != 0 {
			components[i] = strings.TrimPrefix(components[i], " ")
		}
		if i != len(components)-1 {
			components[i] = strings.TrimSuffix(components[i], " ")
		}
	}
}

// Returns the key identifying the row node at the given path from the root.
func RowKey(path []string) string {
	return joinEscaped(path, rowKeySeparator)
}

func ParseRowKey(key string) ([]string, error) {
	var path []string
	for _, rawComponent := range splitUnescaped(key, rowKeySeparator) {
		component, err := unescape(rawComponent)
		if err != nil {
			return nil, wrap.Errorf(err, "invalid row key '%s'", key)
		}
		path = append(path, component)
	}
	return path, nil
}

func escape(value string) string {
	if !strings.ContainsAny(value, `\|`) {
		return value
	}

	var builder strings.Builder
	builder.Grow(len(value) + 2)
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' || value[i] == '|' {
			builder.WriteByte('\\')
		}
		builder.WriteByte(value[i])
	}
	return builder.String()
}

func unescape(value string) (string, error) {
	if !strings.ContainsRune(value, '\\') {
		return value, nil
	}

	var builder strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' {
			i++
			if i == len(value) {
				return "", errors.New("dangling escape character at end of value")
			}
		}
		builder.WriteByte(value[i])
	}
	return builder.String(), nil
}

func joinEscaped(components []string, separator byte) string {
	var builder strings.Builder
	for i, component := range components {
		if i != 0 {
			builder.WriteByte(separator)
		}
		builder.WriteString(escape(component))
	}
	return builder.String()
}

func splitEscaped(joined string, separator byte) []string {
	components := splitUnescaped(joined, separator)
	for i, component := range components {
		// Values produced by joinEscaped are always well-formed
		components[i], _ = unescape(component)
	}
	return components
}

// Splits on separators that are not preceded by an escape character, leaving escapes in place.
func splitUnescaped(value string, separator byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\\':
			i++
		case separator:
			parts = append(parts, value[start:i])
			start = i + 1
		}
	}
	return append(parts, value[start:])
}

// Splits a column key on unescaped "|||".
func splitSegments(value string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(value); i++ {
		switch {
		case value[i] == '\\':
			i++
		case strings.HasPrefix(value[i:], columnKeySeparator):
			segments = append(segments, value[start:i])
			i += len(columnKeySeparator) - 1
			start = i + 1
		}
	}
	return append(segments, value[start:])
}
