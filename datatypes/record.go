package datatypes

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// A record maps field keys to scalar values: string, float64 (or another Go numeric type), bool,
// time.Time or nil. Keys that are not declared as fields are carried along untouched.
type Record map[string]any

func (record Record) Clone() Record {
	return maps.Clone(record)
}

// Placeholder used for grouping when a record has no value for a row or column field.
const MissingGroupValue = "N/A"

// Returns the value used to group the record by the given field: its string form, or
// MissingGroupValue if the value is missing or nil.
func GroupValue(record Record, key string) string {
	value, ok := record[key]
	if !ok || value == nil {
		return MissingGroupValue
	}
	return StringOf(value)
}

// Returns the display string of a value. nil gives the empty string.
func StringOf(value any) string {
	switch value := value.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return formatFloat(value, 64)
	case float32:
		return formatFloat(float64(value), 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case int32:
		return strconv.FormatInt(int64(value), 10)
	case uint64:
		return strconv.FormatUint(value, 10)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.Format(time.RFC3339)
	case json.Number:
		return value.String()
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func formatFloat(value float64, bitSize int) string {
	switch {
	case math.IsNaN(value):
		return "NaN"
	case math.IsInf(value, 1):
		return "Infinity"
	case math.IsInf(value, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(value, 'f', -1, bitSize)
}

// Strictly converts a value to a number. Blank strings and nil give 0, booleans give 1 or 0, and
// anything that is not entirely numeric gives NaN.
func ToNumber(value any) float64 {
	if number, ok := numericValue(value); ok {
		return number
	}

	switch value := value.(type) {
	case nil:
		return 0
	case bool:
		if value {
			return 1
		}
		return 0
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return 0
		}
		return parseNumberLiteral(trimmed)
	case json.Number:
		return parseNumberLiteral(value.String())
	case time.Time:
		return float64(value.UnixMilli())
	default:
		return math.NaN()
	}
}

func parseNumberLiteral(literal string) float64 {
	switch literal {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	// ParseFloat accepts spellings such as "inf" and "nan" which are not number literals here
	lower := strings.ToLower(literal)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") ||
		strings.Contains(lower, "_") {
		return math.NaN()
	}

	number, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return math.NaN()
	}
	return number
}

var leadingFloatPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Parses the longest numeric prefix of the value's string form, giving 0 when there is none (so
// "12.5h" gives 12.5, while "N/A" and nil give 0).
func LeadingFloat(value any) float64 {
	if number, ok := numericValue(value); ok {
		if math.IsNaN(number) {
			return 0
		}
		return number
	}

	text := strings.TrimLeft(StringOf(value), " \t\n\r\f\v")
	if text == "" || value == nil {
		return 0
	}

	for _, infinity := range []string{"Infinity", "+Infinity"} {
		if strings.HasPrefix(text, infinity) {
			return math.Inf(1)
		}
	}
	if strings.HasPrefix(text, "-Infinity") {
		return math.Inf(-1)
	}

	prefix := leadingFloatPattern.FindString(text)
	if prefix == "" {
		return 0
	}

	number, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(number) {
		return 0
	}
	return number
}

func numericValue(value any) (float64, bool) {
	switch value := value.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int8:
		return float64(value), true
	case int16:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case uint:
		return float64(value), true
	case uint8:
		return float64(value), true
	case uint16:
		return float64(value), true
	case uint32:
		return float64(value), true
	case uint64:
		return float64(value), true
	default:
		return 0, false
	}
}
