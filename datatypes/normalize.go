package datatypes

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Canonical layout of normalized date values.
const DateLayout = "2006-01-02"

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Self-delimiting formats tried before timestamp truncation, since their weekday names may contain
// a 'T' (e.g. "Tue").
var headerDateLayouts = []string{time.RFC1123, time.RFC1123Z}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// Returns new records where every field declared as a number has nil, missing and "N/A" values
// replaced by 0, and every field declared as a date is normalized by NormalizeDate. Other values are
// copied as-is, and coercion of numeric values is left to aggregation.
func Normalize(records []Record, fields []Field) []Record {
	return normalizeRecords(records, fields, true)
}

// Like Normalize, but only applies the date rule.
func NormalizeDates(records []Record, fields []Field) []Record {
	return normalizeRecords(records, fields, false)
}

func normalizeRecords(records []Record, fields []Field, includeNumbers bool) []Record {
	normalized := make([]Record, len(records))

	for i, record := range records {
		newRecord := record.Clone()
		if newRecord == nil {
			newRecord = Record{}
		}

		for _, field := range fields {
			switch field.Type {
			case DataTypeNumber:
				if includeNumbers {
					value, ok := newRecord[field.Key]
					if !ok || value == nil || value == MissingGroupValue {
						newRecord[field.Key] = float64(0)
					}
				}
			case DataTypeDate:
				if value, ok := newRecord[field.Key]; ok {
					newRecord[field.Key] = NormalizeDate(value)
				}
			}
		}

		normalized[i] = newRecord
	}

	return normalized
}

// Normalizes a date value to the YYYY-MM-DD form:
//   - nil stays nil
//   - time.Time values are formatted
//   - numbers are treated as Unix milliseconds
//   - strings containing 'T' are truncated at the first 'T'
//   - strings in YYYY-MM-DD form pass through
//   - other strings are parsed with a fixed set of layouts, and left as-is if none match
func NormalizeDate(value any) any {
	switch value := value.(type) {
	case nil:
		return nil
	case string:
		return normalizeDateString(value)
	case time.Time:
		return value.Format(DateLayout)
	}

	if millis, ok := numericValue(value); ok {
		if math.IsNaN(millis) || math.IsInf(millis, 0) {
			return StringOf(value)
		}
		return time.UnixMilli(int64(millis)).UTC().Format(DateLayout)
	}

	return normalizeDateString(StringOf(value))
}

func normalizeDateString(value string) string {
	for _, layout := range headerDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format(DateLayout)
		}
	}

	if index := strings.IndexByte(value, 'T'); index != -1 {
		value = value[:index]
	}

	if isoDatePattern.MatchString(value) {
		return value
	}

	if parsed, ok := ParseDate(value); ok {
		return parsed.Format(DateLayout)
	}

	return value
}

// Parses a date in one of the accepted layouts, ignoring any time-of-day after a 'T'.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, true
	}
	if index := strings.IndexByte(value, 'T'); index > 0 && isoDatePattern.MatchString(value[:index]) {
		value = value[:index]
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}
