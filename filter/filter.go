package filter

import (
	"log/slog"
	"strings"

	"hermannm.dev/devlog/log"
	"hermannm.dev/pivot/datatypes"
)

// Date-normalizes the records, and returns those that match every condition. An empty condition
// list returns all the date-normalized records. Conditions never fail: values that cannot be
// compared simply do not match, and unknown operators let every record pass.
func Apply(
	records []datatypes.Record,
	conditions []Condition,
	fields []datatypes.Field,
) []datatypes.Record {
	normalized := datatypes.NormalizeDates(records, fields)
	if len(conditions) == 0 {
		return normalized
	}

	matchers := make([]matcher, 0, len(conditions))
	for _, condition := range conditions {
		if !condition.Operator.IsValid() {
			log.Debug(
				"ignoring filter with unknown operator",
				slog.String("field", condition.Field),
			)
			continue
		}
		matchers = append(matchers, newMatcher(condition, datatypes.Lookup(fields, condition.Field)))
	}

	filtered := make([]datatypes.Record, 0, len(normalized))
	for _, record := range normalized {
		if matchesAll(record, matchers) {
			filtered = append(filtered, record)
		}
	}

	return filtered
}

// Reports whether a single, already date-normalized record matches the condition.
func Matches(record datatypes.Record, condition Condition, fields []datatypes.Field) bool {
	if !condition.Operator.IsValid() {
		return true
	}
	return newMatcher(condition, datatypes.Lookup(fields, condition.Field)).matches(record)
}

func matchesAll(record datatypes.Record, matchers []matcher) bool {
	for _, matcher := range matchers {
		if !matcher.matches(record) {
			return false
		}
	}
	return true
}

// A condition with its comparison values prepared once per Apply.
type matcher struct {
	condition Condition
	numeric   bool

	number  float64
	number2 float64

	text     string
	text2    string
	textList map[string]struct{}

	dateFrom   string
	dateTo     string
	datesValid bool
}

func newMatcher(condition Condition, fieldType datatypes.DataType) matcher {
	matcher := matcher{
		condition: condition,
		numeric:   fieldType == datatypes.DataTypeNumber,
		text:      strings.ToLower(condition.Value),
		text2:     strings.ToLower(condition.Value2),
	}

	switch condition.Operator {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan, OperatorBetween:
		matcher.number = datatypes.ToNumber(condition.Value)
		matcher.number2 = datatypes.ToNumber(condition.Value2)
	case OperatorInList:
		matcher.textList = make(map[string]struct{}, len(condition.ValueList))
		for _, value := range condition.ValueList {
			matcher.textList[strings.ToLower(value)] = struct{}{}
		}
	case OperatorDateRange:
		upper := condition.Value2
		if upper == "" {
			upper = condition.Value
		}

		from, fromOK := datatypes.ParseDate(condition.Value)
		to, toOK := datatypes.ParseDate(upper)
		if fromOK && toOK {
			matcher.dateFrom = from.Format(datatypes.DateLayout)
			matcher.dateTo = to.Format(datatypes.DateLayout)
			matcher.datesValid = true
		}
	}

	return matcher
}

func (matcher matcher) matches(record datatypes.Record) bool {
	value := record[matcher.condition.Field]

	if matcher.numeric {
		if matched, handled := matcher.matchesNumber(value); handled {
			return matched
		}
	}

	return matcher.matchesText(value)
}

// Numeric comparisons treat nil as 0, while isEmpty/notEmpty only look at whether the value is
// nil. Operators without a numeric meaning are not handled, and fall back to text matching.
func (matcher matcher) matchesNumber(value any) (matched bool, handled bool) {
	switch matcher.condition.Operator {
	case OperatorIsEmpty:
		return value == nil, true
	case OperatorNotEmpty:
		return value != nil, true
	}

	var number float64
	if value != nil {
		number = datatypes.ToNumber(value)
	}

	switch matcher.condition.Operator {
	case OperatorEquals:
		return number == matcher.number, true
	case OperatorNotEquals:
		return number != matcher.number, true
	case OperatorGreaterThan:
		return number > matcher.number, true
	case OperatorLessThan:
		return number < matcher.number, true
	case OperatorBetween:
		return number >= matcher.number && number <= matcher.number2, true
	default:
		return false, false
	}
}

func (matcher matcher) matchesText(value any) bool {
	text := strings.ToLower(datatypes.StringOf(value))

	switch matcher.condition.Operator {
	case OperatorEquals:
		return text == matcher.text
	case OperatorNotEquals:
		return text != matcher.text
	case OperatorContains:
		return strings.Contains(text, matcher.text)
	case OperatorStartsWith:
		return strings.HasPrefix(text, matcher.text)
	case OperatorEndsWith:
		return strings.HasSuffix(text, matcher.text)
	case OperatorGreaterThan:
		return text > matcher.text
	case OperatorLessThan:
		return text < matcher.text
	case OperatorBetween:
		return text >= matcher.text && text <= matcher.text2
	case OperatorInList:
		_, ok := matcher.textList[text]
		return ok
	case OperatorDateRange:
		if !matcher.datesValid {
			return false
		}
		date, ok := datatypes.ParseDate(datatypes.StringOf(value))
		if !ok {
			return false
		}
		day := date.Format(datatypes.DateLayout)
		return day >= matcher.dateFrom && day <= matcher.dateTo
	case OperatorIsEmpty:
		return isEmptyText(text)
	case OperatorNotEmpty:
		return !isEmptyText(text)
	default:
		return true
	}
}

func isEmptyText(text string) bool {
	return text == "" || text == "null" || text == "undefined"
}
