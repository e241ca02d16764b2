package filter

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/devlog"
	"hermannm.dev/pivot/datatypes"
)

func TestMain(m *testing.M) {
	logHandler := devlog.NewHandler(os.Stdout, &devlog.Options{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(logHandler))

	os.Exit(m.Run())
}

var fields = []datatypes.Field{
	{Key: "project", Label: "Project", Type: datatypes.DataTypeText},
	{Key: "hours", Label: "Hours", Type: datatypes.DataTypeNumber},
	{Key: "date", Label: "Date", Type: datatypes.DataTypeDate},
}

var records = []datatypes.Record{
	{"project": "Apollo", "hours": 2.0, "date": "2026-03-01T08:00:00Z"},
	{"project": "apollo", "hours": 5.0, "date": "2026-03-15"},
	{"project": "Gemini", "hours": 1.99, "date": "2026-04-01"},
	{"project": "Mercury", "hours": 5.01, "date": "03/20/2026"},
	{"project": "", "hours": nil, "date": nil},
	{"project": "null", "hours": 0.0},
}

func projects(records []datatypes.Record) []any {
	values := make([]any, 0, len(records))
	for _, record := range records {
		values = append(values, record["project"])
	}
	return values
}

func TestEmptyConditionsDateNormalizes(t *testing.T) {
	filtered := Apply(records, nil, fields)
	require.Len(t, filtered, len(records))
	assert.Equal(t, "2026-03-01", filtered[0]["date"])
	assert.Equal(t, "2026-03-20", filtered[3]["date"])
	assert.Equal(t, "2026-03-01T08:00:00Z", records[0]["date"], "input must not be mutated")
}

func TestBetweenIsInclusive(t *testing.T) {
	input := []datatypes.Record{
		{"hours": 2}, {"hours": 5}, {"hours": 1.99}, {"hours": 5.01}, {"hours": "3"},
	}

	filtered := Apply(
		input,
		[]Condition{{Field: "hours", Operator: OperatorBetween, Value: "2", Value2: "5"}},
		fields,
	)

	assert.Equal(t, []datatypes.Record{{"hours": 2}, {"hours": 5}, {"hours": "3"}}, filtered)
}

func TestNumericOperators(t *testing.T) {
	testCases := []struct {
		condition Condition
		expected  []any
	}{
		{
			Condition{Field: "hours", Operator: OperatorEquals, Value: "5"},
			[]any{"apollo"},
		},
		{
			Condition{Field: "hours", Operator: OperatorGreaterThan, Value: "2"},
			[]any{"apollo", "Mercury"},
		},
		{
			Condition{Field: "hours", Operator: OperatorLessThan, Value: "2"},
			[]any{"Gemini", "", "null"},
		},
		{
			Condition{Field: "hours", Operator: OperatorNotEquals, Value: "0"},
			[]any{"Apollo", "apollo", "Gemini", "Mercury"},
		},
		{
			Condition{Field: "hours", Operator: OperatorEquals, Value: "abc"},
			[]any{},
		},
		{
			Condition{Field: "hours", Operator: OperatorGreaterThan, Value: "abc"},
			[]any{},
		},
		{
			Condition{Field: "hours", Operator: OperatorStartsWith, Value: "5"},
			[]any{"apollo", "Mercury"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.condition.Operator.String(), func(t *testing.T) {
			filtered := Apply(records, []Condition{testCase.condition}, fields)
			assert.Equal(t, testCase.expected, projects(filtered))
		})
	}
}

func TestNumericEmptinessOnlyChecksNil(t *testing.T) {
	empty := Apply(records, []Condition{{Field: "hours", Operator: OperatorIsEmpty}}, fields)
	assert.Equal(t, []any{""}, projects(empty))

	notEmpty := Apply(records, []Condition{{Field: "hours", Operator: OperatorNotEmpty}}, fields)
	assert.Equal(t, []any{"Apollo", "apollo", "Gemini", "Mercury", "null"}, projects(notEmpty))

	// Both 0 and nil compare as 0 for other operators
	zero := Apply(records, []Condition{{Field: "hours", Operator: OperatorEquals, Value: "0"}}, fields)
	assert.Equal(t, []any{"", "null"}, projects(zero))
}

func TestTextOperators(t *testing.T) {
	testCases := []struct {
		name      string
		condition Condition
		expected  []any
	}{
		{
			"equals is case-insensitive",
			Condition{Field: "project", Operator: OperatorEquals, Value: "APOLLO"},
			[]any{"Apollo", "apollo"},
		},
		{
			"contains",
			Condition{Field: "project", Operator: OperatorContains, Value: "ur"},
			[]any{"Mercury"},
		},
		{
			"startsWith",
			Condition{Field: "project", Operator: OperatorStartsWith, Value: "ge"},
			[]any{"Gemini"},
		},
		{
			"endsWith",
			Condition{Field: "project", Operator: OperatorEndsWith, Value: "LO"},
			[]any{"Apollo", "apollo"},
		},
		{
			"inList",
			Condition{Field: "project", Operator: OperatorInList, ValueList: []string{"gemini", "MERCURY"}},
			[]any{"Gemini", "Mercury"},
		},
		{
			"between is lexicographic",
			Condition{Field: "project", Operator: OperatorBetween, Value: "b", Value2: "h"},
			[]any{"Gemini"},
		},
		{
			"isEmpty matches stringified nulls",
			Condition{Field: "project", Operator: OperatorIsEmpty},
			[]any{"", "null"},
		},
		{
			"notEmpty",
			Condition{Field: "project", Operator: OperatorNotEmpty},
			[]any{"Apollo", "apollo", "Gemini", "Mercury"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			filtered := Apply(records, []Condition{testCase.condition}, fields)
			assert.Equal(t, testCase.expected, projects(filtered))
		})
	}
}

func TestDateRange(t *testing.T) {
	inMarch := Apply(
		records,
		[]Condition{{
			Field:    "date",
			Operator: OperatorDateRange,
			Value:    "2026-03-01",
			Value2:   "2026-03-31",
		}},
		fields,
	)
	assert.Equal(t, []any{"Apollo", "apollo", "Mercury"}, projects(inMarch))

	singleDay := Apply(
		records,
		[]Condition{{Field: "date", Operator: OperatorDateRange, Value: "2026-03-15"}},
		fields,
	)
	assert.Equal(t, []any{"apollo"}, projects(singleDay))

	invalid := Apply(
		records,
		[]Condition{{Field: "date", Operator: OperatorDateRange, Value: "someday"}},
		fields,
	)
	assert.Empty(t, invalid)
}

func TestUnknownOperatorPasses(t *testing.T) {
	var condition Condition
	require.NoError(t, json.Unmarshal(
		[]byte(`{"field":"project","operator":"fuzzyMatch","value":"x"}`),
		&condition,
	))
	assert.Equal(t, OperatorUnknown, condition.Operator)

	filtered := Apply(records, []Condition{condition}, fields)
	assert.Len(t, filtered, len(records))
	assert.True(t, Matches(records[0], condition, fields))
	assert.NotEmpty(t, condition.Validate())
}

func TestConjunctionNarrows(t *testing.T) {
	conditions := []Condition{
		{Field: "project", Operator: OperatorContains, Value: "o"},
		{Field: "hours", Operator: OperatorGreaterThan, Value: "1"},
		{Field: "date", Operator: OperatorDateRange, Value: "2026-01-01", Value2: "2026-03-31"},
	}

	combined := Apply(records, conditions, fields)
	assert.Equal(t, []any{"Apollo", "apollo"}, projects(combined))

	for _, condition := range conditions {
		single := Apply(records, []Condition{condition}, fields)
		for _, record := range combined {
			assert.Contains(t, single, record)
		}
	}
}

func TestConditionJSON(t *testing.T) {
	condition := Condition{
		Field:     "project",
		Operator:  OperatorInList,
		ValueList: []string{"A", "B"},
	}

	encoded, err := json.Marshal(condition)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"field":"project","operator":"inList","value":"","valueList":["A","B"]}`,
		string(encoded),
	)

	var decoded Condition
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, condition, decoded)
}

func TestValidate(t *testing.T) {
	assert.Empty(t, Condition{Field: "hours", Operator: OperatorBetween, Value: "1", Value2: "2"}.Validate())
	assert.Empty(t, Condition{Field: "date", Operator: OperatorDateRange, Value: "2026-01-01"}.Validate())
	assert.Len(t, Condition{Field: "hours", Operator: OperatorBetween, Value: "1"}.Validate(), 1)
	assert.Len(t, Condition{Field: "x", Operator: OperatorInList}.Validate(), 1)
	assert.Len(t, Condition{Field: "x", Operator: OperatorEquals, ValueList: []string{"a"}}.Validate(), 1)
	assert.Len(t, Condition{Operator: OperatorEquals, Value2: "b"}.Validate(), 2)

	errs := ValidateAll([]Condition{
		{Field: "x", Operator: OperatorEquals},
		{Field: "y", Operator: OperatorInList},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "filter 1")
}
