package filter

import (
	"errors"
	"fmt"
)

type Condition struct {
	Field     string   `json:"field"`
	Operator  Operator `json:"operator"`
	Value     string   `json:"value"`
	Value2    string   `json:"value2,omitempty"`
	ValueList []string `json:"valueList,omitempty"`
}

// Checks that the condition's values fit its operator. Apply never rejects conditions, so this is
// only used to warn about conditions before they are saved.
func (condition Condition) Validate() []error {
	var errs []error

	if condition.Field == "" {
		errs = append(errs, errors.New("filter field is blank"))
	}

	if !condition.Operator.IsValid() {
		errs = append(errs, fmt.Errorf("unknown operator on field '%s'", condition.Field))
		return errs
	}

	switch condition.Operator {
	case OperatorBetween:
		if condition.Value2 == "" {
			errs = append(errs, errors.New("'between' requires an upper bound in value2"))
		}
	case OperatorDateRange:
	default:
		if condition.Value2 != "" {
			errs = append(
				errs,
				fmt.Errorf("value2 is only used by 'between' and 'dateRange', not '%s'", condition.Operator),
			)
		}
	}

	if condition.Operator == OperatorInList {
		if len(condition.ValueList) == 0 {
			errs = append(errs, errors.New("'inList' requires a non-empty valueList"))
		}
	} else if len(condition.ValueList) != 0 {
		errs = append(
			errs,
			fmt.Errorf("valueList is only used by 'inList', not '%s'", condition.Operator),
		)
	}

	return errs
}

func ValidateAll(conditions []Condition) []error {
	var errs []error
	for i, condition := range conditions {
		for _, err := range condition.Validate() {
			errs = append(errs, fmt.Errorf("filter %d: %w", i, err))
		}
	}
	return errs
}
