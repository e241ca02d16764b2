package filter

import (
	"encoding/json"

	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"
)

type Operator int8

const (
	OperatorEquals Operator = iota + 1
	OperatorNotEquals
	OperatorContains
	OperatorStartsWith
	OperatorEndsWith
	OperatorGreaterThan
	OperatorLessThan
	OperatorBetween
	OperatorInList
	OperatorDateRange
	OperatorIsEmpty
	OperatorNotEmpty
)

// Decoded from operator names that are not recognized. Conditions with an unknown operator let
// every record pass.
const OperatorUnknown Operator = 0

const unknownOperatorName = "unknown"

var operatorMap = enumnames.NewMap(map[Operator]string{
	OperatorEquals:      "equals",
	OperatorNotEquals:   "notEquals",
	OperatorContains:    "contains",
	OperatorStartsWith:  "startsWith",
	OperatorEndsWith:    "endsWith",
	OperatorGreaterThan: "greaterThan",
	OperatorLessThan:    "lessThan",
	OperatorBetween:     "between",
	OperatorInList:      "inList",
	OperatorDateRange:   "dateRange",
	OperatorIsEmpty:     "isEmpty",
	OperatorNotEmpty:    "notEmpty",
})

func (operator Operator) IsValid() bool {
	return operatorMap.ContainsKey(operator)
}

func (operator Operator) String() string {
	return operatorMap.GetNameOrFallback(operator, unknownOperatorName)
}

func (operator Operator) MarshalJSON() ([]byte, error) {
	if !operator.IsValid() {
		return json.Marshal(unknownOperatorName)
	}
	return operatorMap.MarshalToNameJSON(operator)
}

func (operator *Operator) UnmarshalJSON(bytes []byte) error {
	if err := operatorMap.UnmarshalFromNameJSON(bytes, operator); err != nil {
		var name string
		if jsonErr := json.Unmarshal(bytes, &name); jsonErr != nil {
			return wrap.Error(jsonErr, "expected filter operator to be a string")
		}
		*operator = OperatorUnknown
	}
	return nil
}
