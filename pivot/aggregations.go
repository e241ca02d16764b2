package pivot

import (
	"encoding/json"
	"strconv"

	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"
)

type Aggregation int8

const (
	AggregationSum Aggregation = iota + 1
	AggregationCount
	AggregationAverage
	AggregationMin
	AggregationMax
	AggregationDistinctCount
)

// Decoded from aggregation names that are not recognized. Cells with an unknown aggregation are
// computed as record counts.
const AggregationUnknown Aggregation = 0

const unknownAggregationName = "unknown"

var aggregationMap = enumnames.NewMap(map[Aggregation]string{
	AggregationSum:           "sum",
	AggregationCount:         "count",
	AggregationAverage:       "avg",
	AggregationMin:           "min",
	AggregationMax:           "max",
	AggregationDistinctCount: "distinctCount",
})

func (aggregation Aggregation) IsValid() bool {
	return aggregationMap.ContainsKey(aggregation)
}

func (aggregation Aggregation) String() string {
	return aggregationMap.GetNameOrFallback(aggregation, unknownAggregationName)
}

func (aggregation Aggregation) MarshalJSON() ([]byte, error) {
	if !aggregation.IsValid() {
		return json.Marshal(unknownAggregationName)
	}
	return aggregationMap.MarshalToNameJSON(aggregation)
}

func (aggregation *Aggregation) UnmarshalJSON(bytes []byte) error {
	if err := aggregationMap.UnmarshalFromNameJSON(bytes, aggregation); err != nil {
		var name string
		if jsonErr := json.Unmarshal(bytes, &name); jsonErr != nil {
			return wrap.Error(jsonErr, "expected aggregation to be a string")
		}
		*aggregation = AggregationUnknown
	}
	return nil
}

// Returns AggregationUnknown for unrecognized names.
func ParseAggregation(name string) Aggregation {
	var aggregation Aggregation
	_ = aggregation.UnmarshalJSON([]byte(strconv.Quote(name)))
	return aggregation
}
