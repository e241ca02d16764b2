package pivot

import (
	"slices"
	"strings"

	"hermannm.dev/pivot/datatypes"
)

// Compares composite group values. Groups are compared lexicographically by their " | "-joined
// label, unless one of the fields is a date: then components are compared one by one, with date
// components compared chronologically where both sides parse as dates.
type groupComparator struct {
	dateComponents []bool
	anyDate        bool
}

func newGroupComparator(groupFields []string, fields []datatypes.Field) groupComparator {
	comparator := groupComparator{dateComponents: make([]bool, len(groupFields))}
	for i, field := range groupFields {
		if datatypes.Lookup(fields, field) == datatypes.DataTypeDate {
			comparator.dateComponents[i] = true
			comparator.anyDate = true
		}
	}
	return comparator
}

func (comparator groupComparator) compare(components1 []string, components2 []string) int {
	if !comparator.anyDate {
		return strings.Compare(
			strings.Join(components1, groupLabelSeparator),
			strings.Join(components2, groupLabelSeparator),
		)
	}

	for i := 0; i < len(components1) && i < len(components2); i++ {
		var result int
		if i < len(comparator.dateComponents) && comparator.dateComponents[i] {
			result = compareDates(components1[i], components2[i])
		} else {
			result = strings.Compare(components1[i], components2[i])
		}

		if result != 0 {
			return result
		}
	}

	return len(components1) - len(components2)
}

// Dates sort chronologically, before all values that do not parse as dates.
func compareDates(value1 string, value2 string) int {
	date1, ok1 := datatypes.ParseDate(value1)
	date2, ok2 := datatypes.ParseDate(value2)
	switch {
	case ok1 && ok2:
		if result := date1.Compare(date2); result != 0 {
			return result
		}
	case ok1:
		return -1
	case ok2:
		return 1
	}
	return strings.Compare(value1, value2)
}

func (comparator groupComparator) sortGroups(groups []ColumnGroup) {
	components := make(map[ColumnGroup][]string, len(groups))
	for _, group := range groups {
		components[group] = group.Components()
	}

	slices.SortFunc(groups, func(group1 ColumnGroup, group2 ColumnGroup) int {
		return comparator.compare(components[group1], components[group2])
	})
}

func (comparator groupComparator) sortValues(values []string) {
	slices.SortFunc(values, func(value1 string, value2 string) int {
		return comparator.compare([]string{value1}, []string{value2})
	})
}
