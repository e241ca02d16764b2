package datatypes

import (
	"errors"
	"fmt"
)

type Field struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Type  DataType `json:"type"`
}

// Returns the declared type of the field with the given key, or DataTypeText if the key is not
// declared.
func Lookup(fields []Field, key string) DataType {
	if field, ok := FieldByKey(fields, key); ok {
		return field.Type
	}
	return DataTypeText
}

func FieldByKey(fields []Field, key string) (Field, bool) {
	for _, field := range fields {
		if field.Key == key {
			return field, true
		}
	}
	return Field{}, false
}

// Returns the field's label, falling back to the key itself for undeclared fields.
func Label(fields []Field, key string) string {
	if field, ok := FieldByKey(fields, key); ok && field.Label != "" {
		return field.Label
	}
	return key
}

func (field Field) Validate() error {
	if field.Key == "" {
		return errors.New("field key is blank")
	}
	if !field.Type.IsValid() {
		return fmt.Errorf("invalid data type for field '%s'", field.Key)
	}
	return nil
}
