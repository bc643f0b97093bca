package client

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/clinicdesk/localbase/runtime/types"
)

// DecodeInto maps the result data onto a struct or slice of structs via
// `db` tags, falling back to snake_case field names. Relation values that
// do not fit the target field are skipped rather than failing the decode.
func (r *Result) DecodeInto(dst any) error {
	if r.Error != nil {
		return errors.New(r.Error.Message)
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.New("decode target must be a non-nil pointer")
	}
	elem := v.Elem()

	switch data := r.Data.(type) {
	case []types.Row:
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("decode target must be a slice pointer, got %s", elem.Kind())
		}
		out := reflect.MakeSlice(elem.Type(), 0, len(data))
		for _, row := range data {
			item := reflect.New(elem.Type().Elem()).Elem()
			if err := decodeRow(row, item); err != nil {
				return err
			}
			out = reflect.Append(out, item)
		}
		elem.Set(out)
		return nil

	case types.Row:
		if elem.Kind() != reflect.Struct {
			return fmt.Errorf("decode target must be a struct pointer, got %s", elem.Kind())
		}
		return decodeRow(data, elem)

	case nil:
		return errors.New("no data to decode")
	}
	return fmt.Errorf("cannot decode %T", r.Data)
}

func decodeRow(row types.Row, dst reflect.Value) error {
	typ := dst.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldValue := dst.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		column := columnName(field)
		if column == "" {
			continue
		}
		value, ok := row[column]
		if !ok {
			continue
		}
		if value == nil {
			if fieldValue.Kind() == reflect.Ptr {
				fieldValue.Set(reflect.Zero(fieldValue.Type()))
			}
			continue
		}

		if err := setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}
	return nil
}

// columnName resolves the row key for a struct field: the db tag when
// present, "-" to skip, snake_case of the field name otherwise.
func columnName(field reflect.StructField) string {
	tag := field.Tag.Get("db")
	if tag == "-" {
		return ""
	}
	if tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return toSnakeCase(field.Name)
}

func setFieldValue(fieldValue reflect.Value, value any) error {
	fieldType := fieldValue.Type()

	if fieldType.Kind() == reflect.Ptr {
		elemValue := reflect.New(fieldType.Elem()).Elem()
		if err := setFieldValue(elemValue, value); err != nil {
			return err
		}
		fieldValue.Set(elemValue.Addr())
		return nil
	}

	valueValue := reflect.ValueOf(value)
	if !valueValue.IsValid() {
		return nil
	}

	valueType := valueValue.Type()
	if valueType.AssignableTo(fieldType) {
		fieldValue.Set(valueValue)
		return nil
	}
	if valueType.ConvertibleTo(fieldType) && fieldType.Kind() != reflect.String {
		fieldValue.Set(valueValue.Convert(fieldType))
		return nil
	}

	// Attached relations and parsed JSON stay behind when the target field
	// has an incompatible shape.
	switch valueType.Kind() {
	case reflect.Slice, reflect.Map:
		return nil
	}
	return fmt.Errorf("cannot convert %s to %s", valueType, fieldType)
}

// toSnakeCase converts PascalCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
