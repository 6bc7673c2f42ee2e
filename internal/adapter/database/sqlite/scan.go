package sqlite

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Scanner copies sqlite rows into structs, matching columns to fields by
// db tag or by name with underscores ignored (photo_url -> PhotoURL).
type Scanner struct{}

func NewScanner() *Scanner {
	return &Scanner{}
}

func (s *Scanner) ScanRowToStruct(rows *sql.Rows, dest interface{}) error {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}

	return s.scanCurrent(rows, dest)
}

func (s *Scanner) ScanRowsToSlice(rows *sql.Rows, dest interface{}) error {
	destValue := reflect.ValueOf(dest)

	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dest must be a pointer to slice")
	}

	sliceValue := destValue.Elem()
	elemType := sliceValue.Type().Elem()

	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("slice elements must be structs")
	}

	for rows.Next() {
		elemValue := reflect.New(elemType)

		if err := s.scanCurrent(rows, elemValue.Interface()); err != nil {
			return err
		}

		sliceValue.Set(reflect.Append(sliceValue, elemValue.Elem()))
	}

	return rows.Err()
}

func (s *Scanner) scanCurrent(rows *sql.Rows, dest interface{}) error {
	destValue := reflect.ValueOf(dest)

	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct")
	}

	destElem := destValue.Elem()
	destType := destElem.Type()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	scanArgs := make([]interface{}, len(columns))
	for i := range scanArgs {
		scanArgs[i] = new(interface{})
	}

	if err := rows.Scan(scanArgs...); err != nil {
		return err
	}

	for i, colName := range columns {
		field, ok := s.findStructField(destType, colName)
		if !ok || field.Tag.Get("scan") == "skip" {
			continue
		}

		val := *(scanArgs[i].(*interface{}))

		if err := s.setFieldValue(destElem.FieldByIndex(field.Index), val); err != nil {
			return fmt.Errorf("scan column %s into %s: %w", colName, field.Name, err)
		}
	}

	return nil
}

func (s *Scanner) findStructField(structType reflect.Type, colName string) (reflect.StructField, bool) {
	colNameLower := strings.ToLower(colName)
	flattened := strings.ReplaceAll(colNameLower, "_", "")

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if tag := field.Tag.Get("db"); tag != "" && strings.ToLower(tag) == colNameLower {
			return field, true
		}
	}

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if strings.ToLower(field.Name) == flattened {
			return field, true
		}
	}

	return reflect.StructField{}, false
}

func (s *Scanner) setFieldValue(field reflect.Value, val interface{}) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	if val == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	if b, ok := val.([]byte); ok {
		val = string(b)
	}

	if field.Kind() == reflect.Ptr {
		target := reflect.New(field.Type().Elem())
		if err := s.setFieldValue(target.Elem(), val); err != nil {
			return err
		}
		field.Set(target)
		return nil
	}

	valValue := reflect.ValueOf(val)
	if valValue.Type().AssignableTo(field.Type()) {
		field.Set(valValue)
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(fmt.Sprintf("%v", val))
		return nil
	case reflect.Int, reflect.Int64:
		if v, ok := val.(int64); ok {
			field.SetInt(v)
			return nil
		}
	case reflect.Bool:
		if v, ok := val.(int64); ok {
			field.SetBool(v != 0)
			return nil
		}
	}

	if field.Type() == reflect.TypeOf(time.Time{}) {
		if str, ok := val.(string); ok {
			parsed, err := parseTime(str)
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(parsed))
			return nil
		}
	}

	return fmt.Errorf("cannot assign %T to %s", val, field.Type())
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}
