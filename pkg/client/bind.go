package client

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Bind copies values onto the exported fields of the struct dst points to.
// Keys match field names case-insensitively; a `vault:"name"` tag replaces
// the field name and `vault:"-"` skips the field. Fields without a matching
// key keep their value. String, bool, integer and float fields are
// supported; a value that does not parse for its field is an error.
func Bind(values map[string]string, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.New("bind target must be a non-nil pointer to a struct")
	}

	lower := make(map[string]string, len(values))
	for k, v := range values {
		lower[strings.ToLower(k)] = v
	}

	sv := rv.Elem()
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("vault"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}

		raw, ok := lower[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := setField(sv.Field(i), raw); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		f.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetFloat(v)
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}
	return nil
}
