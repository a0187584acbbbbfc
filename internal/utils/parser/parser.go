package parser

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ParseQuery binds query parameters into the fields of out tagged `form:"name"`.
// Absent or empty parameters leave the field untouched. A tag option
// "min=N" rejects smaller integers, e.g. `form:"days,min=1"`.
func ParseQuery(c *fiber.Ctx, out any) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("output must be a pointer to a struct")
	}
	elem := val.Elem()
	typ := elem.Type()

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name, opts := splitTag(field.Tag.Get("form"))
		if name == "" || name == "-" {
			continue
		}
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		if err := setField(elem.Field(i), raw, opts); err != nil {
			return fmt.Errorf("query %s: %w", name, err)
		}
	}
	return nil
}

func splitTag(tag string) (string, map[string]string) {
	parts := strings.Split(tag, ",")
	opts := map[string]string{}
	for _, p := range parts[1:] {
		k, v, _ := strings.Cut(p, "=")
		opts[k] = v
	}
	return parts[0], opts
}

func setField(field reflect.Value, raw string, opts map[string]string) error {
	if !field.CanSet() {
		return nil
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		field = field.Elem()
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		if m, ok := opts["min"]; ok {
			if lo, err := strconv.ParseInt(m, 10, 64); err == nil && n < lo {
				return fmt.Errorf("must be at least %d", lo)
			}
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
