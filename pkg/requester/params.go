package requester

import (
	"fmt"
	"reflect"
	"strings"
)

// StructParams turns the exported fields of v, a struct or a pointer to one,
// into query parameters. The key is the `param` tag or the field name; a tag
// of "-" skips the field. Zero values are left out and slices are joined with
// commas.
func StructParams(v any) []Param {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	rt := rv.Type()
	var params []Param
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Name
		if tag, ok := field.Tag.Lookup("param"); ok {
			if tag == "-" {
				continue
			}
			key = tag
		}

		fv := rv.Field(i)
		if fv.IsZero() {
			continue
		}
		params = append(params, Param{Key: key, Value: render(fv)})
	}
	return params
}

func render(v reflect.Value) string {
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v.Interface())
}
