package sink

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// schema maps a flat record struct to CSV columns in declaration order.
type schema struct {
	typ     reflect.Type
	columns []string
	fields  []int
}

func schemaOf(proto any) (*schema, error) {
	t := reflect.TypeOf(proto)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record prototype must be a struct, got %T", proto)
	}

	s := &schema{typ: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		s.columns = append(s.columns, name)
		s.fields = append(s.fields, i)
	}
	return s, nil
}

// row renders rec's values into dst, which is reused between calls.
func (s *schema) row(rec any, dst []string) ([]string, error) {
	v := reflect.ValueOf(rec)
	if v.Type() != s.typ {
		return nil, fmt.Errorf("record type %s does not match sink type %s", v.Type(), s.typ)
	}

	dst = dst[:0]
	for _, i := range s.fields {
		f := v.Field(i)
		switch f.Kind() {
		case reflect.String:
			dst = append(dst, f.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst = append(dst, strconv.FormatInt(f.Int(), 10))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst = append(dst, strconv.FormatUint(f.Uint(), 10))
		case reflect.Float32, reflect.Float64:
			dst = append(dst, strconv.FormatFloat(f.Float(), 'f', -1, 64))
		case reflect.Bool:
			dst = append(dst, strconv.FormatBool(f.Bool()))
		default:
			dst = append(dst, fmt.Sprint(f.Interface()))
		}
	}
	return dst, nil
}

// Columns returns the field names of a record struct in declaration order,
// as used for CSV headers and JSON keys.
func Columns(proto any) ([]string, error) {
	s, err := schemaOf(proto)
	if err != nil {
		return nil, err
	}
	return s.columns, nil
}
