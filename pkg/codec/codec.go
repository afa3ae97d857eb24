package codec

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ErrUnsupported is returned by ToDurable for values with no durable form
// (functions, channels, complex numbers, NaN or infinite floats).
var ErrUnsupported = errors.New("value has no durable representation")

// UnserializableKey marks a value that Force could not convert.
const UnserializableKey = "__unserializable__"

const maxDepth = 64

// Marshaler is implemented by opaque values that know their own durable form.
// The returned map is walked again, so it may contain any convertible value.
type Marshaler interface {
	MarshalDurable() (map[string]any, error)
}

// Unmarshaler restores a value produced by Marshaler.
type Unmarshaler interface {
	UnmarshalDurable(map[string]any) error
}

var (
	marshalerType     = reflect.TypeFor[Marshaler]()
	unmarshalerType   = reflect.TypeFor[Unmarshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	errorType         = reflect.TypeFor[error]()
	numberType        = reflect.TypeFor[json.Number]()
)

// ToDurable reduces v to nested map[string]any, []any, string, bool,
// json.Number and nil. Struct fields are keyed by their json tag.
//
// ToDurable is idempotent: ToDurable(ToDurable(x)) equals ToDurable(x).
func ToDurable(v any) (any, error) {
	w := walker{}
	return w.walk(reflect.ValueOf(v), 0)
}

// Force is ToDurable without failure: values that cannot be converted are
// replaced by a {"__unserializable__": "<type>: <value>"} marker.
func Force(v any) any {
	w := walker{force: true}
	out, _ := w.walk(reflect.ValueOf(v), 0)
	return out
}

type walker struct {
	force bool
}

func (w walker) fail(v reflect.Value, reason string) (any, error) {
	if w.force {
		return map[string]any{UnserializableKey: describe(v)}, nil
	}
	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupported, reason, v.Type())
}

func describe(v reflect.Value) string {
	if !v.IsValid() {
		return "<invalid>"
	}
	if v.CanInterface() {
		return fmt.Sprintf("%s: %v", v.Type(), v.Interface())
	}
	return v.Type().String()
}

func (w walker) walk(v reflect.Value, depth int) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if depth > maxDepth {
		return w.fail(v, "nesting too deep")
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
	}

	if v.Type() == numberType {
		return json.Number(v.String()), nil
	}

	if out, ok, err := w.special(v, depth); ok {
		return out, err
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		return w.walk(v.Elem(), depth+1)

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.String:
		return v.String(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(strconv.FormatInt(v.Int(), 10)), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return json.Number(strconv.FormatUint(v.Uint(), 10)), nil

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return w.fail(v, "non-finite float")
		}
		return json.Number(formatFloat(f, v.Type().Bits())), nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(v.Bytes()), nil
		}
		return w.list(v, depth)

	case reflect.Array:
		return w.list(v, depth)

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		return w.mapping(v, depth)

	case reflect.Struct:
		out := make(map[string]any, v.NumField())
		if err := w.fields(v, out, depth); err != nil {
			return nil, err
		}
		return out, nil

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return nil, nil
		}
		return w.fail(v, "unsupported kind "+v.Kind().String())

	default:
		return w.fail(v, "unsupported kind "+v.Kind().String())
	}
}

func hasExportedFields(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

// special handles values that convert themselves: Marshaler, error and
// encoding.TextMarshaler, in that order.
func (w walker) special(v reflect.Value, depth int) (any, bool, error) {
	if !v.CanInterface() {
		return nil, false, nil
	}

	target := v
	if !v.Type().Implements(marshalerType) && v.CanAddr() && v.Addr().Type().Implements(marshalerType) {
		target = v.Addr()
	}
	if target.Type().Implements(marshalerType) {
		raw, err := target.Interface().(Marshaler).MarshalDurable()
		if err != nil {
			out, ferr := w.fail(v, err.Error())
			return out, true, ferr
		}
		out, err := w.walk(reflect.ValueOf(raw), depth+1)
		return out, true, err
	}

	// Errors with exported fields, like *domain.Failure, are walked as structs
	// so they decode back into their type. Opaque errors become their message.
	if v.Type().Implements(errorType) && !hasExportedFields(v.Type()) {
		return v.Interface().(error).Error(), true, nil
	}

	if v.Type().Implements(textMarshalerType) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			out, ferr := w.fail(v, err.Error())
			return out, true, ferr
		}
		return string(text), true, nil
	}

	return nil, false, nil
}

func (w walker) list(v reflect.Value, depth int) (any, error) {
	out := make([]any, v.Len())
	for i := range v.Len() {
		item, err := w.walk(v.Index(i), depth+1)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = item
	}
	return out, nil
}

func (w walker) mapping(v reflect.Value, depth int) (any, error) {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key := mapKey(iter.Key())
		item, err := w.walk(iter.Value(), depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = item
	}
	return out, nil
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
			if text, err := tm.MarshalText(); err == nil {
				return string(text)
			}
		}
		return fmt.Sprint(k.Interface())
	}
	return k.String()
}

func (w walker) fields(v reflect.Value, out map[string]any, depth int) error {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		name, omitEmpty, skip := fieldName(field)
		if skip {
			continue
		}

		fv := v.Field(i)
		if field.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				if err := w.fields(inner, out, depth+1); err != nil {
					return err
				}
				continue
			}
			name = field.Name
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		if omitEmpty && fv.IsZero() {
			continue
		}

		item, err := w.walk(fv, depth+1)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out[name] = item
	}
	return nil
}

// fieldName reads the json tag of a struct field.
func fieldName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return "", false, false
	}
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for opt := range strings.SplitSeq(opts, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// formatFloat mirrors encoding/json: plain notation except for very small or large magnitudes.
func formatFloat(f float64, bits int) string {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	return strconv.FormatFloat(f, format, -1, bits)
}
