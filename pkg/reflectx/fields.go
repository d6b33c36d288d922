package reflectx

import (
	"encoding"
	"reflect"
	"strings"
)

type jsonUnmarshaler interface {
	UnmarshalJSON([]byte) error
}

var (
	jsonUnmarshalerType = reflect.TypeFor[jsonUnmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Field describes a struct field as seen by encoding/json.
type Field struct {
	Name string
	Type reflect.Type
}

// JSONFields returns the fields encoding/json would use for the given struct type,
// in declaration order. Pointers to structs are followed. Embedded structs without
// a json name are flattened. The second return value is false when the type is not
// a struct, or is a struct with custom JSON or text decoding, and therefore has no
// statically known field set.
func JSONFields(t reflect.Type) ([]Field, bool) {
	t = Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, false
	}
	if pt := reflect.PointerTo(t); pt.Implements(jsonUnmarshalerType) || pt.Implements(textUnmarshalerType) {
		return nil, false
	}

	var fields []Field
	seen := make(map[string]struct{})
	collectFields(t, &fields, seen)
	return fields, true
}

// JSONFieldTypes returns JSONFields indexed by name.
func JSONFieldTypes(t reflect.Type) map[string]reflect.Type {
	fields, ok := JSONFields(t)
	if !ok {
		return nil
	}
	types := make(map[string]reflect.Type, len(fields))
	for _, f := range fields {
		types[f.Name] = f.Type
	}
	return types
}

func collectFields(t reflect.Type, fields *[]Field, seen map[string]struct{}) {
	for i := range t.NumField() {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		if sf.Anonymous && name == "" {
			if ft := Indirect(sf.Type); ft.Kind() == reflect.Struct {
				collectFields(ft, fields, seen)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		*fields = append(*fields, Field{Name: name, Type: sf.Type})
	}
}
