package reflectx

import "reflect"

// IsNil reports whether v is nil or a nil pointer, map, slice, interface, func or
// channel. Unlike a plain comparison with nil it sees through typed nils stored
// in an interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return val.IsNil()
	}
	return false
}

// Indirect returns the element type of pointer types, following every level of
// indirection, and returns other types unchanged.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
