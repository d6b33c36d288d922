package codec

import (
	"errors"
	"reflect"

	"github.com/casualjim/synopsys/pkg/reflectx"
)

// ErrUnexpectedValue is returned when input is present but the shape says no value is expected.
var ErrUnexpectedValue = errors.New("unexpected value for nil shape")

// Codec encodes payloads to bytes and headers to string maps, and decodes them
// back into values of a given shape.
type Codec interface {
	EncodePayload(value any) ([]byte, error)
	DecodePayload(raw []byte, shape reflect.Type) (any, error)
	EncodeHeaders(value any) (map[string]string, error)
	DecodeHeaders(headers map[string]string, shape reflect.Type) (any, error)
}

// TypeOf returns the shape for T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Fields returns the statically known field names of a shape. Only structs and
// pointers to structs have one; the second return value is false otherwise.
func Fields(shape reflect.Type) ([]string, bool) {
	fields, ok := reflectx.JSONFields(shape)
	if !ok {
		return nil, false
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, true
}
