package codec

import (
	"fmt"
	"reflect"
	"time"

	"github.com/casualjim/synopsys/pkg/reflectx"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

var (
	bytesType  = reflect.TypeFor[[]byte]()
	stringType = reflect.TypeFor[string]()
	timeType   = reflect.TypeFor[time.Time]()
	headerType = reflect.TypeFor[map[string]string]()
)

type jsonCodec struct{}

// JSON returns the JSON codec.
//
// Payloads: nil encodes to no bytes, []byte is passed through, strings are sent as
// UTF-8 text, time.Time as RFC 3339 and everything else as JSON.
//
// Headers: a map[string]string is copied. Any other value is encoded as a JSON
// object whose top-level members become headers; string members keep their text,
// other members keep their raw JSON.
func JSON() Codec {
	return jsonCodec{}
}

func (jsonCodec) EncodePayload(value any) ([]byte, error) {
	if reflectx.IsNil(value) {
		return nil, nil
	}
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case time.Time:
		return []byte(v.Format(time.RFC3339Nano)), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode payload %T: %w", value, err)
	}
	return b, nil
}

func (jsonCodec) DecodePayload(raw []byte, shape reflect.Type) (any, error) {
	if shape == nil {
		if len(raw) == 0 {
			return nil, nil
		}
		return nil, ErrUnexpectedValue
	}

	switch shape {
	case bytesType:
		return raw, nil
	case stringType:
		return string(raw), nil
	case timeType:
		t, err := time.Parse(time.RFC3339Nano, string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode payload as time: %w", err)
		}
		return t, nil
	}

	ptr := reflect.New(shape)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode payload as %s: %w", shape, err)
	}
	return ptr.Elem().Interface(), nil
}

func (jsonCodec) EncodeHeaders(value any) (map[string]string, error) {
	if reflectx.IsNil(value) {
		return map[string]string{}, nil
	}
	if m, ok := value.(map[string]string); ok {
		headers := make(map[string]string, len(m))
		for k, v := range m {
			headers[k] = v
		}
		return headers, nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode headers %T: %w", value, err)
	}
	doc := gjson.ParseBytes(b)
	if !doc.IsObject() {
		return nil, fmt.Errorf("encode headers %T: value is not an object", value)
	}

	headers := make(map[string]string)
	doc.ForEach(func(key, val gjson.Result) bool {
		if val.Type == gjson.String {
			headers[key.String()] = val.Str
		} else {
			headers[key.String()] = val.Raw
		}
		return true
	})
	return headers, nil
}

func (jsonCodec) DecodeHeaders(headers map[string]string, shape reflect.Type) (any, error) {
	if shape == nil {
		if len(headers) == 0 {
			return nil, nil
		}
		return nil, ErrUnexpectedValue
	}
	if shape == headerType {
		out := make(map[string]string, len(headers))
		for k, v := range headers {
			out[k] = v
		}
		return out, nil
	}

	kinds := reflectx.JSONFieldTypes(shape)
	doc := make(map[string]json.RawMessage, len(headers))
	for k, v := range headers {
		doc[k] = headerValue(v, kinds[k])
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decode headers as %s: %w", shape, err)
	}

	ptr := reflect.New(shape)
	if err := json.Unmarshal(b, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode headers as %s: %w", shape, err)
	}
	return ptr.Elem().Interface(), nil
}

// headerValue turns a header string into a JSON value. Strings destined for a
// string field are quoted, as is anything that is not valid JSON by itself.
func headerValue(v string, target reflect.Type) json.RawMessage {
	if t := reflectx.Indirect(target); t != nil && t.Kind() == reflect.String {
		return quote(v)
	}
	if v != "" && json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	return quote(v)
}

func quote(v string) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
