package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type sensorScope struct {
	Location string `json:"location"`
	Device   string `json:"device"`
}

type typedHeaders struct {
	Retries int    `json:"retries"`
	Traced  bool   `json:"traced"`
	Tenant  string `json:"tenant"`
	Code    string `json:"code"`
}

func TestJSONPayload(t *testing.T) {
	c := JSON()

	t.Run("struct round trip", func(t *testing.T) {
		raw, err := c.EncodePayload(measurement{Value: 21.5, Unit: "C"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"value":21.5,"unit":"C"}`, string(raw))

		v, err := c.DecodePayload(raw, TypeOf[measurement]())
		require.NoError(t, err)
		assert.Equal(t, measurement{Value: 21.5, Unit: "C"}, v)
	})

	t.Run("nil encodes to empty", func(t *testing.T) {
		raw, err := c.EncodePayload(nil)
		require.NoError(t, err)
		assert.Empty(t, raw)

		var typed *measurement
		raw, err = c.EncodePayload(typed)
		require.NoError(t, err)
		assert.Empty(t, raw)
	})

	t.Run("bytes and strings pass through", func(t *testing.T) {
		raw, err := c.EncodePayload([]byte{0x01, 0x02})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x02}, raw)

		raw, err = c.EncodePayload("hello")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(raw))

		v, err := c.DecodePayload([]byte("hello"), TypeOf[string]())
		require.NoError(t, err)
		assert.Equal(t, "hello", v)
	})

	t.Run("time uses RFC3339", func(t *testing.T) {
		ts := time.Date(2024, 5, 1, 12, 30, 0, 5, time.UTC)
		raw, err := c.EncodePayload(ts)
		require.NoError(t, err)
		assert.Equal(t, ts.Format(time.RFC3339Nano), string(raw))

		v, err := c.DecodePayload(raw, TypeOf[time.Time]())
		require.NoError(t, err)
		assert.True(t, ts.Equal(v.(time.Time)))
	})

	t.Run("nil shape", func(t *testing.T) {
		v, err := c.DecodePayload(nil, nil)
		require.NoError(t, err)
		assert.Nil(t, v)

		_, err = c.DecodePayload([]byte("{}"), nil)
		assert.ErrorIs(t, err, ErrUnexpectedValue)
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := c.DecodePayload([]byte("not json"), TypeOf[measurement]())
		assert.Error(t, err)
	})
}

func TestJSONHeaders(t *testing.T) {
	c := JSON()

	t.Run("struct round trip", func(t *testing.T) {
		headers, err := c.EncodeHeaders(sensorScope{Location: "west", Device: "42"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"location": "west", "device": "42"}, headers)

		v, err := c.DecodeHeaders(headers, TypeOf[sensorScope]())
		require.NoError(t, err)
		assert.Equal(t, sensorScope{Location: "west", Device: "42"}, v)
	})

	t.Run("non string members keep raw json", func(t *testing.T) {
		headers, err := c.EncodeHeaders(typedHeaders{Retries: 3, Traced: true, Tenant: "acme", Code: "007"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"retries": "3", "traced": "true", "tenant": "acme", "code": "007"}, headers)

		v, err := c.DecodeHeaders(headers, TypeOf[typedHeaders]())
		require.NoError(t, err)
		assert.Equal(t, typedHeaders{Retries: 3, Traced: true, Tenant: "acme", Code: "007"}, v)
	})

	t.Run("string fields holding json literals stay strings", func(t *testing.T) {
		v, err := c.DecodeHeaders(map[string]string{"tenant": "true", "code": "12"}, TypeOf[typedHeaders]())
		require.NoError(t, err)
		assert.Equal(t, typedHeaders{Tenant: "true", Code: "12"}, v)
	})

	t.Run("maps are copied", func(t *testing.T) {
		in := map[string]string{"a": "1"}
		headers, err := c.EncodeHeaders(in)
		require.NoError(t, err)
		headers["b"] = "2"
		assert.Len(t, in, 1)

		v, err := c.DecodeHeaders(map[string]string{"a": "1"}, TypeOf[map[string]string]())
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1"}, v)
	})

	t.Run("map of any", func(t *testing.T) {
		v, err := c.DecodeHeaders(map[string]string{"n": "1", "s": "text"}, TypeOf[map[string]any]())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"n": float64(1), "s": "text"}, v)
	})

	t.Run("nil value and nil shape", func(t *testing.T) {
		headers, err := c.EncodeHeaders(nil)
		require.NoError(t, err)
		assert.Empty(t, headers)

		v, err := c.DecodeHeaders(map[string]string{}, nil)
		require.NoError(t, err)
		assert.Nil(t, v)

		_, err = c.DecodeHeaders(map[string]string{"x": "1"}, nil)
		assert.ErrorIs(t, err, ErrUnexpectedValue)
	})

	t.Run("non object values are rejected", func(t *testing.T) {
		_, err := c.EncodeHeaders(42)
		assert.Error(t, err)
	})
}

func TestFields(t *testing.T) {
	names, ok := Fields(TypeOf[sensorScope]())
	assert.True(t, ok)
	assert.Equal(t, []string{"location", "device"}, names)

	names, ok = Fields(TypeOf[*sensorScope]())
	assert.True(t, ok)
	assert.Equal(t, []string{"location", "device"}, names)

	_, ok = Fields(TypeOf[map[string]string]())
	assert.False(t, ok)

	_, ok = Fields(nil)
	assert.False(t, ok)
}
