// Package codec converts application values to and from the raw payload bytes and
// string headers carried by a broker.
//
// A shape is a reflect.Type describing the expected value. The nil shape means no
// value is expected: decoding empty input against it yields nil, decoding anything
// else fails with ErrUnexpectedValue.
//
// JSON is the reference codec:
//
//	c := codec.JSON()
//	raw, _ := c.EncodePayload(Measurement{Value: 21.5})
//	v, _ := c.DecodePayload(raw, codec.TypeOf[Measurement]())
//	m := v.(Measurement)
package codec
