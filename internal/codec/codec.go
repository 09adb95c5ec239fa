// Package codec turns payload values into the opaque bytes the store
// persists. Producers and consumers sharing a store must agree on one
// codec; the default is MessagePack.
package codec

// Codec is the pluggable payload encoder. Encode must accept any
// JSON-like value (scalars, strings, arrays, maps) and Decode must
// return a value that round-trips losslessly.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}
