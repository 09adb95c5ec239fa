package codec

import (
	"fmt"
	"reflect"

	mp "github.com/hashicorp/go-msgpack/v2/codec"
)

// Msgpack is the default Codec.
type Msgpack struct{}

var handle = func() *mp.MsgpackHandle {
	h := &mp.MsgpackHandle{}
	h.RawToString = true
	// schema-less decode: non-negative ints come back as int64, not uint64
	h.SignedInteger = true
	h.MapType = reflect.TypeOf(map[string]any(nil))
	return h
}()

func (Msgpack) Encode(v any) ([]byte, error) {
	var b []byte
	if err := mp.NewEncoderBytes(&b, handle).Encode(v); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return b, nil
}

func (Msgpack) Decode(b []byte) (any, error) {
	var v any
	if err := mp.NewDecoderBytes(b, handle).Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return v, nil
}

// Default returns the codec used when a producer or consumer is not
// given one explicitly.
func Default() Codec { return Msgpack{} }
