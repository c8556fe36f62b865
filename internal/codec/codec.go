// Package codec encodes the messages exchanged between client and node.
package codec

import (
	"encoding/json"
	"fmt"
)

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// Default is the codec used on the wire.
var Default Codec = JSONCodec{}

// Decode unmarshals data into a new T.
func Decode[T any](c Codec, data []byte) (out T, err error) {
	if err = c.Unmarshal(data, &out); err != nil {
		err = fmt.Errorf("codec: decode %T: %w", out, err)
	}
	return
}

// Frame is the reply to a request: either data or an error message.
type Frame struct {
	Data []byte `json:"data,omitempty"`
	Err  string `json:"err,omitempty"`
}
