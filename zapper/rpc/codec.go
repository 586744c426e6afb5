package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec lets connect handlers speak plain JSON on Go structs. It takes the place of
// connect's built-in "json" codec, which only accepts protobuf messages.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

// WithJSONCodec is the client option that matches the server's codec.
func WithJSONCodec() connect.ClientOption {
	return connect.WithCodec(jsonCodec{})
}
