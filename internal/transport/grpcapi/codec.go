package grpcapi

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const jsonCodecName = "json"

// JSONCodec carries messages as plain JSON so the services can be called without
// generated stubs. Clients select it with grpc.CallContentSubtype("json") or ForceCodec.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return jsonCodecName
}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(JSONCodec{})
}
