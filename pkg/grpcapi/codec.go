package grpcapi

import "encoding/json"

// jsonCodec implements grpc/encoding.Codec with a JSON wire format in
// place of protobuf. mnemo never runs protoc, so there is no generated
// marshaler to reach for; this is the one piece of the gRPC surface
// that is genuinely hand-rolled rather than adapted from a teacher
// file, since the teacher's own gRPC client (pkg/agent/llm_grpc.go)
// relies entirely on checked-in proto stubs this project deliberately
// does not carry. See DESIGN.md for the full rationale.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}
