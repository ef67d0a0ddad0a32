package grpctensor

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as a gRPC content-subtype. The retrieval pack
// does not carry generated protobuf stubs for a tensor inference service
// (no gen/go/media/v1 equivalent for this domain), so request/response
// messages are plain Go structs marshaled through gRPC's own pluggable
// encoding.Codec mechanism rather than invented protoc output — this is
// the same grpc.NewClient call shape the media plane client uses, just
// with a codec that doesn't require a .proto-generated type.
const codecName = "raw"

func init() {
	encoding.RegisterCodec(rawCodec{})
}

type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("raw codec marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("raw codec unmarshal: %w", err)
	}
	return nil
}

func (rawCodec) Name() string { return codecName }
