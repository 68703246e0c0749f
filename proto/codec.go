// Package proto holds the LedgerService wire types and gRPC bindings.
//
// The messages follow proto/ledger.proto and are encoded with protowire by
// hand. The codec below replaces gRPC's default "proto" codec: ledger messages
// use their own Marshal/Unmarshal, any other protobuf message (health checks)
// goes through google.golang.org/protobuf.
package proto

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	grpcproto "google.golang.org/grpc/encoding/proto"
	protov2 "google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content subtype (application/grpc+proto).
const CodecName = grpcproto.Name

// wireMessage is implemented by every LedgerService message.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal(b []byte) error
}

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case wireMessage:
		return m.Marshal()
	case protov2.Message:
		return protov2.Marshal(m)
	default:
		return nil, fmt.Errorf("proto codec: cannot marshal %T", v)
	}
}

func (codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case wireMessage:
		return m.Unmarshal(data)
	case protov2.Message:
		return protov2.Unmarshal(data, m)
	default:
		return fmt.Errorf("proto codec: cannot unmarshal into %T", v)
	}
}

func (codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(codec{})
}
