package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// skipField tells decodeFields that a field number is unknown.
const skipField = -1

// decodeFields walks the fields of one message. field returns how many bytes of
// b it consumed, or skipField to have the value skipped.
func decodeFields(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := field(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == skipField {
			if m = protowire.ConsumeFieldValue(num, typ, b); m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func wantType(got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("wire type %d, want %d", got, want)
	}
	return nil
}

func readVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if err := wantType(typ, protowire.VarintType); err != nil {
		return 0, 0, err
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func readUint64(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	v, n, err := readVarint(typ, b)
	*dst = v
	return n, err
}

func readInt64(typ protowire.Type, b []byte, dst *int64) (int, error) {
	v, n, err := readVarint(typ, b)
	*dst = int64(v)
	return n, err
}

func readInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	v, n, err := readVarint(typ, b)
	*dst = int32(v)
	return n, err
}

func readBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if err := wantType(typ, protowire.BytesType); err != nil {
		return nil, 0, err
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func readString(typ protowire.Type, b []byte, dst *string) (int, error) {
	v, n, err := readBytes(typ, b)
	*dst = string(v)
	return n, err
}

// readEntry decodes an embedded Entry.
func readEntry(typ protowire.Type, b []byte, dst **Entry) (int, error) {
	raw, n, err := readBytes(typ, b)
	if err != nil {
		return 0, err
	}
	e := new(Entry)
	if err := e.Unmarshal(raw); err != nil {
		return 0, err
	}
	*dst = e
	return n, nil
}

// proto3 leaves zero values off the wire.

func appendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	return appendUint64(b, num, uint64(v))
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendUint64(b, num, uint64(int64(v)))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendEntry(b []byte, num protowire.Number, e *Entry) []byte {
	if e == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, e.appendTo(nil))
}
