// Package id provides the distributed trace identifier shared by the
// instrumentation agents and the collector.
//
// An identifier is three signed 64-bit parts. It has two encodings:
//   - Text: "part1.part2.part3", used in logs, HTTP headers and storage keys
//   - Wire: the protobuf encoding of UniqueId{repeated int64 idParts = 1},
//     bit-compatible with what agents send over gRPC
//
// Design Principles:
//   - Values, not references: ID and DistributedTraceID are comparable
//     structs, usable directly as map keys
//   - Immutable: there are no setters, a new call chain needs a new id
//   - Interop: wire bytes round-trip exactly between independent decoders
package id

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// idPartsField is the field number of UniqueId.idParts.
const idPartsField protowire.Number = 1

var (
	ErrMalformed = errors.New("malformed id")
	ErrWireForm  = errors.New("malformed id wire form")
)

// ID is the three-part value behind every trace identifier.
type ID struct {
	part1 int64
	part2 int64
	part3 int64
}

// NewID builds an ID from its parts.
func NewID(part1, part2, part3 int64) ID {
	return ID{part1: part1, part2: part2, part3: part3}
}

// ParseID parses the text form "part1.part2.part3".
func ParseID(s string) (ID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: %q has %d parts, want 3", ErrMalformed, s, len(parts))
	}

	var values [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return ID{}, fmt.Errorf("%w: %q part %d: %v", ErrMalformed, s, i+1, err)
		}
		values[i] = v
	}
	return NewID(values[0], values[1], values[2]), nil
}

// Parts returns the three parts in order.
func (id ID) Parts() [3]int64 {
	return [3]int64{id.part1, id.part2, id.part3}
}

// Encode returns the canonical text form.
func (id ID) Encode() string {
	var sb strings.Builder
	sb.Grow(48)
	sb.WriteString(strconv.FormatInt(id.part1, 10))
	sb.WriteByte('.')
	sb.WriteString(strconv.FormatInt(id.part2, 10))
	sb.WriteByte('.')
	sb.WriteString(strconv.FormatInt(id.part3, 10))
	return sb.String()
}

func (id ID) String() string { return id.Encode() }

// Transform returns the wire form: UniqueId with packed idParts.
func (id ID) Transform() []byte {
	var packed []byte
	for _, p := range id.Parts() {
		packed = protowire.AppendVarint(packed, uint64(p))
	}

	b := protowire.AppendTag(nil, idPartsField, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

// DecodeID parses a UniqueId wire form. Both packed and unpacked encodings of
// idParts are accepted; unknown fields are skipped.
func DecodeID(b []byte) (ID, error) {
	var parts []int64

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ID{}, fmt.Errorf("%w: %v", ErrWireForm, protowire.ParseError(n))
		}
		b = b[n:]

		if num != idPartsField {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ID{}, fmt.Errorf("%w: %v", ErrWireForm, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		switch typ {
		case protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ID{}, fmt.Errorf("%w: %v", ErrWireForm, protowire.ParseError(n))
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return ID{}, fmt.Errorf("%w: %v", ErrWireForm, protowire.ParseError(m))
				}
				packed = packed[m:]
				parts = append(parts, int64(v))
			}
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ID{}, fmt.Errorf("%w: %v", ErrWireForm, protowire.ParseError(n))
			}
			b = b[n:]
			parts = append(parts, int64(v))
		default:
			return ID{}, fmt.Errorf("%w: idParts has wire type %d", ErrWireForm, typ)
		}
	}

	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: %d id parts, want 3", ErrWireForm, len(parts))
	}
	return NewID(parts[0], parts[1], parts[2]), nil
}
