package id

import "github.com/cespare/xxhash/v2"

// DistributedTraceID identifies one end-to-end call chain across processes.
//
// Two DistributedTraceIDs are equal when their IDs are equal, no matter where
// they were constructed. The zero value is the empty id and is never produced
// by the constructors.
type DistributedTraceID struct {
	id ID
}

// NewDistributedTraceID wraps an already decoded ID.
func NewDistributedTraceID(id ID) DistributedTraceID {
	return DistributedTraceID{id: id}
}

// PropagatedTraceID rebuilds a trace id received from another process in its
// text form.
func PropagatedTraceID(raw string) (DistributedTraceID, error) {
	id, err := ParseID(raw)
	if err != nil {
		return DistributedTraceID{}, err
	}
	return DistributedTraceID{id: id}, nil
}

// FromWireForm rebuilds a trace id from its wire form.
func FromWireForm(b []byte) (DistributedTraceID, error) {
	id, err := DecodeID(b)
	if err != nil {
		return DistributedTraceID{}, err
	}
	return DistributedTraceID{id: id}, nil
}

// ID returns the wrapped value.
func (t DistributedTraceID) ID() ID { return t.id }

// Encode returns the canonical text form.
func (t DistributedTraceID) Encode() string { return t.id.Encode() }

// ToWireForm returns the compact binary form used for propagation.
func (t DistributedTraceID) ToWireForm() []byte { return t.id.Transform() }

// Equal reports whether both ids wrap the same value.
func (t DistributedTraceID) Equal(other DistributedTraceID) bool { return t.id == other.id }

// IsZero reports whether t is the zero value.
func (t DistributedTraceID) IsZero() bool { return t.id == ID{} }

// Hash is a stable 64-bit hash of the wire form, for sharding across
// processes. In-process maps can key on the value directly.
func (t DistributedTraceID) Hash() uint64 { return xxhash.Sum64(t.ToWireForm()) }

func (t DistributedTraceID) String() string { return t.id.String() }

// MarshalText implements encoding.TextMarshaler so trace ids serialize as
// their text form in JSON documents.
func (t DistributedTraceID) MarshalText() ([]byte, error) {
	return []byte(t.id.Encode()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DistributedTraceID) UnmarshalText(b []byte) error {
	parsed, err := PropagatedTraceID(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
