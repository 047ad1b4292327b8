package id

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestParseID(t *testing.T) {
	id, err := ParseID("12.34.56789")
	if err != nil {
		t.Fatalf("ParseID failed: %v", err)
	}

	if id.Parts() != [3]int64{12, 34, 56789} {
		t.Errorf("unexpected parts: %v", id.Parts())
	}

	if id.Encode() != "12.34.56789" {
		t.Errorf("Encode should round-trip, got %s", id.Encode())
	}
}

func TestParseIDInvalid(t *testing.T) {
	invalid := []string{
		"",
		"1.2",
		"1.2.3.4",
		"a.b.c",
		"1..3",
		"1.2.99999999999999999999",
	}

	for _, s := range invalid {
		if _, err := ParseID(s); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseID(%q) should fail with ErrMalformed, got %v", s, err)
		}
	}
}

func TestTransformBytes(t *testing.T) {
	got := NewID(1, 2, 3).Transform()
	want := []byte{0x0A, 0x03, 0x01, 0x02, 0x03}

	if !bytes.Equal(got, want) {
		t.Errorf("wire form mismatch: got %x, want %x", got, want)
	}
}

func TestWireRoundTrip(t *testing.T) {
	ids := []ID{
		NewID(0, 0, 0),
		NewID(1, 2, 3),
		NewID(-1, 42, 15210000000000001),
		NewID(9223372036854775807, -9223372036854775808, 7),
	}

	for _, original := range ids {
		decoded, err := DecodeID(original.Transform())
		if err != nil {
			t.Fatalf("DecodeID(%s) failed: %v", original, err)
		}
		if decoded != original {
			t.Errorf("round trip mismatch: %s != %s", decoded, original)
		}
	}
}

func TestDecodeUnpacked(t *testing.T) {
	// three separate varint fields instead of one packed field
	b := []byte{0x08, 0x07, 0x08, 0x08, 0x08, 0x09}

	decoded, err := DecodeID(b)
	if err != nil {
		t.Fatalf("DecodeID failed: %v", err)
	}
	if decoded != NewID(7, 8, 9) {
		t.Errorf("unexpected id: %s", decoded)
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := append([]byte{0x12, 0x02, 'h', 'i'}, NewID(4, 5, 6).Transform()...)

	decoded, err := DecodeID(b)
	if err != nil {
		t.Fatalf("DecodeID failed: %v", err)
	}
	if decoded != NewID(4, 5, 6) {
		t.Errorf("unexpected id: %s", decoded)
	}
}

func TestDecodeInvalid(t *testing.T) {
	invalid := [][]byte{
		{0x0A, 0x02, 0x01, 0x02}, // two parts
		{0x0A, 0x05, 0x01},       // truncated
		{0x0D, 0x00, 0x00, 0x00, 0x00},
	}

	for _, b := range invalid {
		if _, err := DecodeID(b); !errors.Is(err, ErrWireForm) {
			t.Errorf("DecodeID(%x) should fail with ErrWireForm, got %v", b, err)
		}
	}
}

func TestTraceIDEquality(t *testing.T) {
	a, err := PropagatedTraceID("3.17.15210000000000042")
	if err != nil {
		t.Fatal(err)
	}
	b, err := PropagatedTraceID("3.17.15210000000000042")
	if err != nil {
		t.Fatal(err)
	}

	if a != b || !a.Equal(b) {
		t.Error("trace ids built from the same string should be equal")
	}

	if a.Hash() != b.Hash() {
		t.Error("equal trace ids should hash identically")
	}

	if !bytes.Equal(a.ToWireForm(), b.ToWireForm()) {
		t.Error("equal trace ids should have identical wire forms")
	}

	seen := map[DistributedTraceID]int{a: 1}
	if seen[b] != 1 {
		t.Error("independently built trace ids should be interchangeable map keys")
	}
}

func TestTraceIDAcrossEncodings(t *testing.T) {
	origin := NewGenerator(7, 1).NewTraceID()

	fromText, err := PropagatedTraceID(origin.Encode())
	if err != nil {
		t.Fatal(err)
	}
	fromWire, err := FromWireForm(origin.ToWireForm())
	if err != nil {
		t.Fatal(err)
	}

	if fromText != origin || fromWire != origin {
		t.Errorf("decoded ids differ: text=%s wire=%s origin=%s", fromText, fromWire, origin)
	}

	other := NewGenerator(7, 1).NewTraceID()
	if other.Equal(NewDistributedTraceID(NewID(8, 1, 0))) {
		t.Error("different instances should not collide")
	}
}

func TestGenerateMonotonic(t *testing.T) {
	gen := NewGenerator(1, 2)

	prev := gen.Generate()
	for i := 0; i < 25000; i++ {
		next := gen.Generate()
		if next.Parts()[2] <= prev.Parts()[2] {
			t.Fatalf("sequence not increasing: %s after %s", next, prev)
		}
		if next.Parts()[0] != 1 || next.Parts()[1] != 2 {
			t.Fatalf("unexpected instance parts: %s", next)
		}
		prev = next
	}
}

func TestGenerateClockRegression(t *testing.T) {
	clock := time.UnixMilli(1_700_000_000_000)
	gen := NewGeneratorWithClock(1, 1, func() time.Time { return clock })

	first := gen.Generate()
	clock = clock.Add(-time.Second)
	second := gen.Generate()

	if second.Parts()[2] <= first.Parts()[2] {
		t.Errorf("id after clock regression should still increase: %s then %s", first, second)
	}
}

func TestGenerateConcurrent(t *testing.T) {
	gen := NewGenerator(1, 1)

	var mu sync.Mutex
	seen := make(map[ID]bool)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if len(seen) != 10000 {
		t.Errorf("expected 10000 unique ids, got %d", len(seen))
	}
}

func BenchmarkGenerate(b *testing.B) {
	gen := NewGenerator(1, 1)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		gen.Generate()
	}
}

func BenchmarkTransform(b *testing.B) {
	id := NewID(3, 17, 15210000000000042)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		id.Transform()
	}
}

func TestTraceIDTextMarshaling(t *testing.T) {
	trace := NewDistributedTraceID(NewID(3, -4, 5))

	b, err := trace.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(b) != "3.-4.5" {
		t.Fatalf("MarshalText = %q", b)
	}

	var back DistributedTraceID
	if err := back.UnmarshalText(b); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if !back.Equal(trace) {
		t.Fatalf("round trip = %v, want %v", back, trace)
	}

	if err := back.UnmarshalText([]byte("1.2")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("UnmarshalText(1.2) error = %v, want ErrMalformed", err)
	}
}
