package bits_test

import (
	"encoding/hex"
	"testing"

	"osnma/bits"
)

func TestBitAccess(t *testing.T) {
	buf, err := hex.DecodeString("a5")
	if err != nil {
		t.Fatal(err)
	}
	s := bits.New(buf)
	expected := []uint8{1, 0, 1, 0, 0, 1, 0, 1}
	for j, want := range expected {
		if got := s.Bit(j); got != want {
			t.Fatalf("bit %d: expected %d, got %d", j, want, got)
		}
	}
}

func TestUint64(t *testing.T) {
	buf, err := hex.DecodeString("12345678")
	if err != nil {
		t.Fatal(err)
	}
	s := bits.New(buf)
	if got := s.Slice(0, 8).Uint64(); got != 0x12 {
		t.Fatalf("expected 0x12, got %#x", got)
	}
	if got := s.Slice(4, 16).Uint64(); got != 0x234 {
		t.Fatalf("expected 0x234, got %#x", got)
	}
	if got := s.Slice(0, 32).Uint64(); got != 0x12345678 {
		t.Fatalf("expected 0x12345678, got %#x", got)
	}
}

func TestSetUint64(t *testing.T) {
	buf := make([]byte, 4)
	s := bits.New(buf)
	s.Slice(0, 12).SetUint64(1176)
	s.Slice(12, 32).SetUint64(120930)
	if got := s.Slice(0, 12).Uint64(); got != 1176 {
		t.Fatalf("expected 1176, got %d", got)
	}
	if got := s.Slice(12, 32).Uint64(); got != 120930 {
		t.Fatalf("expected 120930, got %d", got)
	}
}

func TestCopyAndEqual(t *testing.T) {
	src, err := hex.DecodeString("deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, 5)
	// Copy 30 bits at an odd offset
	bits.Copy(bits.New(dst).Slice(3, 33), bits.New(src).Slice(0, 30))
	if !bits.Equal(bits.New(dst).Slice(3, 33), bits.New(src).Slice(0, 30)) {
		t.Fatal("copied bits differ from source")
	}
	if bits.Equal(bits.New(dst).Slice(0, 8), bits.New(src).Slice(0, 8)) {
		t.Fatal("slices at different offsets should not be equal")
	}
}

func TestEqualLengthMismatch(t *testing.T) {
	buf := make([]byte, 2)
	if bits.Equal(bits.New(buf).Slice(0, 8), bits.New(buf).Slice(0, 9)) {
		t.Fatal("slices of different lengths should not be equal")
	}
}
