package maclt_test

import (
	"testing"

	"osnma/bitfields"
	"osnma/maclt"
)

func TestLookups(t *testing.T) {
	slot, err := maclt.Lookup(34, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !slot.Flex {
		t.Fatal("(34, 0, 1) should be FLX")
	}

	slot, err = maclt.Lookup(34, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if slot.Flex || slot.Adkd != bitfields.AdkdInavTiming || slot.Object != maclt.SelfAuth {
		t.Fatalf("(34, 0, 2) should be 04S, got %+v", slot)
	}

	slot, err = maclt.Lookup(34, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if slot.Flex || slot.Adkd != bitfields.AdkdSlowMac || slot.Object != maclt.CrossAuth {
		t.Fatalf("(34, 1, 5) should be 12E, got %+v", slot)
	}

	if _, err = maclt.Lookup(26, 0, 1); err != maclt.ErrInvalidMaclt {
		t.Fatalf("(26, 0, 1) should be an invalid MACLT, got %v", err)
	}
	if _, err = maclt.Lookup(34, 0, 6); err != maclt.ErrInvalidTagNumber {
		t.Fatalf("(34, 0, 6) should be an invalid tag number, got %v", err)
	}
	if _, err = maclt.Lookup(34, 2, 1); err != maclt.ErrInvalidMsg {
		t.Fatalf("(34, 2, 1) should be an invalid msg, got %v", err)
	}
	if _, err = maclt.Lookup(34, 0, 0); err != maclt.ErrInvalidTagNumber {
		t.Fatalf("(34, 0, 0) should be an invalid tag number, got %v", err)
	}
}

func TestFlexIndices(t *testing.T) {
	var buf [maclt.MaxFlexEntries]int
	indices, err := maclt.FlexIndices(34, 0, buf[:0])
	if err != nil {
		t.Fatal(err)
	}
	if len(indices) != 2 || indices[0] != 1 || indices[1] != 3 {
		t.Fatalf("unexpected FLX indices for (34, 0): %v", indices)
	}
	indices, err = maclt.FlexIndices(34, 1, buf[:0])
	if err != nil {
		t.Fatal(err)
	}
	if len(indices) != 1 || indices[0] != 1 {
		t.Fatalf("unexpected FLX indices for (34, 1): %v", indices)
	}
	if _, err := maclt.FlexIndices(26, 0, buf[:0]); err != maclt.ErrInvalidMaclt {
		t.Fatalf("(26, 0) should be an invalid MACLT, got %v", err)
	}
}

// Every fixed slot with ADKD=4 must authenticate the transmitting
// satellite itself.
func TestTimingIsSelfAuth(t *testing.T) {
	ids := []uint8{27, 28, 31, 33, 34, 35, 36, 37, 38, 39, 40, 41}
	for _, id := range ids {
		for msg := 0; msg <= 1; msg++ {
			for numTag := 1; ; numTag++ {
				slot, err := maclt.Lookup(id, msg, numTag)
				if err == maclt.ErrInvalidTagNumber {
					break
				}
				if err != nil {
					t.Fatal(err)
				}
				if !slot.Flex && slot.Adkd == bitfields.AdkdInavTiming && slot.Object != maclt.SelfAuth {
					t.Fatalf("(%d, %d, %d) has ADKD=4 with cross-auth", id, msg, numTag)
				}
			}
		}
	}
}

// The MaxFlexEntries constant must cover the largest sequence.
func TestMaxFlexEntries(t *testing.T) {
	ids := []uint8{27, 28, 31, 33, 34, 35, 36, 37, 38, 39, 40, 41}
	max := 0
	var buf [16]int
	for _, id := range ids {
		for msg := 0; msg <= 1; msg++ {
			indices, err := maclt.FlexIndices(id, msg, buf[:0])
			if err != nil {
				t.Fatal(err)
			}
			if len(indices) > max {
				max = len(indices)
			}
		}
	}
	if max != maclt.MaxFlexEntries {
		t.Fatalf("MaxFlexEntries should be %d", max)
	}
}
