package subframe_test

import (
	"bytes"
	"testing"

	"osnma/gst"
	"osnma/subframe"
)

func page(word int) []byte {
	// HKROOT byte followed by 4 MACK bytes, all tagged with the word
	// index so the assembled messages can be checked.
	return []byte{byte(word), byte(0x10 + word), byte(0x20 + word), byte(0x30 + word), byte(0x40 + word)}
}

func TestFullSubframe(t *testing.T) {
	c := subframe.NewCollector()
	svn, err := gst.NewSvn(12)
	if err != nil {
		t.Fatal(err)
	}
	const startTow = 120960
	for w := 0; w < 15; w++ {
		hkroot, mack, g, ok := c.Feed(page(w), svn, gst.New(1176, gst.Tow(startTow+2*w)))
		if w < 14 {
			if ok {
				t.Fatalf("subframe should not complete at word %d", w)
			}
			continue
		}
		if !ok {
			t.Fatal("subframe should complete at word 14")
		}
		if g != gst.New(1176, startTow) {
			t.Fatalf("unexpected subframe GST: %v", g)
		}
		var wantHkroot [15]byte
		var wantMack [60]byte
		for j := 0; j < 15; j++ {
			p := page(j)
			wantHkroot[j] = p[0]
			copy(wantMack[4*j:], p[1:])
		}
		if !bytes.Equal(hkroot, wantHkroot[:]) {
			t.Fatalf("unexpected HKROOT: %02x", hkroot)
		}
		if !bytes.Equal(mack, wantMack[:]) {
			t.Fatalf("unexpected MACK: %02x", mack)
		}
	}
}

func TestMissedPage(t *testing.T) {
	c := subframe.NewCollector()
	svn, err := gst.NewSvn(12)
	if err != nil {
		t.Fatal(err)
	}
	const startTow = 120960
	for w := 0; w < 15; w++ {
		if w == 3 {
			// Page 3 is lost
			continue
		}
		if _, _, _, ok := c.Feed(page(w), svn, gst.New(1176, gst.Tow(startTow+2*w))); ok {
			t.Fatal("subframe with a missing page should not complete")
		}
	}
	// The next subframe realigns and completes normally
	for w := 0; w < 15; w++ {
		_, _, _, ok := c.Feed(page(w), svn, gst.New(1176, gst.Tow(startTow+30+2*w)))
		if w == 14 && !ok {
			t.Fatal("next subframe should complete")
		}
	}
}

func TestPerSatelliteCollection(t *testing.T) {
	c := subframe.NewCollector()
	svn12, _ := gst.NewSvn(12)
	svn13, _ := gst.NewSvn(13)
	const startTow = 120960
	// Interleave two satellites; each completes on its own 15th page
	for w := 0; w < 15; w++ {
		g := gst.New(1176, gst.Tow(startTow+2*w))
		_, _, _, ok12 := c.Feed(page(w), svn12, g)
		_, _, _, ok13 := c.Feed(page(w), svn13, g)
		if w < 14 && (ok12 || ok13) {
			t.Fatalf("no subframe should complete at word %d", w)
		}
		if w == 14 && (!ok12 || !ok13) {
			t.Fatal("both satellites should complete at word 14")
		}
	}
}
