package gst_test

import (
	"testing"

	"osnma/gst"
)

func TestAddSeconds(t *testing.T) {
	g := gst.New(1176, 120930)

	got := g.AddSeconds(30)
	if got.Wn() != 1176 || got.Tow() != 120960 {
		t.Fatalf("unexpected result: %v", got)
	}

	got = g.AddSeconds(-30)
	if got.Wn() != 1176 || got.Tow() != 120900 {
		t.Fatalf("unexpected result: %v", got)
	}

	// Backward across the week boundary
	got = gst.New(100, 10).AddSeconds(-40)
	if got.Wn() != 99 || got.Tow() != 604770 {
		t.Fatalf("unexpected result: %v", got)
	}

	// Forward across the week boundary
	got = gst.New(100, 604770).AddSeconds(60)
	if got.Wn() != 101 || got.Tow() != 30 {
		t.Fatalf("unexpected result: %v", got)
	}

	// A whole week
	got = g.AddSeconds(7 * 24 * 3600)
	if got.Wn() != 1177 || got.Tow() != 120930 {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestSubframeStart(t *testing.T) {
	g := gst.New(1176, 120945)
	if got := g.SubframeStart(); got.Tow() != 120930 {
		t.Fatalf("unexpected subframe start: %v", got)
	}
	if g.IsSubframe() {
		t.Fatal("120945 should not be a subframe boundary")
	}
	if !g.SubframeStart().IsSubframe() {
		t.Fatal("subframe start should be a subframe boundary")
	}
}

func TestCompare(t *testing.T) {
	a := gst.New(1176, 120930)
	b := gst.New(1176, 120960)
	c := gst.New(1177, 0)

	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Fatal("wrong ordering within a week")
	}
	if !b.Before(c) || !c.After(a) {
		t.Fatal("wrong ordering across weeks")
	}
}

func TestSubframesSince(t *testing.T) {
	a := gst.New(1176, 118770)
	b := gst.New(1176, 120930)
	if got := b.SubframesSince(a); got != 72 {
		t.Fatalf("expected 72 subframes, got %d", got)
	}
	a = gst.New(1175, 604770)
	b = gst.New(1176, 30)
	if got := b.SubframesSince(a); got != 2 {
		t.Fatalf("expected 2 subframes across the week boundary, got %d", got)
	}
}
