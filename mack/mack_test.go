package mack_test

import (
	"bytes"
	"testing"

	"osnma/gst"
	"osnma/mack"
	"osnma/storage"
	"osnma/subframe"
)

func message(fill byte) []byte {
	m := make([]byte, subframe.MackMessageBytes)
	for j := range m {
		m[j] = fill
	}
	return m
}

func TestStoreAndGet(t *testing.T) {
	s := mack.NewStorage(storage.Small)
	svn, err := gst.NewSvn(7)
	if err != nil {
		t.Fatal(err)
	}
	g := gst.New(1176, 120960)
	s.Store(message(0xaa), svn, g)
	got := s.Get(svn, g)
	if got == nil {
		t.Fatal("stored MACK should be found")
	}
	if !bytes.Equal(got, message(0xaa)) {
		t.Fatal("stored MACK content mismatch")
	}
	if s.Get(svn, g.AddSubframes(1)) != nil {
		t.Fatal("no MACK should be stored at another GST")
	}
	other, _ := gst.NewSvn(8)
	if s.Get(other, g) != nil {
		t.Fatal("no MACK should be stored for another satellite")
	}
}

func TestRingEviction(t *testing.T) {
	s := mack.NewStorage(storage.Small) // MackDepth = 2
	svn, _ := gst.NewSvn(7)
	g := gst.New(1176, 120960)
	s.Store(message(1), svn, g)
	s.Store(message(2), svn, g.AddSubframes(1))
	s.Store(message(3), svn, g.AddSubframes(2))
	if s.Get(svn, g) != nil {
		t.Fatal("oldest MACK should have been evicted")
	}
	if s.Get(svn, g.AddSubframes(1)) == nil || s.Get(svn, g.AddSubframes(2)) == nil {
		t.Fatal("recent MACKs should still be stored")
	}
}

func TestSatelliteOutsideProfile(t *testing.T) {
	s := mack.NewStorage(storage.Small) // NumSats = 12
	svn, _ := gst.NewSvn(20)
	g := gst.New(1176, 120960)
	s.Store(message(1), svn, g)
	if s.Get(svn, g) != nil {
		t.Fatal("satellite outside the profile should not be stored")
	}
}
