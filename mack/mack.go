// Package mack stores recent MACK messages.
//
// The tags in a MACK message can only be verified once the matching
// TESLA key is disclosed, one subframe later for regular tags and eleven
// subframes later for Slow MAC. The storage is a ring of subframe rows,
// each holding one optional MACK message per satellite, addressed by a
// parallel array of subframe GSTs.
package mack

import (
	"log/slog"

	"osnma/gst"
	"osnma/storage"
	"osnma/subframe"
)

type slot struct {
	valid bool
	data  [subframe.MackMessageBytes]byte
}

type row struct {
	hasGst bool
	gst    gst.Gst
}

// Storage is a ring of recent MACK messages. All the backing arrays are
// allocated at construction and never grow.
type Storage struct {
	profile      storage.Profile
	macks        []slot // MackDepth x NumSats
	rows         []row
	writePointer int
}

// NewStorage creates an empty MACK storage sized by the profile.
func NewStorage(profile storage.Profile) *Storage {
	return &Storage{
		profile: profile,
		macks:   make([]slot, profile.MackDepth*profile.NumSats),
		rows:    make([]row, profile.MackDepth),
	}
}

func (s *Storage) svnIndex(svn gst.Svn) (int, bool) {
	idx := svn.Num() - 1
	if idx >= s.profile.NumSats {
		return 0, false
	}
	return idx, true
}

// Store saves a MACK message for a satellite at a subframe GST. A GST
// distinct from the one of the current write row advances the ring,
// erasing the oldest row.
func (s *Storage) Store(mack []byte, svn gst.Svn, g gst.Gst) {
	idx, ok := s.svnIndex(svn)
	if !ok {
		slog.Debug("MACK for satellite outside the storage profile", "svn", svn.String())
		return
	}
	s.adjustWritePointer(g)
	slog.Debug("storing MACK", "svn", svn.String(), "gst", g.String())
	entry := &s.macks[s.writePointer*s.profile.NumSats+idx]
	entry.valid = true
	copy(entry.data[:], mack)
}

func (s *Storage) adjustWritePointer(g gst.Gst) {
	// If the write pointer points to a valid GST distinct from the
	// current one, advance it and erase everything at the new location.
	if r := &s.rows[s.writePointer]; r.hasGst && r.gst != g {
		slog.Debug("new GST, advancing MACK write pointer",
			"gst", g.String(), "current", r.gst.String())
		s.writePointer = (s.writePointer + 1) % s.profile.MackDepth
		cleared := s.macks[s.writePointer*s.profile.NumSats : (s.writePointer+1)*s.profile.NumSats]
		for j := range cleared {
			cleared[j].valid = false
		}
	}
	s.rows[s.writePointer] = row{hasGst: true, gst: g}
}

// Get returns the MACK message stored for a satellite at a subframe GST,
// or nil if there is none. The returned slice borrows the storage and is
// only valid until the next Store.
func (s *Storage) Get(svn gst.Svn, g gst.Gst) []byte {
	idx, ok := s.svnIndex(svn)
	if !ok {
		return nil
	}
	for j := range s.rows {
		if s.rows[j].hasGst && s.rows[j].gst == g {
			entry := &s.macks[j*s.profile.NumSats+idx]
			if !entry.valid {
				return nil
			}
			return entry.data[:]
		}
	}
	return nil
}
