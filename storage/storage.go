// Package storage defines the sizing profiles of the OSNMA engine.
//
// All the engine state (navigation message rings, MACK rings) is sized
// once at construction from a Profile and never grows, so the engine can
// run on platforms with a few kilobytes of RAM by choosing a reduced
// profile.
package storage

import (
	"errors"

	"osnma/gst"
)

// ErrInvalidProfile is returned for inconsistent profile values.
var ErrInvalidProfile = errors.New("invalid storage profile")

// Profile states how many satellites are tracked in parallel and how
// many subframes of history are kept.
//
// NavMessageDepth should be one more than MackDepth, because the tags in
// a MACK message refer to navigation data of the previous subframe. To
// process Slow MAC, MackDepth must cover the current subframe, the
// previous one, and the 10 before that.
type Profile struct {
	// NumSats is the number of satellites stored in parallel. The full
	// constellation needs 36; a receiver typically tracks 8 to 12. The
	// navigation message store assigns its NumSats slots to any
	// satellites, while the MACK storage keeps messages only for SVNs
	// E01 up to NumSats and drops those of higher SVNs.
	NumSats int
	// NavMessageDepth is the number of navigation message subframes
	// kept as history.
	NavMessageDepth int
	// MackDepth is the number of MACK message subframes kept as
	// history.
	MackDepth int
}

// Full is the largest profile that makes sense: the whole constellation
// with enough history for Slow MAC.
var Full = Profile{NumSats: 36, NavMessageDepth: 13, MackDepth: 12}

// Small is a reduced profile for memory-constrained platforms: 12
// satellites and no Slow MAC history.
var Small = Profile{NumSats: 12, NavMessageDepth: 3, MackDepth: 2}

// Validate checks the profile for consistency.
func (p Profile) Validate() error {
	if p.NumSats < 1 || p.NumSats > gst.NumSvns {
		return ErrInvalidProfile
	}
	if p.NavMessageDepth < 2 || p.MackDepth < 1 {
		return ErrInvalidProfile
	}
	return nil
}

// SlowMac reports whether the profile keeps enough MACK history to
// process Slow MAC tags.
func (p Profile) SlowMac() bool {
	return p.MackDepth >= 12
}
