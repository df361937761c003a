package gst

import (
	"errors"
	"fmt"
)

// NumSvns is the number of satellites in the Galileo constellation.
const NumSvns = 36

// ErrSvnOutOfRange is returned when constructing an SVN outside 1-36.
var ErrSvnOutOfRange = errors.New("SVN out of range 1-36")

// Svn is a Galileo satellite number, between 1 and 36. The zero value is
// not a valid SVN; use NewSvn to construct one with its range checked.
//
// SVNs are conventionally written as Exx (E24, for instance), which is
// what the String method produces.
type Svn struct {
	num uint8
}

// NewSvn creates an Svn, checking that the value is in the range 1-36.
func NewSvn(n int) (Svn, error) {
	if n < 1 || n > NumSvns {
		return Svn{}, ErrSvnOutOfRange
	}
	return Svn{num: uint8(n)}, nil
}

// Num returns the satellite number as an integer between 1 and 36.
func (s Svn) Num() int { return int(s.num) }

// IsValid reports whether the Svn holds a satellite number. The zero
// value reports false.
func (s Svn) IsValid() bool { return s.num >= 1 && s.num <= NumSvns }

// String formats the Svn as Exx (for instance, "E03").
func (s Svn) String() string {
	return fmt.Sprintf("E%02d", s.num)
}

var allSvns [NumSvns]Svn

func init() {
	for j := range allSvns {
		allSvns[j] = Svn{num: uint8(j + 1)}
	}
}

// AllSvns returns all the SVNs from E01 to E36 in increasing order. The
// returned slice is shared and must not be modified.
func AllSvns() []Svn {
	return allSvns[:]
}
