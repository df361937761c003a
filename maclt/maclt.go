// Package maclt implements the MAC Look-up Table defined in ANNEX C of
// the Galileo OSNMA SIS ICD.
//
// The table assigns, for each MACLT ID, the ordered sequence of ADKD and
// authentication-object values that the tag slots of a MACK message must
// follow. Each ID carries two sequences; the one in force alternates
// with the parity of the subframe.
package maclt

import (
	"errors"

	"osnma/bitfields"
)

// Errors produced during table look-up.
var (
	ErrInvalidMaclt     = errors.New("invalid MAC look-up table ID")
	ErrInvalidTagNumber = errors.New("invalid tag number")
	ErrInvalidMsg       = errors.New("invalid message number")
)

// AuthObject is the object authenticated by a fixed slot.
type AuthObject uint8

// Authentication objects ('S' and 'E' in the ICD table).
const (
	SelfAuth AuthObject = iota
	CrossAuth
)

func (o AuthObject) String() string {
	if o == CrossAuth {
		return "Cross"
	}
	return "Self"
}

// Slot is one entry of a MAC Look-up Table sequence: either a fixed
// ADKD and authentication object, or a flexible (FLX) slot.
type Slot struct {
	Flex   bool
	Adkd   bitfields.Adkd
	Object AuthObject
}

// MaxFlexEntries is the maximum number of FLX slots in any single
// sequence of the table. It dimensions the buffer needed for MACSEQ
// verification.
const MaxFlexEntries = 4

const maxNt = 10

// Short names for the slots that appear in the ICD table.
var (
	f00s = Slot{Adkd: bitfields.AdkdInavCed, Object: SelfAuth}
	f00e = Slot{Adkd: bitfields.AdkdInavCed, Object: CrossAuth}
	f04s = Slot{Adkd: bitfields.AdkdInavTiming, Object: SelfAuth}
	f12s = Slot{Adkd: bitfields.AdkdSlowMac, Object: SelfAuth}
	f12e = Slot{Adkd: bitfields.AdkdSlowMac, Object: CrossAuth}
	flx  = Slot{Flex: true}
)

type entry struct {
	id uint8
	nt int
	// The first slot of each sequence is omitted: it is always 00S and
	// corresponds to tag0, which is never looked up. Slots beyond nt-1
	// are filled with FLX and never read.
	sequence [2][maxNt - 1]Slot
}

// MAC Look-up Table (ICD ANNEX C).
var table = []entry{
	{
		id: 27, nt: 6,
		sequence: [2][maxNt - 1]Slot{
			{f00e, f00e, f00e, f12s, f00e, flx, flx, flx, flx},
			{f00e, f00e, f04s, f12s, f00e, flx, flx, flx, flx},
		},
	},
	{
		id: 28, nt: 10,
		sequence: [2][maxNt - 1]Slot{
			{f00e, f00e, f00e, f00s, f00e, f00e, f12s, f00e, f00e},
			{f00e, f00e, f00s, f00e, f00e, f04s, f12s, f00e, f00e},
		},
	},
	{
		id: 31, nt: 5,
		sequence: [2][maxNt - 1]Slot{
			{f00e, f00e, f12s, f00e, flx, flx, flx, flx, flx},
			{f00e, f00e, f12s, f04s, flx, flx, flx, flx, flx},
		},
	},
	{
		id: 33, nt: 6,
		sequence: [2][maxNt - 1]Slot{
			{f00e, f04s, f00e, f12s, f00e, flx, flx, flx, flx},
			{f00e, f00e, f12s, f00e, f12e, flx, flx, flx, flx},
		},
	},
	{
		id: 34, nt: 6,
		sequence: [2][maxNt - 1]Slot{
			{flx, f04s, flx, f12s, f00e, flx, flx, flx, flx},
			{flx, f00e, f12s, f00e, f12e, flx, flx, flx, flx},
		},
	},
	{
		id: 35, nt: 6,
		sequence: [2][maxNt - 1]Slot{
			{flx, f04s, flx, f12s, flx, flx, flx, flx, flx},
			{flx, flx, f12s, flx, flx, flx, flx, flx, flx},
		},
	},
	{
		id: 36, nt: 5,
		sequence: [2][maxNt - 1]Slot{
			{flx, f04s, flx, f12s, flx, flx, flx, flx, flx},
			{flx, f00e, f12s, f12e, flx, flx, flx, flx, flx},
		},
	},
	{
		id: 37, nt: 5,
		sequence: [2][maxNt - 1]Slot{
			{f00e, f04s, f00e, f12s, flx, flx, flx, flx, flx},
			{f00e, f00e, f12s, f12e, flx, flx, flx, flx, flx},
		},
	},
	{
		id: 38, nt: 5,
		sequence: [2][maxNt - 1]Slot{
			{flx, f04s, flx, f12s, flx, flx, flx, flx, flx},
			{flx, flx, f12s, flx, flx, flx, flx, flx, flx},
		},
	},
	{
		id: 39, nt: 4,
		sequence: [2][maxNt - 1]Slot{
			{flx, f04s, flx, flx, flx, flx, flx, flx, flx},
			{flx, f00e, f12s, flx, flx, flx, flx, flx, flx},
		},
	},
	{
		id: 40, nt: 4,
		sequence: [2][maxNt - 1]Slot{
			{f00e, f04s, f12s, flx, flx, flx, flx, flx, flx},
			{f00e, f00e, f12e, flx, flx, flx, flx, flx, flx},
		},
	},
	{
		id: 41, nt: 4,
		sequence: [2][maxNt - 1]Slot{
			{flx, f04s, flx, flx, flx, flx, flx, flx, flx},
			{flx, flx, f12s, flx, flx, flx, flx, flx, flx},
		},
	},
}

func findEntry(maclt uint8) *entry {
	for j := range table {
		if table[j].id == maclt {
			return &table[j]
		}
	}
	return nil
}

// Lookup returns the slot of the MAC Look-up Table for the given MACLT
// ID, message number (0 or 1) and tag number. Tag numbers start at 1,
// since tag0 always authenticates the transmitting satellite's CED data
// and is not looked up.
func Lookup(maclt uint8, msg, numTag int) (Slot, error) {
	if msg != 0 && msg != 1 {
		return Slot{}, ErrInvalidMsg
	}
	if numTag < 1 {
		return Slot{}, ErrInvalidTagNumber
	}
	e := findEntry(maclt)
	if e == nil {
		return Slot{}, ErrInvalidMaclt
	}
	if numTag >= e.nt {
		return Slot{}, ErrInvalidTagNumber
	}
	return e.sequence[msg][numTag-1], nil
}

// FlexIndices appends to buf the tag numbers of the FLX slots for the
// given MACLT ID and message number, in increasing order, and returns
// the extended slice. A fixed array of MaxFlexEntries is always enough
// backing storage.
func FlexIndices(maclt uint8, msg int, buf []int) ([]int, error) {
	if msg != 0 && msg != 1 {
		return nil, ErrInvalidMsg
	}
	e := findEntry(maclt)
	if e == nil {
		return nil, ErrInvalidMaclt
	}
	for j := 0; j < e.nt-1; j++ {
		if e.sequence[msg][j].Flex {
			buf = append(buf, j+1)
		}
	}
	return buf, nil
}
