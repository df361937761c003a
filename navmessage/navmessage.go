// Package navmessage stores and classifies navigation message data, and
// authenticates it with the MAC tags of validated MACK messages.
//
// The store is a ring of subframe rows; each row holds, per tracked
// satellite, the CED and status data (INAV words 1 to 5) and the timing
// parameters (INAV words 6 and 10), together with per-word ages and the
// accumulated authentication bits. Tags whose TESLA key arrives in a
// later subframe are dispatched against the row of the subframe the data
// was transmitted in.
package navmessage

import (
	"log/slog"

	"osnma/bits"
	"osnma/gst"
	"osnma/storage"
)

// InavBand identifies the Galileo signal an INAV word was received on.
type InavBand uint8

// INAV bands.
const (
	BandE1B InavBand = iota
	BandE5B
)

func (b InavBand) String() string {
	if b == BandE5B {
		return "E5b"
	}
	return "E1B"
}

// InavWordBytes is the size of an INAV word.
const InavWordBytes = 16

// Minimum equivalent tag length for authentication. Initially defined as
// 80 bits; changed to 40 bits by the 2024-01-15 ICD update.
const minAuthBits = 40

// CED and status data spans INAV words 1-5; timing parameters span INAV
// words 6 and 10.
const (
	CedAndStatusBits  = 549
	cedAndStatusWords = 5
	cedAndStatusBytes = (CedAndStatusBits + 7) / 8

	TimingParametersBits  = 141
	timingParametersWords = 2
	timingParametersBytes = (TimingParametersBits + 7) / 8
)

const ageUnknown = 0xff

// NavMessageData gives access to a piece of navigation data that has
// been authenticated. The data view borrows the collector's storage.
type NavMessageData struct {
	data     bits.Slice
	authbits uint16
	gst      gst.Gst
}

// Data returns the navigation data bits.
func (d NavMessageData) Data() bits.Slice { return d.data }

// Authbits returns the sum of the lengths of all the tags that have
// authenticated this data.
func (d NavMessageData) Authbits() uint16 { return d.authbits }

// Gst returns the GST of the subframe in which the most recent word of
// this data set was transmitted.
func (d NavMessageData) Gst() gst.Gst { return d.gst }

type cedAndStatus struct {
	data     [cedAndStatusBytes]byte
	age      [cedAndStatusWords]uint8
	svn      gst.Svn
	hasSvn   bool
	authbits uint16
}

type timingParameters struct {
	data     [timingParametersBytes]byte
	age      [timingParametersWords]uint8
	svn      gst.Svn
	hasSvn   bool
	authbits uint16
}

// authSlot is the common behavior of the two slot kinds needed by the
// tag-credit sweep.
type authSlot interface {
	slotSvn() (gst.Svn, bool)
	messageBits() bits.Slice
	addAuthbits(n int)
}

type rowGst struct {
	hasGst bool
	gst    gst.Gst
}

// Collector is the navigation message store. All the backing arrays are
// allocated at construction, sized by the profile, and never grow.
type Collector struct {
	profile      storage.Profile
	ced          []cedAndStatus     // NavMessageDepth x NumSats
	timing       []timingParameters // NavMessageDepth x NumSats
	rows         []rowGst
	writePointer int
}

// NewCollector creates an empty navigation message store sized by the
// profile.
func NewCollector(profile storage.Profile) *Collector {
	c := &Collector{
		profile: profile,
		ced:     make([]cedAndStatus, profile.NavMessageDepth*profile.NumSats),
		timing:  make([]timingParameters, profile.NavMessageDepth*profile.NumSats),
		rows:    make([]rowGst, profile.NavMessageDepth),
	}
	for j := range c.ced {
		c.ced[j].resetAge()
	}
	for j := range c.timing {
		c.timing[j].resetAge()
	}
	return c
}

// Feed stores the navigation data of one INAV word.
//
// The GST is rounded down to its subframe. Within the current row the
// slot for the satellite is chosen by priority: a slot already holding
// this SVN, then an empty slot, then the slot with the oldest data.
func (c *Collector) Feed(word []byte, svn gst.Svn, g gst.Gst, band InavBand) {
	if len(word) != InavWordBytes {
		slog.Error("INAV word with wrong size", "size", len(word))
		return
	}
	g = g.SubframeStart()
	c.adjustWritePointer(g)

	ced := c.currentCed()
	best, bestScore := 0, -1
	for j := range ced {
		score := slotScore(ced[j].svn, ced[j].hasSvn, svn, ced[j].maxAge())
		if score > bestScore {
			best, bestScore = j, score
		}
	}
	ced[best].feed(word, svn)

	timing := c.currentTiming()
	best, bestScore = 0, -1
	for j := range timing {
		score := slotScore(timing[j].svn, timing[j].hasSvn, svn, timing[j].maxAge())
		if score > bestScore {
			best, bestScore = j, score
		}
	}
	timing[best].feed(word, svn, band)
}

// slotScore ranks a slot for reuse: same SVN beats empty beats oldest.
func slotScore(slotSvn gst.Svn, hasSvn bool, svn gst.Svn, maxAge uint8) int {
	switch {
	case hasSvn && slotSvn == svn:
		return int(ageUnknown) + 2
	case !hasSvn:
		return int(ageUnknown) + 1
	}
	return int(maxAge)
}

func (c *Collector) currentCed() []cedAndStatus {
	n := c.profile.NumSats
	return c.ced[c.writePointer*n : (c.writePointer+1)*n]
}

func (c *Collector) currentTiming() []timingParameters {
	n := c.profile.NumSats
	return c.timing[c.writePointer*n : (c.writePointer+1)*n]
}

func (c *Collector) adjustWritePointer(g gst.Gst) {
	// A new GST advances the write pointer; the previous row is copied
	// into the new one with all ages increased.
	if r := c.rows[c.writePointer]; r.hasGst && r.gst != g {
		slog.Debug("new GST, advancing nav message write pointer",
			"gst", g.String(), "current", r.gst.String())
		n := c.profile.NumSats
		newPointer := (c.writePointer + 1) % c.profile.NavMessageDepth
		copy(c.ced[newPointer*n:(newPointer+1)*n], c.ced[c.writePointer*n:(c.writePointer+1)*n])
		copy(c.timing[newPointer*n:(newPointer+1)*n], c.timing[c.writePointer*n:(c.writePointer+1)*n])
		c.writePointer = newPointer
		c.increaseAge()
	}
	c.rows[c.writePointer] = rowGst{hasGst: true, gst: g}
}

func (c *Collector) increaseAge() {
	for j := range c.currentCed() {
		c.currentCed()[j].increaseAge()
	}
	for j := range c.currentTiming() {
		c.currentTiming()[j].increaseAge()
	}
}

// GetCedAndStatus returns the most recent authenticated CED and health
// status data (ADKD=0 and 12) stored for a satellite.
func (c *Collector) GetCedAndStatus(svn gst.Svn) (NavMessageData, bool) {
	depth, n := c.profile.NavMessageDepth, c.profile.NumSats
	// Search in order of decreasing GST.
	for j := 0; j < depth; j++ {
		gstIdx := (depth + c.writePointer - j) % depth
		if !c.rows[gstIdx].hasGst {
			continue
		}
		row := c.ced[gstIdx*n : (gstIdx+1)*n]
		for k := range row {
			item := &row[k]
			if item.hasSvn && item.svn == svn && item.authbits >= minAuthBits {
				return NavMessageData{
					data:     item.messageBits(),
					authbits: item.authbits,
					gst:      c.rows[gstIdx].gst.AddSubframes(-int(item.minAge())),
				}, true
			}
		}
	}
	return NavMessageData{}, false
}

// GetTimingParameters returns the most recent authenticated timing
// parameters data (ADKD=4) stored for a satellite.
func (c *Collector) GetTimingParameters(svn gst.Svn) (NavMessageData, bool) {
	depth, n := c.profile.NavMessageDepth, c.profile.NumSats
	for j := 0; j < depth; j++ {
		gstIdx := (depth + c.writePointer - j) % depth
		if !c.rows[gstIdx].hasGst {
			continue
		}
		row := c.timing[gstIdx*n : (gstIdx+1)*n]
		for k := range row {
			item := &row[k]
			if item.hasSvn && item.svn == svn && item.authbits >= minAuthBits {
				return NavMessageData{
					data:     item.messageBits(),
					authbits: item.authbits,
					gst:      c.rows[gstIdx].gst.AddSubframes(-int(item.minAge())),
				}, true
			}
		}
	}
	return NavMessageData{}, false
}

func (c *Collector) findGst(g gst.Gst) (int, bool) {
	for j := range c.rows {
		if c.rows[j].hasGst && c.rows[j].gst == g {
			return j, true
		}
	}
	return 0, false
}

func (c *Collector) findCedAndStatus(svn gst.Svn, g gst.Gst) *cedAndStatus {
	gstIdx, ok := c.findGst(g)
	if !ok {
		return nil
	}
	n := c.profile.NumSats
	row := c.ced[gstIdx*n : (gstIdx+1)*n]
	for j := range row {
		if row[j].hasSvn && row[j].svn == svn {
			return &row[j]
		}
	}
	return nil
}

func (c *Collector) findTimingParameters(svn gst.Svn, g gst.Gst) *timingParameters {
	gstIdx, ok := c.findGst(g)
	if !ok {
		return nil
	}
	n := c.profile.NumSats
	row := c.timing[gstIdx*n : (gstIdx+1)*n]
	for j := range row {
		if row[j].hasSvn && row[j].svn == svn {
			return &row[j]
		}
	}
	return nil
}

// ResetAuthbits resets all the authentication bits to zero. It is called
// when the NMA status signals don't use, to discard all the previously
// accumulated authentication.
func (c *Collector) ResetAuthbits() {
	for j := range c.ced {
		c.ced[j].authbits = 0
	}
	for j := range c.timing {
		c.timing[j].authbits = 0
	}
}

func (s *cedAndStatus) resetAge() {
	for j := range s.age {
		s.age[j] = ageUnknown
	}
}

func (s *cedAndStatus) reset() {
	s.resetAge()
	s.authbits = 0
	s.hasSvn = false
}

func (s *cedAndStatus) increaseAge() {
	for j := range s.age {
		if s.age[j] < ageUnknown {
			s.age[j]++
		}
	}
}

func (s *cedAndStatus) maxAge() uint8 {
	m := s.age[0]
	for _, a := range s.age[1:] {
		if a > m {
			m = a
		}
	}
	return m
}

func (s *cedAndStatus) minAge() uint8 {
	m := s.age[0]
	for _, a := range s.age[1:] {
		if a < m {
			m = a
		}
	}
	return m
}

func (s *cedAndStatus) slotSvn() (gst.Svn, bool) { return s.svn, s.hasSvn }

func (s *cedAndStatus) messageBits() bits.Slice {
	return bits.New(s.data[:]).Slice(0, CedAndStatusBits)
}

func (s *cedAndStatus) addAuthbits(n int) {
	if int(s.authbits)+n > 0xffff {
		s.authbits = 0xffff
		return
	}
	s.authbits += uint16(n)
}

// copyWord writes the source bits into the destination range, resetting
// the word age. Changed contents invalidate the accumulated
// authentication bits.
func (s *cedAndStatus) copyWord(start, end int, source bits.Slice, idx int) {
	s.age[idx] = 0
	dest := bits.New(s.data[:]).Slice(start, end)
	if !bits.Equal(dest, source) {
		bits.Copy(dest, source)
		s.authbits = 0
	}
}

func (s *cedAndStatus) feed(word []byte, svn gst.Svn) {
	switch {
	case s.hasSvn && s.svn == svn:
	case !s.hasSvn:
		s.svn, s.hasSvn = svn, true
	default:
		s.reset()
		s.svn, s.hasSvn = svn, true
	}

	w := bits.New(word)
	wordType := w.Slice(0, 6).Uint64()
	switch wordType {
	case 1:
		s.copyWord(0, 120, w.Slice(6, 126), 0)
	case 2:
		s.copyWord(120, 240, w.Slice(6, 126), 1)
	case 3:
		s.copyWord(240, 362, w.Slice(6, 128), 2)
	case 4:
		s.copyWord(362, 482, w.Slice(6, 126), 3)
	case 5:
		s.copyWord(482, 549, w.Slice(6, 73), 4)
	}
}

func (s *timingParameters) resetAge() {
	for j := range s.age {
		s.age[j] = ageUnknown
	}
}

func (s *timingParameters) reset() {
	s.resetAge()
	s.authbits = 0
	s.hasSvn = false
}

func (s *timingParameters) increaseAge() {
	for j := range s.age {
		if s.age[j] < ageUnknown {
			s.age[j]++
		}
	}
}

func (s *timingParameters) maxAge() uint8 {
	if s.age[0] > s.age[1] {
		return s.age[0]
	}
	return s.age[1]
}

func (s *timingParameters) minAge() uint8 {
	if s.age[0] < s.age[1] {
		return s.age[0]
	}
	return s.age[1]
}

func (s *timingParameters) slotSvn() (gst.Svn, bool) { return s.svn, s.hasSvn }

func (s *timingParameters) messageBits() bits.Slice {
	return bits.New(s.data[:]).Slice(0, TimingParametersBits)
}

func (s *timingParameters) addAuthbits(n int) {
	if int(s.authbits)+n > 0xffff {
		s.authbits = 0xffff
		return
	}
	s.authbits += uint16(n)
}

func (s *timingParameters) copyWord(start, end int, source bits.Slice, idx int) {
	s.age[idx] = 0
	dest := bits.New(s.data[:]).Slice(start, end)
	if !bits.Equal(dest, source) {
		bits.Copy(dest, source)
		s.authbits = 0
	}
}

func (s *timingParameters) feed(word []byte, svn gst.Svn, band InavBand) {
	switch {
	case s.hasSvn && s.svn == svn:
	case !s.hasSvn:
		s.svn, s.hasSvn = svn, true
	default:
		s.reset()
		s.svn, s.hasSvn = svn, true
	}

	w := bits.New(word)
	wordType := w.Slice(0, 6).Uint64()
	switch {
	case wordType == 6 && band == BandE1B:
		s.copyWord(0, 99, w.Slice(6, 105), 0)
	case wordType == 10 && band == BandE1B:
		s.copyWord(99, 141, w.Slice(86, 128), 1)
	}
}
