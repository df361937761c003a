// Package subframe assembles the per-page OSNMA data fragments into full
// HKROOT and MACK messages.
//
// Every INAV page carries 5 bytes of OSNMA data: 1 byte of the HKROOT
// message and 4 bytes of the MACK message. A subframe spans 15 pages
// over 30 seconds, so a complete collection yields a 15-byte HKROOT
// message and a 60-byte MACK message per satellite.
package subframe

import (
	"log/slog"

	"osnma/gst"
)

// Section and message sizes.
const (
	HkrootSectionBytes = 1
	MackSectionBytes   = 4
	OsnmaDataBytes     = HkrootSectionBytes + MackSectionBytes

	WordsPerSubframe = 15

	HkrootMessageBytes = HkrootSectionBytes * WordsPerSubframe
	MackMessageBytes   = MackSectionBytes * WordsPerSubframe
)

// Collector accumulates OSNMA data fragments for all satellites in the
// current subframe.
type Collector struct {
	hkroot   [gst.NumSvns][HkrootMessageBytes]byte
	mack     [gst.NumSvns][MackMessageBytes]byte
	numValid [gst.NumSvns]uint8
	wn       gst.Wn
	subframe gst.Tow
}

// NewCollector creates an empty subframe collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Feed accumulates the 5-byte OSNMA data field of one INAV page. When
// the fragment completes the subframe for its satellite, Feed returns
// the full HKROOT and MACK messages together with the GST at the start
// of the subframe, and ok is true. The returned slices borrow the
// collector's buffers and are only valid until the next call.
//
// The word index within the subframe is derived from the time of week.
// If a page was missed, the partial collection for that satellite stays
// as it is and realigns at the next subframe start.
func (c *Collector) Feed(osnmaData []byte, svn gst.Svn, g gst.Gst) (hkroot, mack []byte, subframeGst gst.Gst, ok bool) {
	wn, tow := g.Wn(), g.Tow()
	wordNum := (tow / 2) % WordsPerSubframe
	subframe := tow / gst.SecsPerSubframe
	if wn != c.wn || subframe != c.subframe {
		slog.Info("starting collection of new subframe", "wn", wn, "tow", tow)
		c.wn = wn
		c.subframe = subframe
		for s := range c.numValid {
			c.numValid[s] = 0
		}
	}
	idx := svn.Num() - 1
	if wordNum != gst.Tow(c.numValid[idx]) {
		slog.Debug("missing words for satellite", "svn", svn.String(),
			"wn", wn, "tow", tow, "word", wordNum, "valid_words", c.numValid[idx])
		return nil, nil, gst.Gst{}, false
	}
	valid := int(c.numValid[idx])
	copy(c.hkroot[idx][valid*HkrootSectionBytes:], osnmaData[:HkrootSectionBytes])
	copy(c.mack[idx][valid*MackSectionBytes:], osnmaData[HkrootSectionBytes:OsnmaDataBytes])
	c.numValid[idx]++
	if c.numValid[idx] < WordsPerSubframe {
		return nil, nil, gst.Gst{}, false
	}
	slog.Debug("completed subframe collection", "svn", svn.String(), "wn", wn, "tow", tow)
	return c.hkroot[idx][:], c.mack[idx][:], gst.New(c.wn, c.subframe*gst.SecsPerSubframe), true
}
