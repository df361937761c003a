package navmessage

import (
	"log/slog"

	"osnma/bitfields"
	"osnma/bits"
	"osnma/gst"
	"osnma/tesla"
)

// ProcessMack processes the tags of a validated MACK message,
// authenticating stored navigation data.
//
// The key must be the TESLA key the tags were generated with, which is
// disclosed one subframe after the MACK message. prna is the
// authenticating satellite, the one that transmitted the MACK; gstMack
// is the GST at the start of the subframe the MACK was transmitted in.
// The NMA status does not need to be validated: a forged status simply
// makes tag verification fail.
//
// Slow MAC (ADKD=12) tags are ignored here because the key does not
// carry the extra disclosure delay; they are handled by
// ProcessMackSlowMac.
func (c *Collector) ProcessMack(mack tesla.ValidatedMack, key tesla.ValidatedKey, prna gst.Svn, gstMack gst.Gst, nmaStatus bitfields.NmaStatus) {
	m := mack.Mack()
	slog.Info("processing MACK tags", "prna", prna.String(), "gst", gstMack.String(), "cop", m.Cop())
	gstNavMessage := gstMack.AddSeconds(-int(gst.SecsPerSubframe))
	if m.Cop() == 0 {
		c.validateDummyTag(key, m.Tag0(), bitfields.AdkdInavCed, gstMack,
			uint8(prna.Num()), prna, 0, nmaStatus, CedAndStatusBits)
	} else if navdata := c.findCedAndStatus(prna, gstNavMessage); navdata != nil &&
		int(navdata.maxAge())+1 <= int(m.Cop()) {
		snapshot := *navdata
		c.validateTag(key, m.Tag0(), bitfields.AdkdInavCed, gstMack,
			uint8(prna.Num()), prna, 0, nmaStatus, &snapshot, slotKindCed)
	}

	for j := 1; j < m.NumTags(); j++ {
		tag := m.TagAndInfo(j)
		slog.Info("MACK tag", "prna", prna.String(), "index", j,
			"adkd", tag.Adkd().String(), "gst", gstMack.String(),
			"cop", tag.Cop(), "prnd", tag.Prnd())
		prnd := tag.Prnd()
		switch tag.Adkd() {
		case bitfields.AdkdInavCed:
			prndSvn, err := gst.NewSvn(int(prnd))
			if err != nil {
				slog.Error("invalid PRND for ADKD", "prnd", prnd, "adkd", tag.Adkd().String())
				continue
			}
			if tag.Cop() == 0 {
				c.validateDummyTag(key, tag.Tag(), tag.Adkd(), gstMack,
					prnd, prna, j, nmaStatus, CedAndStatusBits)
			} else if navdata := c.findCedAndStatus(prndSvn, gstNavMessage); navdata != nil &&
				int(navdata.maxAge())+1 <= int(tag.Cop()) {
				snapshot := *navdata
				c.validateTag(key, tag.Tag(), tag.Adkd(), gstMack,
					prnd, prna, j, nmaStatus, &snapshot, slotKindCed)
			}
		case bitfields.AdkdInavTiming:
			prndSvn, err := gst.NewSvn(int(prnd))
			if err != nil {
				slog.Error("invalid PRND for ADKD", "prnd", prnd, "adkd", tag.Adkd().String())
				continue
			}
			if tag.Cop() == 0 {
				c.validateDummyTag(key, tag.Tag(), tag.Adkd(), gstMack,
					prnd, prna, j, nmaStatus, TimingParametersBits)
			} else if navdata := c.findTimingParameters(prndSvn, gstNavMessage); navdata != nil &&
				int(navdata.maxAge())+1 <= int(tag.Cop()) {
				snapshot := *navdata
				c.validateTag(key, tag.Tag(), tag.Adkd(), gstMack,
					prnd, prna, j, nmaStatus, &snapshot, slotKindTiming)
			}
		case bitfields.AdkdSlowMac:
			// Slow MAC tags do not correspond to this key.
		default:
			slog.Error("reserved ADKD in tag", "prna", prna.String(), "index", j)
		}
	}
}

// ProcessMackSlowMac processes the Slow MAC (ADKD=12) tags of a
// validated MACK message.
//
// The key must be the TESLA key the Slow MAC tags were generated with,
// which is disclosed eleven subframes after the MACK message. All the
// other tags are ignored, since they do not correspond to this key.
func (c *Collector) ProcessMackSlowMac(mack tesla.ValidatedMack, key tesla.ValidatedKey, prna gst.Svn, gstMack gst.Gst, nmaStatus bitfields.NmaStatus) {
	m := mack.Mack()
	gstNavMessage := gstMack.AddSeconds(-int(gst.SecsPerSubframe))
	for j := 1; j < m.NumTags(); j++ {
		tag := m.TagAndInfo(j)
		if tag.Adkd() != bitfields.AdkdSlowMac {
			continue
		}
		prnd := tag.Prnd()
		prndSvn, err := gst.NewSvn(int(prnd))
		if err != nil {
			slog.Error("invalid PRND for Slow MAC tag", "prnd", prnd)
			continue
		}
		if tag.Cop() == 0 {
			c.validateDummyTag(key, tag.Tag(), tag.Adkd(), gstMack,
				prnd, prna, j, nmaStatus, CedAndStatusBits)
		} else if navdata := c.findCedAndStatus(prndSvn, gstNavMessage); navdata != nil &&
			int(navdata.maxAge())+1 <= int(tag.Cop()) {
			snapshot := *navdata
			c.validateTag(key, tag.Tag(), tag.Adkd(), gstMack,
				prnd, prna, j, nmaStatus, &snapshot, slotKindCed)
		}
	}
}

type slotKind uint8

const (
	slotKindCed slotKind = iota
	slotKindTiming
)

// validateTag verifies one tag against a snapshot of stored navigation
// data and, on success, credits the tag length to every slot holding the
// same data for the same satellite.
func (c *Collector) validateTag(key tesla.ValidatedKey, tag bits.Slice, adkd bitfields.Adkd, gstTag gst.Gst, prnd uint8, prna gst.Svn, tagIdx int, nmaStatus bitfields.NmaStatus, navdata authSlot, kind slotKind) bool {
	var ok bool
	if tagIdx == 0 {
		ok = key.ValidateTag0(tag, gstTag, prna, nmaStatus, navdata.messageBits())
	} else {
		ok = key.ValidateTag(tag, gstTag, prnd, prna, uint8(tagIdx+1), nmaStatus, navdata.messageBits())
	}
	if !ok {
		slog.Error("wrong tag", "prnd", prnd, "adkd", adkd.String(),
			"gst", gstTag.String(), "index", tagIdx, "prna", prna.String())
		return false
	}
	slog.Info("correct tag", "prnd", prnd, "adkd", adkd.String(),
		"gst", gstTag.String(), "index", tagIdx, "prna", prna.String())
	// The NMA status took part in the verified tag message, so it is
	// known good here and can gate the authentication credit.
	if nmaStatus != bitfields.NmaOperational && nmaStatus != bitfields.NmaTest {
		return true
	}
	svn, hasSvn := navdata.slotSvn()
	if !hasSvn {
		return true
	}
	switch kind {
	case slotKindCed:
		for j := range c.ced {
			s := &c.ced[j]
			if s.hasSvn && s.svn == svn && bits.Equal(s.messageBits(), navdata.messageBits()) {
				s.addAuthbits(tag.Len())
			}
		}
	case slotKindTiming:
		for j := range c.timing {
			s := &c.timing[j]
			if s.hasSvn && s.svn == svn && bits.Equal(s.messageBits(), navdata.messageBits()) {
				s.addAuthbits(tag.Len())
			}
		}
	}
	return true
}

// validateDummyTag verifies a tag with COP = 0, which authenticates
// all-zero navigation data of the declared length. Dummy tags do not
// credit authentication bits.
func (c *Collector) validateDummyTag(key tesla.ValidatedKey, tag bits.Slice, adkd bitfields.Adkd, gstTag gst.Gst, prnd uint8, prna gst.Svn, tagIdx int, nmaStatus bitfields.NmaStatus, navdataLenBits int) bool {
	var ok bool
	if tagIdx == 0 {
		ok = key.ValidateTag0Dummy(tag, gstTag, prna, nmaStatus, navdataLenBits)
	} else {
		ok = key.ValidateTagDummy(tag, gstTag, prnd, prna, uint8(tagIdx+1), nmaStatus, navdataLenBits)
	}
	if ok {
		slog.Info("correct dummy tag", "prnd", prnd, "adkd", adkd.String(),
			"gst", gstTag.String(), "index", tagIdx, "prna", prna.String())
	} else {
		slog.Error("wrong dummy tag", "prnd", prnd, "adkd", adkd.String(),
			"gst", gstTag.String(), "index", tagIdx, "prna", prna.String())
	}
	return ok
}
