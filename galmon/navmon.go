// Package galmon reads the Galmon transport protocol.
//
// The Galmon tools (ubxtool and friends) emit a stream of length-framed
// protobuf messages over stdout. This package implements the framing and
// decodes the small subset of the navmon protobuf schema that carries
// Galileo INAV words and OSNMA data.
package galmon

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the navmon.proto messages read here.
const (
	fieldSourceID            = 1
	fieldType                = 2
	fieldLocalUtcSeconds     = 3
	fieldLocalUtcNanoseconds = 4
	fieldGalileoInav         = 5

	fieldGiGnssWN    = 1
	fieldGiGnssTOW   = 2
	fieldGiGnssSV    = 3
	fieldGiContents  = 4
	fieldGiSigid     = 5
	fieldGiSsp       = 6
	fieldGiReserved1 = 7
)

// NavMonMessage is a Galmon navmon message. Only the fields used for
// OSNMA processing are decoded; unknown fields are skipped.
type NavMonMessage struct {
	SourceID            uint64
	Type                uint64
	LocalUtcSeconds     uint64
	LocalUtcNanoseconds uint64
	GI                  *GalileoInav
}

// GalileoInav is the Galileo INAV section of a navmon message.
type GalileoInav struct {
	GnssWN    uint32
	GnssTOW   uint32
	GnssSV    uint32
	Contents  []byte
	Sigid     uint32
	HasSigid  bool
	Ssp       uint32
	Reserved1 []byte
}

// decodeNavMon decodes a navmon protobuf frame.
func decodeNavMon(frame []byte) (*NavMonMessage, error) {
	var m NavMonMessage
	b := frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("galmon: bad protobuf tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldSourceID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad sourceID: %w", protowire.ParseError(n))
			}
			m.SourceID = v
			b = b[n:]
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad type: %w", protowire.ParseError(n))
			}
			m.Type = v
			b = b[n:]
		case num == fieldLocalUtcSeconds && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad localUtcSeconds: %w", protowire.ParseError(n))
			}
			m.LocalUtcSeconds = v
			b = b[n:]
		case num == fieldLocalUtcNanoseconds && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad localUtcNanoseconds: %w", protowire.ParseError(n))
			}
			m.LocalUtcNanoseconds = v
			b = b[n:]
		case num == fieldGalileoInav && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad gi section: %w", protowire.ParseError(n))
			}
			gi, err := decodeGalileoInav(v)
			if err != nil {
				return nil, err
			}
			m.GI = gi
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return &m, nil
}

func decodeGalileoInav(section []byte) (*GalileoInav, error) {
	var gi GalileoInav
	b := section
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("galmon: bad protobuf tag in gi: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldGiGnssWN && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad gnssWN: %w", protowire.ParseError(n))
			}
			gi.GnssWN = uint32(v)
			b = b[n:]
		case num == fieldGiGnssTOW && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad gnssTOW: %w", protowire.ParseError(n))
			}
			gi.GnssTOW = uint32(v)
			b = b[n:]
		case num == fieldGiGnssSV && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad gnssSV: %w", protowire.ParseError(n))
			}
			gi.GnssSV = uint32(v)
			b = b[n:]
		case num == fieldGiContents && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad contents: %w", protowire.ParseError(n))
			}
			gi.Contents = v
			b = b[n:]
		case num == fieldGiSigid && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad sigid: %w", protowire.ParseError(n))
			}
			gi.Sigid = uint32(v)
			gi.HasSigid = true
			b = b[n:]
		case num == fieldGiSsp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad ssp: %w", protowire.ParseError(n))
			}
			gi.Ssp = uint32(v)
			b = b[n:]
		case num == fieldGiReserved1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad reserved1: %w", protowire.ParseError(n))
			}
			gi.Reserved1 = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("galmon: bad field %d in gi: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return &gi, nil
}
