package tesla

import (
	"errors"

	"osnma/bitfields"
	"osnma/bits"
	"osnma/gst"
	"osnma/maclt"
)

// Errors produced during MACK message validation.
var (
	ErrMackWrongAdkd = errors.New("tag ADKD does not match the MAC look-up table")
	ErrMackWrongPrnd = errors.New("self-authenticating tag with PRND different from PRNA")
	ErrWrongMacseq   = errors.New("wrong MACSEQ")
	ErrMackStructure = errors.New("MACK structure does not fit the MAC look-up table")
)

// ValidatedMack is a MACK message whose structure has been checked
// against the MAC look-up table and whose MACSEQ has been verified. Its
// tags are ready for dispatch against stored navigation data.
type ValidatedMack struct {
	m bitfields.Mack
}

// Mack returns the underlying MACK view.
func (v ValidatedMack) Mack() bitfields.Mack { return v.m }

// ForceValidMack marks a MACK as validated without any check. It should
// only be used for messages validated externally, such as test vectors.
func ForceValidMack(m bitfields.Mack) ValidatedMack {
	return ValidatedMack{m: m}
}

// ValidateMack checks a MACK message before its tags are processed.
//
// Two checks are performed. First the tag-info fields are compared
// against the MAC look-up table sequence in force for this subframe:
// fixed slots must carry the stated ADKD, and self-authenticating slots
// must carry the PRN of the transmitting satellite. Then the MACSEQ
// field is verified: it is the truncated MAC, under key, of the PRNA,
// the subframe GST and the tag-info fields of the flexible slots.
//
// The key must be the TESLA key disclosed one subframe after gstMack.
func ValidateMack(m bitfields.Mack, key ValidatedKey, prna gst.Svn, gstMack gst.Gst) (ValidatedMack, error) {
	chain := key.Chain()
	msg := int((gstMack.Tow() / gst.SecsPerSubframe) % 2)
	for j := 1; j < m.NumTags(); j++ {
		slot, err := maclt.Lookup(chain.Maclt, msg, j)
		if err != nil {
			return ValidatedMack{}, err
		}
		if slot.Flex {
			continue
		}
		tag := m.TagAndInfo(j)
		if tag.Adkd() != slot.Adkd {
			return ValidatedMack{}, ErrMackWrongAdkd
		}
		if slot.Object == maclt.SelfAuth && int(tag.Prnd()) != prna.Num() {
			return ValidatedMack{}, ErrMackWrongPrnd
		}
	}
	var buf [5 + 2*maclt.MaxFlexEntries]byte
	buf[0] = uint8(prna.Num())
	gstBits := bits.New(buf[1:5])
	gstBits.Slice(0, 12).SetUint64(uint64(gstMack.Wn()))
	gstBits.Slice(12, 32).SetUint64(uint64(gstMack.Tow()))
	n := 5
	var idxBuf [maclt.MaxFlexEntries]int
	flex, err := maclt.FlexIndices(chain.Maclt, msg, idxBuf[:0])
	if err != nil {
		return ValidatedMack{}, err
	}
	for _, j := range flex {
		if j >= m.NumTags() {
			return ValidatedMack{}, ErrMackStructure
		}
		bits.Copy(bits.New(buf[n:n+2]), m.TagAndInfo(j).InfoBits())
		n += 2
	}
	digest, ok := key.computeMac(buf[:n])
	if !ok {
		return ValidatedMack{}, ErrWrongMacseq
	}
	if uint16(bits.New(digest).Slice(0, 12).Uint64()) != m.Macseq() {
		return ValidatedMack{}, ErrWrongMacseq
	}
	return ValidatedMack{m: m}, nil
}
