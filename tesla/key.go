package tesla

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"log/slog"

	"github.com/aead/cmac"
	"golang.org/x/crypto/sha3"

	"osnma/bitfields"
	"osnma/bits"
	"osnma/gst"
	"osnma/merkle"
)

// MaxKeyBytes is the largest TESLA key size defined by the ICD.
const MaxKeyBytes = 32

// MaxDerivations is the ceiling on the number of one-way function
// applications accepted by ValidateKey. The value is arbitrary; the
// default is chosen to be slightly greater than one day of subframes.
var MaxDerivations = 3000

// Errors produced during key construction and validation.
var (
	ErrKeySize             = errors.New("key data does not match the chain key size")
	ErrNotSubframe         = errors.New("key GST is not a subframe boundary")
	ErrWrongOneWayFunction = errors.New("one-way function does not reach the trusted key")
	ErrDifferentChain      = errors.New("keys belong to different chains")
	ErrDoesNotFollow       = errors.New("key is not newer than the trusted key")
	ErrTooManyDerivations  = errors.New("too many derivations between keys")
	ErrWrongKrootPadding   = errors.New("DSM-KROOT padding is wrong")
	ErrWrongKrootEcdsa     = errors.New("DSM-KROOT ECDSA signature is wrong")
)

// Key is a TESLA key: the key bytes, the chain it belongs to, and the
// GST of the subframe it corresponds to. Keys constructed directly are
// not validated; a ValidatedKey is obtained through the DSM-KROOT
// verification, through ValidatedKey.ValidateKey, or through the
// explicit ForceValid escape hatch.
type Key struct {
	data        [MaxKeyBytes]byte
	chain       Chain
	gstSubframe gst.Gst
}

// NewKey creates a key from its bytes. The data length must equal the
// chain key size and the GST must lie at a subframe boundary.
func NewKey(data []byte, g gst.Gst, chain Chain) (Key, error) {
	if len(data) != chain.KeySizeBytes {
		return Key{}, ErrKeySize
	}
	if !g.IsSubframe() {
		return Key{}, ErrNotSubframe
	}
	k := Key{chain: chain, gstSubframe: g}
	copy(k.data[:], data)
	return k, nil
}

// KeyFromBits creates a key from the key bits disclosed in a MACK
// message.
func KeyFromBits(b bits.Slice, g gst.Gst, chain Chain) (Key, error) {
	if b.Len() != chain.KeySizeBytes*8 {
		return Key{}, ErrKeySize
	}
	if !g.IsSubframe() {
		return Key{}, ErrNotSubframe
	}
	k := Key{chain: chain, gstSubframe: g}
	bits.Copy(bits.New(k.data[:chain.KeySizeBytes]), b)
	return k, nil
}

// Chain returns the chain parameters of the key.
func (k Key) Chain() Chain { return k.chain }

// GstSubframe returns the GST of the subframe the key corresponds to.
func (k Key) GstSubframe() gst.Gst { return k.gstSubframe }

// Bytes returns a copy of the key bytes.
func (k Key) Bytes() []byte {
	out := make([]byte, k.chain.KeySizeBytes)
	copy(out, k.data[:k.chain.KeySizeBytes])
	return out
}

// Equal reports whether two keys have the same chain, subframe and key
// bytes.
func (k Key) Equal(other Key) bool {
	return k.chain == other.chain &&
		k.gstSubframe == other.gstSubframe &&
		k.data == other.data
}

// OneWay applies the TESLA one-way function once, producing the key of
// the previous subframe.
//
// The hash input is the key bytes followed by the WN and TOW of the
// previous subframe and the 48-bit chain parameter α; the new key is the
// truncation of the chain's hash function over this input.
func (k Key) OneWay() Key {
	// 10 bytes fit the GST (32 bits) and α (48 bits).
	var buffer [MaxKeyBytes + 10]byte
	size := k.chain.KeySizeBytes
	copy(buffer[:size], k.data[:size])
	previous := k.gstSubframe.AddSeconds(-int(gst.SecsPerSubframe))
	gstBits := bits.New(buffer[size : size+4])
	gstBits.Slice(0, 12).SetUint64(uint64(previous.Wn()))
	gstBits.Slice(12, 32).SetUint64(uint64(previous.Tow()))
	alpha := k.chain.Alpha
	for j := 0; j < 6; j++ {
		buffer[size+4+j] = byte(alpha >> (8 * (5 - j)))
	}
	var digest []byte
	switch k.chain.Hash {
	case bitfields.HashSha3_256:
		d := sha3.Sum256(buffer[:size+10])
		digest = d[:]
	default:
		d := sha256.Sum256(buffer[:size+10])
		digest = d[:]
	}
	out := Key{chain: k.chain, gstSubframe: previous}
	copy(out.data[:size], digest[:size])
	return out
}

// ValidatedKey is a TESLA key that has been traced back to the trusted
// anchor through cryptographic checks, or explicitly forced valid. The
// zero value holds no key.
type ValidatedKey struct {
	k Key
}

// ForceValid marks a key as validated without any cryptographic check.
// It should only be called for keys known to be valid, such as test
// vectors or keys verified externally.
func ForceValid(k Key) ValidatedKey {
	return ValidatedKey{k: k}
}

// Key returns the underlying key value.
func (v ValidatedKey) Key() Key { return v.k }

// Chain returns the chain parameters of the key.
func (v ValidatedKey) Chain() Chain { return v.k.chain }

// GstSubframe returns the GST of the subframe the key corresponds to.
func (v ValidatedKey) GstSubframe() gst.Gst { return v.k.gstSubframe }

// Derive applies the one-way function n times, producing the validated
// key n subframes in the past. This is used to regenerate the key that
// authenticated a Slow MAC MACK message.
func (v ValidatedKey) Derive(n int) ValidatedKey {
	k := v.k
	for j := 0; j < n; j++ {
		k = k.OneWay()
	}
	return ValidatedKey{k: k}
}

// ValidateKey validates a candidate key against the trusted key v by
// applying the one-way function to the candidate until it reaches the
// subframe of v and comparing the result.
//
// The candidate must belong to the same chain, be strictly newer than v,
// and be at most MaxDerivations subframes away.
func (v ValidatedKey) ValidateKey(other Key) (ValidatedKey, error) {
	if v.k.chain != other.chain {
		return ValidatedKey{}, ErrDifferentChain
	}
	if v.k.gstSubframe.Compare(other.gstSubframe) >= 0 {
		return ValidatedKey{}, ErrDoesNotFollow
	}
	derivations := other.gstSubframe.SubframesSince(v.k.gstSubframe)
	if derivations > MaxDerivations {
		return ValidatedKey{}, ErrTooManyDerivations
	}
	derived := other
	for j := 0; j < derivations; j++ {
		derived = derived.OneWay()
	}
	size := v.k.chain.KeySizeBytes
	if !bytesEqualPrefix(derived.data[:], v.k.data[:], size) {
		return ValidatedKey{}, ErrWrongOneWayFunction
	}
	return ValidatedKey{k: other}, nil
}

func bytesEqualPrefix(a, b []byte, n int) bool {
	for j := 0; j < n; j++ {
		if a[j] != b[j] {
			return false
		}
	}
	return true
}

// KeyFromDsmKroot establishes the root of a TESLA chain from a verified
// DSM-KROOT.
//
// The chain parameters are extracted, the padding and the ECDSA
// signature of the DSM-KROOT are checked against the validated public
// key, and the KROOT is returned as a validated key located one
// subframe before the time stated in the DSM-KROOT.
func KeyFromDsmKroot(nma bitfields.NmaHeader, kroot bitfields.DsmKroot, pubkey merkle.ValidatedPublicKey) (ValidatedKey, error) {
	chain, err := ChainFromDsmKroot(nma, kroot)
	if err != nil {
		return ValidatedKey{}, err
	}
	if !kroot.CheckPadding(nma) {
		return ValidatedKey{}, ErrWrongKrootPadding
	}
	if !kroot.CheckSignature(nma, pubkey.VerifyingKey()) {
		return ValidatedKey{}, ErrWrongKrootEcdsa
	}
	wn := kroot.KrootWn()
	tow := gst.Tow(kroot.KrootTowh()) * 3600
	g := gst.New(wn, tow).AddSeconds(-int(gst.SecsPerSubframe))
	krootBytes, err := kroot.Kroot()
	if err != nil {
		return ValidatedKey{}, err
	}
	key, err := NewKey(krootBytes, g, chain)
	if err != nil {
		return ValidatedKey{}, err
	}
	return ForceValid(key), nil
}

// Sizes of the tag verification message buffers. The largest message
// corresponds to ADKD=0 and 12 navigation data (549 bits), and tags
// other than tag0 carry one extra byte for PRND.
const (
	tag0MessageBytes = 75
	tagMessageBytes  = tag0MessageBytes + 1
)

// ValidateTag0 verifies the tag0 of a MACK message against navigation
// data. The authenticating satellite prna transmitted both the tag and
// the data; tagGst is the GST of the subframe the tag was transmitted
// in.
func (v ValidatedKey) ValidateTag0(tag0 bits.Slice, tagGst gst.Gst, prna gst.Svn, nmaStatus bitfields.NmaStatus, navdata bits.Slice) bool {
	var buffer [tag0MessageBytes]byte
	n := v.fillTagMessage(buffer[:], tagGst, uint8(prna.Num()), 1, nmaStatus, navdata, 0)
	return v.checkTag(buffer[:n], tag0)
}

// ValidateTag verifies a tag other than tag0. prnd identifies the
// satellite whose data is authenticated and ctr is the position of the
// tag in the MACK message, counting from 1.
func (v ValidatedKey) ValidateTag(tag bits.Slice, tagGst gst.Gst, prnd uint8, prna gst.Svn, ctr uint8, nmaStatus bitfields.NmaStatus, navdata bits.Slice) bool {
	var buffer [tagMessageBytes]byte
	buffer[0] = prnd
	n := v.fillTagMessage(buffer[1:], tagGst, uint8(prna.Num()), ctr, nmaStatus, navdata, 0)
	return v.checkTag(buffer[:1+n], tag)
}

// ValidateTag0Dummy verifies a dummy tag0 (COP = 0). The message uses
// all-zero navigation data of the declared length.
func (v ValidatedKey) ValidateTag0Dummy(tag0 bits.Slice, tagGst gst.Gst, prna gst.Svn, nmaStatus bitfields.NmaStatus, navdataLenBits int) bool {
	var buffer [tag0MessageBytes]byte
	n := v.fillTagMessage(buffer[:], tagGst, uint8(prna.Num()), 1, nmaStatus, bits.Slice{}, navdataLenBits)
	return v.checkTag(buffer[:n], tag0)
}

// ValidateTagDummy verifies a dummy tag (COP = 0) other than tag0.
func (v ValidatedKey) ValidateTagDummy(tag bits.Slice, tagGst gst.Gst, prnd uint8, prna gst.Svn, ctr uint8, nmaStatus bitfields.NmaStatus, navdataLenBits int) bool {
	var buffer [tagMessageBytes]byte
	buffer[0] = prnd
	n := v.fillTagMessage(buffer[1:], tagGst, uint8(prna.Num()), ctr, nmaStatus, bits.Slice{}, navdataLenBits)
	return v.checkTag(buffer[:1+n], tag)
}

// fillTagMessage builds the common part of the tag verification message:
// PRN_A, the tag GST, the counter, the NMA status and the navigation
// data bits. For dummy tags navdata is empty and navdataLenBits states
// the declared length; the buffer is already zeroed. It returns the
// number of bytes used.
func (v ValidatedKey) fillTagMessage(buf []byte, g gst.Gst, prna, ctr uint8, nmaStatus bitfields.NmaStatus, navdata bits.Slice, navdataLenBits int) int {
	buf[0] = prna
	gstBits := bits.New(buf[1:5])
	gstBits.Slice(0, 12).SetUint64(uint64(g.Wn()))
	gstBits.Slice(12, 32).SetUint64(uint64(g.Tow()))
	buf[5] = ctr
	remaining := bits.New(buf[6:])
	remaining.Slice(0, 2).SetUint64(uint64(nmaStatus))
	if navdata.Len() > 0 {
		bits.Copy(remaining.Slice(2, 2+navdata.Len()), navdata)
		navdataLenBits = navdata.Len()
	}
	return 6 + (2+navdataLenBits+7)/8
}

// checkTag computes the chain MAC over message and compares its leading
// bits with the received tag.
func (v ValidatedKey) checkTag(message []byte, tag bits.Slice) bool {
	digest, ok := v.computeMac(message)
	if !ok {
		return false
	}
	return bits.Equal(bits.New(digest).Slice(0, tag.Len()), tag)
}

// computeMac computes the chain's MAC function over message, keyed with
// the key bytes.
func (v ValidatedKey) computeMac(message []byte) ([]byte, bool) {
	key := v.k.data[:v.k.chain.KeySizeBytes]
	switch v.k.chain.Mac {
	case bitfields.MacCmacAes:
		block, err := aes.NewCipher(key)
		if err != nil {
			slog.Error("cannot use TESLA key as AES key", "key_size", len(key), "err", err)
			return nil, false
		}
		mac, err := cmac.New(block)
		if err != nil {
			slog.Error("cannot create CMAC", "err", err)
			return nil, false
		}
		mac.Write(message)
		return mac.Sum(nil), true
	default:
		mac := hmac.New(sha256.New, key)
		mac.Write(message)
		return mac.Sum(nil), true
	}
}
