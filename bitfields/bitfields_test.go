package bitfields_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"osnma/bitfields"
	"osnma/bits"
)

func TestNmaHeader(t *testing.T) {
	// NMA header broadcast on 2022-03-07
	header := bitfields.NmaHeader(0x52)
	require.Equal(t, bitfields.NmaTest, header.Status())
	require.Equal(t, uint8(1), header.ChainID())
	require.Equal(t, bitfields.CpksNominal, header.ChainAndPubkeyStatus())
}

func TestDsmHeader(t *testing.T) {
	header := bitfields.DsmHeader(0x17)
	require.Equal(t, uint8(1), header.DsmID())
	require.Equal(t, uint8(7), header.BlockID())
	require.Equal(t, bitfields.DsmTypeKroot, header.Type())

	header = bitfields.DsmHeader(0xc0)
	require.Equal(t, uint8(12), header.DsmID())
	require.Equal(t, bitfields.DsmTypePkr, header.Type())
}

func TestDsmKrootFields(t *testing.T) {
	// Synthetic DSM-KROOT: 16-byte key, P-256 signature, which gives
	// 13 + 16 + 64 + 11 = 104 bytes = 8 blocks (NB = 2).
	data := make([]byte, 104)
	data[0] = 2<<4 | 3        // NB = 2, PKID = 3
	data[1] = 1<<6 | 0<<2 | 0 // CIDKR = 1, HF = SHA-256, MF = HMAC
	data[2] = 4<<4 | 9        // KS = 128 bits, TS = 40 bits
	data[3] = 0x21            // MACLT
	data[4] = 0x04            // WNK high nibble
	data[5] = 0x98            // WNK low byte: 0x498 = 1176
	data[6] = 0x21            // TOWHK
	alpha := []byte{0x25, 0xd3, 0x96, 0x4d, 0xa3, 0xa2}
	copy(data[7:13], alpha)
	for j := 13; j < 13+16; j++ {
		data[j] = byte(j)
	}

	kroot := bitfields.NewDsmKroot(data)
	blocks, err := kroot.NumBlocks()
	require.NoError(t, err)
	require.Equal(t, 8, blocks)
	require.Equal(t, uint8(3), kroot.PublicKeyID())
	require.Equal(t, uint8(1), kroot.ChainID())
	hf, err := kroot.HashFunction()
	require.NoError(t, err)
	require.Equal(t, bitfields.HashSha256, hf)
	mf, err := kroot.MacFunction()
	require.NoError(t, err)
	require.Equal(t, bitfields.MacHmacSha256, mf)
	ks, err := kroot.KeySizeBytes()
	require.NoError(t, err)
	require.Equal(t, 16, ks)
	ts, err := kroot.TagSizeBits()
	require.NoError(t, err)
	require.Equal(t, 40, ts)
	require.Equal(t, uint8(0x21), kroot.Maclt())
	require.Equal(t, uint16(1176), uint16(kroot.KrootWn()))
	require.Equal(t, uint8(0x21), kroot.KrootTowh())
	require.Equal(t, uint64(0x25d3964da3a2), kroot.Alpha())

	key, err := kroot.Kroot()
	require.NoError(t, err)
	require.Equal(t, data[13:29], key)

	fn, err := kroot.EcdsaFunction()
	require.NoError(t, err)
	require.Equal(t, bitfields.EcdsaP256Sha256, fn)
	sig, err := kroot.DigitalSignature()
	require.NoError(t, err)
	require.Len(t, sig, 64)
	padding, err := kroot.Padding()
	require.NoError(t, err)
	require.Len(t, padding, 11)
}

func TestDsmKrootReserved(t *testing.T) {
	data := make([]byte, 104)
	data[0] = 0x90 // NB = 9 is reserved
	data[2] = 0xf0 // KS reserved, TS reserved
	kroot := bitfields.NewDsmKroot(data)
	_, err := kroot.NumBlocks()
	require.ErrorIs(t, err, bitfields.ErrReservedField)
	_, err = kroot.KeySizeBytes()
	require.ErrorIs(t, err, bitfields.ErrReservedField)
	_, err = kroot.TagSizeBits()
	require.ErrorIs(t, err, bitfields.ErrReservedField)
}

func TestMackLayout(t *testing.T) {
	const (
		keySizeBits = 128
		tagSizeBits = 40
	)
	buf := make([]byte, bitfields.MackMessageBytes)
	s := bits.New(buf)
	// tag0
	s.Slice(0, 40).SetUint64(0x8f54588871)
	// MACSEQ and COP
	s.Slice(40, 52).SetUint64(0xabc)
	s.Slice(52, 56).SetUint64(5)
	// tag1 and info: tag, PRND = 21, ADKD = 4, COP = 3
	s.Slice(56, 96).SetUint64(0x1122334455)
	s.Slice(96, 104).SetUint64(21)
	s.Slice(104, 108).SetUint64(4)
	s.Slice(108, 112).SetUint64(3)
	// key at 6*(40+16) = 336, low 64 bits set
	s.Slice(400, 464).SetUint64(0x1958e7766fb408cb)

	mack := bitfields.NewMack(buf, keySizeBits, tagSizeBits)
	require.Equal(t, 6, mack.NumTags())
	require.Equal(t, uint64(0x8f54588871), mack.Tag0().Uint64())
	require.Equal(t, uint16(0xabc), mack.Macseq())
	require.Equal(t, uint8(5), mack.Cop())

	tag1 := mack.TagAndInfo(1)
	require.Equal(t, uint64(0x1122334455), tag1.Tag().Uint64())
	require.Equal(t, uint8(21), tag1.Prnd())
	require.Equal(t, bitfields.AdkdInavTiming, tag1.Adkd())
	require.Equal(t, uint8(3), tag1.Cop())

	key := mack.Key()
	require.Equal(t, keySizeBits, key.Len())
	require.Equal(t, uint64(0x1958e7766fb408cb), key.Slice(64, 128).Uint64())
}

func TestMackAdkdReserved(t *testing.T) {
	buf := make([]byte, bitfields.MackMessageBytes)
	s := bits.New(buf)
	s.Slice(104, 108).SetUint64(7) // reserved ADKD in tag1
	mack := bitfields.NewMack(buf, 128, 40)
	require.Equal(t, bitfields.AdkdReserved, mack.TagAndInfo(1).Adkd())
}
