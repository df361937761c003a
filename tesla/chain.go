// Package tesla implements the TESLA key chain of OSNMA: chain
// parameters, key values, the one-way function that walks the chain
// backward, validation of disclosed keys against a trusted anchor, and
// verification of the MAC tags and MACSEQ fields computed with the keys.
package tesla

import (
	"errors"

	"osnma/bitfields"
)

// Errors produced while interpreting chain parameters.
var (
	ErrReservedField = errors.New("reserved value present in some field")
	ErrNmaDontUse    = errors.New("NMA status is don't use")
)

// ChainStatus is the operational status of a TESLA chain, taken from the
// NMA status field.
type ChainStatus uint8

// Chain statuses.
const (
	ChainTest ChainStatus = iota
	ChainOperational
)

func (s ChainStatus) String() string {
	if s == ChainOperational {
		return "Operational"
	}
	return "Test"
}

// Chain holds the parameters of a TESLA chain, as extracted from a
// DSM-KROOT and its NMA header. Chain values are compared with == when
// checking that two keys belong to the same chain.
type Chain struct {
	Status       ChainStatus
	ID           uint8
	Hash         bitfields.HashFunction
	Mac          bitfields.MacFunction
	KeySizeBytes int
	TagSizeBits  int
	Maclt        uint8
	Alpha        uint64
}

// ChainFromDsmKroot extracts the chain parameters from a DSM-KROOT and
// its NMA header. Reserved field values and the don't-use NMA status are
// rejected.
func ChainFromDsmKroot(nma bitfields.NmaHeader, kroot bitfields.DsmKroot) (Chain, error) {
	var status ChainStatus
	switch nma.Status() {
	case bitfields.NmaTest:
		status = ChainTest
	case bitfields.NmaOperational:
		status = ChainOperational
	case bitfields.NmaDontUse:
		return Chain{}, ErrNmaDontUse
	default:
		return Chain{}, ErrReservedField
	}
	hash, err := kroot.HashFunction()
	if err != nil {
		return Chain{}, ErrReservedField
	}
	mac, err := kroot.MacFunction()
	if err != nil {
		return Chain{}, ErrReservedField
	}
	keySize, err := kroot.KeySizeBytes()
	if err != nil {
		return Chain{}, ErrReservedField
	}
	tagSize, err := kroot.TagSizeBits()
	if err != nil {
		return Chain{}, ErrReservedField
	}
	return Chain{
		Status:       status,
		ID:           nma.ChainID(),
		Hash:         hash,
		Mac:          mac,
		KeySizeBytes: keySize,
		TagSizeBits:  tagSize,
		Maclt:        kroot.Maclt(),
		Alpha:        kroot.Alpha(),
	}, nil
}
