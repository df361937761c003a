// Package dsm reassembles Digital Signature Messages from the fixed-size
// blocks transmitted in the HKROOT stream.
//
// A DSM is split into up to 16 blocks of 13 bytes. The blocks of the DSM
// with the current DSM ID are accumulated in any order; once block 0 is
// present its NB field states how many blocks the message has, and when
// all of them have arrived the complete DSM is handed out.
package dsm

import (
	"bytes"
	"log/slog"

	"osnma/bitfields"
)

// BlockBytes is the size of a DSM block.
const BlockBytes = 13

const (
	maxBlocks = 16
	maxBytes  = maxBlocks * BlockBytes
)

// Collector reassembles a DSM from its blocks.
type Collector struct {
	dsm        [maxBytes]byte
	blockValid [maxBlocks]bool
	done       bool
	hasType    bool
	dsmType    bitfields.DsmType
	dsmID      uint8
}

// NewCollector creates an empty DSM collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) reset() {
	c.blockValid = [maxBlocks]bool{}
	c.done = false
}

// Feed stores one DSM block. If this block completes the DSM, the full
// message is returned; otherwise Feed returns nil. The returned slice
// borrows the collector's buffer and is only valid until the next call.
//
// A change of DSM ID with respect to the previous call discards the
// blocks collected so far and starts collecting the new DSM.
func (c *Collector) Feed(header bitfields.DsmHeader, block []byte) []byte {
	if len(block) != BlockBytes {
		slog.Error("DSM block with wrong size", "size", len(block))
		return nil
	}
	if header.DsmID() != c.dsmID || !c.hasType {
		slog.Info("new DSM", "id", header.DsmID(), "previous_id", c.dsmID, "type", header.Type().String())
		c.reset()
		c.dsmID = header.DsmID()
		c.dsmType = header.Type()
		c.hasType = true
	}
	if c.done {
		// Current DSM is already complete.
		return nil
	}
	c.storeBlock(header.BlockID(), block)
	size, ok := c.doneAndSize()
	if !ok {
		return nil
	}
	c.done = true
	slog.Info("completed DSM", "id", c.dsmID, "size_bytes", size)
	return c.dsm[:size]
}

func (c *Collector) storeBlock(blockID uint8, block []byte) {
	idx := int(blockID) * BlockBytes
	section := c.dsm[idx : idx+BlockBytes]
	if c.blockValid[blockID] {
		if !bytes.Equal(section, block) {
			// Keep the first copy.
			slog.Error("DSM block already stored with different contents",
				"block", blockID, "stored", section, "received", block)
		}
		return
	}
	copy(section, block)
	c.blockValid[blockID] = true
	slog.Debug("stored DSM block", "block", blockID)
}

func (c *Collector) doneAndSize() (int, bool) {
	if !c.blockValid[0] {
		// The NB field lives in block 0, so the DSM size is unknown
		// until that block arrives.
		return 0, false
	}
	nb := c.dsm[0] >> 4
	n, ok := numberOfBlocks(c.dsmType, nb)
	if !ok {
		// A DSM with a reserved NB can never complete. It will be
		// discarded once a new DSM ID arrives.
		slog.Error("reserved NB value", "nb", nb, "dsm_type", c.dsmType.String())
		return 0, false
	}
	for _, valid := range c.blockValid[:n] {
		if !valid {
			return 0, false
		}
	}
	return n * BlockBytes, true
}

func numberOfBlocks(dsmType bitfields.DsmType, nb uint8) (int, bool) {
	switch dsmType {
	case bitfields.DsmTypeKroot:
		if nb >= 1 && nb <= 8 {
			return int(nb) + 6, true
		}
	case bitfields.DsmTypePkr:
		if nb >= 7 && nb <= 10 {
			return int(nb) + 6, true
		}
	}
	return 0, false
}
