// Package engine implements the OSNMA processing black box.
//
// INAV words and OSNMA data fields retrieved from the E1B and E5b
// signals are fed into an Osnma value, which drives the subframe
// assembly, DSM reassembly, KROOT and public key verification, TESLA
// key chain validation and tag processing. At any point the caller can
// request the most recent authenticated navigation data.
package engine

import (
	"errors"
	"log/slog"

	"osnma/bitfields"
	"osnma/dsm"
	"osnma/gst"
	"osnma/mack"
	"osnma/merkle"
	"osnma/navmessage"
	"osnma/storage"
	"osnma/subframe"
	"osnma/tesla"
)

// Errors returned at construction.
var (
	ErrNoCryptoMaterial = errors.New("either a public key or a Merkle tree root is needed")
)

// Config holds the construction parameters of the engine.
type Config struct {
	// Profile sizes the navigation message and MACK storage. The zero
	// value selects storage.Full.
	Profile storage.Profile

	// PublicKey is the OSNMA ECDSA public key, if provisioned.
	PublicKey *merkle.ValidatedPublicKey

	// MerkleTree is the OSNMA Merkle tree, if its root is provisioned.
	// With a Merkle tree, public keys received in DSM-PKR messages can
	// be authenticated over the air.
	MerkleTree *merkle.Tree

	// OnlySlowMac restricts tag processing to ADKD=12. Receivers with a
	// large time uncertainty should use this, per the OSNMA receiver
	// guidelines.
	OnlySlowMac bool
}

// Osnma is the OSNMA processing engine. It is not safe for concurrent
// use; all the state belongs to the single caller that feeds it.
type Osnma struct {
	subframe   *subframe.Collector
	dsm        *dsm.Collector
	navmessage *navmessage.Collector
	mack       *mack.Storage

	pubkey      *merkle.ValidatedPublicKey
	merkleTree  *merkle.Tree
	key         *tesla.ValidatedKey
	onlySlowMac bool
	nmaStatus   bitfields.NmaStatus
}

// New creates an OSNMA engine. At least one of a public key and a Merkle
// tree must be configured, or there is no way to establish trust in a
// TESLA chain.
func New(cfg Config) (*Osnma, error) {
	if cfg.PublicKey == nil && cfg.MerkleTree == nil {
		return nil, ErrNoCryptoMaterial
	}
	profile := cfg.Profile
	if profile == (storage.Profile{}) {
		profile = storage.Full
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Osnma{
		subframe:    subframe.NewCollector(),
		dsm:         dsm.NewCollector(),
		navmessage:  navmessage.NewCollector(profile),
		mack:        mack.NewStorage(profile),
		pubkey:      cfg.PublicKey,
		merkleTree:  cfg.MerkleTree,
		onlySlowMac: cfg.OnlySlowMac,
	}, nil
}

// FeedInav stores the navigation data of an INAV word for later
// authentication. The svn is the satellite transmitting the word, gst
// the GST at the start of the page transmission, and band the signal the
// word was received on.
func (o *Osnma) FeedInav(word []byte, svn gst.Svn, g gst.Gst, band navmessage.InavBand) {
	if len(word) != navmessage.InavWordBytes {
		slog.Error("INAV word with wrong size", "size", len(word))
		return
	}
	o.navmessage.Feed(word, svn, g, band)
}

// FeedOsnma processes the 5-byte OSNMA data field of an INAV page.
// All-zero fields, transmitted by satellites not participating in OSNMA,
// are ignored.
func (o *Osnma) FeedOsnma(osnmaData []byte, svn gst.Svn, g gst.Gst) {
	if len(osnmaData) != subframe.OsnmaDataBytes {
		slog.Error("OSNMA data field with wrong size", "size", len(osnmaData))
		return
	}
	allZero := true
	for _, b := range osnmaData {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return
	}
	if hkroot, mackMessage, subframeGst, ok := o.subframe.Feed(osnmaData, svn, g); ok {
		o.processSubframe(hkroot, mackMessage, svn, subframeGst)
	}
}

// GetCedAndStatus returns the most recent authenticated CED and health
// status data (ADKD=0 and 12) for a satellite, if any.
func (o *Osnma) GetCedAndStatus(svn gst.Svn) (navmessage.NavMessageData, bool) {
	return o.navmessage.GetCedAndStatus(svn)
}

// GetTimingParameters returns the most recent authenticated timing
// parameters data (ADKD=4) for a satellite, if any.
func (o *Osnma) GetTimingParameters(svn gst.Svn) (navmessage.NavMessageData, bool) {
	return o.navmessage.GetTimingParameters(svn)
}

func (o *Osnma) processSubframe(hkroot, mackMessage []byte, svn gst.Svn, g gst.Gst) {
	o.mack.Store(mackMessage, svn, g)

	nmaHeader := bitfields.NmaHeader(hkroot[0])
	o.nmaStatus = nmaHeader.Status()
	if o.nmaStatus == bitfields.NmaDontUse {
		slog.Warn("NMA status is don't use; discarding authentication bits")
		o.navmessage.ResetAuthbits()
	}
	dsmHeader := bitfields.DsmHeader(hkroot[1])
	if complete := o.dsm.Feed(dsmHeader, hkroot[2:subframe.HkrootMessageBytes]); complete != nil {
		o.processDsm(complete, nmaHeader, dsmHeader.Type())
	}

	o.validateKey(mackMessage, g)
}

func (o *Osnma) processDsm(dsmData []byte, nmaHeader bitfields.NmaHeader, dsmType bitfields.DsmType) {
	switch dsmType {
	case bitfields.DsmTypeKroot:
		o.processDsmKroot(dsmData, nmaHeader)
	case bitfields.DsmTypePkr:
		o.processDsmPkr(dsmData)
	}
}

func (o *Osnma) processDsmKroot(dsmData []byte, nmaHeader bitfields.NmaHeader) {
	kroot := bitfields.NewDsmKroot(dsmData)
	if o.pubkey == nil {
		slog.Warn("received DSM-KROOT but no public key is available yet")
		return
	}
	if o.pubkey.PublicKeyID() != kroot.PublicKeyID() {
		slog.Warn("DSM-KROOT uses a different public key",
			"dsm_pkid", kroot.PublicKeyID(), "pkid", o.pubkey.PublicKeyID())
		return
	}
	key, err := tesla.KeyFromDsmKroot(nmaHeader, kroot, *o.pubkey)
	if err != nil {
		slog.Error("could not verify KROOT", "err", err)
		return
	}
	slog.Info("verified KROOT", "gst", key.GstSubframe().String())
	// The first verified KROOT installs the trust anchor; later KROOTs
	// are verified but the anchor moves forward only through chain
	// validation.
	if o.key == nil {
		slog.Info("initializing TESLA trust anchor", "gst", key.GstSubframe().String())
		o.key = &key
	}
}

func (o *Osnma) processDsmPkr(dsmData []byte) {
	if o.merkleTree == nil {
		slog.Warn("received DSM-PKR but no Merkle tree is available")
		return
	}
	pkr := bitfields.NewDsmPkr(dsmData)
	pubkey, err := o.merkleTree.ValidatePKR(pkr)
	if err != nil {
		slog.Error("could not validate DSM-PKR", "err", err)
		return
	}
	slog.Info("validated DSM-PKR", "pkid", pubkey.PublicKeyID())
	if o.pubkey == nil {
		slog.Info("installing public key from DSM-PKR", "pkid", pubkey.PublicKeyID())
		o.pubkey = &pubkey
	}
}

// validateKey extracts the TESLA key disclosed in a MACK message and
// tries to validate it against the trust anchor.
func (o *Osnma) validateKey(mackMessage []byte, g gst.Gst) {
	if o.key == nil {
		slog.Debug("no valid TESLA key yet; unable to validate MACK key")
		return
	}
	current := *o.key
	chain := current.Chain()
	m := bitfields.NewMack(mackMessage, chain.KeySizeBytes*8, chain.TagSizeBits)
	newKey, err := tesla.KeyFromBits(m.Key(), g, chain)
	if err != nil {
		slog.Error("could not extract key from MACK", "err", err)
		return
	}
	switch current.GstSubframe().Compare(newKey.GstSubframe()) {
	case 0:
		// This key is already the trust anchor.
	case 1:
		slog.Warn("MACK key is older than the current valid key",
			"mack_key_gst", newKey.GstSubframe().String(),
			"current_gst", current.GstSubframe().String())
	case -1:
		validated, err := current.ValidateKey(newKey)
		if err != nil {
			slog.Error("could not validate TESLA key",
				"key_gst", newKey.GstSubframe().String(), "err", err)
			return
		}
		slog.Info("new TESLA key validated", "gst", validated.GstSubframe().String())
		o.key = &validated
		o.processTags()
	}
}

// processTags sweeps the MACK storage with the freshly validated key,
// verifying the tags of the previous subframe and the Slow MAC tags of
// eleven subframes ago. The Slow MAC MACK itself is validated with the
// key derived 10 steps back.
func (o *Osnma) processTags() {
	if o.key == nil {
		return
	}
	current := *o.key
	chain := current.Chain()
	gstMack := current.GstSubframe().AddSeconds(-int(gst.SecsPerSubframe))
	gstSlowMac := gstMack.AddSeconds(-300)
	// Regenerate the key that was used for the MACSEQ of the Slow MAC
	// MACK.
	slowMacKey := current.Derive(10)
	for _, svn := range gst.AllSvns() {
		if !o.onlySlowMac {
			if mackData := o.mack.Get(svn, gstMack); mackData != nil {
				m := bitfields.NewMack(mackData, chain.KeySizeBytes*8, chain.TagSizeBits)
				if validated, err := tesla.ValidateMack(m, current, svn, gstMack); err != nil {
					slog.Error("error validating MACK", "svn", svn.String(), "err", err)
				} else {
					o.navmessage.ProcessMack(validated, current, svn, gstMack, o.nmaStatus)
				}
			}
		}

		// Slow MAC needs a MACK message 300 seconds older than the
		// other ADKDs. The derived key validates the MACK itself, while
		// the current key verifies the Slow MAC tags it contains.
		if mackData := o.mack.Get(svn, gstSlowMac); mackData != nil {
			m := bitfields.NewMack(mackData, chain.KeySizeBytes*8, chain.TagSizeBits)
			if validated, err := tesla.ValidateMack(m, slowMacKey, svn, gstSlowMac); err != nil {
				slog.Error("error validating Slow MAC MACK", "svn", svn.String(), "err", err)
			} else {
				o.navmessage.ProcessMackSlowMac(validated, current, svn, gstSlowMac, o.nmaStatus)
			}
		}
	}
}
