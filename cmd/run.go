package cmd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"osnma/engine"
	"osnma/galmon"
	"osnma/gst"
	"osnma/merkle"
	"osnma/navmessage"
	"osnma/output"
	"osnma/storage"
)

var (
	// run command flags
	runMerkleRoot   string
	runPubkeyPath   string
	runPubkeyP521   string
	runPkid         int
	runSlowMacOnly  bool
	runSmallStorage bool
	runStatusEvery  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a Galmon stream from stdin",
	Long: `Process OSNMA data reading the Galmon transport protocol from stdin.

The stream is produced by the Galmon tools (ubxtool and friends). At
least one of the Merkle tree root and the ECDSA public key must be
given; with only the Merkle tree root, the public key is recovered over
the air from the DSM-PKR messages.

Examples:
  ubxtool ... | osnma run --merkle-root 0E63F552C802...
  ubxtool ... | osnma run --pubkey osnma_pubkey.pem --pkid 1
  ubxtool ... | osnma run --pubkey-p521 0301... --pkid 2 --slow-mac-only`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runMerkleRoot, "merkle-root", "",
		"Merkle tree root in hex (32 bytes)")
	runCmd.Flags().StringVar(&runPubkeyPath, "pubkey", "",
		"Path to the P-256 public key in PEM format")
	runCmd.Flags().StringVar(&runPubkeyP521, "pubkey-p521", "",
		"P-521 public key in hexadecimal format (SEC1 encoding)")
	runCmd.Flags().IntVar(&runPkid, "pkid", -1,
		"ID of the public key")
	runCmd.Flags().BoolVar(&runSlowMacOnly, "slow-mac-only", false,
		"Only process Slow MAC (ADKD=12) tags")
	runCmd.Flags().BoolVar(&runSmallStorage, "small-storage", false,
		"Use the reduced storage profile (12 satellites, no Slow MAC)")
	runCmd.Flags().IntVar(&runStatusEvery, "status-every", 30,
		"Print the authentication status table every N subframes (0 disables)")

	rootCmd.AddCommand(runCmd)
}

func loadPubkeyPem(path string, pkid uint8) (merkle.ValidatedPublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return merkle.ValidatedPublicKey{}, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return merkle.ValidatedPublicKey{}, errors.New("no PEM block found in public key file")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return merkle.ValidatedPublicKey{}, fmt.Errorf("failed to parse public key: %w", err)
	}
	ecKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return merkle.ValidatedPublicKey{}, errors.New("public key is not an ECDSA key")
	}
	pk, err := merkle.NewPublicKey(ecKey, pkid)
	if err != nil {
		return merkle.ValidatedPublicKey{}, err
	}
	return pk.ForceValid(), nil
}

func loadPubkeyP521(hexKey string, pkid uint8) (merkle.ValidatedPublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return merkle.ValidatedPublicKey{}, fmt.Errorf("failed to parse P-521 public key: %w", err)
	}
	curve := elliptic.P521()
	x, y := elliptic.UnmarshalCompressed(curve, raw)
	if x == nil {
		x, y = elliptic.Unmarshal(curve, raw)
	}
	if x == nil {
		return merkle.ValidatedPublicKey{}, errors.New("P-521 public key is not a valid curve point")
	}
	pk, err := merkle.NewPublicKey(&ecdsa.PublicKey{Curve: curve, X: x, Y: y}, pkid)
	if err != nil {
		return merkle.ValidatedPublicKey{}, err
	}
	return pk.ForceValid(), nil
}

func buildEngine() (*engine.Osnma, error) {
	if runMerkleRoot == "" && runPubkeyPath == "" && runPubkeyP521 == "" {
		return nil, errors.New("at least either the Merkle tree root or the public key must be specified")
	}
	if runPubkeyPath != "" && runPubkeyP521 != "" {
		return nil, errors.New("the --pubkey and --pubkey-p521 flags are mutually exclusive")
	}
	if (runPubkeyPath != "" || runPubkeyP521 != "") && runPkid < 0 {
		return nil, errors.New("the --pkid flag is needed together with --pubkey or --pubkey-p521")
	}
	if runPkid >= 0 && runPubkeyPath == "" && runPubkeyP521 == "" {
		return nil, errors.New("the --pkid flag needs to be used together with --pubkey or --pubkey-p521")
	}

	cfg := engine.Config{Profile: storage.Full, OnlySlowMac: runSlowMacOnly}
	if runSmallStorage {
		cfg.Profile = storage.Small
	}
	if runPubkeyPath != "" {
		pk, err := loadPubkeyPem(runPubkeyPath, uint8(runPkid))
		if err != nil {
			return nil, err
		}
		cfg.PublicKey = &pk
	} else if runPubkeyP521 != "" {
		pk, err := loadPubkeyP521(runPubkeyP521, uint8(runPkid))
		if err != nil {
			return nil, err
		}
		cfg.PublicKey = &pk
	}
	if runMerkleRoot != "" {
		raw, err := hex.DecodeString(runMerkleRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Merkle tree root: %w", err)
		}
		if len(raw) != merkle.NodeBytes {
			return nil, errors.New("the Merkle tree root has a wrong length")
		}
		var root [merkle.NodeBytes]byte
		copy(root[:], raw)
		tree := merkle.NewTree(root)
		cfg.MerkleTree = &tree
	}
	return engine.New(cfg)
}

func runRun(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	read := galmon.NewReadTransport(os.Stdin)
	var (
		currentSubframe gst.Gst
		haveSubframe    bool
		lastTowMod30    gst.Tow
		subframeCount   int
	)
	for {
		packet, err := read.ReadPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		gi := packet.GI
		if gi == nil || !gi.HasSigid {
			continue
		}

		// Sometimes a TOW of 604801 shows up in Galmon data.
		secsInWeek := uint32(gst.SecsInWeek)
		tow := gst.Tow(gi.GnssTOW % secsInWeek)
		wn := gst.Wn(gi.GnssWN + gi.GnssTOW/secsInWeek)

		// Work around a bug in Galmon data: often the E1B word 16
		// starting at TOW = 29 mod 30 carries the TOW of the previous
		// word 16 in the subframe, which starts at TOW = 15 mod 30.
		if tow%30 == 15 && lastTowMod30 >= 19 {
			slog.Debug("fixing wrong TOW", "svn", gi.GnssSV, "tow", tow, "last_tow_mod_30", lastTowMod30)
			tow += 29 - 15 // week rollover is not possible by this addition
		}
		lastTowMod30 = tow % 30

		g := gst.New(wn, tow)
		if haveSubframe && currentSubframe.After(g.SubframeStart()) {
			// Avoid processing INAV words from a previous subframe.
			slog.Warn("dropping INAV word from previous subframe",
				"current", currentSubframe.String(), "word_gst", g.String(), "svn", gi.GnssSV)
			continue
		}
		if newSubframe := g.SubframeStart(); !haveSubframe || newSubframe != currentSubframe {
			currentSubframe = newSubframe
			haveSubframe = true
			subframeCount++
			if runStatusEvery > 0 && subframeCount%runStatusEvery == 0 {
				output.PrintStatus(eng)
			}
		}

		svn, err := gst.NewSvn(int(gi.GnssSV))
		if err != nil {
			slog.Error("invalid SVN in Galmon data", "sv", gi.GnssSV)
			continue
		}
		var band navmessage.InavBand
		switch gi.Sigid {
		case 1:
			band = navmessage.BandE1B
		case 5:
			band = navmessage.BandE5B
		default:
			slog.Error("INAV word received on non-INAV band", "sigid", gi.Sigid)
			continue
		}

		// OSNMA is not provided in INAV dummy messages or alert pages;
		// the OSNMA field in these pages is invalid and must be
		// discarded. Dummy words are dropped here. The page type bit is
		// not present in Galmon data, so alert pages cannot be
		// filtered.
		if len(gi.Contents) != navmessage.InavWordBytes {
			slog.Error("INAV word with wrong size", "size", len(gi.Contents))
			continue
		}
		if gi.Contents[0]>>2 == 63 {
			slog.Debug("discarding dummy INAV word", "svn", svn.String(), "gst", g.String())
			continue
		}

		eng.FeedInav(gi.Contents, svn, g, band)
		if len(gi.Reserved1) == 5 {
			eng.FeedOsnma(gi.Reserved1, svn, g)
		}

		reportNewAuthenticated(eng)
	}
}

// Last authenticated data seen, used to log only changes.
var (
	lastCed    [gst.NumSvns][navmessage.CedAndStatusBits/8 + 1]byte
	lastCedOk  [gst.NumSvns]bool
	lastTiming [gst.NumSvns][navmessage.TimingParametersBits/8 + 1]byte
	lastTimOk  [gst.NumSvns]bool
)

func reportNewAuthenticated(eng *engine.Osnma) {
	for _, svn := range gst.AllSvns() {
		idx := svn.Num() - 1
		if data, ok := eng.GetCedAndStatus(svn); ok {
			var current [navmessage.CedAndStatusBits/8 + 1]byte
			copyDataBytes(current[:], data)
			if !lastCedOk[idx] || current != lastCed[idx] {
				slog.Info("new CED and status authenticated", "svn", svn.String(),
					"authbits", data.Authbits(), "gst", data.Gst().String())
				lastCed[idx] = current
				lastCedOk[idx] = true
			}
		}
		if data, ok := eng.GetTimingParameters(svn); ok {
			var current [navmessage.TimingParametersBits/8 + 1]byte
			copyDataBytes(current[:], data)
			if !lastTimOk[idx] || current != lastTiming[idx] {
				slog.Info("new timing parameters authenticated", "svn", svn.String(),
					"authbits", data.Authbits(), "gst", data.Gst().String())
				lastTiming[idx] = current
				lastTimOk[idx] = true
			}
		}
	}
}

func copyDataBytes(dst []byte, data navmessage.NavMessageData) {
	d := data.Data()
	for j := 0; j < d.Len(); j++ {
		if d.Bit(j) != 0 {
			dst[j/8] |= 1 << (7 - j%8)
		}
	}
}
