package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"osnma/bitfields"
	"osnma/gst"
	"osnma/tesla"
)

var (
	// chain command flags
	chainKey   string
	chainWn    int
	chainTow   int
	chainAlpha string
	chainHash  string
	chainSteps int
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Walk a TESLA key chain backward",
	Long: `Apply the TESLA one-way function to a key, walking the chain
backward one subframe per step. Useful to cross-check received keys
against a known chain.

Examples:
  osnma chain --key 9542AAD47ABF39BAFE566861AFE880B2 \
    --wn 1176 --tow 120960 --alpha 25D3964DA3A2 --steps 1`,
	RunE: runChain,
}

func init() {
	chainCmd.Flags().StringVar(&chainKey, "key", "",
		"TESLA key in hex")
	chainCmd.Flags().IntVar(&chainWn, "wn", 0,
		"Week number of the key subframe")
	chainCmd.Flags().IntVar(&chainTow, "tow", 0,
		"Time of week of the key subframe in seconds")
	chainCmd.Flags().StringVar(&chainAlpha, "alpha", "",
		"Chain parameter alpha in hex (48 bits)")
	chainCmd.Flags().StringVar(&chainHash, "hash", "sha256",
		"Chain hash function: sha256 or sha3")
	chainCmd.Flags().IntVar(&chainSteps, "steps", 1,
		"Number of one-way function applications")

	rootCmd.AddCommand(chainCmd)
}

func runChain(cmd *cobra.Command, args []string) error {
	keyBytes, err := hex.DecodeString(chainKey)
	if err != nil {
		return fmt.Errorf("failed to parse key: %w", err)
	}
	if len(keyBytes) < 12 || len(keyBytes) > tesla.MaxKeyBytes {
		return errors.New("key size out of range")
	}
	alphaBytes, err := hex.DecodeString(chainAlpha)
	if err != nil || len(alphaBytes) != 6 {
		return errors.New("alpha must be 6 bytes of hex")
	}
	var alpha uint64
	for _, b := range alphaBytes {
		alpha = alpha<<8 | uint64(b)
	}
	var hash bitfields.HashFunction
	switch chainHash {
	case "sha256":
		hash = bitfields.HashSha256
	case "sha3":
		hash = bitfields.HashSha3_256
	default:
		return errors.New("hash must be sha256 or sha3")
	}
	if chainTow%int(gst.SecsPerSubframe) != 0 {
		return errors.New("the time of week must be a subframe boundary")
	}
	if chainSteps < 1 {
		return errors.New("steps must be at least 1")
	}

	chain := tesla.Chain{
		Hash:         hash,
		Mac:          bitfields.MacHmacSha256,
		KeySizeBytes: len(keyBytes),
		TagSizeBits:  40,
		Alpha:        alpha,
	}
	key, err := tesla.NewKey(keyBytes, gst.New(gst.Wn(chainWn), gst.Tow(chainTow)), chain)
	if err != nil {
		return err
	}
	for j := 0; j < chainSteps; j++ {
		key = key.OneWay()
		fmt.Printf("%s  %s\n", key.GstSubframe(), hex.EncodeToString(key.Bytes()))
	}
	return nil
}
