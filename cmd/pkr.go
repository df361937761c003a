package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"osnma/bitfields"
	"osnma/merkle"
)

var (
	// pkr command flags
	pkrMerkleRoot string
)

var pkrCmd = &cobra.Command{
	Use:   "pkr <dsm-pkr-hex>",
	Short: "Validate a DSM-PKR against the Merkle tree",
	Long: `Validate a DSM-PKR message against the Merkle tree root.

The DSM-PKR is given as a hex string of the complete reassembled
message (13 to 16 DSM blocks). On success, the public key ID and type
of the carried key are printed.

Examples:
  osnma pkr --merkle-root 0E63F552C802... 70016318dced...`,
	Args: cobra.ExactArgs(1),
	RunE: runPkr,
}

func init() {
	pkrCmd.Flags().StringVar(&pkrMerkleRoot, "merkle-root", "",
		"Merkle tree root in hex (32 bytes)")

	rootCmd.AddCommand(pkrCmd)
}

func runPkr(cmd *cobra.Command, args []string) error {
	if pkrMerkleRoot == "" {
		return errors.New("the --merkle-root flag is required")
	}
	rootBytes, err := hex.DecodeString(pkrMerkleRoot)
	if err != nil {
		return fmt.Errorf("failed to parse Merkle tree root: %w", err)
	}
	if len(rootBytes) != merkle.NodeBytes {
		return errors.New("the Merkle tree root has a wrong length")
	}
	var root [merkle.NodeBytes]byte
	copy(root[:], rootBytes)

	dsmData, err := hex.DecodeString(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse DSM-PKR: %w", err)
	}
	pkr := bitfields.NewDsmPkr(dsmData)
	blocks, err := pkr.NumBlocks()
	if err != nil {
		return fmt.Errorf("invalid DSM-PKR NB field: %w", err)
	}
	if len(dsmData) < blocks*13 {
		return errors.New("DSM-PKR is shorter than its NB field states")
	}

	tree := merkle.NewTree(root)
	pubkey, err := tree.ValidatePKR(pkr)
	if err != nil {
		return fmt.Errorf("DSM-PKR validation failed: %w", err)
	}
	fmt.Printf("DSM-PKR valid: %s key with PKID %d (message ID %d)\n",
		pkr.NewPublicKeyType(), pubkey.PublicKeyID(), pkr.MessageID())
	return nil
}
