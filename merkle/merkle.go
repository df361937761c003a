// Package merkle authenticates OSNMA public keys against the
// pre-provisioned Merkle tree.
//
// The OSNMA ECDSA public keys are distributed over the air in DSM-PKR
// messages. Each DSM-PKR carries the key together with four intermediate
// tree nodes; hashing the leaf and walking the tree up must reproduce
// the 32-byte tree root that the receiver obtained out of band.
package merkle

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"errors"

	"osnma/bitfields"
)

// NodeBytes is the size of a Merkle tree node.
const NodeBytes = 32

const treeDepth = 4

// Errors produced during validation of a DSM-PKR.
var (
	ErrReservedField = errors.New("reserved value present in some field")
	ErrInvalid       = errors.New("wrong calculated Merkle tree root")
	ErrNoPublicKey   = errors.New("no public key in DSM-PKR")
	ErrBadPoint      = errors.New("new public key is not a valid curve point")
)

// Tree is the OSNMA Merkle tree, represented by its root.
type Tree struct {
	root [NodeBytes]byte
}

// NewTree creates a Merkle tree with the given root.
func NewTree(root [NodeBytes]byte) Tree {
	return Tree{root: root}
}

// ValidatePKR validates a DSM-PKR containing a public key against the
// tree.
//
// The leaf is hashed and combined with the intermediate tree nodes of
// the DSM-PKR, walking up the four tree levels; the message ID selects
// the side of each combination. If the walk reproduces the stored root,
// the new public key is parsed and returned as validated.
func (t Tree) ValidatePKR(pkr bitfields.DsmPkr) (ValidatedPublicKey, error) {
	switch pkr.NewPublicKeyType() {
	case bitfields.NpktEcdsaP256, bitfields.NpktEcdsaP521:
	case bitfields.NpktAlertMessage:
		return ValidatedPublicKey{}, ErrNoPublicKey
	default:
		return ValidatedPublicKey{}, ErrReservedField
	}
	leaf, err := pkr.MerkleTreeLeaf()
	if err != nil {
		return ValidatedPublicKey{}, ErrReservedField
	}
	node := sha256.Sum256(leaf)
	id := pkr.MessageID()
	for j := 0; j < treeDepth; j++ {
		itn := pkr.IntermediateTreeNode(j)
		h := sha256.New()
		if id&1 == 0 {
			h.Write(node[:])
			h.Write(itn)
		} else {
			h.Write(itn)
			h.Write(node[:])
		}
		h.Sum(node[:0])
		id >>= 1
	}
	if node != t.root {
		return ValidatedPublicKey{}, ErrInvalid
	}
	return pubkeyFromPKR(pkr)
}

func pubkeyFromPKR(pkr bitfields.DsmPkr) (ValidatedPublicKey, error) {
	raw, err := pkr.NewPublicKey()
	if err != nil {
		return ValidatedPublicKey{}, ErrReservedField
	}
	var curve elliptic.Curve
	switch pkr.NewPublicKeyType() {
	case bitfields.NpktEcdsaP256:
		curve = elliptic.P256()
	case bitfields.NpktEcdsaP521:
		curve = elliptic.P521()
	default:
		return ValidatedPublicKey{}, ErrNoPublicKey
	}
	key, err := parseSec1(curve, raw)
	if err != nil {
		return ValidatedPublicKey{}, err
	}
	pk := PublicKey{key: key, pkid: pkr.NewPublicKeyID()}
	return ValidatedPublicKey{k: pk}, nil
}

// parseSec1 parses a SEC1-encoded public key point, compressed or
// uncompressed.
func parseSec1(curve elliptic.Curve, data []byte) (*ecdsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, ErrBadPoint
	}
	x, y := elliptic.UnmarshalCompressed(curve, data)
	if x == nil {
		x, y = elliptic.Unmarshal(curve, data)
	}
	if x == nil {
		return nil, ErrBadPoint
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// PublicKey is an OSNMA ECDSA public key (P-256 or P-521) together with
// its public key ID. Keys constructed directly are not validated; a
// ValidatedPublicKey is obtained through Tree.ValidatePKR or, for keys
// known to be trustworthy out of band, through ForceValid.
type PublicKey struct {
	key  *ecdsa.PublicKey
	pkid uint8
}

// NewPublicKey creates a not-yet-validated public key with the given
// public key ID. The key must be on the P-256 or P-521 curve.
func NewPublicKey(key *ecdsa.PublicKey, pkid uint8) (PublicKey, error) {
	if key == nil || (key.Curve != elliptic.P256() && key.Curve != elliptic.P521()) {
		return PublicKey{}, ErrBadPoint
	}
	return PublicKey{key: key, pkid: pkid}, nil
}

// PublicKeyID returns the PKID associated with the key.
func (p PublicKey) PublicKeyID() uint8 { return p.pkid }

// ForceValid marks the key as validated without any cryptographic
// check. It should only be called for keys verified externally or
// loaded from a trustworthy source.
func (p PublicKey) ForceValid() ValidatedPublicKey {
	return ValidatedPublicKey{k: p}
}

// ValidatedPublicKey is a public key that has been authenticated against
// the Merkle tree, or explicitly forced valid. The zero value holds no
// key.
type ValidatedPublicKey struct {
	k PublicKey
}

// PublicKeyID returns the PKID associated with the key.
func (v ValidatedPublicKey) PublicKeyID() uint8 { return v.k.pkid }

// VerifyingKey returns the ECDSA key used to verify DSM-KROOT
// signatures.
func (v ValidatedPublicKey) VerifyingKey() *ecdsa.PublicKey { return v.k.key }
