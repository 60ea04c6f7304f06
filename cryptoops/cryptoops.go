// Package cryptoops declares the Verifier collaborator the stake
// transaction processor uses for curve and RingCT math. The actual
// ring-signature/RCT math and key-derivation primitives live outside
// this module entirely; this package only carries the narrow contract
// the processor drives them through, mirroring how the blockchain
// collaborator in package chain is declared without an implementation.
package cryptoops

import "errors"

// ErrNotOnCurve is returned by CheckKey when the supplied bytes are not
// a valid curve point. The processor treats this as a malformed stake
// transaction, not a crypto-library error.
var ErrNotOnCurve = errors.New("not a valid curve point")

// PublicKey, SecretKey, Signature and Hash have the same shapes as the
// wire types defined in package chain. They are distinct named types,
// not aliases, so callers convert between the two explicitly.
type (
	PublicKey [32]byte
	SecretKey [32]byte
	Signature [64]byte
	Hash      [32]byte
)

// KeyDerivation is the Diffie-Hellman shared secret `r*A` (or `a*R`)
// used to derive one-time output keys and to decode RingCT amounts.
type KeyDerivation [32]byte

// AmountResult is the outcome of attempting to recover the amount an
// output pays to a given one-time key: a failed recovery is an
// ordinary, inspectable value, not an error that unwinds the block
// loop.
type AmountResult struct {
	Matched bool
	Amount  uint64
}

// Verifier is the cryptographic collaborator the processor depends on
// for everything it must not reimplement: curve validity, signature
// verification, key derivation, and RingCT amount recovery.
// Implementations are expected to wrap the node's actual
// elliptic-curve/RingCT library.
type Verifier interface {
	// CheckKey reports whether pub decodes to a valid point on the
	// curve this supernode identity/address scheme uses.
	CheckKey(pub PublicKey) bool

	// VerifySignature checks sig against msg under pub.
	VerifySignature(pub PublicKey, msg []byte, sig Signature) bool

	// CnFastHash is the fast (non-slow, non-PoW) hash used to build the
	// message a stake transaction's signature covers.
	CnFastHash(data []byte) Hash

	// GenerateKeyDerivation computes the shared secret from a
	// transaction's public key and a recipient's secret view key (or
	// vice versa, for the sender side).
	GenerateKeyDerivation(txPublicKey PublicKey, secretKey SecretKey) (KeyDerivation, error)

	// DerivePublicKey derives the one-time output key at output index
	// outputIndex for basePublicKey, given the shared derivation.
	DerivePublicKey(derivation KeyDerivation, outputIndex int, basePublicKey PublicKey) (PublicKey, error)

	// RecoverV1Amount returns the plaintext amount of a version-1
	// output, confirming first that outputKey is the one-time key
	// derived for baseAddress at outputIndex under derivation.
	RecoverV1Amount(derivation KeyDerivation, outputIndex int, baseAddress PublicKey, outputKey PublicKey, plainAmount uint64) AmountResult

	// RecoverRingCTAmount decodes a RingCT output's masked amount
	// (ecdhInfo's mask/amount fields) using the shared derivation and
	// output index, then verifies the decoded amount and mask against
	// the on-chain Pedersen commitment outPk. Matched is false (not an
	// error) if the output key doesn't belong to baseAddress or the
	// decoded amount fails the commitment check.
	RecoverRingCTAmount(derivation KeyDerivation, outputIndex int, baseAddress PublicKey, outputKey PublicKey, ecdhMask [32]byte, ecdhAmount [32]byte, outPkMask [32]byte) AmountResult
}
