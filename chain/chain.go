// Package chain declares the Blockchain collaborator the stake
// transaction processor reads from. The blockchain database, its fork
// choice, and its P2P synchronization are out of scope for this
// module; this package only carries the narrow read surface the
// processor needs, the way clientcontroller/api declares
// ClientController/ConsumerController as pure interfaces for the
// finality-provider daemon to depend on without owning their
// implementation.
package chain

import (
	"errors"
)

// ErrBlockDoesNotExist is returned by GetBlockIDByHeight and
// GetBlockByHash when the requested block has not been received by this
// node yet. It is distinct from a storage or I/O error: the caller
// (Processor.Synchronize) treats it as "try again later" rather than
// a hard failure.
var ErrBlockDoesNotExist = errors.New("block does not exist yet")

// Hash is a 32-byte block or transaction identifier.
type Hash [32]byte

// PublicKey is a 32-byte Ed25519-style identity point.
type PublicKey [32]byte

// SecretKey is a 32-byte scalar.
type SecretKey [32]byte

// Signature is a 64-byte Ed25519-style signature.
type Signature [64]byte

// Address is a supernode's view+spend public key pair, as recovered
// from a stake transaction's extra field.
type Address struct {
	ViewPublicKey  PublicKey
	SpendPublicKey PublicKey
}

// OutputTarget distinguishes the output kinds the processor cares
// about: a plain tagged variant standing in for the reference chain's
// typeid-based dispatch across vout entries.
type OutputTarget struct {
	// IsToKey is true when this output carries a one-time public key
	// (the only kind stake transactions pay into).
	IsToKey bool
	Key     PublicKey
}

// TxOutput is one entry of a transaction's vout.
type TxOutput struct {
	// Amount is the plaintext amount for version-1 (non-RingCT)
	// transactions. It is meaningless for RingCT outputs, whose amount
	// must be recovered via OutputCommitments/ECDHInfo instead.
	Amount uint64
	Target OutputTarget
}

// OutputCommitment is one entry of a RingCT transaction's outPk: the
// Pedersen commitment to that output's amount.
type OutputCommitment struct {
	Mask [32]byte
}

// ECDHInfo is one entry of a RingCT transaction's ecdhInfo: the masked
// amount and blinding mask for that output, as produced by the sender.
type ECDHInfo struct {
	Mask   [32]byte
	Amount [32]byte
}

// Transaction is the subset of a Monero-derived transaction's fields
// the processor needs. Extra-field parsing (stake/disqualification
// extras) is handled by the txextra.Codec collaborator, not here.
type Transaction struct {
	Hash       Hash
	Version    uint64
	UnlockTime uint64

	Vout []TxOutput

	// IsRingCT is false for version-1 transactions, whose vout amounts
	// are plaintext; true for version >= 2 transactions, whose amounts
	// must be recovered from OutPk/EcdhInfo via cryptoops.Verifier.
	IsRingCT bool
	OutPk    []OutputCommitment
	EcdhInfo []ECDHInfo

	// Extra is the transaction's opaque extra field, to be handed to a
	// txextra.Codec for parsing.
	Extra []byte
}

// Block is the subset of a mined block the processor needs.
type Block struct {
	Height   uint64
	Hash     Hash
	TxHashes []Hash
}

// NetType identifies which network (mainnet/testnet/stagenet) a
// blockchain instance serves; some extra fields (e.g. address encoding)
// are network-dependent.
type NetType uint8

const (
	NetMain NetType = iota
	NetTest
	NetStage
)

// Blockchain is the read-only view of the underlying chain the
// processor depends on. Implementations own their own locking; the
// processor takes no lock of this collaborator's, and Synchronize
// serializes only the processor's own passes.
type Blockchain interface {
	// GetCurrentBlockchainHeight returns one past the chain's tip
	// height (i.e. the chain has blocks [0, height)).
	GetCurrentBlockchainHeight() (uint64, error)

	// GetEarliestIdealHeightForVersion returns the earliest height at
	// which the given hard-fork version is in force.
	GetEarliestIdealHeightForVersion(version uint8) (uint64, error)

	// GetHardForkVersion returns the hard-fork version active at the
	// given height.
	GetHardForkVersion(height uint64) (uint8, error)

	// GetBlockIDByHeight returns the hash of the block at the given
	// height on this node's current best chain. Returns
	// ErrBlockDoesNotExist if the node hasn't received it yet.
	GetBlockIDByHeight(height uint64) (Hash, error)

	// GetBlockByHash returns the block with the given hash. Returns
	// ErrBlockDoesNotExist if the node hasn't received it.
	GetBlockByHash(hash Hash) (Block, error)

	// GetTransactions resolves a set of transaction hashes against this
	// node's local transaction index. missed is the subset of hashes
	// that are not available locally; err is non-nil only for hard
	// I/O-level failures, not for missed transactions.
	GetTransactions(hashes []Hash) (txs []Transaction, missed []Hash, err error)

	// NetType reports which network this chain instance serves.
	NetType() NetType

	// DBHeight returns the height of the node's underlying block
	// database, independent of any in-memory alternative-chain state.
	DBHeight() (uint64, error)
}
