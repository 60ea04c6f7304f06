// Package txextra declares the Codec collaborator that parses the
// stake and disqualification extras the processor looks for inside a
// transaction's opaque extra field. The wire format of the extra field
// itself belongs to the binary codec library, out of scope for this
// module; this package only carries the parsed shapes and the
// interface to obtain them.
package txextra

import "github.com/avastar/GraftNetwork/chain"

// StakeExtra is the parsed content of a stake transaction's extra
// field.
type StakeExtra struct {
	SupernodePublicID      chain.PublicKey
	SupernodePublicAddress chain.Address
	SupernodeSignature     chain.Signature
	TxSecretKey            chain.SecretKey
}

// DisqualificationV1Item identifies the target of a disqualification-v1
// vote.
type DisqualificationV1Item struct {
	ID          chain.PublicKey
	BlockHeight uint64
	BlockHash   chain.Hash
}

// Signer is one signature contributed to a disqualification vote.
type Signer struct {
	SignerID  chain.PublicKey
	Signature chain.Signature
}

// DisqualificationV1Extra is the parsed content of a disqualification-v1
// transaction's extra field.
type DisqualificationV1Extra struct {
	Item    DisqualificationV1Item
	Signers []Signer
}

// DisqualificationV2Item identifies the target(s) of a
// disqualification-v2 vote.
type DisqualificationV2Item struct {
	PaymentID   [32]byte
	BlockHeight uint64
	BlockHash   chain.Hash
	IDs         []chain.PublicKey
}

// DisqualificationV2Extra is the parsed content of a disqualification-v2
// transaction's extra field.
type DisqualificationV2Extra struct {
	Item    DisqualificationV2Item
	Signers []Signer
}

// Codec parses the three extra kinds the processor recognizes out of a
// transaction's raw extra bytes. A transaction carrying none of these
// extras is not an error: Parse* returns ok == false.
type Codec interface {
	// ParseStakeExtra looks for a stake extra inside extra.
	ParseStakeExtra(extra []byte) (StakeExtra, bool, error)

	// ParseDisqualificationV1Extra looks for a disqualification-v1
	// extra inside extra.
	ParseDisqualificationV1Extra(extra []byte) (DisqualificationV1Extra, bool, error)

	// ParseDisqualificationV2Extra looks for a disqualification-v2
	// extra inside extra.
	ParseDisqualificationV2Extra(extra []byte) (DisqualificationV2Extra, bool, error)
}
