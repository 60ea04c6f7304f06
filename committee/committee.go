// Package committee declares the Sampler collaborator (C3):
// deterministic selection of BBQS/QCL and AuthSample committees from a
// BBL tier snapshot. The sampling algorithm itself is an external
// contract — only its interface lives here, the same way package
// chain and package cryptoops carry interfaces for their respective
// external collaborators.
package committee

import "github.com/avastar/GraftNetwork/chain"

// TierIndex identifies one member of a BBL tier snapshot by its
// supernode public id and the tier it currently ranks in.
type TierIndex struct {
	SupernodePublicID chain.PublicKey
	Tier              uint32
}

// BBQSQCL is the pair of disjoint committees select_BBQS_QCL produces:
// BBQS authors disqualification-v1 votes, QCL is the set disqualified
// ids must come from.
type BBQSQCL struct {
	BBQS []chain.PublicKey
	QCL  []chain.PublicKey
}

// Sampler selects deterministic committees from a BBL tier snapshot.
// Implementations must be pure functions of their inputs: the same
// seed and the same bblIdxs must always select the same committee, so
// that independent nodes validating the same disqualification agree.
type Sampler interface {
	// SelectBBQSQCL selects the BBQS and QCL committees for a
	// disqualification-v1 vote whose seed is the target block's hash.
	SelectBBQSQCL(seedBlockHash chain.Hash, bblIdxs []TierIndex) (BBQSQCL, error)

	// SelectAuthSample selects the AuthSample committee for a
	// disqualification-v2 vote whose seed is the payment id.
	SelectAuthSample(paymentID [32]byte, bblIdxs []TierIndex) ([]chain.PublicKey, error)
}
