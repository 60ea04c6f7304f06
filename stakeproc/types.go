package stakeproc

import (
	"github.com/avastar/GraftNetwork/bbl"
	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/stakestore"
)

// txVersion is the discriminant carried on the wire by every
// transaction's version field. 123/124 are reified here as named
// constants at the boundary rather than left as magic numbers inline;
// every other value is a potential stake transaction.
type txVersion uint64

const (
	txVersionDisqualificationV1 txVersion = 123
	txVersionDisqualificationV2 txVersion = 124
)

// StakesHandler is invoked at most once per Synchronize pass, for the
// last block that pass applied, with the block's height, its
// materialized live-stake view, and the disqualifications recorded at
// that height.
type StakesHandler func(blockIndex uint64, stakes []stakestore.SupernodeStakeView, disqualsV1 []stakestore.DisqualificationV1, disqualsV2 []stakestore.DisqualificationV2)

// BBLHandler is invoked once per BBL snapshot being surfaced, from the
// most recent snapshot (depth 0) backward.
type BBLHandler func(blockHeight uint64, blockHash chain.Hash, tiers bbl.Tiers)
