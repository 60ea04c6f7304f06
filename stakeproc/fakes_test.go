package stakeproc_test

import (
	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/committee"
	"github.com/avastar/GraftNetwork/cryptoops"
	"github.com/avastar/GraftNetwork/txextra"
)

// fakeChain is a minimal in-memory chain.Blockchain used by the
// processor tests. It has no fork-choice or persistence of its own;
// tests populate it directly with the blocks/transactions they need.
type fakeChain struct {
	height     uint64
	version    uint8
	earliest   uint64
	blocksByH  map[uint64]chain.Block
	blocksByID map[chain.Hash]chain.Block
	txsByHash  map[chain.Hash]chain.Transaction
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		blocksByH:  make(map[uint64]chain.Block),
		blocksByID: make(map[chain.Hash]chain.Block),
		txsByHash:  make(map[chain.Hash]chain.Transaction),
	}
}

func (f *fakeChain) addBlock(b chain.Block, txs ...chain.Transaction) {
	for _, tx := range txs {
		f.txsByHash[tx.Hash] = tx
		b.TxHashes = append(b.TxHashes, tx.Hash)
	}
	f.blocksByH[b.Height] = b
	f.blocksByID[b.Hash] = b
	if b.Height+1 > f.height {
		f.height = b.Height + 1
	}
}

func (f *fakeChain) GetCurrentBlockchainHeight() (uint64, error) { return f.height, nil }

func (f *fakeChain) GetEarliestIdealHeightForVersion(uint8) (uint64, error) { return f.earliest, nil }

func (f *fakeChain) GetHardForkVersion(uint64) (uint8, error) { return f.version, nil }

// fillerBlock returns the block explicitly registered via addBlock at
// height, or synthesizes an empty one on first access. This lets
// tests add only the blocks they care about while still exercising
// the full unroll/apply walk over every intervening height, the way
// a real chain would have a block at every height even when most of
// them carry no stake-relevant transactions.
func (f *fakeChain) fillerBlock(height uint64) chain.Block {
	if b, ok := f.blocksByH[height]; ok {
		return b
	}
	// hash[31] tags this as a synthesized filler hash so it can never
	// collide with a hand-picked test hash (tests only ever set low-order
	// bytes via hashN).
	var hash chain.Hash
	hash[0] = byte(height)
	hash[1] = byte(height >> 8)
	hash[2] = byte(height >> 16)
	hash[31] = 0xFF
	b := chain.Block{Height: height, Hash: hash}
	f.blocksByH[height] = b
	f.blocksByID[hash] = b
	return b
}

func (f *fakeChain) GetBlockIDByHeight(height uint64) (chain.Hash, error) {
	if height >= f.height {
		return chain.Hash{}, chain.ErrBlockDoesNotExist
	}
	return f.fillerBlock(height).Hash, nil
}

func (f *fakeChain) GetBlockByHash(hash chain.Hash) (chain.Block, error) {
	b, ok := f.blocksByID[hash]
	if !ok {
		return chain.Block{}, chain.ErrBlockDoesNotExist
	}
	return b, nil
}

func (f *fakeChain) GetTransactions(hashes []chain.Hash) ([]chain.Transaction, []chain.Hash, error) {
	var txs []chain.Transaction
	var missed []chain.Hash
	for _, h := range hashes {
		if tx, ok := f.txsByHash[h]; ok {
			txs = append(txs, tx)
		} else {
			missed = append(missed, h)
		}
	}
	return txs, missed, nil
}

func (f *fakeChain) NetType() chain.NetType { return chain.NetTest }

func (f *fakeChain) DBHeight() (uint64, error) { return f.height, nil }

// fakeVerifier accepts or rejects signatures according to validSig and
// treats every RingCT/v1 output as paying recoverAmount to whichever
// address is queried, so tests can focus on the processor's control
// flow rather than real curve math.
type fakeVerifier struct {
	validSig      bool
	recoverAmount uint64
	recoverRingCT bool
}

func (f *fakeVerifier) CheckKey(cryptoops.PublicKey) bool { return true }

func (f *fakeVerifier) VerifySignature(cryptoops.PublicKey, []byte, cryptoops.Signature) bool {
	return f.validSig
}

func (f *fakeVerifier) CnFastHash(data []byte) cryptoops.Hash {
	var h cryptoops.Hash
	copy(h[:], data)
	return h
}

func (f *fakeVerifier) GenerateKeyDerivation(cryptoops.PublicKey, cryptoops.SecretKey) (cryptoops.KeyDerivation, error) {
	return cryptoops.KeyDerivation{}, nil
}

func (f *fakeVerifier) DerivePublicKey(cryptoops.KeyDerivation, int, cryptoops.PublicKey) (cryptoops.PublicKey, error) {
	return cryptoops.PublicKey{}, nil
}

func (f *fakeVerifier) RecoverV1Amount(_ cryptoops.KeyDerivation, _ int, _ cryptoops.PublicKey, _ cryptoops.PublicKey, plainAmount uint64) cryptoops.AmountResult {
	if f.recoverRingCT {
		return cryptoops.AmountResult{}
	}
	return cryptoops.AmountResult{Matched: true, Amount: f.recoverAmount}
}

func (f *fakeVerifier) RecoverRingCTAmount(_ cryptoops.KeyDerivation, _ int, _ cryptoops.PublicKey, _ cryptoops.PublicKey, _ [32]byte, _ [32]byte, _ [32]byte) cryptoops.AmountResult {
	if !f.recoverRingCT {
		return cryptoops.AmountResult{}
	}
	return cryptoops.AmountResult{Matched: true, Amount: f.recoverAmount}
}

// fakeCodec returns a single preconfigured extra of whichever kind the
// test wants, keyed off the raw extra bytes acting as a tag. Tests
// that need more than one distinct stake extra (e.g. a reorg test
// with a different supernode on each branch) populate stakeByExtra
// instead, keyed by the same raw tag.
type fakeCodec struct {
	stake        *txextra.StakeExtra
	stakeByExtra map[string]txextra.StakeExtra
	disqV1       *txextra.DisqualificationV1Extra
	disqV2       *txextra.DisqualificationV2Extra
}

func (f *fakeCodec) ParseStakeExtra(extra []byte) (txextra.StakeExtra, bool, error) {
	if se, ok := f.stakeByExtra[string(extra)]; ok {
		return se, true, nil
	}
	if f.stake == nil || string(extra) != "stake" {
		return txextra.StakeExtra{}, false, nil
	}
	return *f.stake, true, nil
}

func (f *fakeCodec) ParseDisqualificationV1Extra(extra []byte) (txextra.DisqualificationV1Extra, bool, error) {
	if f.disqV1 == nil || string(extra) != "disqv1" {
		return txextra.DisqualificationV1Extra{}, false, nil
	}
	return *f.disqV1, true, nil
}

func (f *fakeCodec) ParseDisqualificationV2Extra(extra []byte) (txextra.DisqualificationV2Extra, bool, error) {
	if f.disqV2 == nil || string(extra) != "disqv2" {
		return txextra.DisqualificationV2Extra{}, false, nil
	}
	return *f.disqV2, true, nil
}

// fakeSampler returns preconfigured committees regardless of the BBL
// indexes it's given.
type fakeSampler struct {
	bbqsQCL    committee.BBQSQCL
	authSample []chain.PublicKey
}

func (f *fakeSampler) SelectBBQSQCL(chain.Hash, []committee.TierIndex) (committee.BBQSQCL, error) {
	return f.bbqsQCL, nil
}

func (f *fakeSampler) SelectAuthSample([32]byte, []committee.TierIndex) ([]chain.PublicKey, error) {
	return f.authSample, nil
}
