package stakeproc_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/committee"
	"github.com/avastar/GraftNetwork/config"
	"github.com/avastar/GraftNetwork/metrics"
	"github.com/avastar/GraftNetwork/stakeproc"
	"github.com/avastar/GraftNetwork/stakestore"
	"github.com/avastar/GraftNetwork/txextra"
)

func hashN(n byte) chain.Hash {
	var h chain.Hash
	h[0] = n
	return h
}

func pubkeyN(n byte) chain.PublicKey {
	var k chain.PublicKey
	k[0] = n
	return k
}

func newTestProcessor(t *testing.T, fc *fakeChain, fv *fakeVerifier, fcdc *fakeCodec, fs *fakeSampler) *stakeproc.Processor {
	t.Helper()
	return newTestProcessorWithConfig(t, config.DefaultConfig(), fc, fv, fcdc, fs)
}

func newTestProcessorWithConfig(t *testing.T, cfg config.Config, fc *fakeChain, fv *fakeVerifier, fcdc *fakeCodec, fs *fakeSampler) *stakeproc.Processor {
	t.Helper()
	syncCfg := config.SyncConfig{MaxIterationsPerCall: 5000, DebugLogStep: 10}
	p := stakeproc.New(fc, fv, fcdc, fs, cfg, syncCfg, zap.NewNop(), metrics.NewStakeProcessorMetrics())
	require.NoError(t, p.InitStorages(t.TempDir()))
	return p
}

func TestHappyPathStake(t *testing.T) {
	fc := newFakeChain()
	fc.version = 20
	fc.earliest = 1

	stakeExtra := txextra.StakeExtra{
		SupernodePublicID: pubkeyN(1),
	}
	fcdc := &fakeCodec{stake: &stakeExtra}
	fv := &fakeVerifier{validSig: true, recoverAmount: 50_000_000, recoverRingCT: false}
	fs := &fakeSampler{}

	h := uint64(100)
	tx := chain.Transaction{
		Hash:       hashN(1),
		Version:    2,
		UnlockTime: h + 1000,
		Vout: []chain.TxOutput{
			{Amount: 50_000_000, Target: chain.OutputTarget{IsToKey: true, Key: pubkeyN(9)}},
		},
		Extra: []byte("stake"),
	}
	fc.addBlock(chain.Block{Height: h, Hash: hashN(100)}, tx)

	cfg := config.DefaultConfig()
	cfg.StakeValidationPeriod = 0
	p := newTestProcessorWithConfig(t, cfg, fc, fv, fcdc, fs)

	var gotBlockIndex uint64
	var gotStakes []stakestore.SupernodeStakeView
	var fired bool
	p.SetOnUpdateStakesHandler(func(blockIndex uint64, stakes []stakestore.SupernodeStakeView, _ []stakestore.DisqualificationV1, _ []stakestore.DisqualificationV2) {
		fired = true
		gotBlockIndex = blockIndex
		gotStakes = stakes
	})

	caughtUp, err := p.Synchronize(false)
	require.NoError(t, err)
	require.True(t, caughtUp)
	require.True(t, fired)
	require.Equal(t, h, gotBlockIndex)

	var found bool
	for _, v := range gotStakes {
		if v.SupernodePublicID == pubkeyN(1) {
			found = true
			require.Equal(t, uint64(50_000_000), v.Amount)
		}
	}
	require.True(t, found)
}

func TestBadSignatureRejected(t *testing.T) {
	fc := newFakeChain()
	fc.version = 20
	fc.earliest = 1

	stakeExtra := txextra.StakeExtra{SupernodePublicID: pubkeyN(1)}
	fcdc := &fakeCodec{stake: &stakeExtra}
	fv := &fakeVerifier{validSig: false, recoverAmount: 50_000_000}
	fs := &fakeSampler{}

	h := uint64(100)
	tx := chain.Transaction{
		Hash:       hashN(1),
		Version:    2,
		UnlockTime: h + 1000,
		Vout: []chain.TxOutput{
			{Amount: 50_000_000, Target: chain.OutputTarget{IsToKey: true, Key: pubkeyN(9)}},
		},
		Extra: []byte("stake"),
	}
	fc.addBlock(chain.Block{Height: h, Hash: hashN(100)}, tx)

	cfg := config.DefaultConfig()
	cfg.StakeValidationPeriod = 0
	p := newTestProcessorWithConfig(t, cfg, fc, fv, fcdc, fs)

	var gotStakes []stakestore.SupernodeStakeView
	p.SetOnUpdateStakesHandler(func(_ uint64, stakes []stakestore.SupernodeStakeView, _ []stakestore.DisqualificationV1, _ []stakestore.DisqualificationV2) {
		gotStakes = stakes
	})

	caughtUp, err := p.Synchronize(false)
	require.NoError(t, err)
	require.True(t, caughtUp)

	for _, v := range gotStakes {
		require.NotEqual(t, pubkeyN(1), v.SupernodePublicID, "rejected stake transaction must not appear in the live-stake view")
	}
}

func TestDisqualificationV1StaleHistoryRejected(t *testing.T) {
	fc := newFakeChain()
	fc.version = 20
	fc.earliest = 1

	targetHash := hashN(50)
	fc.blocksByH[50] = chain.Block{Height: 50, Hash: targetHash}
	fc.blocksByID[targetHash] = chain.Block{Height: 50, Hash: targetHash}

	disqExtra := txextra.DisqualificationV1Extra{
		Item: txextra.DisqualificationV1Item{
			ID:          pubkeyN(5),
			BlockHeight: 50,
			BlockHash:   targetHash,
		},
		Signers: make([]txextra.Signer, 8),
	}
	fcdc := &fakeCodec{disqV1: &disqExtra}
	fv := &fakeVerifier{validSig: true}
	fs := &fakeSampler{
		bbqsQCL: committee.BBQSQCL{
			BBQS: []chain.PublicKey{},
			QCL:  []chain.PublicKey{pubkeyN(5)},
		},
	}

	// A target 949 blocks behind the current tip falls outside the
	// default SupernodeHistorySize (720), so this exercises the
	// "out of BBL history" rejection rather than the empty-history one.
	h := uint64(1000)
	tx := chain.Transaction{
		Hash:    hashN(2),
		Version: 123,
		Extra:   []byte("disqv1"),
	}
	fc.addBlock(chain.Block{Height: h, Hash: hashN(200)}, tx)

	p := newTestProcessor(t, fc, fv, fcdc, fs)

	var gotDisqualsV1 []stakestore.DisqualificationV1
	p.SetOnUpdateStakesHandler(func(_ uint64, _ []stakestore.SupernodeStakeView, disqualsV1 []stakestore.DisqualificationV1, _ []stakestore.DisqualificationV2) {
		gotDisqualsV1 = disqualsV1
	})

	caughtUp, err := p.Synchronize(false)
	require.NoError(t, err)
	require.True(t, caughtUp)

	for _, d := range gotDisqualsV1 {
		require.NotEqual(t, pubkeyN(5), d.ID, "disqualification targeting a block outside BBL history must be rejected, not recorded")
	}
}

// TestReorgUnrollsAndReapplies drives the processor through a stake
// transaction on one branch, then replaces that branch's block with a
// competing one at the same height and re-synchronizes: the old
// branch's stake must be unrolled away and the new branch's stake
// applied in its place.
func TestReorgUnrollsAndReapplies(t *testing.T) {
	fc := newFakeChain()
	fc.version = 20
	fc.earliest = 1

	extraA := txextra.StakeExtra{SupernodePublicID: pubkeyN(1)}
	extraB := txextra.StakeExtra{SupernodePublicID: pubkeyN(2)}
	fcdc := &fakeCodec{stakeByExtra: map[string]txextra.StakeExtra{
		"stakeA": extraA,
		"stakeB": extraB,
	}}
	fv := &fakeVerifier{validSig: true, recoverAmount: 50_000_000}
	fs := &fakeSampler{}

	h := uint64(100)
	txA := chain.Transaction{
		Hash:       hashN(1),
		Version:    2,
		UnlockTime: h + 1000,
		Vout: []chain.TxOutput{
			{Amount: 50_000_000, Target: chain.OutputTarget{IsToKey: true, Key: pubkeyN(9)}},
		},
		Extra: []byte("stakeA"),
	}
	fc.addBlock(chain.Block{Height: h, Hash: hashN(100)}, txA)

	cfg := config.DefaultConfig()
	cfg.StakeValidationPeriod = 0
	p := newTestProcessorWithConfig(t, cfg, fc, fv, fcdc, fs)

	var gotStakes []stakestore.SupernodeStakeView
	p.SetOnUpdateStakesHandler(func(_ uint64, stakes []stakestore.SupernodeStakeView, _ []stakestore.DisqualificationV1, _ []stakestore.DisqualificationV2) {
		gotStakes = stakes
	})

	caughtUp, err := p.Synchronize(false)
	require.NoError(t, err)
	require.True(t, caughtUp)

	var sawA, sawB bool
	for _, v := range gotStakes {
		sawA = sawA || v.SupernodePublicID == pubkeyN(1)
		sawB = sawB || v.SupernodePublicID == pubkeyN(2)
	}
	require.True(t, sawA, "branch A's stake must be live before the reorg")
	require.False(t, sawB)

	// A competing branch replaces the block at height h with a
	// different hash and a different stake transaction.
	txB := chain.Transaction{
		Hash:       hashN(2),
		Version:    2,
		UnlockTime: h + 1000,
		Vout: []chain.TxOutput{
			{Amount: 50_000_000, Target: chain.OutputTarget{IsToKey: true, Key: pubkeyN(9)}},
		},
		Extra: []byte("stakeB"),
	}
	fc.addBlock(chain.Block{Height: h, Hash: hashN(101)}, txB)

	caughtUp, err = p.Synchronize(true)
	require.NoError(t, err)
	require.True(t, caughtUp)

	sawA, sawB = false, false
	for _, v := range gotStakes {
		sawA = sawA || v.SupernodePublicID == pubkeyN(1)
		sawB = sawB || v.SupernodePublicID == pubkeyN(2)
	}
	require.False(t, sawA, "branch A's stake must be unrolled away after the reorg")
	require.True(t, sawB, "branch B's stake must be applied after the reorg")
}
