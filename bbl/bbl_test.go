package bbl_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avastar/GraftNetwork/bbl"
	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/config"
	"github.com/avastar/GraftNetwork/stakestore"
)

func pk(n byte) chain.PublicKey {
	var k chain.PublicKey
	k[0] = n
	return k
}

func bh(n byte) chain.Hash {
	var h chain.Hash
	h[0] = n
	return h
}

func TestApplyBlockRanksByStakeDescending(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tiers = 2
	cfg.StakeValidationPeriod = 0

	s := stakestore.New(t.TempDir(), cfg, zap.NewNop())
	s.AddLastProcessedBlock(100, bh(1))
	s.AddTx(stakestore.StakeTransaction{Hash: bh(10), Amount: 1000, BlockHeight: 100, UnlockTime: 500, SupernodePublicID: pk(1)})
	s.AddTx(stakestore.StakeTransaction{Hash: bh(11), Amount: 5000, BlockHeight: 100, UnlockTime: 500, SupernodePublicID: pk(2)})

	l := bbl.New(t.TempDir(), cfg, zap.NewNop())
	l.ApplyBlock(100, bh(1), s)

	require.Equal(t, uint64(1), l.HistoryDepth())
	require.Equal(t, uint64(100), l.BlockHeight())
	require.Equal(t, bbl.StateGrowing, l.State())

	tiers, ok := l.Tiers(0)
	require.True(t, ok)
	require.Equal(t, pk(2), tiers[0][0].SupernodePublicID, "higher stake ranks first")
}

func TestHistoryBoundedBySupernodeHistorySize(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SupernodeHistorySize = 3
	s := stakestore.New(t.TempDir(), cfg, zap.NewNop())

	l := bbl.New(t.TempDir(), cfg, zap.NewNop())
	for h := uint64(1); h <= 10; h++ {
		l.ApplyBlock(h, bh(byte(h)), s)
		require.LessOrEqual(t, l.HistoryDepth(), cfg.SupernodeHistorySize)
	}
	require.Equal(t, cfg.SupernodeHistorySize, l.HistoryDepth())
	require.Equal(t, uint64(10), l.BlockHeight())
	require.Equal(t, bbl.StateFull, l.State())
}

func TestRemoveLatestBlockPopsOneSnapshot(t *testing.T) {
	cfg := config.DefaultConfig()
	s := stakestore.New(t.TempDir(), cfg, zap.NewNop())
	l := bbl.New(t.TempDir(), cfg, zap.NewNop())

	l.ApplyBlock(1, bh(1), s)
	l.ApplyBlock(2, bh(2), s)
	require.Equal(t, uint64(2), l.HistoryDepth())

	l.RemoveLatestBlock()
	require.Equal(t, uint64(1), l.HistoryDepth())
	require.Equal(t, uint64(1), l.BlockHeight())
}

func TestStoreLoadRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	s := stakestore.New(t.TempDir(), cfg, zap.NewNop())

	l := bbl.New(dir, cfg, zap.NewNop())
	l.ApplyBlock(1, bh(1), s)
	l.ApplyBlock(2, bh(2), s)
	require.NoError(t, l.Store())

	l2 := bbl.New(dir, cfg, zap.NewNop())
	require.NoError(t, l2.Load())
	require.Equal(t, l.HistoryDepth(), l2.HistoryDepth())
	require.Equal(t, l.BlockHeight(), l2.BlockHeight())
}
