package stakeproc

import (
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/stakeerrors"
)

var (
	rtyAttempts = retry.Attempts(5)
	rtyDelay    = retry.Delay(200 * time.Millisecond)
	rtyLastOnly = retry.LastErrorOnly(true)
)

func (p *Processor) currentBlockchainHeightWithRetry() (uint64, error) {
	var height uint64
	err := retry.Do(func() error {
		h, err := p.blockchain.GetCurrentBlockchainHeight()
		if err != nil {
			return err
		}
		height = h
		return nil
	}, rtyAttempts, rtyDelay, rtyLastOnly, retry.OnRetry(func(n uint, err error) {
		p.logger.Debug("retrying blockchain height query", zap.Uint("attempt", n+1), zap.Error(err))
	}))
	return height, err
}

func (p *Processor) hardForkVersionWithRetry(height uint64) (uint8, error) {
	var version uint8
	err := retry.Do(func() error {
		v, err := p.blockchain.GetHardForkVersion(height)
		if err != nil {
			return err
		}
		version = v
		return nil
	}, rtyAttempts, rtyDelay, rtyLastOnly, retry.OnRetry(func(n uint, err error) {
		p.logger.Debug("retrying hard fork version query", zap.Uint("attempt", n+1), zap.Uint64("height", height), zap.Error(err))
	}))
	return version, err
}

// Synchronize performs one bounded pass of the reorg unroll / apply
// loop. Callers must invoke it repeatedly until caughtUp is true; each
// call applies at most SyncConfig.MaxIterationsPerCall blocks so the
// synchronizer cooperates with other users of the storage lock. force,
// when true, fires the registered handlers even if nothing changed
// this pass.
func (p *Processor) Synchronize(force bool) (caughtUp bool, err error) {
	if !p.initialized.Load() {
		return false, stakeerrors.ErrStorageIO.Wrap("InitStorages has not been called")
	}

	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	start := time.Now()
	defer func() { p.metrics.SynchronizeDuration.Observe(time.Since(start).Seconds()) }()

	chainHeight, err := p.currentBlockchainHeightWithRetry()
	if err != nil {
		return false, err
	}
	p.metrics.ChainTipHeight.Set(float64(chainHeight))
	if chainHeight == 0 {
		return true, nil
	}

	tipVersion, err := p.hardForkVersionWithRetry(chainHeight - 1)
	if err != nil {
		return false, err
	}
	if tipVersion < p.cfg.StakeTransactionProcessingDBVersion {
		return true, nil
	}

	if err := p.unroll(chainHeight); err != nil {
		if errors.Is(err, chain.ErrBlockDoesNotExist) {
			p.logger.Debug("unroll waiting on a block this node hasn't received yet", zap.Error(stakeerrors.ErrBlockMissing.Wrap(err.Error())))
			return false, nil
		}
		return false, err
	}

	first, err := p.firstHeightToApply()
	if err != nil {
		return false, err
	}

	last, err := p.apply(first, chainHeight)
	if err != nil {
		if errors.Is(err, chain.ErrBlockDoesNotExist) {
			p.logger.Debug("apply waiting on a block this node hasn't received yet", zap.Error(stakeerrors.ErrBlockMissing.Wrap(err.Error())))
			return false, nil
		}
		return false, err
	}

	if err := p.persistIfDirty(); err != nil {
		return false, err
	}

	caughtUp = last == chainHeight
	if caughtUp && (last > first || force) {
		p.fireHandlers(first, last, force)
	}

	p.metrics.StakeTxCount.Set(float64(p.storage.GetTxCount()))
	if last > 0 {
		p.metrics.LastProcessedHeight.Set(float64(last - 1))
	}
	return caughtUp, nil
}

// unroll pops blocks from storage and the BBL while the recorded hash
// at the last-processed height disagrees with the chain's current
// hash at that height. When storage is at or ahead of the chain tip
// (the chain height having transiently shrunk, e.g. a restart against
// a rolled-back local database), it pops unconditionally instead of
// querying a height the chain doesn't have yet.
func (p *Processor) unroll(chainHeight uint64) error {
	for p.storage.HasLastProcessedBlock() {
		lp := p.storage.GetLastProcessedBlockIndex()

		if lp < chainHeight {
			chainHash, err := p.blockchain.GetBlockIDByHeight(lp)
			if err != nil {
				return err
			}
			if chainHash == p.storage.GetLastProcessedBlockHash() {
				return nil
			}
		}

		p.logger.Warn("unrolling block: hash mismatch with chain", zap.Uint64("height", lp))
		p.storage.RemoveLastProcessedBlock()

		if p.bbl.HistoryDepth() > 0 && p.bbl.BlockHeight() == lp {
			p.bbl.RemoveLatestBlock()
		}
	}
	return nil
}

// firstHeightToApply computes min(storage.last_processed+1,
// bbl.block_height+1), falling back to the earliest height at which
// cfg.StakeTransactionProcessingDBVersion is in force (or 1, if that
// is 0) when neither storage nor the BBL has ever been populated.
func (p *Processor) firstHeightToApply() (uint64, error) {
	var storageNext, bblNext uint64
	haveStorage := p.storage.HasLastProcessedBlock()
	haveBBL := p.bbl.HistoryDepth() > 0

	if haveStorage {
		storageNext = p.storage.GetLastProcessedBlockIndex() + 1
	}
	if haveBBL {
		bblNext = p.bbl.BlockHeight() + 1
	}

	if haveStorage && haveBBL {
		if storageNext < bblNext {
			return storageNext, nil
		}
		return bblNext, nil
	}
	if haveStorage {
		return storageNext, nil
	}
	if haveBBL {
		return bblNext, nil
	}

	earliest, err := p.earliestIdealHeightWithRetry()
	if err != nil {
		return 0, err
	}
	if earliest == 0 {
		return 1, nil
	}
	return earliest, nil
}

func (p *Processor) earliestIdealHeightWithRetry() (uint64, error) {
	var height uint64
	err := retry.Do(func() error {
		h, err := p.blockchain.GetEarliestIdealHeightForVersion(p.cfg.StakeTransactionProcessingDBVersion)
		if err != nil {
			return err
		}
		height = h
		return nil
	}, rtyAttempts, rtyDelay, rtyLastOnly)
	return height, err
}

// apply processes blocks [first, chainHeight) bounded by
// SyncConfig.MaxIterationsPerCall, and returns the height one past the
// last block actually applied.
func (p *Processor) apply(first, chainHeight uint64) (uint64, error) {
	h := first
	var iterations uint64
	for h < chainHeight && iterations < p.syncCfg.MaxIterationsPerCall {
		hash, err := p.blockchain.GetBlockIDByHeight(h)
		if err != nil {
			return h, err
		}
		block, err := p.blockchain.GetBlockByHash(hash)
		if err != nil {
			return h, err
		}

		if err := p.processBlock(block); err != nil {
			return h, err
		}

		iterations++
		h++
		if p.syncCfg.DebugLogStep > 0 && iterations%p.syncCfg.DebugLogStep == 0 {
			p.logger.Debug("synchronize progress", zap.Uint64("height", h), zap.Uint64("iterations", iterations))
		}
	}
	return h, nil
}

func (p *Processor) persistIfDirty() error {
	if p.bbl.NeedStore() {
		if err := p.bbl.Store(); err != nil {
			p.metrics.StoreErrorCount.Inc()
			return stakeerrors.ErrStorageIO.Wrapf("store blockchain-based list: %v", err)
		}
	}
	if p.storage.NeedStore() {
		if err := p.storage.Store(); err != nil {
			p.metrics.StoreErrorCount.Inc()
			return stakeerrors.ErrStorageIO.Wrapf("store stake storage: %v", err)
		}
	}
	return nil
}

func (p *Processor) fireHandlers(first, last uint64, force bool) {
	if last == 0 {
		return
	}
	if p.stakesNeedUpdate.Load() || force {
		blockIndex := last - 1
		stakes := p.storage.GetSupernodeStakes(blockIndex)
		dv1, dv2 := p.storage.GetSupernodeDisqualifications(blockIndex)
		if p.invokeStakesHandler(blockIndex, stakes, dv1, dv2) {
			p.stakesNeedUpdate.Store(false)
		}
	}
	if p.bblNeedUpdate.Load() || force {
		depth := last - first
		if depth == 0 {
			depth = 1
		}
		if p.invokeBBLHandler(depth) {
			p.bblNeedUpdate.Store(false)
		}
	}
}
