package stakeproc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/stakestore"
)

// processBlock ingests one block. It never aborts because of a single
// malformed transaction; only a failed chain query (the block's
// hard-fork version or its transactions) propagates.
func (p *Processor) processBlock(b chain.Block) error {
	// Skip-if-already-processed guard: idempotent re-application
	// safety net for a synchronizer that gets retried after a partial
	// failure.
	if p.storage.HasLastProcessedBlock() && b.Height <= p.storage.GetLastProcessedBlockIndex() {
		return nil
	}

	version, err := p.blockchain.GetHardForkVersion(b.Height)
	if err != nil {
		return fmt.Errorf("get hard fork version at height %d: %w", b.Height, err)
	}

	if version < p.cfg.StakeTransactionProcessingDBVersion {
		p.storage.AddLastProcessedBlock(b.Height, b.Hash)
		p.applyBlockchainBasedList(b.Height, b.Hash)
		return nil
	}

	txs, missed, err := p.blockchain.GetTransactions(b.TxHashes)
	if err != nil {
		return fmt.Errorf("get transactions for block %d: %w", b.Height, err)
	}
	for _, m := range missed {
		p.logger.Warn("transaction referenced by block could not be resolved, skipping",
			zap.Uint64("height", b.Height), zap.String("tx", fmt.Sprintf("%x", m)))
	}

	// Recorded before the transactions are ingested, so the stakes and
	// disqualifications added below are counted against this block's
	// cursor entry and RemoveLastProcessedBlock undoes exactly them.
	p.storage.AddLastProcessedBlock(b.Height, b.Hash)

	var pendingV1 []stakestore.DisqualificationV1
	var pendingV2 []stakestore.DisqualificationV2

	for _, tx := range txs {
		p.processBlockTransaction(b.Height, tx, &pendingV1, &pendingV2)
	}

	p.storage.AddDisqualificationsV1(pendingV1)
	p.storage.AddDisqualificationsV2(pendingV2)
	p.stakesNeedUpdate.Store(true)

	p.storage.UpdateSupernodeStakes(b.Height)

	p.applyBlockchainBasedList(b.Height, b.Hash)
	return nil
}

func (p *Processor) applyBlockchainBasedList(height uint64, hash chain.Hash) {
	p.bbl.ApplyBlock(height, hash, p.storage)
	p.bblNeedUpdate.Store(true)
	p.metrics.BBLHistoryDepth.Set(float64(p.bbl.HistoryDepth()))
}

// processBlockTransaction classifies one transaction by version and
// dispatches it to the stake or disqualification path. A panic or
// malformed-extra condition here is caught and logged; it never
// aborts the surrounding block.
func (p *Processor) processBlockTransaction(h uint64, tx chain.Transaction, pendingV1 *[]stakestore.DisqualificationV1, pendingV2 *[]stakestore.DisqualificationV2) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing transaction, skipping",
				zap.Uint64("height", h), zap.Any("panic", r))
			p.metrics.RejectedMalformedTxCount.Inc()
		}
	}()

	switch txVersion(tx.Version) {
	case txVersionDisqualificationV1:
		p.processDisqualificationV1(h, tx, pendingV1)
	case txVersionDisqualificationV2:
		p.processDisqualificationV2(h, tx, pendingV2)
	default:
		extra, ok, err := p.codec.ParseStakeExtra(tx.Extra)
		if err != nil {
			p.logger.Warn("stake tx has unparsable extra, skipping", zap.Uint64("height", h), zap.Error(err))
			p.metrics.RejectedMalformedTxCount.Inc()
			return
		}
		if !ok {
			return
		}
		p.processStakeExtra(h, tx, extra)
	}
}

func (p *Processor) processDisqualificationV1(h uint64, tx chain.Transaction, pending *[]stakestore.DisqualificationV1) {
	extra, ok, err := p.codec.ParseDisqualificationV1Extra(tx.Extra)
	if err != nil || !ok {
		p.logger.Warn("disqualification-v1 tx has unparsable extra, skipping", zap.Uint64("height", h))
		p.metrics.RejectedMalformedTxCount.Inc()
		return
	}

	if err := p.checkDisqualificationV1(extra); err != nil {
		p.logger.Warn("disqualification-v1 tx rejected", zap.Uint64("height", h), zap.Error(err))
		if stakeerrorsIsStaleHistory(err) {
			p.metrics.RejectedStaleHistoryCount.Inc()
		} else {
			p.metrics.RejectedCommitteeMismatch.Inc()
		}
		return
	}

	signers := make([]chain.PublicKey, len(extra.Signers))
	for i, s := range extra.Signers {
		signers[i] = s.SignerID
	}
	*pending = append(*pending, stakestore.DisqualificationV1{
		BlockHeight: h,
		ID:          extra.Item.ID,
		Blob:        tx.Extra,
		Signers:     signers,
	})
	p.metrics.DisqualificationV1Count.Inc()
}

func (p *Processor) processDisqualificationV2(h uint64, tx chain.Transaction, pending *[]stakestore.DisqualificationV2) {
	extra, ok, err := p.codec.ParseDisqualificationV2Extra(tx.Extra)
	if err != nil || !ok {
		p.logger.Warn("disqualification-v2 tx has unparsable extra, skipping", zap.Uint64("height", h))
		p.metrics.RejectedMalformedTxCount.Inc()
		return
	}

	if err := p.checkDisqualificationV2(extra); err != nil {
		p.logger.Warn("disqualification-v2 tx rejected", zap.Uint64("height", h), zap.Error(err))
		if stakeerrorsIsStaleHistory(err) {
			p.metrics.RejectedStaleHistoryCount.Inc()
		} else {
			p.metrics.RejectedCommitteeMismatch.Inc()
		}
		return
	}

	signers := make([]chain.PublicKey, len(extra.Signers))
	for i, s := range extra.Signers {
		signers[i] = s.SignerID
	}
	*pending = append(*pending, stakestore.DisqualificationV2{
		BlockHeight: h,
		PaymentID:   extra.Item.PaymentID,
		IDs:         extra.Item.IDs,
		Blob:        tx.Extra,
		Signers:     signers,
	})
	p.metrics.DisqualificationV2Count.Inc()
}
