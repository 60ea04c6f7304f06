// Package stakeproc implements the StakeTransactionProcessor (C4):
// the orchestrator that ingests blocks, enforces stake and
// disqualification admissibility rules, maintains the stake storage
// and blockchain-based list, unrolls and reapplies blocks across
// reorgs, and fans out change notifications.
package stakeproc

import (
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/avastar/GraftNetwork/bbl"
	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/committee"
	"github.com/avastar/GraftNetwork/config"
	"github.com/avastar/GraftNetwork/cryptoops"
	"github.com/avastar/GraftNetwork/log"
	"github.com/avastar/GraftNetwork/metrics"
	"github.com/avastar/GraftNetwork/stakeerrors"
	"github.com/avastar/GraftNetwork/stakestore"
	"github.com/avastar/GraftNetwork/txextra"
)

// Processor is the StakeTransactionProcessor (C4). It owns both
// storages outright and holds a non-owning reference to the
// blockchain, which is expected to outlive it.
type Processor struct {
	blockchain chain.Blockchain
	verifier   cryptoops.Verifier
	codec      txextra.Codec
	sampler    committee.Sampler

	cfg     config.Config
	syncCfg config.SyncConfig
	logger  *zap.Logger
	metrics *metrics.StakeProcessorMetrics

	storage *stakestore.Storage
	bbl     *bbl.List

	initialized      atomic.Bool
	stakesNeedUpdate atomic.Bool
	bblNeedUpdate    atomic.Bool

	// syncMu serializes Synchronize passes. The processor takes no lock
	// of the blockchain collaborator's: chain.Blockchain
	// implementations guard their own state internally, and each
	// storage call takes that storage's own mutex. This mutex only
	// keeps this processor's own synchronize passes from overlapping.
	syncMu sync.Mutex

	handlerMu     sync.Mutex
	stakesHandler StakesHandler
	bblHandler    BBLHandler
}

// New constructs a Processor. InitStorages must be called before
// Synchronize.
func New(
	blockchain chain.Blockchain,
	verifier cryptoops.Verifier,
	codec txextra.Codec,
	sampler committee.Sampler,
	cfg config.Config,
	syncCfg config.SyncConfig,
	logger *zap.Logger,
	m *metrics.StakeProcessorMetrics,
) *Processor {
	return &Processor{
		blockchain: blockchain,
		verifier:   verifier,
		codec:      codec,
		sampler:    sampler,
		cfg:        cfg,
		syncCfg:    syncCfg,
		logger:     logger,
		metrics:    m,
	}
}

// InitStorages lazily creates both storages, rooted at dir, and loads
// whatever snapshots already exist there. It must be called exactly
// once; a second call returns stakeerrors.ErrDoubleInit, a fatal
// programmer error.
func (p *Processor) InitStorages(dir string) error {
	if !p.initialized.CompareAndSwap(false, true) {
		return stakeerrors.ErrDoubleInit
	}

	p.storage = stakestore.New(dir, p.cfg, log.Component(p.logger, "stakestore"))
	p.bbl = bbl.New(dir, p.cfg, log.Component(p.logger, "bbl"))

	rebuild := false
	if err := p.storage.Load(); err != nil {
		if stakeerrors.ErrVersionMismatch.Is(err) {
			p.logger.Warn("stake storage snapshot format mismatch, rebuilding from genesis", zap.Error(err))
			rebuild = true
		} else {
			return stakeerrors.ErrStorageIO.Wrapf("load stake storage: %v", err)
		}
	}
	if err := p.bbl.Load(); err != nil {
		if stakeerrors.ErrVersionMismatch.Is(err) {
			p.logger.Warn("blockchain-based list snapshot format mismatch, rebuilding from genesis", zap.Error(err))
			rebuild = true
		} else {
			return stakeerrors.ErrStorageIO.Wrapf("load blockchain-based list: %v", err)
		}
	}
	if rebuild {
		// Synchronize resumes from whichever artifact still has a cursor,
		// so both start empty to make it apply from the earliest height.
		p.storage = stakestore.New(dir, p.cfg, log.Component(p.logger, "stakestore"))
		p.bbl = bbl.New(dir, p.cfg, log.Component(p.logger, "bbl"))
	}

	p.stakesNeedUpdate.Store(true)
	p.bblNeedUpdate.Store(true)
	return nil
}

// Ready reports whether InitStorages has been called. The flag is set
// when that call begins, before either snapshot is loaded, and stays
// set if loading fails; Ready does not track Synchronize passes.
// Intended for wiring into an external readiness probe such as
// metrics.Start's.
func (p *Processor) Ready() bool {
	return p.initialized.Load()
}

// SetOnUpdateStakesHandler registers the single stakes-change
// subscriber. A nil handler unsubscribes. Last writer wins.
func (p *Processor) SetOnUpdateStakesHandler(h StakesHandler) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.stakesHandler = h
}

// SetOnUpdateBlockchainBasedListHandler registers the single
// BBL-change subscriber. A nil handler unsubscribes.
func (p *Processor) SetOnUpdateBlockchainBasedListHandler(h BBLHandler) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.bblHandler = h
}

// invokeStakesHandler runs the registered stakes handler, if any,
// logging and swallowing any panic so a misbehaving subscriber can
// never corrupt storage state. On error the caller is told to leave
// stakesNeedUpdate set, so the next pass that fires handlers (one that
// applies blocks, or a forced one) retries the notification.
func (p *Processor) invokeStakesHandler(blockIndex uint64, stakes []stakestore.SupernodeStakeView, dv1 []stakestore.DisqualificationV1, dv2 []stakestore.DisqualificationV2) (ok bool) {
	p.handlerMu.Lock()
	h := p.stakesHandler
	p.handlerMu.Unlock()
	if h == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("stakes update handler panicked", zap.Any("panic", r))
			p.metrics.HandlerErrorCount.Inc()
			ok = false
		}
	}()
	h(blockIndex, stakes, dv1, dv2)
	return true
}

// invokeBBLHandler invokes the registered BBL handler once per
// snapshot from depth=0 up to min(depthArg, history_depth,
// SupernodeHistorySize)-1. The two clamps are written out explicitly
// as defensive duplication, even though history_depth is already
// bounded by SupernodeHistorySize by construction.
func (p *Processor) invokeBBLHandler(depthArg uint64) (ok bool) {
	p.handlerMu.Lock()
	h := p.bblHandler
	p.handlerMu.Unlock()
	if h == nil {
		return true
	}

	limit := depthArg
	if historyDepth := p.bbl.HistoryDepth(); limit > historyDepth {
		limit = historyDepth
	}
	if limit > p.cfg.SupernodeHistorySize {
		limit = p.cfg.SupernodeHistorySize
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("blockchain-based list update handler panicked", zap.Any("panic", r))
			p.metrics.HandlerErrorCount.Inc()
			ok = false
		}
	}()

	for depth := uint64(0); depth < limit; depth++ {
		height, hash, tiers, snapOK := p.bbl.SnapshotAt(depth)
		if !snapOK {
			break
		}
		h(height, hash, tiers)
	}
	return true
}

func publicIDHex(id chain.PublicKey) string {
	return hex.EncodeToString(id[:])
}

// processStakeExtra validates and, if admissible, appends a candidate
// stake transaction. Any failure here is a MalformedTx: logged and
// skipped, never fatal to the surrounding block.
func (p *Processor) processStakeExtra(h uint64, tx chain.Transaction, extra txextra.StakeExtra) {
	if !p.verifier.CheckKey(cryptoops.PublicKey(extra.SupernodePublicID)) {
		p.logger.Warn("stake tx rejected: supernode public id is not a valid curve point",
			zap.String("tx", hex.EncodeToString(tx.Hash[:])))
		p.metrics.RejectedMalformedTxCount.Inc()
		return
	}

	addrStr := accountAddressString(p.blockchain.NetType(), extra.SupernodePublicAddress, p.cfg, p.verifier)
	msg := []byte(addrStr + ":" + publicIDHex(extra.SupernodePublicID))
	digest := p.verifier.CnFastHash(msg)
	if !p.verifier.VerifySignature(cryptoops.PublicKey(extra.SupernodePublicID), digest[:], cryptoops.Signature(extra.SupernodeSignature)) {
		p.logger.Warn("stake tx rejected: bad supernode signature",
			zap.String("tx", hex.EncodeToString(tx.Hash[:])))
		p.metrics.RejectedMalformedTxCount.Inc()
		return
	}

	if tx.UnlockTime < h {
		p.logger.Warn("stake tx rejected: unlock time precedes mining height",
			zap.String("tx", hex.EncodeToString(tx.Hash[:])))
		p.metrics.RejectedMalformedTxCount.Inc()
		return
	}
	relativeUnlock := tx.UnlockTime - h
	if relativeUnlock < p.cfg.StakeMinUnlockTime || relativeUnlock > p.cfg.StakeMaxUnlockTime {
		p.logger.Warn("stake tx rejected: unlock time out of bounds",
			zap.String("tx", hex.EncodeToString(tx.Hash[:])),
			zap.Uint64("unlock_time", relativeUnlock))
		p.metrics.RejectedMalformedTxCount.Inc()
		return
	}

	amount, ok := p.recoverAmount(tx, extra)
	if !ok || amount == 0 {
		p.logger.Warn("stake tx rejected: could not recover a nonzero amount",
			zap.String("tx", hex.EncodeToString(tx.Hash[:])))
		p.metrics.RejectedMalformedTxCount.Inc()
		return
	}

	p.storage.AddTx(stakestore.StakeTransaction{
		Hash:                   tx.Hash,
		Amount:                 amount,
		BlockHeight:            h,
		UnlockTime:             relativeUnlock,
		SupernodePublicID:      extra.SupernodePublicID,
		SupernodePublicAddress: extra.SupernodePublicAddress,
		SupernodeSignature:     extra.SupernodeSignature,
		TxSecretKey:            extra.TxSecretKey,
	})
	p.stakesNeedUpdate.Store(true)
}

// recoverAmount recovers the amount paid to extra.SupernodePublicAddress:
// v1 transactions sum matching plaintext vout amounts; RingCT
// transactions decode ecdhInfo and verify against the on-chain
// commitment. It is an explicit result, not an exception: a
// non-matching output is simply skipped.
func (p *Processor) recoverAmount(tx chain.Transaction, extra txextra.StakeExtra) (uint64, bool) {
	derivation, err := p.verifier.GenerateKeyDerivation(
		cryptoops.PublicKey(extra.SupernodePublicAddress.ViewPublicKey),
		cryptoops.SecretKey(extra.TxSecretKey),
	)
	if err != nil {
		return 0, false
	}

	var total uint64
	var matchedAny bool
	for n, out := range tx.Vout {
		if !out.Target.IsToKey {
			continue
		}

		if !tx.IsRingCT {
			res := p.verifier.RecoverV1Amount(derivation, n, cryptoops.PublicKey(extra.SupernodePublicAddress.SpendPublicKey), cryptoops.PublicKey(out.Target.Key), out.Amount)
			if res.Matched {
				total += res.Amount
				matchedAny = true
			}
			continue
		}

		if n >= len(tx.EcdhInfo) || n >= len(tx.OutPk) {
			continue
		}
		res := p.verifier.RecoverRingCTAmount(
			derivation, n,
			cryptoops.PublicKey(extra.SupernodePublicAddress.SpendPublicKey),
			cryptoops.PublicKey(out.Target.Key),
			tx.EcdhInfo[n].Mask, tx.EcdhInfo[n].Amount, tx.OutPk[n].Mask,
		)
		if res.Matched {
			total += res.Amount
			matchedAny = true
		}
	}
	return total, matchedAny
}

// checkDisqualificationCommon implements the shared skeleton of
// disqualification admissibility: hash match, history depth, and
// per-tier index list. It returns the tier indexes the caller's
// version-specific committee sample needs.
func (p *Processor) checkDisqualificationCommon(targetBlockHeight uint64, targetBlockHash chain.Hash) ([]committee.TierIndex, error) {
	chainHash, err := p.blockchain.GetBlockIDByHeight(targetBlockHeight)
	if err != nil {
		return nil, fmt.Errorf("resolve target block hash: %w", err)
	}
	if chainHash != targetBlockHash {
		return nil, stakeerrors.ErrMalformedTx.Wrap("disqualification target block hash does not match the chain")
	}

	if p.bbl.HistoryDepth() == 0 {
		return nil, stakeerrors.ErrStaleHistory.Wrap("blockchain-based list has no history yet")
	}

	bblHeight := p.bbl.BlockHeight()
	if targetBlockHeight > bblHeight {
		return nil, stakeerrors.ErrStaleHistory.Wrap("disqualification targets a block ahead of the blockchain-based list")
	}
	depth := bblHeight - targetBlockHeight
	if depth >= p.bbl.HistoryDepth() {
		return nil, stakeerrors.ErrStaleHistory.Wrap("disqualification target block is out of blockchain-based list history")
	}

	tiers, ok := p.bbl.Tiers(depth)
	if !ok {
		return nil, stakeerrors.ErrStaleHistory.Wrap("blockchain-based list snapshot unavailable at target depth")
	}

	var idxs []committee.TierIndex
	for tierNum, entries := range tiers {
		for _, e := range entries {
			idxs = append(idxs, committee.TierIndex{SupernodePublicID: e.SupernodePublicID, Tier: uint32(tierNum)})
		}
	}
	return idxs, nil
}

func containsID(ids []chain.PublicKey, target chain.PublicKey) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// checkDisqualificationV1 checks a disqualification-v1 against the
// BBQS/QCL committee sampled for its target block.
func (p *Processor) checkDisqualificationV1(extra txextra.DisqualificationV1Extra) error {
	idxs, err := p.checkDisqualificationCommon(extra.Item.BlockHeight, extra.Item.BlockHash)
	if err != nil {
		return err
	}

	quorums, err := p.sampler.SelectBBQSQCL(extra.Item.BlockHash, idxs)
	if err != nil {
		return fmt.Errorf("select BBQS/QCL: %w", err)
	}

	if uint32(len(extra.Signers)) < p.cfg.RequiredBBQSVotes {
		return stakeerrors.ErrCommitteeMismatch.Wrapf("disqualification-v1 has %d signers, need %d", len(extra.Signers), p.cfg.RequiredBBQSVotes)
	}
	if !containsID(quorums.QCL, extra.Item.ID) {
		return stakeerrors.ErrCommitteeMismatch.Wrap("disqualified id is not a member of the QCL")
	}
	for _, signer := range extra.Signers {
		if !containsID(quorums.BBQS, signer.SignerID) {
			return stakeerrors.ErrCommitteeMismatch.Wrap("signer is not a member of the BBQS")
		}
	}
	return nil
}

// checkDisqualificationV2 checks a disqualification-v2 against the
// AuthSample committee sampled for its target block.
func (p *Processor) checkDisqualificationV2(extra txextra.DisqualificationV2Extra) error {
	idxs, err := p.checkDisqualificationCommon(extra.Item.BlockHeight, extra.Item.BlockHash)
	if err != nil {
		return err
	}

	authSample, err := p.sampler.SelectAuthSample(extra.Item.PaymentID, idxs)
	if err != nil {
		return fmt.Errorf("select AuthSample: %w", err)
	}

	if uint32(len(extra.Signers)) < p.cfg.RequiredDisqual2Votes {
		return stakeerrors.ErrCommitteeMismatch.Wrapf("disqualification-v2 has %d signers, need %d", len(extra.Signers), p.cfg.RequiredDisqual2Votes)
	}
	for _, id := range extra.Item.IDs {
		if !containsID(authSample, id) {
			return stakeerrors.ErrCommitteeMismatch.Wrap("disqualified id is not a member of the AuthSample")
		}
	}
	for _, signer := range extra.Signers {
		if !containsID(authSample, signer.SignerID) {
			return stakeerrors.ErrCommitteeMismatch.Wrap("signer is not a member of the AuthSample")
		}
	}
	return nil
}
