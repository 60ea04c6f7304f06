// Package stakestore implements the StakeTransactionStorage (C1): the
// persistent, append-only log of accepted stake transactions and
// disqualifications, plus the per-height live-stake and
// live-disqualification views derived from it.
package stakestore

import (
	"encoding/hex"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"

	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/config"
	"github.com/avastar/GraftNetwork/snapshot"
)

// FormatVersion is the on-disk snapshot format version encoded in
// stake_transactions.v2.bin's header.
const FormatVersion = 2

// ArtifactName is the fixed base filename for this storage's snapshot.
const ArtifactName = "stake_transactions"

// StakeTransaction is one accepted stake transaction.
type StakeTransaction struct {
	Hash                   chain.Hash
	Amount                 uint64
	BlockHeight            uint64
	UnlockTime             uint64
	SupernodePublicID      chain.PublicKey
	SupernodePublicAddress chain.Address
	SupernodeSignature     chain.Signature
	TxSecretKey            chain.SecretKey
}

// validAt reports whether this stake counts toward the live set at
// height h, per the validity predicate:
// block_height + VAL_PERIOD <= h < block_height + unlock_time + RESTAKE_PERIOD.
func (s StakeTransaction) validAt(h uint64, cfg config.Config) bool {
	lower := s.BlockHeight + cfg.StakeValidationPeriod
	upper := s.BlockHeight + s.UnlockTime + cfg.TrustedRestakingPeriod
	return h >= lower && h < upper
}

// DisqualificationV1 is one accepted disqualification-v1 record.
type DisqualificationV1 struct {
	BlockHeight uint64
	ID          chain.PublicKey
	Blob        []byte
	Signers     []chain.PublicKey
}

// DisqualificationV2 is one accepted disqualification-v2 record.
type DisqualificationV2 struct {
	BlockHeight uint64
	PaymentID   [32]byte
	IDs         []chain.PublicKey
	Blob        []byte
	Signers     []chain.PublicKey
}

// processedBlock records one ingested block's cursor entry, for O(1)
// unrolling.
type processedBlock struct {
	Height     uint64
	Hash       chain.Hash
	TxCount    int // number of stake txs added while processing this block
	DisqCount  int // number of disqualification-v1 records added
	Disq2Count int // number of disqualification-v2 records added
}

// SupernodeStakeView is the materialized per-height live-stake entry
// for one supernode: its summed amount across every stake whose
// validity window covers that height.
type SupernodeStakeView struct {
	SupernodePublicID chain.PublicKey
	Amount            uint64
}

// Snapshot is the serializable contents of the storage, persisted via
// package snapshot.
type Snapshot struct {
	Stakes          []StakeTransaction
	DisqualsV1      []DisqualificationV1
	DisqualsV2      []DisqualificationV2
	ProcessedBlocks []processedBlock
}

// Storage is the StakeTransactionStorage (C1). Each exported method
// is independently safe to call concurrently; there is no exposed
// cross-call lock (see the note at the bottom of this file for why).
type Storage struct {
	mu sync.Mutex

	dir    string
	cfg    config.Config
	logger *zap.Logger

	stakes          []StakeTransaction
	disqualsV1      []DisqualificationV1
	disqualsV2      []DisqualificationV2
	processedBlocks []processedBlock

	dirty bool

	// liveStakeCache memoizes update_supernode_stakes by height; it is
	// invalidated whenever a block containing stakes is removed.
	liveStakeCache map[uint64][]SupernodeStakeView
}

// New constructs an empty, unloaded Storage. Callers must call
// Load before using it if a snapshot already exists on disk.
func New(dir string, cfg config.Config, logger *zap.Logger) *Storage {
	return &Storage{
		dir:            dir,
		cfg:            cfg,
		logger:         logger,
		liveStakeCache: make(map[uint64][]SupernodeStakeView),
	}
}

func (s *Storage) path() string {
	return snapshot.Filename(s.dir, ArtifactName, FormatVersion)
}

// Load reads the on-disk snapshot into memory, if one exists. A
// missing file is not an error: the storage starts out empty and is
// populated lazily as blocks are processed.
func (s *Storage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	if err := snapshot.Load(s.path(), FormatVersion, &snap); err != nil {
		if snapshot.Exists(s.path()) {
			return err
		}
		return nil
	}
	s.stakes = snap.Stakes
	s.disqualsV1 = snap.DisqualsV1
	s.disqualsV2 = snap.DisqualsV2
	s.processedBlocks = snap.ProcessedBlocks
	s.liveStakeCache = make(map[uint64][]SupernodeStakeView)
	return nil
}

// NeedStore reports whether any mutation has happened since the last
// successful Store.
func (s *Storage) NeedStore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Store durably persists the storage via an atomic write-temp-and-rename.
func (s *Storage) Store() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Stakes:          s.stakes,
		DisqualsV1:      s.disqualsV1,
		DisqualsV2:      s.disqualsV2,
		ProcessedBlocks: s.processedBlocks,
	}
	if err := snapshot.Store(s.path(), FormatVersion, snap); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// AddTx appends an accepted stake transaction. No dedup is performed
// at this layer; consensus is expected to gate duplicates before this
// call.
func (s *Storage) AddTx(tx StakeTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stakes = append(s.stakes, tx)
	s.markCurrentBlockDirty(func(pb *processedBlock) { pb.TxCount++ })
}

// AddDisqualificationsV1 appends a block's pending disqualification-v1
// records atomically.
func (s *Storage) AddDisqualificationsV1(items []DisqualificationV1) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disqualsV1 = append(s.disqualsV1, items...)
	s.markCurrentBlockDirty(func(pb *processedBlock) { pb.DisqCount += len(items) })
}

// AddDisqualificationsV2 appends a block's pending disqualification-v2
// records atomically.
func (s *Storage) AddDisqualificationsV2(items []DisqualificationV2) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disqualsV2 = append(s.disqualsV2, items...)
	s.markCurrentBlockDirty(func(pb *processedBlock) { pb.Disq2Count += len(items) })
}

// markCurrentBlockDirty marks the storage dirty and, if the current
// last-processed block entry exists, updates its per-block add counts
// so RemoveLastProcessedBlock can undo exactly what was added while
// that block was being ingested.
func (s *Storage) markCurrentBlockDirty(update func(*processedBlock)) {
	s.dirty = true
	if len(s.processedBlocks) == 0 {
		return
	}
	update(&s.processedBlocks[len(s.processedBlocks)-1])
}

// AddLastProcessedBlock marks height/hash as fully ingested, extending
// the per-block index used for O(1) unrolling.
func (s *Storage) AddLastProcessedBlock(height uint64, hash chain.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedBlocks = append(s.processedBlocks, processedBlock{Height: height, Hash: hash})
	s.dirty = true
}

// HasLastProcessedBlock reports whether any block has been recorded.
func (s *Storage) HasLastProcessedBlock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processedBlocks) > 0
}

// GetLastProcessedBlockIndex returns the height of the most recently
// recorded block. Callers must check HasLastProcessedBlock first.
func (s *Storage) GetLastProcessedBlockIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processedBlocks[len(s.processedBlocks)-1].Height
}

// GetLastProcessedBlockHash returns the hash of the most recently
// recorded block. Callers must check HasLastProcessedBlock first.
func (s *Storage) GetLastProcessedBlockHash() chain.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processedBlocks[len(s.processedBlocks)-1].Hash
}

// RemoveLastProcessedBlock pops the latest recorded block along with
// every stake/disqualification that was added while it was being
// ingested, and reports whether the popped block contained any stakes
// (in which case the caller must invalidate derived views).
func (s *Storage) RemoveLastProcessedBlock() (hadStakes bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.processedBlocks) == 0 {
		return false
	}
	pb := s.processedBlocks[len(s.processedBlocks)-1]
	s.processedBlocks = s.processedBlocks[:len(s.processedBlocks)-1]

	if pb.TxCount > 0 {
		s.stakes = s.stakes[:len(s.stakes)-pb.TxCount]
	}
	if pb.DisqCount > 0 {
		s.disqualsV1 = s.disqualsV1[:len(s.disqualsV1)-pb.DisqCount]
	}
	if pb.Disq2Count > 0 {
		s.disqualsV2 = s.disqualsV2[:len(s.disqualsV2)-pb.Disq2Count]
	}

	s.dirty = true
	if pb.TxCount > 0 {
		s.clearSupernodeStakesLocked()
		return true
	}
	return false
}

// GetTxCount returns the total number of accepted stake transactions.
func (s *Storage) GetTxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stakes)
}

// FindSupernodeStake returns the stake for id whose validity window
// covers blockNumber, if any, by summing every matching stake's
// amount when multiple valid stakes coexist for the same supernode.
func (s *Storage) FindSupernodeStake(blockNumber uint64, id chain.PublicKey) (SupernodeStakeView, bool) {
	views := s.GetSupernodeStakes(blockNumber)
	for _, v := range views {
		if v.SupernodePublicID == id {
			return v, true
		}
	}
	return SupernodeStakeView{}, false
}

// ClearSupernodeStakes invalidates every cached per-height live-stake
// view.
func (s *Storage) ClearSupernodeStakes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearSupernodeStakesLocked()
}

func (s *Storage) clearSupernodeStakesLocked() {
	s.liveStakeCache = make(map[uint64][]SupernodeStakeView)
}

// UpdateSupernodeStakes materializes and caches, for blockIndex, the
// set of stakes whose validity window covers it, grouped by
// supernode public id with amounts summed.
func (s *Storage) UpdateSupernodeStakes(blockIndex uint64) []SupernodeStakeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSupernodeStakesLocked(blockIndex)
}

func (s *Storage) updateSupernodeStakesLocked(blockIndex uint64) []SupernodeStakeView {
	if cached, ok := s.liveStakeCache[blockIndex]; ok {
		return cached
	}

	// Summed via sdkmath.Uint rather than plain uint64 addition: an
	// overflowing supernode (many coexisting valid stakes) must be
	// caught rather than silently wrapped, since the wrapped total
	// would change tier ranking outcomes across the network.
	totals := make(map[chain.PublicKey]sdkmath.Uint)
	for _, st := range s.stakes {
		if st.validAt(blockIndex, s.cfg) {
			amount := sdkmath.NewUint(st.Amount)
			if existing, ok := totals[st.SupernodePublicID]; ok {
				totals[st.SupernodePublicID] = existing.Add(amount)
			} else {
				totals[st.SupernodePublicID] = amount
			}
		}
	}

	views := make([]SupernodeStakeView, 0, len(totals))
	for id, amount := range totals {
		views = append(views, SupernodeStakeView{SupernodePublicID: id, Amount: amount.Uint64()})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Amount != views[j].Amount {
			return views[i].Amount > views[j].Amount
		}
		return hex.EncodeToString(views[i].SupernodePublicID[:]) < hex.EncodeToString(views[j].SupernodePublicID[:])
	})

	s.liveStakeCache[blockIndex] = views
	return views
}

// GetSupernodeStakes returns the cached (or freshly materialized)
// per-height live-stake view for h.
func (s *Storage) GetSupernodeStakes(h uint64) []SupernodeStakeView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSupernodeStakesLocked(h)
}

// GetSupernodeDisqualifications returns every disqualification (v1 and
// v2) recorded at height h.
func (s *Storage) GetSupernodeDisqualifications(h uint64) ([]DisqualificationV1, []DisqualificationV2) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v1 []DisqualificationV1
	for _, d := range s.disqualsV1 {
		if d.BlockHeight == h {
			v1 = append(v1, d)
		}
	}
	var v2 []DisqualificationV2
	for _, d := range s.disqualsV2 {
		if d.BlockHeight == h {
			v2 = append(v2, d)
		}
	}
	return v1, v2
}

// Each exported method above takes and releases the storage's mutex
// for the duration of a single call; there is no cross-call reentrant
// critical section. A single background synchronizer goroutine is
// the only writer, so a sequence of calls made from that goroutine is
// free of interleaving by construction, and concurrent readers always
// observe a consistent snapshot from whichever call they're inside.
