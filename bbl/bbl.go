// Package bbl implements the BlockchainBasedList (C2): a rolling,
// depth-bounded history of tiered supernode rankings, one snapshot per
// processed block, recomputed deterministically from the stake
// storage's live-stake set.
package bbl

import (
	"encoding/hex"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/config"
	"github.com/avastar/GraftNetwork/snapshot"
	"github.com/avastar/GraftNetwork/stakestore"
)

// FormatVersion is the on-disk snapshot format version encoded in
// blockchain_based_list.v5.bin's header.
const FormatVersion = 5

// ArtifactName is the fixed base filename for this list's snapshot.
const ArtifactName = "blockchain_based_list"

// TierEntry is one ranked supernode within a tier: its public id and
// its live-stake amount at the snapshot's height.
type TierEntry struct {
	SupernodePublicID chain.PublicKey
	Amount            uint64
}

// Tiers partitions a snapshot's ranked supernodes into config.Tiers
// ordered sequences.
type Tiers [][]TierEntry

// snapshotEntry is one entry of the BBL's retained history ring.
type snapshotEntry struct {
	BlockHeight uint64
	BlockHash   chain.Hash
	Tiers       Tiers
}

// persisted is the serializable contents of the list, persisted via
// package snapshot.
type persisted struct {
	History []snapshotEntry
}

// State is the BBL's lifecycle state machine.
type State int

const (
	StateEmpty State = iota
	StateGrowing
	StateFull
)

// List is the BlockchainBasedList (C2).
type List struct {
	mu sync.Mutex

	dir    string
	cfg    config.Config
	logger *zap.Logger

	history []snapshotEntry // history[0] is the most recent snapshot
	dirty   bool
}

// New constructs an empty, unloaded List.
func New(dir string, cfg config.Config, logger *zap.Logger) *List {
	return &List{dir: dir, cfg: cfg, logger: logger}
}

func (l *List) path() string {
	return snapshot.Filename(l.dir, ArtifactName, FormatVersion)
}

// Load reads the on-disk snapshot into memory, if one exists.
func (l *List) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var p persisted
	if err := snapshot.Load(l.path(), FormatVersion, &p); err != nil {
		if snapshot.Exists(l.path()) {
			return err
		}
		return nil
	}
	l.history = p.History
	return nil
}

// NeedStore reports whether any mutation has happened since the last
// successful Store.
func (l *List) NeedStore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

// Store durably persists the list via an atomic write-temp-and-rename.
func (l *List) Store() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := snapshot.Store(l.path(), FormatVersion, persisted{History: l.history}); err != nil {
		return err
	}
	l.dirty = false
	return nil
}

// rankIntoTiers is the canonical, cross-implementation-stable
// deterministic ranking function: sort by stake amount descending,
// then supernode id lexicographic, and partition in rank order into
// cfg.Tiers buckets of ceil(n/cfg.Tiers) entries each, so when n does
// not divide evenly the last buckets hold fewer entries (or none).
func rankIntoTiers(views []stakestore.SupernodeStakeView, tierCount uint32) Tiers {
	entries := make([]TierEntry, len(views))
	for i, v := range views {
		entries[i] = TierEntry{SupernodePublicID: v.SupernodePublicID, Amount: v.Amount}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Amount != entries[j].Amount {
			return entries[i].Amount > entries[j].Amount
		}
		return hex.EncodeToString(entries[i].SupernodePublicID[:]) < hex.EncodeToString(entries[j].SupernodePublicID[:])
	})

	if tierCount == 0 {
		tierCount = 1
	}
	tiers := make(Tiers, tierCount)
	perTier := (len(entries) + int(tierCount) - 1) / max(1, int(tierCount))
	if perTier == 0 {
		perTier = 1
	}
	for i, e := range entries {
		tier := i / perTier
		if tier >= int(tierCount) {
			tier = int(tierCount) - 1
		}
		tiers[tier] = append(tiers[tier], e)
	}
	return tiers
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ApplyBlock deterministically recomputes the tiered ranking for
// blockIndex from storage's live-stake set, and pushes
// (blockIndex, blockHash, tiers) onto the history, trimming to
// cfg.SupernodeHistorySize.
func (l *List) ApplyBlock(blockIndex uint64, blockHash chain.Hash, storage *stakestore.Storage) {
	views := storage.GetSupernodeStakes(blockIndex)
	tiers := rankIntoTiers(views, l.cfg.Tiers)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append([]snapshotEntry{{BlockHeight: blockIndex, BlockHash: blockHash, Tiers: tiers}}, l.history...)
	if uint64(len(l.history)) > l.cfg.SupernodeHistorySize {
		l.history = l.history[:l.cfg.SupernodeHistorySize]
	}
	l.dirty = true
}

// RemoveLatestBlock pops one snapshot from the front of the history
// (reorg unroll).
func (l *List) RemoveLatestBlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.history) == 0 {
		return
	}
	l.history = l.history[1:]
	l.dirty = true
}

// Tiers returns the snapshot depth blocks behind the latest; depth==0
// is current. ok is false if depth is out of range.
func (l *List) Tiers(depth uint64) (Tiers, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if depth >= uint64(len(l.history)) {
		return nil, false
	}
	return l.history[depth].Tiers, true
}

// SnapshotAt returns the full history entry depth blocks behind the
// latest, for callers (the notification path) that need the height
// and hash alongside the tiers.
func (l *List) SnapshotAt(depth uint64) (height uint64, hash chain.Hash, tiers Tiers, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if depth >= uint64(len(l.history)) {
		return 0, chain.Hash{}, nil, false
	}
	e := l.history[depth]
	return e.BlockHeight, e.BlockHash, e.Tiers, true
}

// BlockHeight returns the height of the most recent snapshot. Callers
// must check HistoryDepth() > 0 first.
func (l *List) BlockHeight() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history[0].BlockHeight
}

// HistoryDepth returns the number of snapshots currently retained.
func (l *List) HistoryDepth() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.history))
}

// State reports the list's current lifecycle state.
func (l *List) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case len(l.history) == 0:
		return StateEmpty
	case uint64(len(l.history)) < l.cfg.SupernodeHistorySize:
		return StateGrowing
	default:
		return StateFull
	}
}
