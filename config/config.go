// Package config declares the protocol constants and sync tunables the
// stake transaction processor needs. Loading these from a file or the
// environment is outside this module's scope; this package only
// defines their shape and defaults, the way
// finality-provider/config defines ChainPollerConfig/DatabaseConfig.
package config

import "time"

const (
	defaultTiers                               = 4
	defaultStakeMinUnlockTime                  = uint64(720)
	defaultStakeMaxUnlockTime                  = uint64(259200)
	defaultStakeValidationPeriod               = uint64(5)
	defaultTrustedRestakingPeriod              = uint64(720)
	defaultSupernodeHistorySize                = uint64(720)
	defaultRequiredBBQSVotes                   = uint32(8)
	defaultRequiredDisqual2Votes               = uint32(8)
	defaultStakeTransactionProcessingDBVersion = uint8(16)

	defaultMaxIterationsCount = uint64(10000)
	defaultSyncDebugLogStep   = uint64(10000)

	defaultAddressPrefixMain     = uint64(0x176d2)
	defaultAddressPrefixTestnet  = uint64(0x176d4)
	defaultAddressPrefixStagenet = uint64(0x176d6)
)

// Config carries the protocol-level constants that govern
// stake-transaction admissibility and BBL sizing. All
// values are expected to come from the node's protocol configuration;
// this struct only fixes their shape and reasonable defaults.
type Config struct {
	Tiers uint32 `long:"tiers" description:"number of BBL tiers supernodes are partitioned into"`

	StakeMinUnlockTime uint64 `long:"stakeminunlocktime" description:"minimum relative unlock time (blocks) accepted for a stake transaction"`
	StakeMaxUnlockTime uint64 `long:"stakemaxunlocktime" description:"maximum relative unlock time (blocks) accepted for a stake transaction"`

	StakeValidationPeriod  uint64 `long:"stakevalidationperiod" description:"blocks after mining before a stake transaction becomes valid"`
	TrustedRestakingPeriod uint64 `long:"trustedrestakingperiod" description:"blocks past unlock during which a stake remains valid"`

	SupernodeHistorySize uint64 `long:"supernodehistorysize" description:"depth of the BBL's retained block history"`

	RequiredBBQSVotes     uint32 `long:"requiredbbqsvotes" description:"minimum number of BBQS signers required on a disqualification-v1"`
	RequiredDisqual2Votes uint32 `long:"requireddisqual2votes" description:"minimum number of AuthSample signers required on a disqualification-v2"`

	StakeTransactionProcessingDBVersion uint8 `long:"staketransactionprocessingdbversion" description:"hard-fork version at and above which stake transaction processing is active"`

	// AddressPrefixMain, AddressPrefixTestnet and AddressPrefixStagenet
	// are the varint-encoded account-address tags this chain's three
	// networks use. They key the base58 encoding a supernode's address
	// is rendered as before hashing, so they must match the node's
	// actual network constants, not just agree with each other.
	AddressPrefixMain     uint64 `long:"addressprefixmain" description:"mainnet account-address tag"`
	AddressPrefixTestnet  uint64 `long:"addressprefixtestnet" description:"testnet account-address tag"`
	AddressPrefixStagenet uint64 `long:"addressprefixstagenet" description:"stagenet account-address tag"`
}

// DefaultConfig returns a Config populated with the values currently in
// force on the reference network. Real deployments override these from
// the node's protocol configuration.
func DefaultConfig() Config {
	return Config{
		Tiers:                               defaultTiers,
		StakeMinUnlockTime:                  defaultStakeMinUnlockTime,
		StakeMaxUnlockTime:                  defaultStakeMaxUnlockTime,
		StakeValidationPeriod:               defaultStakeValidationPeriod,
		TrustedRestakingPeriod:              defaultTrustedRestakingPeriod,
		SupernodeHistorySize:                defaultSupernodeHistorySize,
		RequiredBBQSVotes:                   defaultRequiredBBQSVotes,
		RequiredDisqual2Votes:               defaultRequiredDisqual2Votes,
		StakeTransactionProcessingDBVersion: defaultStakeTransactionProcessingDBVersion,
		AddressPrefixMain:                   defaultAddressPrefixMain,
		AddressPrefixTestnet:                defaultAddressPrefixTestnet,
		AddressPrefixStagenet:                defaultAddressPrefixStagenet,
	}
}

// SyncConfig carries the cooperative-throttling tunables for
// Processor.Synchronize.
type SyncConfig struct {
	// MaxIterationsPerCall bounds how many blocks a single Synchronize
	// call will apply before returning, so the synchronizer cooperates
	// with other users of the storage lock. Callers must invoke
	// Synchronize repeatedly until it reports having caught up.
	MaxIterationsPerCall uint64 `long:"maxiterationspercall" description:"max blocks applied per Synchronize call"`

	// DebugLogStep controls how often (in blocks) sync progress is
	// logged at debug level while catching up.
	DebugLogStep uint64 `long:"debuglogstep" description:"how often, in blocks, to log sync progress"`
}

// DefaultSyncConfig returns the reference SyncConfig.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		MaxIterationsPerCall: defaultMaxIterationsCount,
		DebugLogStep:         defaultSyncDebugLogStep,
	}
}

// PollConfig carries the interval at which an external caller should
// invoke Synchronize. The processor itself has no internal timer and
// leaves scheduling to the caller; this mirrors
// finality-provider/config.ChainPollerConfig's shape for callers that do
// want to run Synchronize on a ticker.
type PollConfig struct {
	PollInterval time.Duration `long:"pollinterval" description:"interval between Synchronize invocations"`
}

// DefaultPollConfig returns the reference PollConfig.
func DefaultPollConfig() PollConfig {
	return PollConfig{PollInterval: 2 * time.Second}
}

// LogConfig selects the wire format and verbosity of the root logger
// shared by the processor and both storages.
type LogConfig struct {
	// Format is one of "json", "auto"/"console", or "logfmt".
	Format string `long:"logformat" description:"log encoding: json, console, or logfmt"`
	// Level is one of panic, fatal, error, warn, info, debug.
	Level string `long:"loglevel" description:"minimum level logged"`
}

// DefaultLogConfig returns the reference LogConfig.
func DefaultLogConfig() LogConfig {
	return LogConfig{Format: "auto", Level: "info"}
}
