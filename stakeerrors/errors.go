// Package stakeerrors enumerates the error kinds from the stake
// transaction processor's error handling design: each kind is a
// registered, code-bearing sentinel so callers can branch on kind with
// errors.Is/cosmossdk.io/errors.IsOf instead of string matching.
package stakeerrors

import (
	sdkerrors "cosmossdk.io/errors"
)

const codespace = "stakeproc"

var (
	// ErrMalformedTx covers a failed extra parse, curve check, signature
	// check, bad unlock-time, or bad amount. Policy: log warning, skip
	// the transaction, keep processing the block.
	ErrMalformedTx = sdkerrors.Register(codespace, 2, "malformed stake or disqualification transaction")

	// ErrStaleHistory is returned when a disqualification targets a
	// block beyond the BBL's retained history depth. Policy: log
	// warning, reject the transaction.
	ErrStaleHistory = sdkerrors.Register(codespace, 3, "disqualification target block is out of BBL history")

	// ErrCommitteeMismatch is returned when a disqualified id or signer
	// id is not a member of the committee required for that
	// disqualification version. Policy: log warning, reject the
	// transaction.
	ErrCommitteeMismatch = sdkerrors.Register(codespace, 4, "disqualification id or signer not in required committee")

	// ErrBlockMissing signals that the chain does not yet have the block
	// at the requested height. Policy: return from synchronize, retry
	// on the next invocation.
	ErrBlockMissing = sdkerrors.Register(codespace, 5, "block does not exist yet")

	// ErrStorageIO covers a snapshot file read/write failure. Policy:
	// surface to the caller; no partial writes are left behind.
	ErrStorageIO = sdkerrors.Register(codespace, 6, "stake storage I/O failure")

	// ErrVersionMismatch signals an on-disk snapshot format different
	// from the one this binary writes. Policy: discard the file, rebuild
	// that artifact from genesis (the earliest ideal height).
	ErrVersionMismatch = sdkerrors.Register(codespace, 7, "on-disk snapshot format version mismatch")

	// ErrHandlerError wraps a panic/error raised by a stakes- or
	// BBL-update subscriber. Policy: log, swallow, and do NOT clear the
	// corresponding need-update flag.
	ErrHandlerError = sdkerrors.Register(codespace, 8, "update handler raised an error")

	// ErrDoubleInit is raised if InitStorages is called twice on the
	// same processor. This is a programmer error, not a runtime
	// condition, and is fatal.
	ErrDoubleInit = sdkerrors.Register(codespace, 9, "stake storages have already been initialized")
)
