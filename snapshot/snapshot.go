// Package snapshot implements the atomic, crash-safe binary
// persistence shared by the stake transaction storage and the
// blockchain-based list: each artifact is a self-describing blob
// (magic + format version + msgpack-encoded payload) written to a
// temp file in the target directory and atomically renamed into place,
// so a crash between blocks never leaves a half-written snapshot on
// disk.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/avastar/GraftNetwork/stakeerrors"
)

// magic identifies a file produced by this package, guarding against
// accidentally loading an unrelated file as a snapshot.
const magic uint32 = 0x53544b50 // "STKP"

// Store msgpack-encodes payload, prefixes it with the magic number and
// format version, and atomically replaces the file at path: it writes
// to a sibling temp file in the same directory and renames over path,
// so readers never observe a partial write.
func Store(path string, version uint32, payload interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stakeerrors.ErrStorageIO.Wrapf("create snapshot dir: %v", err)
	}

	var body bytes.Buffer
	enc := codec.NewEncoder(&body, msgpackHandle)
	if err := enc.Encode(payload); err != nil {
		return stakeerrors.ErrStorageIO.Wrapf("encode snapshot: %v", err)
	}

	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], magic)
	binary.BigEndian.PutUint32(header[4:8], version)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return stakeerrors.ErrStorageIO.Wrapf("create temp snapshot: %v", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(header[:]); err != nil {
		tmp.Close()
		return stakeerrors.ErrStorageIO.Wrapf("write snapshot header: %v", err)
	}
	if _, err := tmp.Write(body.Bytes()); err != nil {
		tmp.Close()
		return stakeerrors.ErrStorageIO.Wrapf("write snapshot body: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return stakeerrors.ErrStorageIO.Wrapf("sync snapshot: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return stakeerrors.ErrStorageIO.Wrapf("close snapshot: %v", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return stakeerrors.ErrStorageIO.Wrapf("rename snapshot into place: %v", err)
	}
	return nil
}

// Load reads and decodes the file at path, verifying the magic and
// format version. A missing file is reported via os.IsNotExist on the
// returned error, matching the lazy-initialization discipline the
// processor relies on: its on-disk artifacts are created on first
// synchronize, not up front. A version mismatch returns
// stakeerrors.ErrVersionMismatch so the caller can discard and rebuild
// that artifact from genesis.
func Load(path string, wantVersion uint32, out interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(raw) < 8 {
		return stakeerrors.ErrStorageIO.Wrap("snapshot file truncated")
	}

	gotMagic := binary.BigEndian.Uint32(raw[0:4])
	if gotMagic != magic {
		return stakeerrors.ErrStorageIO.Wrap("snapshot file has wrong magic")
	}

	gotVersion := binary.BigEndian.Uint32(raw[4:8])
	if gotVersion != wantVersion {
		return stakeerrors.ErrVersionMismatch.Wrapf("snapshot at %s has format version %d, want %d", path, gotVersion, wantVersion)
	}

	dec := codec.NewDecoder(bytes.NewReader(raw[8:]), msgpackHandle)
	if err := dec.Decode(out); err != nil {
		return stakeerrors.ErrStorageIO.Wrapf("decode snapshot: %v", err)
	}
	return nil
}

var msgpackHandle = &codec.MsgpackHandle{}

// Exists reports whether a snapshot file is present at path, without
// attempting to decode it.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Filename builds the fixed, versioned filename for an artifact inside
// dir, matching the naming discipline of the two on-disk files:
// "<name>.v<version>.bin".
func Filename(dir, name string, version uint32) string {
	return filepath.Join(dir, fmt.Sprintf("%s.v%d.bin", name, version))
}
