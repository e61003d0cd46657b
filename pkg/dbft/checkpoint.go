package dbft

import (
	"errors"

	io2 "github.com/meridianchain/dbft/pkg/io"
)

var (
	errCheckpointFormat  = errors.New("dbft: checkpoint: malformed record")
	errCheckpointVersion = errors.New("dbft: checkpoint: version mismatch")
	errCheckpointHeight  = errors.New("dbft: checkpoint: height mismatch")
)

// Load restores a persisted Context from the durable store, per §4.6:
// it first Reset(0)s against the live ledger, then overlays the
// checkpoint record if one is present and still applies to this
// height. Any codec error (truncated stream, version or height
// mismatch, corrupt bytes) is swallowed into "no saved state" — a
// corrupt or stale checkpoint must never block startup, it just means
// this node starts the height cold.
func (c *Context) Load() (restored bool) {
	c.reset(0)

	if c.Config.Store == nil {
		return false
	}

	data, ok := c.Config.Store.Get(checkpointPrefix, checkpointKey)
	if !ok {
		return false
	}

	r := io2.NewBinReaderFromBuf(data)
	c.DecodeBinary(r)
	if r.Err != nil {
		c.reset(0)
		return false
	}
	return true
}

// CheckpointBytes returns the raw persisted checkpoint record, if any,
// without decoding it against a live Context. Intended for inspection
// tooling (cmd/dbftnode) that has no ledger snapshot to Reset against.
func CheckpointBytes(s Store) ([]byte, bool) {
	return s.Get(checkpointPrefix, checkpointKey)
}

// Save writes the current Context to the durable store at the fixed
// checkpoint key with a sync write barrier (§4.6): it must survive a
// crash immediately after this call returns.
func (c *Context) Save() error {
	if c.Config.Store == nil {
		return nil
	}
	data, err := io2.ToByteArray(c)
	if err != nil {
		return err
	}
	return c.Config.Store.PutSync(checkpointPrefix, checkpointKey, data)
}
