package dbft

import (
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Store is the durable key-value collaborator the checkpoint codec
// reads and writes (§6): get/put on a fixed key, nothing more.
type Store interface {
	// Get returns the value stored under (prefix, key), or ok=false if
	// absent.
	Get(prefix byte, key []byte) (value []byte, ok bool)
	// PutSync writes (prefix, key) -> value with a sync/durable write
	// barrier (§4.6): the write must survive a crash immediately after
	// it returns.
	PutSync(prefix byte, key, value []byte) error
}

// checkpointPrefix and checkpointKey locate the single persisted
// Context record (§6): key (0xf4, "").
const checkpointPrefix = byte(0xf4)

var checkpointKey = []byte{}

// BoltStore is a Store backed by a bbolt database, the durable
// key-value engine the teacher repo already depends on for chain
// storage; here it backs only the narrow consensus checkpoint bucket.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// NewBoltStore opens (creating if absent) a BoltStore over db using
// bucket as its namespace.
func NewBoltStore(db *bolt.DB, bucket string) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "dbft: opening checkpoint bucket")
	}
	return &BoltStore{db: db, bucket: []byte(bucket)}, nil
}

func storeKey(prefix byte, key []byte) []byte {
	full := make([]byte, 1+len(key))
	full[0] = prefix
	copy(full[1:], key)
	return full
}

// Get implements Store.
func (s *BoltStore) Get(prefix byte, key []byte) ([]byte, bool) {
	var out []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		v := b.Get(storeKey(prefix, key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil
}

// PutSync implements Store. bbolt fsyncs on every committed
// transaction by default, which is the durability barrier §4.6 asks for.
func (s *BoltStore) PutSync(prefix byte, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			var err error
			b, err = tx.CreateBucket(s.bucket)
			if err != nil {
				return err
			}
		}
		return b.Put(storeKey(prefix, key), value)
	})
}
