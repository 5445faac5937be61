package posapi

import (
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/freshretail/freshpos/internal/pos"
)

var replayBucket = []byte("sale_replays")

// ReplayStore maps client idempotency keys to committed sale receipts so a
// retried submit returns the original receipt instead of selling twice.
type ReplayStore struct {
	db *bolt.DB
}

func OpenReplayStore(workdir string) (*ReplayStore, error) {
	db, err := bolt.Open(filepath.Join(workdir, "sale_replays.db"), 0600,
		&bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(replayBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}
	return &ReplayStore{db: db}, nil
}

// Lookup returns the receipt previously stored under key, or nil when the key
// has not been seen.
func (s *ReplayStore) Lookup(key string) (*pos.SaleReceipt, error) {
	var receipt *pos.SaleReceipt
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(replayBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var r pos.SaleReceipt
		if err := jsoniter.Unmarshal(raw, &r); err != nil {
			return err
		}
		receipt = &r
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return receipt, nil
}

func (s *ReplayStore) Record(key string, receipt *pos.SaleReceipt) error {
	raw, err := jsoniter.Marshal(receipt)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(replayBucket).Put([]byte(key), raw)
	}))
}

func (s *ReplayStore) Close() error {
	return s.db.Close()
}
