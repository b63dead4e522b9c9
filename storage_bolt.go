package xmlidx

import (
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

var valuesBucket = []byte("values")

// boltStore keeps the keyspace in one Bolt bucket.
type boltStore struct {
	db *bbolt.DB
}

// newBoltStore wraps db. Unless readOnly, the values bucket is created, so
// that write transactions can rely on it.
func newBoltStore(db *bbolt.DB, readOnly bool) (*boltStore, error) {
	if !readOnly {
		err := db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(valuesBucket)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Begin(writable bool) (valueTx, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, err
	}
	b := tx.Bucket(valuesBucket)
	if b == nil && writable {
		tx.Rollback()
		return nil, fmt.Errorf("bucket %q is missing", valuesBucket)
	}
	return &boltTx{tx: tx, b: b}, nil
}

func (s *boltStore) Sync() error  { return s.db.Sync() }
func (s *boltStore) Close() error { return s.db.Close() }

// boltTx has a nil bucket when a read-only file was never written to.
type boltTx struct {
	tx *bbolt.Tx
	b  *bbolt.Bucket
}

func (t *boltTx) Get(key []byte) []byte {
	if t.b == nil {
		return nil
	}
	return t.b.Get(key)
}

func (t *boltTx) Put(key, blob []byte) error { return t.b.Put(key, blob) }
func (t *boltTx) Delete(key []byte) error    { return t.b.Delete(key) }

func (t *boltTx) Cursor() keyCursor {
	if t.b == nil {
		return emptyCursor{}
	}
	return t.b.Cursor()
}

func (t *boltTx) Commit() error { return t.tx.Commit() }

func (t *boltTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, bbolt.ErrTxClosed) {
		return nil
	}
	return err
}

type emptyCursor struct{}

func (emptyCursor) First() ([]byte, []byte)      { return nil, nil }
func (emptyCursor) Seek([]byte) ([]byte, []byte) { return nil, nil }
func (emptyCursor) Next() ([]byte, []byte)       { return nil, nil }
