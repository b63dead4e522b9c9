package xmlidx

import (
	"bytes"
	"errors"
	"slices"
	"sync"
)

var (
	errStoreClosed = errors.New("store closed")
	errTxReadOnly  = errors.New("read-only transaction")
	errTxDone      = errors.New("transaction has ended")
)

// memStore keeps the keyspace in a sorted slice, for OpenInMemory and tests.
// A write transaction edits a private copy that replaces the shared slice on
// commit, so readers keep whatever snapshot they started with.
type memStore struct {
	writer sync.Mutex // held for the lifetime of a write transaction

	mu     sync.Mutex
	items  []memItem
	closed bool
}

type memItem struct {
	key, blob []byte
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) snapshot() ([]memItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errStoreClosed
	}
	return s.items, nil
}

func (s *memStore) Begin(writable bool) (valueTx, error) {
	if !writable {
		items, err := s.snapshot()
		if err != nil {
			return nil, err
		}
		return &memTx{store: s, items: items}, nil
	}
	s.writer.Lock()
	items, err := s.snapshot()
	if err != nil {
		s.writer.Unlock()
		return nil, err
	}
	// items and blobs are never modified in place, so a shallow copy will do
	return &memTx{store: s, items: slices.Clone(items), writable: true}, nil
}

func (s *memStore) Sync() error { return nil }

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	return nil
}

type memTx struct {
	store    *memStore
	items    []memItem
	writable bool
	done     bool
}

func (tx *memTx) search(key []byte) (int, bool) {
	return slices.BinarySearchFunc(tx.items, key, func(it memItem, k []byte) int {
		return bytes.Compare(it.key, k)
	})
}

func (tx *memTx) Get(key []byte) []byte {
	if i, ok := tx.search(key); ok {
		return tx.items[i].blob
	}
	return nil
}

func (tx *memTx) Put(key, blob []byte) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	i, ok := tx.search(key)
	if ok {
		tx.items[i].blob = bytes.Clone(blob)
	} else {
		tx.items = slices.Insert(tx.items, i, memItem{bytes.Clone(key), bytes.Clone(blob)})
	}
	return nil
}

func (tx *memTx) Delete(key []byte) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if i, ok := tx.search(key); ok {
		tx.items = slices.Delete(tx.items, i, i+1)
	}
	return nil
}

func (tx *memTx) checkWritable() error {
	if tx.done {
		return errTxDone
	}
	if !tx.writable {
		return errTxReadOnly
	}
	return nil
}

func (tx *memTx) Cursor() keyCursor {
	return &memCursor{tx: tx}
}

func (tx *memTx) Commit() error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	s := tx.store
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.items = tx.items
	}
	s.mu.Unlock()
	tx.end()
	if closed {
		return errStoreClosed
	}
	return nil
}

func (tx *memTx) Rollback() error {
	if !tx.done {
		tx.end()
	}
	return nil
}

func (tx *memTx) end() {
	tx.done = true
	tx.items = nil
	if tx.writable {
		tx.store.writer.Unlock()
	}
}

// memCursor remembers its current key rather than a position, so it stays
// valid when the transaction deletes keys between moves.
type memCursor struct {
	tx  *memTx
	key []byte
}

func (c *memCursor) at(i int) ([]byte, []byte) {
	if i >= len(c.tx.items) {
		c.key = nil
		return nil, nil
	}
	it := c.tx.items[i]
	c.key = it.key
	return it.key, it.blob
}

func (c *memCursor) First() ([]byte, []byte) {
	return c.at(0)
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	i, _ := c.tx.search(seek)
	return c.at(i)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.key == nil {
		return nil, nil
	}
	i, found := c.tx.search(c.key)
	if found {
		i++
	}
	return c.at(i)
}
