package xmlidx

// valueStore holds the single ordered keyspace of a ValueIndex: serialized
// keys mapped to posting blobs.
type valueStore interface {
	Begin(writable bool) (valueTx, error)
	// Sync forces committed data to stable storage.
	Sync() error
	Close() error
}

// valueTx sees a consistent snapshot of the keyspace. Slices returned by Get
// and by cursors are only valid until the transaction ends.
type valueTx interface {
	// Get returns nil for a missing key.
	Get(key []byte) []byte
	Put(key, blob []byte) error
	Delete(key []byte) error
	Cursor() keyCursor
	Commit() error
	// Rollback is a no-op once the transaction has ended.
	Rollback() error
}

// keyCursor walks keys in ascending byte order. A nil key means the cursor
// moved past the last one.
type keyCursor interface {
	First() (key, blob []byte)
	// Seek moves to the first key that is not less than seek.
	Seek(seek []byte) (key, blob []byte)
	Next() (key, blob []byte)
}
