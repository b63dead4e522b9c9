package xmlidx

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/andreyvit/xmlidx/lock"
	"github.com/prometheus/client_golang/prometheus"
	"go.etcd.io/bbolt"
)

// ValueIndex maps typed node values to the nodes holding them. Values are
// staged for one document at a time and written by Flush, ReindexDocument,
// ReindexSubtree or Remove. Staging is not safe for concurrent use; queries
// are.
type ValueIndex struct {
	store         valueStore
	lock          *lock.RWLock
	logger        *slog.Logger
	verbose       bool
	caseSensitive bool
	readOnly      bool
	lockTimeout   time.Duration
	metrics       *indexMetrics

	doc     Document
	pending pendingBuffer
}

type Options struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// CaseInsensitive folds string keys, so that queries ignore case.
	// Changing it requires rebuilding the index.
	CaseInsensitive bool
	ReadOnly        bool

	// LockTimeout bounds every lock acquisition. Zero waits forever.
	LockTimeout time.Duration

	// Registerer receives the index metrics, if set.
	Registerer prometheus.Registerer
}

// Open opens or creates a value index stored in a Bolt file.
func Open(path string, opt Options) (*ValueIndex, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.ReadOnly = opt.ReadOnly
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 256
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("xmlidx: %w", err)
	}
	store, err := newBoltStore(bdb, opt.ReadOnly)
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("xmlidx: %w", err)
	}
	vi, err := newValueIndex(store, opt)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return vi, nil
}

// OpenInMemory returns a transient value index.
func OpenInMemory(opt Options) (*ValueIndex, error) {
	return newValueIndex(newMemStore(), opt)
}

func newValueIndex(store valueStore, opt Options) (*ValueIndex, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics, err := newIndexMetrics(opt.Registerer)
	if err != nil {
		return nil, fmt.Errorf("xmlidx: registering metrics: %w", err)
	}

	vi := &ValueIndex{
		store:         store,
		lock:          lock.New("values"),
		logger:        logger,
		verbose:       opt.Verbose,
		caseSensitive: !opt.CaseInsensitive,
		readOnly:      opt.ReadOnly,
		lockTimeout:   opt.LockTimeout,
		metrics:       metrics,
		pending:       newPendingBuffer(!opt.CaseInsensitive),
	}
	return vi, nil
}

func (vi *ValueIndex) CaseSensitive() bool {
	return vi.caseSensitive
}

func (vi *ValueIndex) ReadOnly() bool {
	return vi.readOnly
}

// SetDocument sets the document that subsequently staged values belong to.
func (vi *ValueIndex) SetDocument(doc Document) {
	vi.doc = doc
}

// Stage records that node gid of the current document holds value. Values
// that cannot be index keys (see ValidateValue) are skipped with a warning.
func (vi *ValueIndex) Stage(value Value, gid NodeID) {
	if err := ValidateValue(value); err != nil {
		vi.metrics.skipped("store")
		vi.logger.Warn("xmlidx: value not indexed", "gid", gid, "err", err)
		return
	}
	vi.pending.stage(value, gid)
}

// StoreText converts node text to typ and stages it. Text that does not
// convert is skipped with a warning.
func (vi *ValueIndex) StoreText(typ Type, gid NodeID, text string) {
	value, err := ConvertValue(typ, text)
	if err != nil {
		vi.metrics.skipped("store")
		vi.logger.Warn("xmlidx: value not indexed", "gid", gid, "type", typ, "err", err)
		return
	}
	vi.Stage(value, gid)
}

// PendingLen returns the number of distinct staged values.
func (vi *ValueIndex) PendingLen() int {
	return vi.pending.len()
}

var errNoDocument = errors.New("xmlidx: no current document")

// Flush writes the staged values of a freshly indexed document. The
// document must not have postings under any of the staged keys yet; entries
// that do are skipped with a warning, as are entries that fail to write.
func (vi *ValueIndex) Flush() error {
	if vi.pending.isEmpty() {
		return nil
	}
	if vi.readOnly {
		return ErrReadOnly
	}
	doc := vi.doc
	if doc == nil {
		return errNoDocument
	}

	var seg []byte
	for _, e := range vi.pending.drainAll() {
		key := SerializeKey(e.Value, doc.CollectionID(), vi.caseSensitive)
		seg = EncodeSegment(seg[:0], doc.ID(), e.Data)
		err := vi.update(func(tx valueTx) error {
			return appendSegment(tx, key, seg, doc.ID())
		})
		if err != nil {
			vi.metrics.skipped("flush")
			vi.logger.Warn("xmlidx: flush skipped entry", "doc", doc.ID(), "value", e.Value.String(), hexAttr("key", key), "err", err)
			continue
		}
		vi.metrics.written("flush")
	}
	return nil
}

// appendSegment stores seg under key, after any segments already there.
func appendSegment(tx valueTx, key, seg []byte, doc DocID) error {
	old := tx.Get(key)
	if old == nil {
		return tx.Put(key, seg)
	}
	if hasSegmentFor(old, doc) {
		return fmt.Errorf("%w: doc %d", ErrKeyExists, doc)
	}
	blob := make([]byte, 0, len(old)+len(seg))
	blob = append(blob, old...)
	blob = append(blob, seg...)
	return tx.Put(key, blob)
}

// ReindexDocument rewrites the postings of oldDoc for the staged keys. Nodes
// above oldDoc.ReindexRequired() keep their stored postings; deeper nodes
// are replaced by the staged ones.
//
// If the index lock cannot be acquired, ReindexDocument stops and returns
// ErrLockUnavailable; the entries it has not written stay staged.
func (vi *ValueIndex) ReindexDocument(oldDoc Document) error {
	level := oldDoc.ReindexRequired()
	return vi.reindex(oldDoc, func(gid NodeID) bool {
		return oldDoc.TreeLevel(gid) < level
	})
}

// ReindexSubtree is like ReindexDocument, but replaces only the postings of
// root and its descendants.
func (vi *ValueIndex) ReindexSubtree(oldDoc Document, root NodeID) error {
	return vi.reindex(oldDoc, func(gid NodeID) bool {
		return !IsSelfOrDescendant(oldDoc, root, gid)
	})
}

func (vi *ValueIndex) reindex(oldDoc Document, retain func(gid NodeID) bool) error {
	if vi.pending.isEmpty() {
		return nil
	}
	if vi.readOnly {
		return ErrReadOnly
	}
	docID := oldDoc.ID()

	entries := vi.pending.drainAll()
	for i, e := range entries {
		key := SerializeKey(e.Value, oldDoc.CollectionID(), vi.caseSensitive)
		staged := e.Data
		err := vi.update(func(tx valueTx) error {
			blob, ids := splitPostings(tx.Get(key), docID, retain)
			ids = sortNodeIDs(append(ids, staged...))
			if len(ids) > 0 {
				blob = EncodeSegment(blob, docID, ids)
			}
			return putOrDelete(tx, key, blob)
		})
		if errors.Is(err, ErrLockUnavailable) {
			// keep the unwritten entries staged so that the caller can retry
			vi.pending.restore(entries[i:])
			vi.logger.Error("xmlidx: reindex aborted", "doc", docID, "pending", vi.pending.len(), "err", err)
			return err
		} else if err != nil {
			vi.metrics.skipped("reindex")
			vi.logger.Warn("xmlidx: reindex skipped entry", "doc", docID, "value", e.Value.String(), "err", err)
			continue
		}
		vi.metrics.written("reindex")
	}
	return nil
}

// Remove deletes the staged nodes of the current document from the index.
// Keys that end up without postings are deleted.
func (vi *ValueIndex) Remove() error {
	if vi.pending.isEmpty() {
		return nil
	}
	if vi.readOnly {
		return ErrReadOnly
	}
	doc := vi.doc
	if doc == nil {
		return errNoDocument
	}

	for _, e := range vi.pending.drainAll() {
		key := SerializeKey(e.Value, doc.CollectionID(), vi.caseSensitive)
		removed := e.Data
		var found bool
		err := vi.update(func(tx valueTx) error {
			old := tx.Get(key)
			if old == nil {
				return nil
			}
			found = true
			blob, ids := splitPostings(old, doc.ID(), func(gid NodeID) bool {
				_, gone := slices.BinarySearch(removed, gid)
				return !gone
			})
			if ids = sortNodeIDs(ids); len(ids) > 0 {
				blob = EncodeSegment(blob, doc.ID(), ids)
			}
			return putOrDelete(tx, key, blob)
		})
		if err != nil {
			vi.metrics.skipped("remove")
			vi.logger.Warn("xmlidx: remove skipped entry", "doc", doc.ID(), "value", e.Value.String(), "err", err)
			continue
		}
		if found {
			vi.metrics.written("remove")
		}
	}
	return nil
}

// DropDocument removes every posting of doc from its collection.
func (vi *ValueIndex) DropDocument(doc Document) error {
	if vi.readOnly {
		return ErrReadOnly
	}
	var n int
	err := vi.update(func(tx valueTx) error {
		type change struct {
			key, blob []byte
		}
		var changes []change
		rang := RawPrefix(CollectionPrefix(doc.CollectionID()))
		cur := rang.newCursor(tx.Cursor(), vi.scanTrace())
		for cur.Next() {
			if !hasSegmentFor(cur.Value(), doc.ID()) {
				continue
			}
			blob, _ := splitPostings(cur.Value(), doc.ID(), nil)
			changes = append(changes, change{slices.Clone(cur.Key()), blob})
		}
		for _, c := range changes {
			if err := putOrDelete(tx, c.key, c.blob); err != nil {
				return err
			}
		}
		n = len(changes)
		return nil
	})
	if err != nil {
		return fmt.Errorf("xmlidx: dropping doc %d: %w", doc.ID(), err)
	}
	vi.metrics.EntriesWritten.WithLabelValues("drop").Add(float64(n))
	if vi.verbose {
		vi.logger.Debug("xmlidx: dropped document", "doc", doc.ID(), "keys", n)
	}
	return nil
}

// DropCollection removes every key of a collection.
func (vi *ValueIndex) DropCollection(cid CollectionID) error {
	if vi.readOnly {
		return ErrReadOnly
	}
	var n int
	err := vi.update(func(tx valueTx) error {
		var keys [][]byte
		rang := RawPrefix(CollectionPrefix(cid))
		cur := rang.newCursor(tx.Cursor(), vi.scanTrace())
		for cur.Next() {
			keys = append(keys, slices.Clone(cur.Key()))
		}
		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	if err != nil {
		return fmt.Errorf("xmlidx: dropping collection %d: %w", cid, err)
	}
	vi.metrics.EntriesWritten.WithLabelValues("drop").Add(float64(n))
	if vi.verbose {
		vi.logger.Debug("xmlidx: dropped collection", "collection", cid, "keys", n)
	}
	return nil
}

// Sync flushes the underlying store to disk.
func (vi *ValueIndex) Sync() error {
	g, err := vi.lock.Acquire(lock.Write, vi.lockTimeout)
	if err != nil {
		return err
	}
	defer g.Release()
	if err := vi.store.Sync(); err != nil {
		return fmt.Errorf("xmlidx: sync: %w", err)
	}
	return nil
}

func (vi *ValueIndex) Close() error {
	return vi.store.Close()
}

// splitPostings copies the segments of blob that belong to other documents
// and returns the ids of doc's segment for which retain is true.
func splitPostings(blob []byte, doc DocID, retain func(gid NodeID) bool) ([]byte, []NodeID) {
	var out []byte
	var ids []NodeID
	r := NewPostingReader(blob)
	for r.NextSegment() {
		if r.Doc() != doc {
			var ok bool
			if out, ok = r.AppendRawSegment(out); !ok {
				break
			}
			continue
		}
		if retain == nil {
			continue
		}
		for gid := range r.IDs() {
			if retain(gid) {
				ids = append(ids, gid)
			}
		}
	}
	return out, ids
}

func putOrDelete(tx valueTx, key, blob []byte) error {
	if len(blob) == 0 {
		return tx.Delete(key)
	}
	return tx.Put(key, blob)
}

// update runs f in a write transaction under the index write lock.
func (vi *ValueIndex) update(f func(tx valueTx) error) error {
	g, err := vi.lock.Acquire(lock.Write, vi.lockTimeout)
	if err != nil {
		return err
	}
	defer g.Release()

	tx, err := vi.store.Begin(true)
	if err != nil {
		return fmt.Errorf("xmlidx: begin: %w", err)
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// view runs f in a read transaction under the index read lock.
func (vi *ValueIndex) view(f func(tx valueTx) error) error {
	g, err := vi.lock.Acquire(lock.Read, vi.lockTimeout)
	if err != nil {
		return err
	}
	defer g.Release()

	tx, err := vi.store.Begin(false)
	if err != nil {
		return fmt.Errorf("xmlidx: begin: %w", err)
	}
	defer tx.Rollback()
	return f(tx)
}

// scanTrace returns the logger that raw scans report cursor moves to, or nil
// unless the index is verbose.
func (vi *ValueIndex) scanTrace() *slog.Logger {
	if vi.verbose {
		return vi.logger
	}
	return nil
}
