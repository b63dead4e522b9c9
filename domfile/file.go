// Package domfile reads and writes the paged file that stores document
// nodes in document order.
//
// Each document occupies a chain of data pages linked through their
// headers. A data page holds slots, each starting with a TID: either a
// node record or a link stub redirecting to a record that was moved
// elsewhere. Payloads too large for a page go to a chain of overflow
// pages. NodeIterator walks the records of a document in storage order.
package domfile

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/andreyvit/xmlidx"
	"github.com/andreyvit/xmlidx/lock"
	"github.com/andreyvit/xmlidx/mmap"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	Logger *slog.Logger

	// LockTimeout bounds every lock acquisition. Zero waits forever.
	LockTimeout time.Duration

	// Prefault loads the whole file into memory on open.
	Prefault bool

	Registerer prometheus.Registerer
}

// File is a page file opened for reading. It is safe for concurrent use.
type File struct {
	path        string
	mapping     *mmap.Mapping
	index       *NodeIndex
	lock        *lock.RWLock
	lockTimeout time.Duration
	logger      *slog.Logger
	metrics     *fileMetrics

	pageSize  int
	pageCount uint64
}

// Open maps the page file at path. index resolves node references that
// carry no address; it may be nil if all iterators start at an address.
func Open(path string, index *NodeIndex, opt Options) (*File, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	metrics, err := newFileMetrics(opt.Registerer)
	if err != nil {
		return nil, err
	}

	mopt := mmap.RandomAccess
	if opt.Prefault {
		mopt |= mmap.Prefault
	}
	mapping, err := mmap.Open(path, mopt)
	if err != nil {
		return nil, fmt.Errorf("domfile: %w", err)
	}
	h, err := decodeFileHeader(mapping.Bytes())
	if err != nil {
		mapping.Close()
		return nil, fmt.Errorf("domfile: %s: %w", path, err)
	}
	if need := h.pageCount * uint64(h.pageSize); need > uint64(mapping.Len()) {
		mapping.Close()
		return nil, fmt.Errorf("domfile: %s: %w: %d pages of %d bytes need %d bytes, file has %d", path, ErrCorrupted, h.pageCount, h.pageSize, need, mapping.Len())
	}

	return &File{
		path:        path,
		mapping:     mapping,
		index:       index,
		lock:        lock.New(path),
		lockTimeout: opt.LockTimeout,
		logger:      opt.Logger,
		metrics:     metrics,
		pageSize:    h.pageSize,
		pageCount:   h.pageCount,
	}, nil
}

func (f *File) Path() string      { return f.path }
func (f *File) PageSize() int     { return f.pageSize }
func (f *File) PageCount() uint64 { return f.pageCount }

// Close unmaps the file. It waits for in-flight iterator steps.
func (f *File) Close() error {
	g, err := f.lock.Acquire(lock.Write, f.lockTimeout)
	if err != nil {
		return err
	}
	defer g.Release()
	if f.mapping == nil {
		return nil
	}
	err = f.mapping.Close()
	f.mapping = nil
	return err
}

// Lookup resolves a node reference to the address of its record.
func (f *File) Lookup(doc xmlidx.DocID, gid xmlidx.NodeID) (Address, error) {
	if f.index == nil {
		return 0, fmt.Errorf("%w: document %d gid %d: no node index", ErrNodeNotFound, doc, gid)
	}
	return f.index.Lookup(doc, gid)
}

// Node reads the record at addr, following a link stub if there is one.
func (f *File) Node(doc xmlidx.DocID, addr Address) (*Node, error) {
	g, err := f.lock.Acquire(lock.Read, f.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer g.Release()

	p, rec, err := f.findRecord(addr)
	if err != nil {
		return nil, err
	}
	return f.readNode(p, &rec, doc)
}

// page returns page num. Callers hold the lock.
func (f *File) page(num uint64) (*page, error) {
	if f.mapping == nil {
		return nil, ErrClosed
	}
	if num == 0 || num >= f.pageCount {
		return nil, fmt.Errorf("%w: page %d out of range [1, %d)", ErrCorrupted, num, f.pageCount)
	}
	off := num * uint64(f.pageSize)
	p, err := decodePage(num, f.mapping.Bytes()[off:off+uint64(f.pageSize)])
	if err != nil {
		return nil, err
	}
	f.metrics.PagesRead.WithLabelValues(p.typ.String()).Inc()
	return p, nil
}

func (f *File) dataPage(num uint64) (*page, error) {
	p, err := f.page(num)
	if err != nil {
		return nil, err
	}
	if p.typ != PageData {
		return nil, fmt.Errorf("%w: page %d is a %s page, wanted data", ErrCorrupted, num, p.typ)
	}
	return p, nil
}

// findRecord locates the slot of addr. A link stub is followed once; the
// record it points to must not be a link itself.
func (f *File) findRecord(addr Address) (*page, record, error) {
	p, rec, err := f.findSlot(addr)
	if err != nil {
		return nil, record{}, err
	}
	if !rec.link {
		return p, rec, nil
	}
	target := rec.target
	p, rec, err = f.findSlot(target)
	if err != nil {
		return nil, record{}, fmt.Errorf("link at %v: %w", addr, err)
	}
	if rec.link {
		return nil, record{}, fmt.Errorf("%w: link at %v points to another link at %v", ErrCorrupted, addr, target)
	}
	return p, rec, nil
}

func (f *File) findSlot(addr Address) (*page, record, error) {
	if addr == 0 {
		return nil, record{}, fmt.Errorf("%w: null address", ErrNodeNotFound)
	}
	p, err := f.dataPage(addr.Page())
	if err != nil {
		return nil, record{}, err
	}
	tid := addr.TID()
	for off := 0; off < p.dataLen(); {
		rec, err := decodeRecord(p, off)
		if err != nil {
			return nil, record{}, err
		}
		if rec.tid == tid {
			return p, rec, nil
		}
		off = rec.end
	}
	return nil, record{}, fmt.Errorf("%w: no slot %d on page %d", ErrNodeNotFound, tid, p.num)
}

// readNode decodes the node stored in rec.
func (f *File) readNode(p *page, rec *record, doc xmlidx.DocID) (*Node, error) {
	payload := rec.payload
	if rec.overflow != 0 {
		var err error
		payload, err = f.overflowValue(rec.overflow)
		if err != nil {
			return nil, fmt.Errorf("record %v: %w", MakeAddress(p.num, rec.tid), err)
		}
	}
	n, err := decodeNode(payload)
	if err != nil {
		return nil, fmt.Errorf("record %v: %w", MakeAddress(p.num, rec.tid), err)
	}
	n.Address = MakeAddress(p.num, rec.tid)
	n.Doc = doc
	return n, nil
}

// overflowValue concatenates the data of the overflow chain starting at
// first.
func (f *File) overflowValue(first uint64) ([]byte, error) {
	var value []byte
	num := first
	for i := uint64(0); num != 0; i++ {
		if i >= f.pageCount {
			return nil, fmt.Errorf("%w: overflow chain starting at %d loops", ErrCorrupted, first)
		}
		p, err := f.page(num)
		if err != nil {
			return nil, err
		}
		if p.typ != PageOverflow {
			return nil, fmt.Errorf("%w: overflow chain reached %s page %d", ErrCorrupted, p.typ, num)
		}
		value = append(value, p.data...)
		num = p.next
	}
	return value, nil
}
