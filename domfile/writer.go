package domfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/andreyvit/xmlidx"
	"github.com/andreyvit/xmlidx/mmap"
)

type WriterOptions struct {
	Logger   *slog.Logger
	PageSize int

	// OverflowThreshold is the payload size above which a node goes to an
	// overflow chain. Defaults to a quarter of the page data area.
	OverflowThreshold int
}

// Writer builds a page file. Each document gets its own chain of data pages
// started by Begin. Node addresses are recorded in the node index on Close.
type Writer struct {
	f         *os.File
	index     *NodeIndex
	logger    *slog.Logger
	pageSize  int
	threshold int

	nextPage uint64
	doc      xmlidx.DocID
	cur      *pageBuf
	refs     []NodeRef
	err      error
}

// pageBuf is the data page being filled. It stays in memory until the next
// page of the chain is allocated, so that its next pointer can be set.
type pageBuf struct {
	num     uint64
	prev    uint64
	next    uint64
	used    int
	nextTID uint16
	buf     []byte
}

func Create(path string, index *NodeIndex, opt WriterOptions) (*Writer, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.PageSize == 0 {
		opt.PageSize = DefaultPageSize
	}
	if opt.PageSize < MinPageSize || opt.PageSize > MaxPageSize {
		return nil, fmt.Errorf("domfile: invalid page size %d", opt.PageSize)
	}
	dataSize := opt.PageSize - pageHeaderSize
	if opt.OverflowThreshold <= 0 {
		opt.OverflowThreshold = dataSize / 4
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("domfile: %w", err)
	}
	return &Writer{
		f:         f,
		index:     index,
		logger:    opt.Logger,
		pageSize:  opt.PageSize,
		threshold: opt.OverflowThreshold,
		nextPage:  1,
	}, nil
}

func (w *Writer) dataSize() int {
	return w.pageSize - pageHeaderSize
}

// Begin starts the page chain of doc and returns its first page number.
func (w *Writer) Begin(doc xmlidx.DocID) (uint64, error) {
	if w.err != nil {
		return 0, w.err
	}
	if err := w.flushCurrent(); err != nil {
		return 0, err
	}
	w.doc = doc
	w.cur = w.newPage(0)
	return w.cur.num, nil
}

// BreakPage continues the current document on a fresh page.
func (w *Writer) BreakPage() error {
	if w.err != nil {
		return w.err
	}
	if w.cur == nil {
		return errors.New("domfile: BreakPage before Begin")
	}
	return w.chainPage()
}

// Add stores n as the next record of the current document.
func (w *Writer) Add(n *Node) (Address, error) {
	addr, err := w.addRecord(n, 0)
	if err != nil {
		return 0, err
	}
	w.refs = append(w.refs, NodeRef{Doc: w.doc, GID: n.GID, Address: addr})
	return addr, nil
}

// AddRelocated stores a record moved away from origin, which should hold a
// link stub pointing here. The node index keeps pointing at origin.
func (w *Writer) AddRelocated(n *Node, origin Address) (Address, error) {
	if origin == 0 {
		return 0, errors.New("domfile: relocated record needs an origin")
	}
	addr, err := w.addRecord(n, origin)
	if err != nil {
		return 0, err
	}
	w.refs = append(w.refs, NodeRef{Doc: w.doc, GID: n.GID, Address: origin})
	return addr, nil
}

// AddLink stores a link stub redirecting to target.
func (w *Writer) AddLink(target Address) (Address, error) {
	var slot [linkSize]byte
	binary.BigEndian.PutUint64(slot[2:], uint64(target))
	return w.addSlot(slot[:], tidLink)
}

func (w *Writer) addRecord(n *Node, origin Address) (Address, error) {
	if w.err != nil {
		return 0, w.err
	}
	payload, err := encodeNode(n)
	if err != nil {
		return 0, err
	}

	var overflow uint64
	if len(payload) > w.threshold || 4+8+len(payload) > w.dataSize() {
		overflow, err = w.writeOverflow(payload)
		if err != nil {
			return 0, w.fail(err)
		}
	}

	slot := make([]byte, 4, 4+8+max(8, len(payload)))
	var flags uint16
	if origin != 0 {
		flags |= tidRelocated
		slot = binary.BigEndian.AppendUint64(slot, uint64(origin))
	}
	if overflow != 0 {
		binary.BigEndian.PutUint16(slot[2:], overflowSentinel)
		slot = binary.BigEndian.AppendUint64(slot, overflow)
	} else {
		binary.BigEndian.PutUint16(slot[2:], uint16(len(payload)))
		slot = append(slot, payload...)
	}
	return w.addSlot(slot, flags)
}

// addSlot places slot, whose first two bytes are reserved for the TID, on
// the current page, starting a new page of the chain when it does not fit.
func (w *Writer) addSlot(slot []byte, flags uint16) (Address, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.cur == nil {
		return 0, errors.New("domfile: record added before Begin")
	}
	if len(slot) > w.dataSize() {
		return 0, fmt.Errorf("domfile: slot of %d bytes exceeds page data size %d", len(slot), w.dataSize())
	}
	if w.cur.used+len(slot) > w.dataSize() || w.cur.nextTID > MaxTID {
		if err := w.chainPage(); err != nil {
			return 0, err
		}
	}
	p := w.cur
	tid := p.nextTID
	p.nextTID++
	binary.BigEndian.PutUint16(slot, tid|flags)
	copy(p.buf[pageHeaderSize+p.used:], slot)
	p.used += len(slot)
	return MakeAddress(p.num, tid), nil
}

func (w *Writer) newPage(prev uint64) *pageBuf {
	p := &pageBuf{
		num:     w.nextPage,
		prev:    prev,
		nextTID: 1,
		buf:     make([]byte, w.pageSize),
	}
	w.nextPage++
	return p
}

func (w *Writer) chainPage() error {
	next := w.newPage(w.cur.num)
	w.cur.next = next.num
	if err := w.flushCurrent(); err != nil {
		return err
	}
	w.cur = next
	return nil
}

func (w *Writer) flushCurrent() error {
	p := w.cur
	if p == nil {
		return nil
	}
	encodePageHeader(p.buf, PageData, p.used, p.nextTID, p.next, p.prev)
	if err := w.writePage(p.num, p.buf); err != nil {
		return w.fail(err)
	}
	w.cur = nil
	return nil
}

// writeOverflow stores value in a chain of overflow pages and returns the
// first page number.
func (w *Writer) writeOverflow(value []byte) (uint64, error) {
	dataSize := w.dataSize()
	count := (len(value) + dataSize - 1) / dataSize
	first := w.nextPage
	w.nextPage += uint64(count)

	buf := make([]byte, w.pageSize)
	for i := range count {
		chunk := value[i*dataSize : min((i+1)*dataSize, len(value))]
		clear(buf)
		copy(buf[pageHeaderSize:], chunk)
		num := first + uint64(i)
		var next, prev uint64
		if i+1 < count {
			next = num + 1
		}
		if i > 0 {
			prev = num - 1
		}
		encodePageHeader(buf, PageOverflow, len(chunk), 0, next, prev)
		if err := w.writePage(num, buf); err != nil {
			return 0, err
		}
	}
	return first, nil
}

func (w *Writer) writePage(num uint64, buf []byte) error {
	_, err := w.f.WriteAt(buf, int64(num)*int64(w.pageSize))
	if err != nil {
		return fmt.Errorf("domfile: writing page %d: %w", num, err)
	}
	return nil
}

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return err
}

// Close writes the pending page and the file header, syncs the file and
// records node addresses in the node index.
func (w *Writer) Close() error {
	err := w.finish()
	if cerr := w.f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("domfile: %w", cerr)
	}
	return err
}

func (w *Writer) finish() error {
	if w.err != nil {
		return w.err
	}
	if err := w.flushCurrent(); err != nil {
		return err
	}
	header := make([]byte, w.pageSize)
	encodeFileHeader(header, fileHeader{pageSize: w.pageSize, pageCount: w.nextPage})
	if err := w.writePage(0, header); err != nil {
		return err
	}
	if err := mmap.Fdatasync(w.f, nil); err != nil {
		return fmt.Errorf("domfile: sync: %w", err)
	}
	if w.index != nil {
		if err := w.index.PutAll(w.refs); err != nil {
			return err
		}
	}
	w.logger.Debug("domfile: page file written", "path", w.f.Name(), "pages", w.nextPage, "nodes", len(w.refs))
	return nil
}
