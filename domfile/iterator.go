package domfile

import (
	"fmt"

	"github.com/andreyvit/xmlidx"
	"github.com/andreyvit/xmlidx/lock"
)

type iterPhase int

const (
	uninitialized iterPhase = iota
	positioned
	exhausted
)

// NodeIterator walks the records of one document in storage order, starting
// at a given node. Link stubs are skipped. An iterator is not safe for
// concurrent use, but any number of iterators may share a File.
//
// Structural corruption is logged and ends the iteration; Err reports it.
type NodeIterator struct {
	file  *File
	doc   xmlidx.DocID
	start Address
	gid   xmlidx.NodeID // resolved through the node index when start is 0

	phase   iterPhase
	page    *page
	offset  int
	hops    uint64 // pages followed since positioning
	current Address
	err     error
}

// NewIterator returns an iterator whose first Next returns the node at addr.
func (f *File) NewIterator(doc xmlidx.DocID, addr Address) *NodeIterator {
	return &NodeIterator{file: f, doc: doc, start: addr}
}

// NewIteratorAt is like NewIterator, but starts at a node reference. When
// the reference carries no address, it is looked up on first use.
func (f *File) NewIteratorAt(ref NodeRef) *NodeIterator {
	return &NodeIterator{file: f, doc: ref.Doc, start: ref.Address, gid: ref.GID}
}

func (it *NodeIterator) Doc() xmlidx.DocID {
	return it.doc
}

// Err returns the error that ended the iteration, if any.
func (it *NodeIterator) Err() error {
	return it.err
}

// CurrentAddress returns the address of the node last returned by Next.
func (it *NodeIterator) CurrentAddress() Address {
	return it.current
}

// HasNext reports whether Next would return a node.
func (it *NodeIterator) HasNext() bool {
	g, ok := it.acquire()
	if !ok {
		return false
	}
	defer g.Release()

	if it.phase == uninitialized && !it.position() {
		return false
	}
	if it.phase == exhausted {
		return false
	}
	return it.offset < it.page.dataLen() || it.page.next != 0
}

// Next returns the next node, or nil at the end of the document's chain or
// on error.
func (it *NodeIterator) Next() *Node {
	g, ok := it.acquire()
	if !ok {
		return nil
	}
	defer g.Release()

	if it.phase == uninitialized && !it.position() {
		return nil
	}
	for it.phase == positioned {
		if it.offset >= it.page.dataLen() {
			if it.page.next == 0 {
				it.phase = exhausted
				return nil
			}
			// a chain that visits more pages than the file has must loop
			it.hops++
			if it.page.next == it.page.num || it.hops >= it.file.pageCount {
				it.corrupted(fmt.Errorf("%w: page chain loops back from page %d to %d", ErrCorrupted, it.page.num, it.page.next))
				return nil
			}
			p, err := it.file.dataPage(it.page.next)
			if err != nil {
				it.corrupted(fmt.Errorf("following next page of %d: %w", it.page.num, err))
				return nil
			}
			it.page, it.offset = p, 0
			continue
		}

		rec, err := decodeRecord(it.page, it.offset)
		if err != nil {
			it.corrupted(err)
			return nil
		}
		it.offset = rec.end
		if rec.link {
			continue
		}
		n, err := it.file.readNode(it.page, &rec, it.doc)
		if err != nil {
			it.corrupted(err)
			return nil
		}
		it.current = n.Address
		it.file.metrics.NodesIterated.Inc()
		return n
	}
	return nil
}

// Remove is not supported: removing a record needs document bookkeeping
// that a bare iterator does not have.
func (it *NodeIterator) Remove() {
	panic("domfile: NodeIterator.Remove is not supported")
}

// SeekTo repositions the iterator so that the next node is the one at addr.
func (it *NodeIterator) SeekTo(addr Address) {
	it.reset(addr, 0)
}

// SeekToNode repositions the iterator at a node reference. A reference
// without a document stays within the current one.
func (it *NodeIterator) SeekToNode(ref NodeRef) {
	if ref.Doc != 0 {
		it.doc = ref.Doc
	}
	it.reset(ref.Address, ref.GID)
}

func (it *NodeIterator) reset(addr Address, gid xmlidx.NodeID) {
	it.start, it.gid = addr, gid
	it.phase = uninitialized
	it.page, it.offset = nil, 0
	it.hops = 0
	it.current = 0
	it.err = nil
}

func (it *NodeIterator) acquire() (*lock.Guard, bool) {
	if it.phase == exhausted {
		return nil, false
	}
	g, err := it.file.lock.Acquire(lock.Read, it.file.lockTimeout)
	if err != nil {
		it.file.logger.Error("domfile: iterator lock", "path", it.file.path, "err", err)
		it.err = err
		return nil, false
	}
	if it.file.mapping == nil {
		g.Release()
		it.err = ErrClosed
		it.phase = exhausted
		return nil, false
	}
	return g, true
}

// position resolves the start of the iteration. Called under the lock.
func (it *NodeIterator) position() bool {
	addr := it.start
	if addr == 0 {
		var err error
		addr, err = it.file.Lookup(it.doc, it.gid)
		if err != nil {
			it.fail(err)
			return false
		}
		it.start = addr
	}
	p, rec, err := it.file.findRecord(addr)
	if err != nil {
		it.fail(err)
		return false
	}
	it.page, it.offset = p, rec.off
	it.phase = positioned
	return true
}

func (it *NodeIterator) fail(err error) {
	it.file.logger.Warn("domfile: cannot position iterator", "path", it.file.path, "doc", it.doc, "start", it.start, "err", err)
	it.err = err
	it.phase = exhausted
}

func (it *NodeIterator) corrupted(err error) {
	it.file.logger.Error("domfile: broken page chain", "path", it.file.path, "doc", it.doc, "err", err)
	it.err = fmt.Errorf("domfile: document %d: %w", it.doc, err)
	it.phase = exhausted
}
