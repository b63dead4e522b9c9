package xmlidx

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// Document is the part of the document catalog the index relies on.
type Document interface {
	ID() DocID
	CollectionID() CollectionID

	// Parent returns the parent gid of a node, or false for the root. A
	// parent's gid is always smaller than its children's.
	Parent(gid NodeID) (NodeID, bool)

	// TreeLevel returns the depth of a node, the root being level 0.
	TreeLevel(gid NodeID) int

	// ReindexRequired returns the first tree level that a whole-document
	// reindex rebuilds. Nodes above it keep their stored postings.
	ReindexRequired() int
}

// IsSelfOrDescendant reports whether gid is ancestor itself or lies below it.
func IsSelfOrDescendant(doc Document, ancestor, gid NodeID) bool {
	for {
		if gid == ancestor {
			return true
		}
		parent, ok := doc.Parent(gid)
		if !ok || parent >= gid {
			return false
		}
		gid = parent
	}
}

// DocumentSet restricts a query to a set of documents.
type DocumentSet interface {
	// Doc returns nil if the document is not part of the set.
	Doc(id DocID) Document

	// CollectionIDs lists the collections to scan, in ascending order.
	CollectionIDs() []CollectionID
}

// ContextSet restricts query results to nodes below (or equal to) the nodes
// of the set.
type ContextSet interface {
	ContainsDoc(doc DocID) bool

	// SizeHint estimates how many result nodes a document will contribute,
	// -1 if unknown.
	SizeHint(doc DocID) int

	// ParentWithChild returns the node of the set that is gid itself or its
	// nearest ancestor.
	ParentWithChild(doc Document, gid NodeID) (NodeProxy, bool)
}

// NodeProxy references a node by document and gid.
type NodeProxy struct {
	Doc DocID
	GID NodeID
}

func compareProxies(a, b NodeProxy) int {
	if c := cmp.Compare(a.Doc, b.Doc); c != 0 {
		return c
	}
	return cmp.Compare(a.GID, b.GID)
}

// DocSet is a DocumentSet over an explicit list of documents.
type DocSet struct {
	ids  *roaring.Bitmap
	docs map[DocID]Document
	cids []CollectionID
}

func NewDocSet(docs ...Document) *DocSet {
	s := &DocSet{
		ids:  roaring.New(),
		docs: make(map[DocID]Document, len(docs)),
	}
	for _, doc := range docs {
		s.Add(doc)
	}
	return s
}

func (s *DocSet) Add(doc Document) {
	s.ids.Add(uint32(doc.ID()))
	s.docs[doc.ID()] = doc
	cid := doc.CollectionID()
	if i, found := slices.BinarySearch(s.cids, cid); !found {
		s.cids = slices.Insert(s.cids, i, cid)
	}
}

func (s *DocSet) Doc(id DocID) Document {
	if !s.ids.Contains(uint32(id)) {
		return nil
	}
	return s.docs[id]
}

func (s *DocSet) CollectionIDs() []CollectionID {
	return s.cids
}

func (s *DocSet) Len() int {
	return int(s.ids.GetCardinality())
}

// IDs returns the ids of the documents in the set. The bitmap is shared.
func (s *DocSet) IDs() *roaring.Bitmap {
	return s.ids
}

// NodeSet accumulates query results. It sorts lazily, so even read methods
// must not be called concurrently.
type NodeSet struct {
	docs  map[DocID]*docNodes
	count int
}

type docNodes struct {
	ids    []NodeID
	sorted bool
}

func NewNodeSet() *NodeSet {
	return &NodeSet{docs: make(map[DocID]*docNodes)}
}

// Add adds a node. sizeHint, if positive, preallocates room for the
// document's nodes on its first addition.
func (s *NodeSet) Add(p NodeProxy, sizeHint int) {
	dn := s.docs[p.Doc]
	if dn == nil {
		dn = &docNodes{sorted: true}
		if sizeHint > 0 {
			dn.ids = make([]NodeID, 0, sizeHint)
		}
		s.docs[p.Doc] = dn
	}
	if n := len(dn.ids); n > 0 && dn.ids[n-1] >= p.GID {
		if dn.ids[n-1] == p.GID {
			return
		}
		dn.sorted = false
	}
	dn.ids = append(dn.ids, p.GID)
	s.count++
}

func (dn *docNodes) normalize() []NodeID {
	if !dn.sorted {
		dn.ids = sortNodeIDs(dn.ids)
		dn.sorted = true
	}
	return dn.ids
}

// Len returns the number of distinct nodes.
func (s *NodeSet) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, dn := range s.docs {
		n += len(dn.normalize())
	}
	s.count = n
	return n
}

func (s *NodeSet) Contains(p NodeProxy) bool {
	dn := s.docs[p.Doc]
	if dn == nil {
		return false
	}
	_, found := slices.BinarySearch(dn.normalize(), p.GID)
	return found
}

// Nodes returns all nodes ordered by document, then gid.
func (s *NodeSet) Nodes() []NodeProxy {
	if s == nil {
		return nil
	}
	result := make([]NodeProxy, 0, s.count)
	for doc, dn := range s.docs {
		for _, gid := range dn.normalize() {
			result = append(result, NodeProxy{doc, gid})
		}
	}
	slices.SortFunc(result, compareProxies)
	return result
}

// DocIDs returns the documents that have at least one node in the set.
func (s *NodeSet) DocIDs() *roaring.Bitmap {
	bm := roaring.New()
	for doc := range s.docs {
		bm.Add(uint32(doc))
	}
	return bm
}

func (s *NodeSet) ContainsDoc(doc DocID) bool {
	return s.docs[doc] != nil
}

func (s *NodeSet) SizeHint(doc DocID) int {
	dn := s.docs[doc]
	if dn == nil {
		return -1
	}
	return len(dn.ids)
}

func (s *NodeSet) ParentWithChild(doc Document, gid NodeID) (NodeProxy, bool) {
	dn := s.docs[doc.ID()]
	if dn == nil {
		return NodeProxy{}, false
	}
	ids := dn.normalize()
	for {
		if _, found := slices.BinarySearch(ids, gid); found {
			return NodeProxy{doc.ID(), gid}, true
		}
		parent, ok := doc.Parent(gid)
		if !ok || parent >= gid {
			return NodeProxy{}, false
		}
		gid = parent
	}
}
