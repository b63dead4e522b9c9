package xmlidx

import (
	"encoding/binary"
	"fmt"
	"iter"
	"slices"
)

type (
	DocID        uint32
	CollectionID uint16

	// NodeID (gid) is a node's position in its document's structural numbering.
	NodeID uint64
)

// Stored value layout, repeated once per document:
//
//	docID:32 count:32 (delta:uvarint){count}
//
// Deltas are taken against the previous id of the segment; the first one
// against zero.
const segmentHeaderLen = 8

// EncodeSegment appends a posting segment to buf. ids must be strictly
// ascending.
func EncodeSegment(buf []byte, doc DocID, ids []NodeID) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(doc))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(ids)))
	var prev NodeID
	for i, id := range ids {
		if i > 0 && id <= prev {
			panic(fmt.Errorf("EncodeSegment: ids not strictly ascending at %d: %d after %d", i, id, prev))
		}
		buf = binary.AppendUvarint(buf, uint64(id-prev))
		prev = id
	}
	return buf
}

// sortNodeIDs sorts ids in place and drops duplicates.
func sortNodeIDs(ids []NodeID) []NodeID {
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Segment is a fully decoded posting segment.
type Segment struct {
	Doc DocID
	IDs []NodeID
}

// DecodeSegments decodes every complete segment of a stored value. A
// truncated tail ends the stream without an error.
func DecodeSegments(data []byte) []Segment {
	var result []Segment
	r := NewPostingReader(data)
	for r.NextSegment() {
		seg := Segment{Doc: r.Doc(), IDs: make([]NodeID, 0, r.Count())}
		for id := range r.IDs() {
			seg.IDs = append(seg.IDs, id)
		}
		if len(seg.IDs) != r.Count() {
			break
		}
		result = append(result, seg)
	}
	return result
}

// PostingReader lazily walks the segments of a stored value. Ids of the
// current segment are decoded on demand; NextSegment skips whatever has not
// been read.
type PostingReader struct {
	data      []byte
	off       int
	segStart  int
	doc       DocID
	count     int
	left      int
	last      NodeID
	truncated bool
	done      bool
}

func NewPostingReader(data []byte) *PostingReader {
	return &PostingReader{data: data}
}

// NextSegment positions the reader at the next segment header. Returns false
// at the end of data or when the remaining bytes cannot hold the segment.
func (r *PostingReader) NextSegment() bool {
	if r.done {
		return false
	}
	if r.left > 0 && !r.SkipIDs() {
		return false
	}
	rem := len(r.data) - r.off
	if rem == 0 {
		r.done = true
		return false
	}
	if rem < segmentHeaderLen {
		r.truncated, r.done = true, true
		return false
	}
	r.segStart = r.off
	doc := binary.BigEndian.Uint32(r.data[r.off:])
	count := binary.BigEndian.Uint32(r.data[r.off+4:])
	r.off += segmentHeaderLen
	// every delta takes at least one byte
	if uint64(count) > uint64(len(r.data)-r.off) {
		r.truncated, r.done = true, true
		return false
	}
	r.doc, r.count, r.left, r.last = DocID(doc), int(count), int(count), 0
	return true
}

func (r *PostingReader) Doc() DocID {
	return r.doc
}

// Count returns the declared number of ids in the current segment.
func (r *PostingReader) Count() int {
	return r.count
}

// Truncated reports whether decoding stopped on an incomplete segment.
func (r *PostingReader) Truncated() bool {
	return r.truncated
}

// NextID returns the next absolute id of the current segment.
func (r *PostingReader) NextID() (NodeID, bool) {
	if r.left == 0 || r.done {
		return 0, false
	}
	delta, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		r.truncated, r.done = true, true
		return 0, false
	}
	r.off += n
	r.left--
	r.last += NodeID(delta)
	return r.last, true
}

// IDs yields the remaining ids of the current segment.
func (r *PostingReader) IDs() iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		for {
			id, ok := r.NextID()
			if !ok || !yield(id) {
				return
			}
		}
	}
}

// SkipIDs moves past the unread ids of the current segment without
// reconstructing them.
func (r *PostingReader) SkipIDs() bool {
	if r.left == 0 {
		return !r.done
	}
	off, ok := skipUvarints(r.data, r.off, r.left)
	if !ok {
		r.truncated, r.done = true, true
		return false
	}
	r.off, r.left = off, 0
	return true
}

// AppendRawSegment skips the rest of the current segment and appends its
// encoded bytes to buf unchanged. Must be called before any id is read.
func (r *PostingReader) AppendRawSegment(buf []byte) ([]byte, bool) {
	if r.left != r.count {
		panic("AppendRawSegment after reading ids")
	}
	if !r.SkipIDs() {
		return buf, false
	}
	return append(buf, r.data[r.segStart:r.off]...), true
}

// hasSegmentFor reports whether a stored value holds a segment for doc.
func hasSegmentFor(data []byte, doc DocID) bool {
	r := NewPostingReader(data)
	for r.NextSegment() {
		if r.Doc() == doc {
			return true
		}
	}
	return false
}
