package domfile

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// File header (page 0):
//
//	magic:8 version:16 pageSize:32 pageCount:64 checksum:64
//
// Every other page starts with a pageHeaderSize header:
//
//	type:8 flags:8 dataLen:16 nextTID:16 reserved:16 next:64 prev:64 checksum:64
//
// next and prev chain data pages of a document in storage order, and
// overflow pages of one value. Page number 0 means "no page". The checksum
// covers the data area, i.e. dataLen bytes following the header.
const (
	fileMagic      = "XMLIDXDF"
	fileVersion    = 1
	fileHeaderSize = 30

	pageHeaderSize = 32

	MinPageSize     = 512
	MaxPageSize     = 1 << 16
	DefaultPageSize = 4096
)

type PageType uint8

const (
	PageData     PageType = 1
	PageOverflow PageType = 2
)

func (t PageType) String() string {
	switch t {
	case PageData:
		return "data"
	case PageOverflow:
		return "overflow"
	default:
		return fmt.Sprintf("pagetype(%d)", uint8(t))
	}
}

// Slot descriptors (TIDs) carry two flags in their top bits.
const (
	tidLink      uint16 = 0x8000
	tidRelocated uint16 = 0x4000
	tidMask      uint16 = 0x3FFF

	// MaxTID is the largest slot id a page can assign.
	MaxTID = tidMask

	// overflowSentinel in the length field means the payload lives in an
	// overflow chain whose first page number follows.
	overflowSentinel = 0

	linkSize = 2 + 8
)

// Address locates a record by page number and slot id.
type Address uint64

func MakeAddress(page uint64, tid uint16) Address {
	return Address(page<<16 | uint64(tid&tidMask))
}

func (a Address) Page() uint64 { return uint64(a) >> 16 }
func (a Address) TID() uint16  { return uint16(a) & tidMask }

func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.Page(), a.TID())
}

type fileHeader struct {
	pageSize  int
	pageCount uint64
}

func encodeFileHeader(buf []byte, h fileHeader) {
	copy(buf, fileMagic)
	binary.BigEndian.PutUint16(buf[8:], fileVersion)
	binary.BigEndian.PutUint32(buf[10:], uint32(h.pageSize))
	binary.BigEndian.PutUint64(buf[14:], h.pageCount)
	binary.BigEndian.PutUint64(buf[22:], xxhash.Sum64(buf[:22]))
}

func decodeFileHeader(buf []byte) (fileHeader, error) {
	if len(buf) < fileHeaderSize || string(buf[:8]) != fileMagic {
		return fileHeader{}, fmt.Errorf("%w: bad magic", ErrCorrupted)
	}
	if v := binary.BigEndian.Uint16(buf[8:]); v != fileVersion {
		return fileHeader{}, fmt.Errorf("unsupported page file version %d", v)
	}
	if xxhash.Sum64(buf[:22]) != binary.BigEndian.Uint64(buf[22:]) {
		return fileHeader{}, fmt.Errorf("%w: file header checksum mismatch", ErrCorrupted)
	}
	h := fileHeader{
		pageSize:  int(binary.BigEndian.Uint32(buf[10:])),
		pageCount: binary.BigEndian.Uint64(buf[14:]),
	}
	if h.pageSize < MinPageSize || h.pageSize > MaxPageSize {
		return fileHeader{}, fmt.Errorf("%w: invalid page size %d", ErrCorrupted, h.pageSize)
	}
	return h, nil
}

// page is a view of one page inside the mapping.
type page struct {
	num     uint64
	typ     PageType
	nextTID uint16
	next    uint64
	prev    uint64
	data    []byte
}

func (p *page) dataLen() int {
	return len(p.data)
}

func decodePage(num uint64, buf []byte) (*page, error) {
	typ := PageType(buf[0])
	if typ != PageData && typ != PageOverflow {
		return nil, fmt.Errorf("%w: page %d has type %d", ErrCorrupted, num, buf[0])
	}
	n := int(binary.BigEndian.Uint16(buf[2:]))
	if n > len(buf)-pageHeaderSize {
		return nil, fmt.Errorf("%w: page %d data length %d exceeds page", ErrCorrupted, num, n)
	}
	data := buf[pageHeaderSize : pageHeaderSize+n]
	if xxhash.Sum64(data) != binary.BigEndian.Uint64(buf[24:]) {
		return nil, fmt.Errorf("%w: page %d checksum mismatch", ErrCorrupted, num)
	}
	return &page{
		num:     num,
		typ:     typ,
		nextTID: binary.BigEndian.Uint16(buf[4:]),
		next:    binary.BigEndian.Uint64(buf[8:]),
		prev:    binary.BigEndian.Uint64(buf[16:]),
		data:    data,
	}, nil
}

// encodePageHeader fills in the header of buf, whose data area must already
// hold n bytes.
func encodePageHeader(buf []byte, typ PageType, n int, nextTID uint16, next, prev uint64) {
	buf[0] = byte(typ)
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:], uint16(n))
	binary.BigEndian.PutUint16(buf[4:], nextTID)
	binary.BigEndian.PutUint16(buf[6:], 0)
	binary.BigEndian.PutUint64(buf[8:], next)
	binary.BigEndian.PutUint64(buf[16:], prev)
	binary.BigEndian.PutUint64(buf[24:], xxhash.Sum64(buf[pageHeaderSize:pageHeaderSize+n]))
}

// record is a decoded slot of a data page.
type record struct {
	tid uint16
	off int // start of the slot descriptor
	end int

	link   bool
	target Address // link only

	origin   Address // relocated records only
	overflow uint64
	payload  []byte
}

func (r *record) relocated() bool {
	return r.origin != 0
}

// decodeRecord decodes the slot starting at off.
func decodeRecord(p *page, off int) (record, error) {
	data := p.data
	if off+2 > len(data) {
		return record{}, fmt.Errorf("%w: page %d truncated slot at %d", ErrCorrupted, p.num, off)
	}
	rawTID := binary.BigEndian.Uint16(data[off:])
	rec := record{tid: rawTID & tidMask, off: off}
	pos := off + 2

	if rawTID&tidLink != 0 {
		if pos+8 > len(data) {
			return record{}, fmt.Errorf("%w: page %d truncated link at %d", ErrCorrupted, p.num, off)
		}
		rec.link = true
		rec.target = Address(binary.BigEndian.Uint64(data[pos:]))
		rec.end = pos + 8
		return rec, nil
	}

	if pos+2 > len(data) {
		return record{}, fmt.Errorf("%w: page %d truncated length at %d", ErrCorrupted, p.num, off)
	}
	n := int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2
	if rawTID&tidRelocated != 0 {
		if pos+8 > len(data) {
			return record{}, fmt.Errorf("%w: page %d truncated back pointer at %d", ErrCorrupted, p.num, off)
		}
		rec.origin = Address(binary.BigEndian.Uint64(data[pos:]))
		pos += 8
	}
	if n == overflowSentinel {
		if pos+8 > len(data) {
			return record{}, fmt.Errorf("%w: page %d truncated overflow pointer at %d", ErrCorrupted, p.num, off)
		}
		rec.overflow = binary.BigEndian.Uint64(data[pos:])
		rec.end = pos + 8
		return rec, nil
	}
	if pos+n > len(data) {
		return record{}, fmt.Errorf("%w: page %d record at %d overruns the page", ErrCorrupted, p.num, off)
	}
	rec.payload = data[pos : pos+n]
	rec.end = pos + n
	return rec, nil
}
