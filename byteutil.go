package xmlidx

import (
	"encoding/binary"
)

// skipUvarints advances over n uvarints starting at off without decoding them.
// Returns false if data ends before n terminating bytes are found.
func skipUvarints(data []byte, off, n int) (int, bool) {
	for n > 0 {
		if off >= len(data) {
			return off, false
		}
		if data[off] < 0x80 {
			n--
		}
		off++
	}
	return off, true
}

// byteDecoder reads big-endian fields off the front of Buf, reporting
// offsets relative to Orig.
type byteDecoder struct {
	Orig []byte
	Buf  []byte
}

func makeByteDecoder(buf []byte) byteDecoder {
	return byteDecoder{buf, buf}
}

func (d *byteDecoder) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *byteDecoder) Remaining() int {
	return len(d.Buf)
}

func (d *byteDecoder) Uint16() (uint16, error) {
	b, err := d.Raw(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *byteDecoder) Uint64() (uint64, error) {
	b, err := d.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *byteDecoder) Raw(n int) ([]byte, error) {
	if len(d.Buf) < n {
		return nil, dataErrf(d.Orig, d.Off(), nil, "not enough data: %d bytes remaining, %d wanted", len(d.Buf), n)
	}
	v := d.Buf[:n]
	d.Buf = d.Buf[n:]
	return v, nil
}
