package xmlidx

import (
	"bytes"
	"log/slog"
)

// RawRange is an ascending range of keys. The constructors use mnemonics:
// O means open, I means inclusive, E means exclusive; the first letter is for
// the lower bound, the second for the upper bound. A non-nil Prefix limits
// the range to keys starting with it.
type RawRange struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
}

func RawOO() RawRange                            { return RawRange{} }
func RawIO(l []byte) RawRange                    { return RawRange{Lower: l, LowerInc: true} }
func RawEO(l []byte) RawRange                    { return RawRange{Lower: l} }
func RawOI(u []byte) RawRange                    { return RawRange{Upper: u, UpperInc: true} }
func RawOE(u []byte) RawRange                    { return RawRange{Upper: u} }
func RawII(l, u []byte) RawRange                 { return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RawPrefix(p []byte) RawRange                { return RawRange{Prefix: p} }
func (rang RawRange) Prefixed(p []byte) RawRange { rang.Prefix = p; return rang }

// seekKey is where a scan of the range starts, or nil to start at the first
// key.
func (r *RawRange) seekKey() []byte {
	if r.Lower != nil {
		if r.Prefix != nil && !bytes.HasPrefix(r.Lower, r.Prefix) {
			panic("lower bound does not match prefix")
		}
		return r.Lower
	}
	return r.Prefix
}

// contains reports whether k, which is known to be at or past the start of
// the range, is still inside it.
func (r *RawRange) contains(k []byte) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		return false
	}
	if r.Upper != nil {
		switch bytes.Compare(k, r.Upper) {
		case 1:
			return false
		case 0:
			return r.UpperInc
		}
	}
	return true
}

// newCursor starts a walk of rang over kc. If trace is not nil, every cursor
// move is logged to it at debug level.
func (rang *RawRange) newCursor(kc keyCursor, trace *slog.Logger) *RawRangeCursor {
	return &RawRangeCursor{rang: *rang, kc: kc, trace: trace}
}

// RawRangeCursor walks the keys of a RawRange. Key and Value are only valid
// until the next call to Next and the end of the transaction.
type RawRangeCursor struct {
	rang    RawRange
	kc      keyCursor
	trace   *slog.Logger
	k, v    []byte
	started bool
	done    bool
}

func (c *RawRangeCursor) Next() bool {
	if c.done {
		return false
	}
	if c.started {
		c.k, c.v = c.kc.Next()
		c.log("next")
	} else {
		c.started = true
		c.first()
	}
	if c.k == nil || !c.rang.contains(c.k) {
		c.log("end of range")
		c.k, c.v, c.done = nil, nil, true
		return false
	}
	return true
}

func (c *RawRangeCursor) first() {
	seek := c.rang.seekKey()
	if seek == nil {
		c.k, c.v = c.kc.First()
		c.log("first")
		return
	}
	c.k, c.v = c.kc.Seek(seek)
	c.log("seek", hexAttr("to", seek))
	if !c.rang.LowerInc && c.rang.Lower != nil && bytes.Equal(c.k, c.rang.Lower) {
		c.k, c.v = c.kc.Next()
		c.log("skip excluded lower bound")
	}
}

func (c *RawRangeCursor) log(msg string, attrs ...any) {
	if c.trace != nil {
		c.trace.Debug("xmlidx: raw scan "+msg, append(attrs, hexAttr("key", c.k))...)
	}
}

func (c *RawRangeCursor) Key() []byte   { return c.k }
func (c *RawRangeCursor) Value() []byte { return c.v }
