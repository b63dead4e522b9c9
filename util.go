package xmlidx

import (
	"encoding/hex"
	"fmt"
	"log/slog"
)

// hexBytes prints keys and posting blobs in logs and errors. Long values
// keep their head and tail and report the full length.
type hexBytes []byte

const (
	hexHead = 64
	hexTail = 32
)

func (b hexBytes) String() string {
	switch {
	case b == nil:
		return "<nil>"
	case len(b) == 0:
		return "<empty>"
	case len(b) <= hexHead+hexTail:
		return hex.EncodeToString(b)
	default:
		return fmt.Sprintf("%x...%x (%d bytes)", []byte(b[:hexHead]), []byte(b[len(b)-hexTail:]), len(b))
	}
}

func (b hexBytes) LogValue() slog.Value {
	return slog.StringValue(b.String())
}

func hexAttr(key string, b []byte) slog.Attr {
	return slog.Any(key, hexBytes(b))
}
