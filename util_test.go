package xmlidx

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHexBytes(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{nil, "<nil>"},
		{[]byte{}, "<empty>"},
		{[]byte{0xAA, 0xBB}, "aabb"},
	}
	for _, tt := range tests {
		if got := hexBytes(tt.in).String(); got != tt.want {
			t.Errorf("hexBytes(%v) = %q, wanted %q", tt.in, got, tt.want)
		}
	}

	long := bytes.Repeat([]byte{0x01}, 200)
	long[199] = 0xFF
	s := hexBytes(long).String()
	if !strings.Contains(s, "...") || !strings.HasSuffix(s, "ff (200 bytes)") || len(s) > 2*(hexHead+hexTail)+20 {
		t.Errorf("long value printed as %q", s)
	}
}

func TestHexAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("scan", hexAttr("key", []byte{0x00, 0x01, 0x00}))
	if !strings.Contains(buf.String(), "key=000100") {
		t.Errorf("log line = %q", buf.String())
	}
}
