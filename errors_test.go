package xmlidx

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError(t *testing.T) {
	inner := errors.New("inner")
	err := dataErrf([]byte{0xAA, 0xBB}, 1, inner, "bad posting")
	var de *DataError
	if !errors.As(err, &de) || de.Off != 1 {
		t.Fatalf("err = %T %v, wanted *DataError at 1", err, err)
	}
	if !errors.Is(err, inner) {
		t.Errorf("DataError does not unwrap to its cause")
	}
	if got, want := err.Error(), "bad posting at 1: inner: aabb"; got != want {
		t.Errorf("Error() = %q, wanted %q", got, want)
	}

	err = dataErrf(nil, 0, nil, "empty key")
	if got, want := err.Error(), "empty key at 0: <nil>"; got != want {
		t.Errorf("Error() = %q, wanted %q", got, want)
	}
}

func TestDecodeError(t *testing.T) {
	_, _, err := DeserializeKey([]byte{0, 1, 99, 'x'})
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %T %v, wanted *DecodeError", err, err)
	}
	if de.Tag != 99 || !strings.Contains(err.Error(), "00016378") {
		t.Fatalf("err = %v", err)
	}
}

func TestUnsupportedf(t *testing.T) {
	err := unsupportedf("cannot convert %q to %v", "abc", TypeInteger)
	if !errors.Is(err, ErrUnsupportedValue) || !strings.HasSuffix(err.Error(), `cannot convert "abc" to integer`) {
		t.Fatalf("err = %v", err)
	}
}
