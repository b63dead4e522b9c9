package xmlidx

import (
	"errors"
	"fmt"

	"github.com/andreyvit/xmlidx/lock"
)

var (
	// ErrLockUnavailable is returned when the index lock cannot be acquired.
	ErrLockUnavailable = lock.ErrUnavailable

	// ErrReadOnly is returned by mutating calls against a read-only index.
	ErrReadOnly = errors.New("value index is read-only")

	// ErrUnsupportedValue is returned when a value cannot be converted to the
	// requested type or cannot be used as an index key.
	ErrUnsupportedValue = errors.New("unsupported index value")

	// ErrCancelled is returned when a scan is terminated through its context.
	ErrCancelled = errors.New("index scan cancelled")

	// ErrKeyExists is returned when appending a posting segment for a document
	// that the stored value already holds a segment for.
	ErrKeyExists = errors.New("posting segment already exists for document")
)

// DataError reports malformed stored bytes: a key or a posting blob.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %d: %v: %v", e.Msg, e.Off, e.Err, hexBytes(e.Data))
	}
	return fmt.Sprintf("%s at %d: %v", e.Msg, e.Off, hexBytes(e.Data))
}

// DecodeError reports a stored key whose type tag is not recognized.
type DecodeError struct {
	Key []byte
	Tag byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unknown type tag %d in index key %s", e.Tag, hexBytes(e.Key))
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedValue, fmt.Sprintf(format, args...))
}
