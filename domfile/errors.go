package domfile

import (
	"errors"

	"github.com/andreyvit/xmlidx/lock"
)

var (
	// ErrCorrupted reports a structural problem in the page file: a bad
	// checksum, a broken page chain or a record overrunning its page.
	ErrCorrupted = errors.New("page file corrupted")

	// ErrNodeNotFound is returned when a node reference cannot be resolved
	// to a record.
	ErrNodeNotFound = errors.New("node not found")

	ErrLockUnavailable = lock.ErrUnavailable

	ErrClosed = errors.New("page file closed")
)
