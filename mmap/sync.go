package mmap

import "os"

// Fdatasync flushes the data written to f to stable storage, skipping file
// metadata where the platform allows it. mapping is the region of f mapped
// by Open, or nil. It is currently ignored: shared mappings live in the page
// cache that syncing f flushes.
//
// A failed sync cannot be retried safely: the kernel may already have
// marked the dirty pages clean. Callers should treat the file as damaged.
func Fdatasync(f *os.File, mapping []byte) error {
	return fdatasync(f, mapping)
}
