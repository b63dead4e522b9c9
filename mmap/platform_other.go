//go:build !linux

package mmap

import "os"

func fdatasync(f *os.File, _ []byte) error {
	return f.Sync()
}

// MAP_POPULATE is Linux-only; elsewhere Prefault is a no-op.
const prefaultFlag = 0
