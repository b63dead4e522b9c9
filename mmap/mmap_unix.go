//go:build unix

package mmap

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func mmap(f *os.File, size int, opt Options) ([]byte, error) {
	prot, flags := unix.PROT_READ, unix.MAP_SHARED
	if opt.Has(Writable) {
		prot |= unix.PROT_WRITE
	}
	if opt.Has(Prefault) {
		flags |= prefaultFlag
	}

	b, err := unix.Mmap(int(f.Fd()), 0, size, prot, flags)
	if err != nil {
		return nil, err
	}
	if advice, name := accessAdvice(opt); name != "" {
		// kernels without madvise still map the file fine
		if err := unix.Madvise(b, advice); err != nil && !errors.Is(err, unix.ENOSYS) {
			_ = unix.Munmap(b)
			return nil, fmt.Errorf("madvise(%s): %w", name, err)
		}
	}
	return b, nil
}

func accessAdvice(opt Options) (int, string) {
	switch {
	case opt.Has(SequentialAccess):
		return unix.MADV_SEQUENTIAL, "MADV_SEQUENTIAL"
	case opt.Has(RandomAccess):
		return unix.MADV_RANDOM, "MADV_RANDOM"
	default:
		return 0, ""
	}
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
