// Package mmap maps page files into memory so that pages can be read without
// copying them out of the OS page cache.
package mmap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

var ErrEmptyFile = errors.New("cannot map an empty file")

// MaxSize is the largest file Open will map: 2 GiB on 32-bit platforms and
// 256 TiB, the usual user address space, on 64-bit ones.
const MaxSize = 1<<(min(strconv.IntSize, 49)-1) - 1

type Options uint

const (
	// Writable opens the file for writing (otherwise, it's opened read-only).
	Writable Options = 1 << 0

	// SequentialAccess is a hint requesting aggressive read-ahead.
	// Incompatible with RandomAccess. Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 1

	// RandomAccess is a hint that read ahead is less useful than normally.
	// Incompatible with SequentialAccess. Maps to MADV_RANDOM on Unix.
	RandomAccess Options = 1 << 2

	// Prefault is a hint requesting the entire file to be loaded in memory
	// for fastest access. Maps to MAP_POPULATE on Linux.
	Prefault Options = 1 << 3
)

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Mmap maps size bytes of the given file starting at offset.
func Mmap(f *os.File, offset, size int, opt Options) ([]byte, error) {
	if offset != 0 {
		panic("non-zero offset not yet supported")
	}
	return mmap(f, size, opt)
}

// Munmap unmaps the given slice from memory. The slice must have been returned
// by Mmap.
func Munmap(b []byte) error {
	return munmap(b)
}

// Mapping is a whole file mapped into memory.
type Mapping struct {
	f    *os.File
	data []byte
}

// Open maps the entire file at path. The file must not be empty.
func Open(path string, opt Options) (*Mapping, error) {
	flag := os.O_RDONLY
	if opt.Has(Writable) {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	if size > MaxSize {
		f.Close()
		return nil, fmt.Errorf("%s: size %d exceeds max mmap size %d", path, size, int64(MaxSize))
	}
	data, err := Mmap(f, 0, int(size), opt)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &Mapping{f: f, data: data}, nil
}

// Bytes returns the mapped memory. It is only valid until Close.
func (m *Mapping) Bytes() []byte {
	return m.data
}

func (m *Mapping) Len() int {
	return len(m.data)
}

func (m *Mapping) Sync() error {
	return Fdatasync(m.f, m.data)
}

func (m *Mapping) Close() error {
	var err error
	if m.data != nil {
		err = Munmap(m.data)
		m.data = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
