package mmap

import (
	"os"
	"syscall"
	"unsafe"
)

func mmap(f *os.File, size int, opt Options) ([]byte, error) {
	prot, access := uint32(syscall.PAGE_READONLY), uint32(syscall.FILE_MAP_READ)
	if opt.Has(Writable) {
		prot, access = syscall.PAGE_READWRITE, syscall.FILE_MAP_WRITE
	}
	// Access hints and prefaulting have no equivalent here.

	// A zero maximum size maps the file at its current length, which must
	// already cover size.
	h, err := syscall.CreateFileMapping(syscall.Handle(f.Fd()), nil, prot, 0, 0, nil)
	if h == 0 {
		return nil, os.NewSyscallError("CreateFileMapping", err)
	}
	defer syscall.CloseHandle(h)

	addr, err := syscall.MapViewOfFile(h, access, 0, 0, uintptr(size))
	if addr == 0 {
		return nil, os.NewSyscallError("MapViewOfFile", err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func munmap(b []byte) error {
	if err := syscall.UnmapViewOfFile(uintptr(unsafe.Pointer(&b[0]))); err != nil {
		return os.NewSyscallError("UnmapViewOfFile", err)
	}
	return nil
}
