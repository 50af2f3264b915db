//go:build linux || darwin

package mmap

import (
	"golang.org/x/sys/unix"
)

// Supported reports whether files can be mapped on this platform
const Supported = true

// mmap maps length bytes of fd read-only
func mmap(fd int, length int) ([]byte, error) {
	return unix.Mmap(fd, 0, length, unix.PROT_READ, unix.MAP_SHARED)
}

// munmap wraps the munmap system call
func munmap(b []byte) error {
	return unix.Munmap(b)
}

// adviseSequential tells the kernel pages are read front to back
func adviseSequential(b []byte) error {
	return unix.Madvise(b, unix.MADV_SEQUENTIAL)
}
