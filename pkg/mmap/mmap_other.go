//go:build !linux && !darwin

package mmap

import "github.com/ajitpratap0/sdds/pkg/errors"

// Supported reports whether files can be mapped on this platform
const Supported = false

func mmap(int, int) ([]byte, error) {
	return nil, errors.New(errors.ErrorTypeTransport, "memory mapping is not supported on this platform")
}

func munmap([]byte) error { return nil }

func adviseSequential([]byte) error { return nil }
