package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

func TestReader(t *testing.T) {
	if !Supported {
		t.Skip("memory mapping not supported")
	}
	path := filepath.Join(t.TempDir(), "data.sdds")
	content := []byte("SDDS1\n&data mode=ascii &end\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), r.Size())
	assert.Equal(t, content, r.Bytes())

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = r.Seek(6, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "&data", string(buf))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Open(empty)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}
