//go:build !windows

package safefile

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRegular_RejectsFIFO(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "Combat.log")
	require.NoError(t, syscall.Mkfifo(fifo, 0o644))

	_, _, err := OpenRegular(fifo)
	assert.ErrorIs(t, err, ErrNotRegularFile)
}

func TestWriteFileAtomic_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, WriteFileAtomic(path, []byte("x: 1\n"), 0o600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
