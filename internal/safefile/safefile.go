// Package safefile provides hardened file operations for the tailer, the
// config store and the pattern loader.
package safefile

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// ErrNotRegularFile is returned when a path names a symlink, FIFO, device,
// socket or directory.
var ErrNotRegularFile = errors.New("not a regular file")

// OpenRegular opens path for reading after checking that it is a regular file.
//
// The path is checked with Lstat first, so a symlink is rejected rather than
// followed, then the opened descriptor is checked again in case the file was
// swapped in between. A small window remains between the two checks since Go
// has no portable O_NOFOLLOW.
//
// The caller must close the returned file.
func OpenRegular(path string) (*os.File, os.FileInfo, error) {
	linkInfo, err := os.Lstat(path)
	if err != nil {
		return nil, nil, err
	}
	if !linkInfo.Mode().IsRegular() {
		return nil, nil, ErrNotRegularFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotRegularFile
	}

	return f, info, nil
}

// LineOffset scans the first size bytes of r and returns the number of
// complete lines together with the byte offset just past the last newline.
// A trailing partial line is neither counted nor included in offset, so a
// reader that resumes at offset sees it once it is finished.
func LineOffset(r io.Reader, size int64) (lines, offset int64, err error) {
	br := bufio.NewReaderSize(io.LimitReader(r, size), 64*1024)
	buf := make([]byte, 64*1024)
	var pos int64
	for {
		n, rerr := br.Read(buf)
		chunk := buf[:n]
		for len(chunk) > 0 {
			i := bytes.IndexByte(chunk, '\n')
			if i < 0 {
				pos += int64(len(chunk))
				break
			}
			lines++
			pos += int64(i + 1)
			offset = pos
			chunk = chunk[i+1:]
		}
		if rerr == io.EOF {
			return lines, offset, nil
		}
		if rerr != nil {
			return lines, offset, rerr
		}
	}
}

// WriteFileAtomic writes data to a temporary file in the same directory and
// renames it over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
