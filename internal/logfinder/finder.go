// Package logfinder locates combat log files on disk.
package logfinder

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// TargetFileName is the file name the game client writes combat lines to.
	// Matching is case-insensitive.
	TargetFileName = "Combat.log"

	// BackupMarker is a path segment that marks rotated copies of the log.
	// Files below such a directory are never candidates.
	BackupMarker = "LogBackups"
)

// ErrNoHomeDir is returned by SearchRoots when the user's home directory
// cannot be determined.
var ErrNoHomeDir = errors.New("home directory not found")

// SearchRoots returns the directories to walk.
//
// With searchEverywhere the whole home directory is searched. Otherwise the
// Documents folder and its OneDrive counterpart are searched, whichever exist.
func SearchRoots(searchEverywhere bool) ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil, ErrNoHomeDir
	}
	return searchRoots(home, searchEverywhere), nil
}

func searchRoots(home string, searchEverywhere bool) []string {
	if searchEverywhere {
		return []string{home}
	}

	var roots []string
	for _, dir := range []string{
		filepath.Join(home, "Documents"),
		filepath.Join(home, "OneDrive", "Documents"),
	} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			roots = append(roots, dir)
		}
	}
	return roots
}

// globPattern matches TargetFileName at any depth, ignoring case.
var globPattern = "**/" + caseInsensitive(TargetFileName)

// globMeta lists the characters doublestar treats specially.
const globMeta = "*?[]{}\\"

// caseInsensitive turns every letter of name into a [xX] class.
func caseInsensitive(name string) string {
	var b strings.Builder
	for _, r := range name {
		lower, upper := unicode.ToLower(r), unicode.ToUpper(r)
		if lower == upper {
			if strings.ContainsRune(globMeta, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
			continue
		}
		b.WriteByte('[')
		b.WriteRune(upper)
		b.WriteRune(lower)
		b.WriteByte(']')
	}
	return b.String()
}

// Locate walks every root and returns the combat log files found, sorted and
// without duplicates.
//
// Unreadable directories are skipped and the walk carries on with their
// siblings, so Locate never fails. Cancelling ctx ends the walk early and
// returns what was found so far.
func Locate(ctx context.Context, roots []string) []string {
	seen := make(map[string]struct{})
	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		root = filepath.Clean(root)
		fsys := ctxFS{ctx: ctx, FS: os.DirFS(root)}

		// I/O errors are ignored unless WithFailOnIOErrors is given. Symlinks
		// are not followed so a link back up the tree cannot loop the walk.
		_ = doublestar.GlobWalk(fsys, globPattern, func(p string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			full := filepath.Join(root, filepath.FromSlash(p))
			if IsCandidate(full) {
				seen[full] = struct{}{}
			}
			return nil
		}, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// IsCandidate reports whether path names the combat log and does not live
// under a backup directory.
func IsCandidate(path string) bool {
	if !strings.EqualFold(filepath.Base(path), TargetFileName) {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == BackupMarker {
			return false
		}
	}
	return true
}

// ctxFS fails every directory read once ctx is done, which ends a GlobWalk
// quickly even when nothing matches.
type ctxFS struct {
	ctx context.Context
	fs.FS
}

func (c ctxFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadDir(c.FS, name)
}

func (c ctxFS) Stat(name string) (fs.FileInfo, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}
	return fs.Stat(c.FS, name)
}
