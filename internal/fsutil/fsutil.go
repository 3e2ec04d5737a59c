// Package fsutil resolves client paths against the served root and provides
// the read-only filesystem view used by the request pipeline.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

var (
	ErrTraversal  = errors.New("path traversal rejected")
	ErrNotFound   = errors.New("path not found")
	ErrPermission = errors.New("permission denied")
)

// FileSystem is everything the pipeline needs from the disk. It never writes.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	Open(name string) (File, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	EvalSymlinks(name string) (string, error)
}

// File is an open, seekable file handle.
type File interface {
	io.ReadSeekCloser
	Stat() (fs.FileInfo, error)
}

// OS is the FileSystem backed by the host filesystem.
type OS struct{}

func (OS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OS) Open(name string) (File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (OS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (OS) EvalSymlinks(name string) (string, error)   { return filepath.EvalSymlinks(name) }

// CleanRelPath takes a user path like "", ".", "/a/b", "a//b", and returns a
// slash-based, no-leading-slash relative path ("" means root).
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p) // force absolute for stable cleaning
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// HasDotDot reports whether p contains a ".." segment, with either slash
// flavour as separator.
func HasDotDot(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// Within reports whether abs is root itself or lies beneath it.
func Within(root, abs string) bool {
	absClean := filepath.Clean(abs)
	rootClean := filepath.Clean(root)
	if absClean == rootClean {
		return true
	}
	if strings.HasSuffix(rootClean, string(filepath.Separator)) {
		return strings.HasPrefix(absClean, rootClean)
	}
	return strings.HasPrefix(absClean, rootClean+string(filepath.Separator))
}

// Resolved is a client path that passed every check.
type Resolved struct {
	Abs  string // canonical absolute path
	Rel  string // cleaned slash path, "" for the root
	Info fs.FileInfo
}

// Resolver confines client paths to a single root directory.
type Resolver struct {
	fsys FileSystem
	root string
}

// NewResolver canonicalizes root once; every later check compares against it.
func NewResolver(fsys FileSystem, root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs root: %w", err)
	}
	canon, err := fsys.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	st, err := fsys.Stat(canon)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", canon)
	}
	return &Resolver{fsys: fsys, root: canon}, nil
}

// Root returns the canonical root directory.
func (r *Resolver) Root() string { return r.root }

// Resolve maps a percent-decoded client path onto the root. The ".." check
// runs before any filesystem call.
func (r *Resolver) Resolve(p string) (Resolved, error) {
	if HasDotDot(p) || strings.Contains(p, "\x00") {
		return Resolved{}, ErrTraversal
	}
	rel := CleanRelPath(p)
	abs := r.root
	if rel != "" {
		abs = filepath.Join(r.root, filepath.FromSlash(rel))
	}

	info, err := r.fsys.Stat(abs)
	if err != nil {
		return Resolved{}, classify(rel, err)
	}
	canon, err := r.fsys.EvalSymlinks(abs)
	if err != nil {
		return Resolved{}, classify(rel, err)
	}
	if !Within(r.root, canon) {
		return Resolved{}, ErrTraversal
	}
	return Resolved{Abs: canon, Rel: rel, Info: info}, nil
}

// Classify maps a filesystem error onto the package sentinels where one fits.
func Classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	default:
		return err
	}
}

func classify(rel string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%w: /%s", ErrNotFound, rel)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: /%s", ErrPermission, rel)
	default:
		return err
	}
}
