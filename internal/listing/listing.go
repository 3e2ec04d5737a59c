// Package listing enumerates a single directory for the browse pages.
package listing

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"dirshare/internal/fsutil"
)

// ErrReadDir wraps every enumeration failure.
var ErrReadDir = errors.New("read directory failed")

// Entry is one row of a listing. Size is zero for directories.
type Entry struct {
	Name  string
	Path  string // prefix-joined URL path, used to build the next link
	Size  uint64
	IsDir bool
}

// List reads dir one level deep and returns its folders and files, each
// sorted by byte-wise name. prefix is the URL path the entries live under
// ("" for the root). Any failure discards the partial result.
func List(fsys fsutil.FileSystem, dir, prefix string) (folders, files []Entry, err error) {
	ents, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrReadDir, err)
	}
	prefix = strings.Trim(prefix, "/")

	folders = make([]Entry, 0, len(ents))
	files = make([]Entry, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		// Stat rather than e.Info() so symlinked directories list as folders.
		info, err := fsys.Stat(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			// dangling symlink: list the link itself
			info, err = e.Info()
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: stat %s: %w", ErrReadDir, name, err)
		}
		it := Entry{Name: name, Path: joinRel(prefix, name), IsDir: info.IsDir()}
		if it.IsDir {
			folders = append(folders, it)
			continue
		}
		if sz := info.Size(); sz > 0 {
			it.Size = uint64(sz)
		}
		files = append(files, it)
	}
	sortByName(folders)
	sortByName(files)
	return folders, files, nil
}

func sortByName(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].Name < es[j].Name })
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// FormatSize renders a byte count the way the listing page shows it.
func FormatSize(size uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case size < kb:
		return fmt.Sprintf("%d B", size)
	case size < mb:
		return fmt.Sprintf("%.1f KB", float64(size)/kb)
	case size < gb:
		return fmt.Sprintf("%.1f MB", float64(size)/mb)
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/gb)
	}
}
