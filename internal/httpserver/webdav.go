package httpserver

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/net/webdav"

	"dirshare/internal/fsutil"
	"dirshare/internal/logging"
)

// readOnlyFS exposes the served root over WebDAV. Every name is checked by
// the resolver first, so symlinks leaving the root stay unreachable, and
// every mutating call is refused.
type readOnlyFS struct {
	webdav.FileSystem
	resolver *fsutil.Resolver
}

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_TRUNC | os.O_APPEND

func (fs readOnlyFS) check(name string) error {
	_, err := fs.resolver.Resolve(name)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fsutil.ErrNotFound):
		return os.ErrNotExist
	case errors.Is(err, fsutil.ErrTraversal), errors.Is(err, fsutil.ErrPermission):
		return os.ErrPermission
	default:
		return err
	}
}

func (fs readOnlyFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&writeFlags != 0 {
		return nil, os.ErrPermission
	}
	if err := fs.check(name); err != nil {
		return nil, err
	}
	return fs.FileSystem.OpenFile(ctx, name, flag, perm)
}

func (fs readOnlyFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	if err := fs.check(name); err != nil {
		return nil, err
	}
	return fs.FileSystem.Stat(ctx, name)
}

func (readOnlyFS) Mkdir(context.Context, string, os.FileMode) error { return os.ErrPermission }
func (readOnlyFS) RemoveAll(context.Context, string) error          { return os.ErrPermission }
func (readOnlyFS) Rename(context.Context, string, string) error     { return os.ErrPermission }

func (s *Server) davHandler() http.Handler {
	dav := &webdav.Handler{
		Prefix: "/dav",
		FileSystem: readOnlyFS{
			FileSystem: webdav.Dir(s.resolver.Root()),
			resolver:   s.resolver,
		},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logging.WithContext(r.Context()).Debug("webdav", logging.String("method", r.Method), logging.Err(err))
			}
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, "PROPFIND":
			dav.ServeHTTP(w, r)
		default:
			w.Header().Set("Allow", "OPTIONS, GET, HEAD, PROPFIND")
			http.Error(w, "read-only", http.StatusMethodNotAllowed)
		}
	})
}
