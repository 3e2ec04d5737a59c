// Package delivery sends file bodies: ranged, from the small-file cache,
// buffered into the cache, or streamed straight from disk.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"dirshare/internal/byterange"
	"dirshare/internal/filecache"
	"dirshare/internal/fsutil"
	"dirshare/internal/metrics"
	"dirshare/internal/mimetype"
)

// ErrStream reports a failure after the response headers were committed.
var ErrStream = errors.New("stream failed")

// DefaultChunkSize is the read size used when streaming large files.
const DefaultChunkSize = 8 << 10

// Strategy is the delivery path chosen for one request.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyRanged
	StrategyCached
	StrategyBuffered
	StrategyStreamed
)

func (s Strategy) String() string {
	switch s {
	case StrategyRanged:
		return "ranged"
	case StrategyCached:
		return "cached"
	case StrategyBuffered:
		return "buffered"
	case StrategyStreamed:
		return "streamed"
	default:
		return "none"
	}
}

// Result describes what Serve did.
type Result struct {
	Strategy Strategy
	Status   int   // 0 when nothing was written
	Bytes    int64 // body bytes written
}

// Options configures a Deliverer.
type Options struct {
	FS           fsutil.FileSystem
	Cache        *filecache.Cache
	MaxFileBytes int64 // files at or below this size go through Cache
	ChunkSize    int
}

// Deliverer owns the small-file cache and serves resolved files.
type Deliverer struct {
	fs        fsutil.FileSystem
	cache     *filecache.Cache
	maxCached int64
	chunkSize int
}

// New builds a Deliverer. Zero option values fall back to the defaults.
func New(opts Options) (*Deliverer, error) {
	if opts.Cache == nil {
		return nil, errors.New("delivery: cache is required")
	}
	d := &Deliverer{
		fs:        opts.FS,
		cache:     opts.Cache,
		maxCached: opts.MaxFileBytes,
		chunkSize: opts.ChunkSize,
	}
	if d.fs == nil {
		d.fs = fsutil.OS{}
	}
	if d.maxCached <= 0 {
		d.maxCached = filecache.DefaultMaxFileBytes
	}
	if d.chunkSize <= 0 {
		d.chunkSize = DefaultChunkSize
	}
	return d, nil
}

// Serve writes the file at abs to w. key is the client-visible request path
// and indexes the cache. An error with Result.Status == 0 means nothing was
// written and the caller owns the error response; otherwise the error wraps
// ErrStream and the response is already committed.
func (d *Deliverer) Serve(w http.ResponseWriter, r *http.Request, abs, key string) (Result, error) {
	res, err := d.serve(w, r, abs, key)
	metrics.RecordDelivery(res.Strategy.String(), err == nil, res.Bytes)
	return res, err
}

func (d *Deliverer) serve(w http.ResponseWriter, r *http.Request, abs, key string) (Result, error) {
	ctype := mimetype.ContentType(filepath.Base(abs))
	w.Header().Set("Accept-Ranges", "bytes")

	if rh := r.Header.Get("Range"); rh != "" {
		return d.serveRange(w, r, abs, rh, ctype)
	}

	if b, ok := d.cache.Get(key); ok {
		return d.writeBytes(w, r, StrategyCached, ctype, b)
	}

	info, err := d.fs.Stat(abs)
	if err != nil {
		return Result{Strategy: StrategyBuffered}, fsutil.Classify(err)
	}
	if info.Size() <= d.maxCached {
		b, ok, err := d.readSmall(abs)
		if err != nil {
			return Result{Strategy: StrategyBuffered}, err
		}
		if ok {
			d.cache.Put(key, b)
			return d.writeBytes(w, r, StrategyBuffered, ctype, b)
		}
		// grew past the threshold since Stat
		if info, err = d.fs.Stat(abs); err != nil {
			return Result{Strategy: StrategyStreamed}, fsutil.Classify(err)
		}
	}
	return d.serveStream(w, r, abs, info.Size(), ctype)
}

// readSmall reads abs whole, never more than maxCached+1 bytes. ok is false
// when the file turned out larger than maxCached.
func (d *Deliverer) readSmall(abs string) (b []byte, ok bool, err error) {
	f, err := d.fs.Open(abs)
	if err != nil {
		return nil, false, fsutil.Classify(err)
	}
	defer f.Close()
	b, err = io.ReadAll(io.LimitReader(f, d.maxCached+1))
	if err != nil {
		return nil, false, fmt.Errorf("read: %w", err)
	}
	if int64(len(b)) > d.maxCached {
		return nil, false, nil
	}
	return b, true, nil
}

func (d *Deliverer) serveRange(w http.ResponseWriter, r *http.Request, abs, header, ctype string) (Result, error) {
	res := Result{Strategy: StrategyRanged}
	f, err := d.fs.Open(abs)
	if err != nil {
		return res, fsutil.Classify(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return res, fsutil.Classify(err)
	}
	size := uint64(info.Size())

	rng, err := byterange.Parse(header, size)
	if err != nil {
		f.Close()
		if errors.Is(err, byterange.ErrUnsatisfiable) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		}
		return res, err
	}
	if _, err := f.Seek(int64(rng.Start), io.SeekStart); err != nil {
		f.Close()
		return res, fmt.Errorf("seek: %w", err)
	}
	body := byterange.NewLimitedReader(f, int64(rng.Len()))
	defer body.Close()

	h := w.Header()
	h.Set("Content-Type", ctype)
	h.Set("Content-Length", strconv.FormatUint(rng.Len(), 10))
	h.Set("Content-Range", rng.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	res.Status = http.StatusPartialContent
	if r.Method == http.MethodHead {
		return res, nil
	}
	res.Bytes, err = d.copyChunks(r.Context(), w, body, int64(rng.Len()))
	return res, err
}

func (d *Deliverer) serveStream(w http.ResponseWriter, r *http.Request, abs string, size int64, ctype string) (Result, error) {
	res := Result{Strategy: StrategyStreamed}
	f, err := d.fs.Open(abs)
	if err != nil {
		return res, fsutil.Classify(err)
	}
	// Bound the body to the advertised length even if the file grows.
	body := byterange.NewLimitedReader(f, size)
	defer body.Close()

	h := w.Header()
	h.Set("Content-Type", ctype)
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	res.Status = http.StatusOK
	if r.Method == http.MethodHead {
		return res, nil
	}
	res.Bytes, err = d.copyChunks(r.Context(), w, body, size)
	return res, err
}

func (d *Deliverer) writeBytes(w http.ResponseWriter, r *http.Request, s Strategy, ctype string, b []byte) (Result, error) {
	h := w.Header()
	h.Set("Content-Type", ctype)
	h.Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	res := Result{Strategy: s, Status: http.StatusOK}
	if r.Method == http.MethodHead {
		return res, nil
	}
	n, err := w.Write(b)
	res.Bytes = int64(n)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrStream, err)
	}
	return res, nil
}

// copyChunks copies src to w one chunk at a time, stopping as soon as the
// request context ends or a write fails. A body shorter than want is an error.
func (d *Deliverer) copyChunks(ctx context.Context, w io.Writer, src io.Reader, want int64) (int64, error) {
	buf := make([]byte, d.chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", ErrStream, err)
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, fmt.Errorf("%w: write: %w", ErrStream, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, fmt.Errorf("%w: read: %w", ErrStream, rerr)
		}
	}
	if written != want {
		return written, fmt.Errorf("%w: short body, %d of %d bytes", ErrStream, written, want)
	}
	return written, nil
}
