package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	// decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"dirshare/internal/fsutil"
)

const (
	thumbMaxEdge = 256
	thumbQuality = 82
	// larger sources are refused before decoding
	thumbMaxPixels = 50_000_000
)

var errThumbTooLarge = errors.New("image too large to thumbnail")

// makeThumb decodes abs and returns a JPEG no wider or taller than max.
// Nothing is written to disk.
func makeThumb(fsys fsutil.FileSystem, abs string, max int) ([]byte, error) {
	f, err := fsys.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("bad image size %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > thumbMaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", errThumbTooLarge, cfg.Width, cfg.Height)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = thumbMaxEdge
	}
	b := src.Bounds()
	nw, nh := fitWithin(b.Dx(), b.Dy(), max)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// fitWithin scales w x h down so the longer edge is at most max, keeping
// the aspect ratio. Images already small enough keep their size.
func fitWithin(w, h, max int) (int, int) {
	nw, nh := w, h
	if w > h {
		if w > max {
			nw = max
			nh = int(float64(h) * (float64(max) / float64(w)))
		}
	} else if h > max {
		nh = max
		nw = int(float64(w) * (float64(max) / float64(h)))
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
