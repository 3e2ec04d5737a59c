package byterange

import "io"

// LimitedReader reads from an already positioned source until a byte budget
// runs out, then reports io.EOF without touching the source again.
type LimitedReader struct {
	src       io.ReadCloser
	remaining int64
}

// NewLimitedReader wraps src with a budget of n bytes. Closing the reader
// closes src.
func NewLimitedReader(src io.ReadCloser, n int64) *LimitedReader {
	return &LimitedReader{src: src, remaining: n}
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.src.Read(p)
	l.remaining -= int64(n)
	return n, err
}

// Remaining returns the unread budget.
func (l *LimitedReader) Remaining() int64 {
	return l.remaining
}

func (l *LimitedReader) Close() error {
	return l.src.Close()
}
