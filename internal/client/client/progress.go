package client

import (
	"io"
	"sync"
)

// ProgressFunc receives the completed fraction of a transfer, from 0 to 1.
// It is called from the goroutine doing the transfer.
type ProgressFunc func(fraction float64)

// progressReader reports how much of total has been read through it.
// Updates are emitted only when the whole-percent value changes.
type progressReader struct {
	r     io.Reader
	total int64
	fn    ProgressFunc

	mu   sync.Mutex
	read int64
	last int
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, total: total, fn: fn, last: -1}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.mu.Lock()
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		report := pct != p.last
		p.last = pct
		p.mu.Unlock()
		if report {
			p.fn(float64(pct) / 100)
		}
	}
	return n, err
}

// finish reports completion if the reader has not already done so.
func (p *progressReader) finish() {
	p.mu.Lock()
	done := p.last == 100
	p.last = 100
	p.mu.Unlock()
	if !done {
		p.fn(1)
	}
}

func finishProgress(r io.Reader) {
	if p, ok := r.(*progressReader); ok {
		p.finish()
	}
}
