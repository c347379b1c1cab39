package stream

import "io"

// PushbackReader serves a block of bytes that were already taken from the
// underlying reader before reading from it again.
type PushbackReader struct {
	r       io.Reader
	pending []byte
}

func NewPushbackReader(r io.Reader) *PushbackReader {
	return &PushbackReader{r: r}
}

// Prepend queues b in front of the next reads. Only one block can be queued
// at a time, the previous one has to be fully read first.
func (p *PushbackReader) Prepend(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if len(p.pending) > 0 {
		return ErrPendingBlock
	}
	p.pending = append([]byte(nil), b...)
	return nil
}

// Pending is the amount of pushed back bytes that were not read yet.
func (p *PushbackReader) Pending() int {
	return len(p.pending)
}

func (p *PushbackReader) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		return p.r.Read(b)
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	if len(p.pending) == 0 {
		p.pending = nil
	}
	return n, nil
}
