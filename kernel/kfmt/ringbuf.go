package kfmt

import "io"

// earlyBufferSize defines the size of the early boot output buffer. It must
// be a power of 2.
const earlyBufferSize = 2048

// ringBuffer retains the most recent Printf output generated before an output
// sink is registered so it can be replayed once a console becomes available.
type ringBuffer struct {
	data           [earlyBufferSize]byte
	rIndex, wIndex int
}

// Write appends p to the ring buffer, overwriting the oldest data when the
// buffer is full.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.data[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (earlyBufferSize - 1)
		if rb.wIndex == rb.rIndex {
			rb.rIndex = (rb.rIndex + 1) & (earlyBufferSize - 1)
		}
	}

	return len(p), nil
}

// Read copies up to len(p) buffered bytes into p in write order.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.rIndex == rb.wIndex {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && rb.rIndex != rb.wIndex {
		p[n] = rb.data[rb.rIndex]
		rb.rIndex = (rb.rIndex + 1) & (earlyBufferSize - 1)
		n++
	}

	return n, nil
}
