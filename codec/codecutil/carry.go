/*
NAME
  carry.go

DESCRIPTION
  carry.go provides CarryBuffer, a growable holding area used by stream
  lexers to join leftover bytes from previous reads with newly read bytes
  and to cut complete frames from the result.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package codecutil

import "fmt"

// EndNotFound may be passed to CarryBuffer.Combine to indicate that no frame
// end is known yet.
const EndNotFound = -1

// CarryBuffer holds bytes that have been received but not yet emitted as part
// of a frame. Bytes before off have been emitted; bytes from off onwards are
// retained and are moved to the front of buf by the next call to Replay.
// The zero value is an empty buffer ready for use.
type CarryBuffer struct {
	buf []byte
	off int
}

// Len returns the number of retained bytes.
func (c *CarryBuffer) Len() int { return len(c.buf) - c.off }

// Bytes returns the retained bytes. The slice is only valid until the next
// modifying call.
func (c *CarryBuffer) Bytes() []byte { return c.buf[c.off:] }

// Pending returns the number of retained bytes that still need to be replayed
// to the front of the buffer.
func (c *CarryBuffer) Pending() int {
	if c.off == 0 {
		return 0
	}
	return c.Len()
}

// Replay moves any retained bytes left behind a previous cut to the front
// of the buffer and returns the number of retained bytes.
func (c *CarryBuffer) Replay() int {
	if c.off != 0 {
		n := copy(c.buf, c.buf[c.off:])
		c.buf = c.buf[:n]
		c.off = 0
	}
	return len(c.buf)
}

// Append copies p to the end of the retained bytes.
func (c *CarryBuffer) Append(p []byte) { c.buf = append(c.buf, p...) }

// Discard drops the first n retained bytes.
func (c *CarryBuffer) Discard(n int) {
	if n < 0 || n > c.Len() {
		panic(fmt.Sprintf("codecutil: discard of %d bytes from %d retained", n, c.Len()))
	}
	c.off += n
	if c.off == len(c.buf) {
		c.Reset()
	}
}

// Reset drops all retained bytes, keeping the allocated storage.
func (c *CarryBuffer) Reset() {
	c.buf = c.buf[:0]
	c.off = 0
}

// Free drops all retained bytes and releases the allocated storage.
func (c *CarryBuffer) Free() {
	c.buf = nil
	c.off = 0
}

// Combine joins the retained bytes with p. If next is EndNotFound, p is
// retained in full and Combine returns false. Otherwise the first next bytes
// of the retained bytes followed by p are returned as a newly allocated
// frame, and the bytes after next are retained in order for later calls.
// Combine panics if next lies outside the joined bytes.
func (c *CarryBuffer) Combine(p []byte, next int) ([]byte, bool) {
	if next == EndNotFound {
		c.Append(p)
		return nil, false
	}

	held := c.Len()
	if next < 0 || next > held+len(p) {
		panic(fmt.Sprintf("codecutil: frame end %d outside %d available bytes", next, held+len(p)))
	}

	frame := make([]byte, next)
	n := copy(frame, c.buf[c.off:])
	copy(frame[n:], p)

	if next <= held {
		// The frame ended within retained bytes; the rest of those bytes
		// are replayed on the next call.
		c.off += next
		c.Append(p)
		return frame, true
	}
	c.Reset()
	c.Append(p[next-held:])
	return frame, true
}
