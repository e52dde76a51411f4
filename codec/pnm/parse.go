/*
NAME
  parse.go

DESCRIPTION
  parse.go provides Parser, which finds the boundaries between portable
  anymap images in a byte stream delivered in chunks of arbitrary size and
  alignment.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pnm

import (
	"bytes"

	"github.com/ausocean/pnmsplit/codec/codecutil"
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// ErrTruncated is returned by Flush when the stream ends part way through an
// image.
var ErrTruncated = errors.New("stream truncated")

// Comment and marker bytes for scanned images.
const (
	commentByte = '#'
	markerByte  = 'P'
)

// Resync is a policy for probe failures against retained bytes.
type Resync int

const (
	// ResyncDiscard abandons all retained bytes when they fail to probe as
	// a header and probes the new chunk alone.
	ResyncDiscard Resync = iota

	// ResyncSkip skips over bytes that fail to probe as a header, whether
	// they were retained from earlier calls or are new.
	ResyncSkip
)

// source identifies the bytes a probe window is drawn from.
type source int

const (
	sourceFresh    source = iota // The caller's new chunk only.
	sourceRetained               // Retained bytes followed by the new chunk.
)

// Option is a functional option for a Parser.
type Option func(*Parser)

// WithResync sets the Parser's policy for probe failures against retained
// bytes. The default is ResyncDiscard.
func WithResync(r Resync) Option {
	return func(p *Parser) { p.resync = r }
}

// WithProbe replaces the header prober.
func WithProbe(probe func([]byte) (Header, error)) Option {
	return func(p *Parser) { p.probe = probe }
}

// WithPayloadSize replaces the payload size calculator for fixed size images.
func WithPayloadSize(size func(Header) (int, error)) Option {
	return func(p *Parser) { p.size = size }
}

// Parser splits a portable anymap byte stream into images. A Parser holds
// the state of a single stream and must not be used concurrently.
type Parser struct {
	carry     codecutil.CarryBuffer
	probe     func([]byte) (Header, error)
	size      func(Header) (int, error)
	resync    Resync
	discarded int
	log       logging.Logger

	// scanned is how far past the header of a retained scanned image the
	// search for its end has got.
	scanned int

	// afterNoise is set while the last bytes dropped were noise, so that
	// whitespace following noise is dropped too.
	afterNoise bool
}

// NewParser returns a new Parser that logs to l.
func NewParser(l logging.Logger, opts ...Option) *Parser {
	p := &Parser{
		probe: ProbeHeader,
		size:  PayloadSize,
		log:   l,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed adds chunk to the stream and returns the next complete image, or false
// if more bytes are needed. At most one image is returned per call; call Feed
// with a nil chunk until it returns false to drain images that are already
// held. The chunk is copied if retained, and the returned image is newly
// allocated.
func (p *Parser) Feed(chunk []byte) ([]byte, bool) {
	src, win := sourceFresh, chunk
	if held := p.carry.Replay(); held != 0 {
		p.carry.Append(chunk)
		src, win = sourceRetained, p.carry.Bytes()

		if p.resync == ResyncDiscard {
			_, err := p.probe(win)
			if err != nil && !errors.Is(err, ErrShortHeader) {
				p.log.Debug("abandoning retained bytes", "len", held)
				p.discarded += held
				p.carry.Reset()
				p.afterNoise = true
				src, win = sourceFresh, chunk
			}
		}
	}

	skip, h, ok := p.locate(win)
	switch {
	case ok, skip < len(win):
		p.afterNoise = false
	case len(win) != 0:
		p.afterNoise = true
	}
	if !ok {
		p.scanned = 0
		p.pend(src, chunk, skip)
		return nil, false
	}

	// Retained bytes always start at the header they were kept for, so a
	// scan of an earlier window can be resumed.
	from := 0
	if src == sourceRetained && skip == 0 {
		from = p.scanned
	}
	end, ok := p.end(h, win[skip:], from)
	if !ok {
		p.pend(src, chunk, skip)
		return nil, false
	}
	return p.cut(src, chunk, skip, skip+end), true
}

// locate probes win for a header at increasing offsets, skipping bytes that
// are decisively not a header. It returns the offset of the header, or the
// number of bytes skipped and false if the header is incomplete.
func (p *Parser) locate(win []byte) (int, Header, bool) {
	// skip never decreases, and only advances past bytes the prober rejected
	// with bytes still remaining, so the loop ends within len(win)+1 probes.
	skip := 0
	if p.afterNoise {
		skip = skipSpace(win, 0)
		if skip == len(win) {
			return skip, Header{}, false
		}
	}
	for {
		h, err := p.probe(win[skip:])
		if err == nil {
			return skip, h, true
		}
		if errors.Is(err, ErrShortHeader) {
			return skip, Header{}, false
		}
		var pe *ProbeError
		n := 0
		if errors.As(err, &pe) {
			n = pe.Consumed
		}
		skip = skipSpace(win, skip+max(1, n))
		if skip >= len(win) {
			return len(win), Header{}, false
		}
	}
}

// end returns the length of the image that starts with header h at the start
// of b, or false if b does not yet hold the whole image. A scanned image is
// searched from from bytes past its header.
func (p *Parser) end(h Header, b []byte, from int) (int, bool) {
	p.scanned = 0
	switch h.Family() {
	case FamilyFixed:
		n, err := p.size(h)
		if err != nil {
			p.log.Warning("could not get payload size", "type", h.Type.String(), "error", err)
			return 0, false
		}
		end := h.Len + n
		if end > len(b) || end < h.Len {
			return 0, false
		}
		return end, true

	case FamilyScanned:
		i, resume := scan(b[h.Len+from:])
		if i < 0 {
			p.scanned = from + resume
			return 0, false
		}
		return h.Len + from + i, true

	default:
		panic("pnm: unknown family")
	}
}

// scan returns the offset of the first marker byte in b that is not inside
// a comment. If there is none it returns -1 and the offset from which a
// later scan of b extended with more bytes must resume, which is the start
// of any unterminated comment.
func scan(b []byte) (int, int) {
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case commentByte:
			j := bytes.IndexByte(b[i:], '\n')
			if j < 0 {
				return -1, i
			}
			i += j
		case markerByte:
			return i, 0
		}
	}
	return -1, len(b)
}

// skipSpace returns the offset of the first byte at or after i in b that is
// not whitespace.
func skipSpace(b []byte, i int) int {
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	return i
}

// pend retains the bytes of the current call that follow skip.
func (p *Parser) pend(src source, chunk []byte, skip int) {
	p.noise(skip)
	switch src {
	case sourceFresh:
		p.carry.Combine(chunk[skip:], codecutil.EndNotFound)
	case sourceRetained:
		p.carry.Discard(skip)
	}
}

// cut emits bytes [start, end) of the current call's window as an image and
// retains the bytes after end. Offsets are relative to the window, which for
// sourceRetained already holds chunk.
func (p *Parser) cut(src source, chunk []byte, start, end int) []byte {
	p.noise(start)
	var rec []byte
	switch src {
	case sourceFresh:
		rec, _ = p.carry.Combine(chunk[start:], end-start)
	case sourceRetained:
		p.carry.Discard(start)
		rec, _ = p.carry.Combine(nil, end-start)
	}
	p.log.Debug("cut image", "len", len(rec), "retained", p.carry.Len())
	return rec
}

func (p *Parser) noise(n int) {
	if n == 0 {
		return
	}
	p.log.Debug("skipped bytes that are not a header", "len", n)
	p.discarded += n
}

// Flush ends the stream. Feed must have been drained first. A retained
// scanned image, which has no following marker to end it, is returned as the
// final image. Retained whitespace is dropped. Any other retained bytes are
// dropped and ErrTruncated is returned.
func (p *Parser) Flush() ([]byte, error) {
	defer p.carry.Reset()
	defer p.clear()
	held := p.carry.Replay()
	if held == 0 {
		return nil, nil
	}
	win := p.carry.Bytes()
	if len(bytes.TrimLeft(win, " \t\n\v\f\r")) == 0 {
		p.discarded += held
		return nil, nil
	}

	skip, h, ok := p.locate(win)
	if !ok || h.Family() != FamilyScanned {
		p.discarded += held
		return nil, errors.Wrapf(ErrTruncated, "%d bytes retained", held)
	}
	p.noise(skip)
	rec := make([]byte, held-skip)
	copy(rec, win[skip:])
	return rec, nil
}

// Retained returns the number of bytes held for the next call to Feed.
func (p *Parser) Retained() int { return p.carry.Len() }

// Discarded returns the total number of bytes dropped because they were not
// part of an image.
func (p *Parser) Discarded() int { return p.discarded }

// Reset drops all retained bytes and releases their storage.
func (p *Parser) Reset() {
	p.carry.Free()
	p.discarded = 0
	p.clear()
}

func (p *Parser) clear() {
	p.scanned = 0
	p.afterNoise = false
}
