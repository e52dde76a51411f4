/*
NAME
  header.go

DESCRIPTION
  header.go provides a prober for portable anymap (PBM, PGM, PPM and PAM)
  headers. The prober works on a window of bytes that may end part way
  through a header, and reports whether a failed probe needs more bytes or
  was decisively not a header.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pnm

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Errors returned by ProbeHeader, wrapped in a *ProbeError.
var (
	ErrShortHeader   = errors.New("header incomplete")
	ErrInvalidHeader = errors.New("not a valid header")
)

// Type is the magic number digit of a portable anymap, i.e. Type 5 is "P5".
type Type byte

// Portable anymap types.
const (
	PlainPBM Type = 1 + iota
	PlainPGM
	PlainPPM
	RawPBM
	RawPGM
	RawPPM
	PAM
)

func (t Type) String() string { return fmt.Sprintf("P%d", byte(t)) }

// Family describes how the end of an image of a given Type is found.
type Family int

const (
	// FamilyFixed images declare their exact payload length in the header.
	FamilyFixed Family = iota

	// FamilyScanned images have an ASCII payload of unknown length that ends
	// where the next image's magic number begins.
	FamilyScanned
)

func (f Family) String() string {
	switch f {
	case FamilyFixed:
		return "fixed"
	case FamilyScanned:
		return "scanned"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Header holds the fields of a parsed portable anymap header.
type Header struct {
	Type      Type
	Width     int
	Height    int
	Depth     int    // Samples per pixel.
	MaxVal    int    // Maximum sample value.
	TupleType string // PAM only.

	// Len is the length of the header in bytes, i.e. the offset from the
	// start of the probed window at which the payload begins.
	Len int
}

// Family returns the boundary family of the header's type.
func (h Header) Family() Family {
	if h.Type < RawPBM {
		return FamilyScanned
	}
	return FamilyFixed
}

// ProbeError is returned by ProbeHeader when a header could not be parsed.
type ProbeError struct {
	// Consumed is the number of bytes of the window that were examined before
	// the failure was detected. For ErrShortHeader this is the window length,
	// for ErrInvalidHeader it is the offset of the offending token.
	Consumed int

	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("pnm: %v after %d bytes", e.Err, e.Consumed)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Limits on header values.
const (
	maxMaxVal = 65535
	maxDepth  = 65535
)

// ProbeHeader attempts to parse a portable anymap header at the start of b.
// Whitespace preceding the magic number is included in the header.
func ProbeHeader(b []byte) (Header, error) {
	r := headerReader{b: b}
	h, err := r.header()
	if err != nil {
		return Header{}, err
	}
	h.Len = r.pos
	return h, nil
}

// headerReader tokenizes a header window.
type headerReader struct {
	b   []byte
	pos int
}

func (r *headerReader) short() error {
	return &ProbeError{Consumed: len(r.b), Err: ErrShortHeader}
}

func (r *headerReader) invalid(at int, format string, args ...interface{}) error {
	return &ProbeError{Consumed: at, Err: errors.Wrapf(ErrInvalidHeader, format, args...)}
}

func (r *headerReader) header() (Header, error) {
	for r.pos < len(r.b) && isSpace(r.b[r.pos]) {
		r.pos++
	}
	magic := r.pos
	switch {
	case magic >= len(r.b):
		return Header{}, r.short()
	case r.b[magic] != 'P':
		return Header{}, r.invalid(magic, "bad magic %q", r.b[magic])
	case magic+1 >= len(r.b):
		return Header{}, r.short()
	case r.b[magic+1] < '1' || r.b[magic+1] > '7':
		return Header{}, r.invalid(magic, "bad magic P%c", r.b[magic+1])
	case magic+2 >= len(r.b):
		return Header{}, r.short()
	case !isSpace(r.b[magic+2]):
		return Header{}, r.invalid(magic, "magic not followed by whitespace")
	}
	h := Header{Type: Type(r.b[magic+1] - '0'), Depth: 1, MaxVal: 1}
	r.pos = magic + 3

	if h.Type == PAM {
		return r.pam(h)
	}

	var err error
	h.Width, err = r.number("width", 1, math.MaxInt32)
	if err != nil {
		return Header{}, err
	}
	h.Height, err = r.number("height", 1, math.MaxInt32)
	if err != nil {
		return Header{}, err
	}
	if h.Type != PlainPBM && h.Type != RawPBM {
		h.MaxVal, err = r.number("maxval", 1, maxMaxVal)
		if err != nil {
			return Header{}, err
		}
	}
	if h.Type == PlainPPM || h.Type == RawPPM {
		h.Depth = 3
	}
	if !sizeOK(h.Width, h.Height) {
		return Header{}, r.invalid(magic, "image size %dx%d too large", h.Width, h.Height)
	}
	return h, nil
}

// pam parses the key/value lines of a PAM header up to and including ENDHDR.
func (r *headerReader) pam(h Header) (Header, error) {
	const (
		seenWidth = 1 << iota
		seenHeight
		seenDepth
		seenMaxVal
		seenAll = seenWidth | seenHeight | seenDepth | seenMaxVal
	)
	var (
		seen  int
		tuple []string
	)
	for {
		start, tok, err := r.token(isUpper)
		if err != nil {
			return Header{}, err
		}
		switch string(tok) {
		case "WIDTH":
			h.Width, err = r.number("width", 1, math.MaxInt32)
			seen |= seenWidth
		case "HEIGHT":
			h.Height, err = r.number("height", 1, math.MaxInt32)
			seen |= seenHeight
		case "DEPTH":
			h.Depth, err = r.number("depth", 1, maxDepth)
			seen |= seenDepth
		case "MAXVAL":
			h.MaxVal, err = r.number("maxval", 1, maxMaxVal)
			seen |= seenMaxVal
		case "TUPLTYPE":
			var v string
			v, err = r.line()
			if v != "" {
				tuple = append(tuple, v)
			}
		case "ENDHDR":
			if seen != seenAll {
				return Header{}, r.invalid(start, "ENDHDR before all required fields")
			}
			if !sizeOK(h.Width, h.Height) {
				return Header{}, r.invalid(start, "image size %dx%d too large", h.Width, h.Height)
			}
			h.TupleType = strings.Join(tuple, " ")
			return h, nil
		default:
			return Header{}, r.invalid(start, "unknown PAM header field %q", tok)
		}
		if err != nil {
			return Header{}, err
		}
	}
}

// token skips whitespace and comments and returns the next whitespace
// terminated token and its offset. The single terminating whitespace byte is
// consumed. A token byte rejected by valid fails the probe without waiting for
// the end of the token.
func (r *headerReader) token(valid func(byte) bool) (int, []byte, error) {
	for {
		if r.pos >= len(r.b) {
			return 0, nil, r.short()
		}
		c := r.b[r.pos]
		if c == '#' {
			for r.pos < len(r.b) && r.b[r.pos] != '\n' && r.b[r.pos] != '\r' {
				r.pos++
			}
			continue
		}
		if !isSpace(c) {
			break
		}
		r.pos++
	}
	start := r.pos
	for ; r.pos < len(r.b) && !isSpace(r.b[r.pos]); r.pos++ {
		if !valid(r.b[r.pos]) {
			return 0, nil, r.invalid(start, "bad token %q", r.b[start:r.pos+1])
		}
	}
	if r.pos >= len(r.b) {
		return 0, nil, r.short()
	}
	tok := r.b[start:r.pos]
	r.pos++
	return start, tok, nil
}

// number reads a decimal token in the range [min, max].
func (r *headerReader) number(name string, min, max int) (int, error) {
	start, tok, err := r.token(isDigit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range tok {
		n = n*10 + int(c-'0')
		if n > max {
			return 0, r.invalid(start, "%s %s out of range", name, tok)
		}
	}
	if n < min {
		return 0, r.invalid(start, "%s %d out of range", name, n)
	}
	return n, nil
}

// line returns the rest of the current line with surrounding spaces removed.
func (r *headerReader) line() (string, error) {
	if r.pos > 0 && r.b[r.pos-1] == '\n' {
		return "", nil
	}
	start := r.pos
	for r.pos < len(r.b) && r.b[r.pos] != '\n' {
		r.pos++
	}
	if r.pos >= len(r.b) {
		return "", r.short()
	}
	v := strings.TrimSpace(string(r.b[start:r.pos]))
	r.pos++
	return v, nil
}

// sizeOK reports whether the dimensions are acceptable for a single image.
func sizeOK(w, h int) bool {
	return (int64(w)+128)*(int64(h)+128) < math.MaxInt32/8
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isUpper(c byte) bool { return 'A' <= c && c <= 'Z' }
