/*
NAME
  lex.go

DESCRIPTION
  lex.go provides a lexer to extract separate portable anymap images from a
  byte stream such as concatenated files or a pipe.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pnm provides a lexer that splits a stream of portable anymap
// (PBM, PGM, PPM and PAM) images into individual images.
package pnm

import (
	"fmt"
	"io"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// Log is used by Lex and its Parsers and must be set before calling Lex.
var Log logging.Logger

// ErrRecordTooLarge is returned by Lex when more than the lexer's maximum
// image size is held without an image being found.
var ErrRecordTooLarge = errors.New("image exceeds maximum size")

// Standard file buffer size.
const defaultReadSize = 4 << 10

var noDelay = make(chan time.Time)

func init() {
	close(noDelay)
}

// Lexer lexes portable anymap images.
type Lexer struct {
	// MaxRecord is the largest number of bytes the lexer will hold while
	// waiting for the end of an image. Zero means no limit.
	MaxRecord int

	// ReadSize is the size of each read from the source. Zero means 4KiB.
	ReadSize int

	// Opts are passed to the Parser used for each call to Lex.
	Opts []Option
}

// Lex parses portable anymap images read from src into separate writes to
// dst with successive writes being performed not earlier than the specified
// delay. Lex uses a Lexer with default settings.
func Lex(dst io.Writer, src io.Reader, delay time.Duration) error {
	return (&Lexer{}).Lex(dst, src, delay)
}

// Lex parses portable anymap images read from src into separate writes to
// dst with successive writes being performed not earlier than the specified
// delay. Bytes between images that are not part of an image are dropped.
// Lex returns io.EOF when src is exhausted on an image boundary and
// io.ErrUnexpectedEOF if src ends part way through an image.
func (l *Lexer) Lex(dst io.Writer, src io.Reader, delay time.Duration) error {
	if delay < 0 {
		return fmt.Errorf("invalid delay: %v", delay)
	}

	var tick <-chan time.Time
	if delay == 0 {
		tick = noDelay
	} else {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	size := l.ReadSize
	if size <= 0 {
		size = defaultReadSize
	}

	p := NewParser(Log, l.Opts...)
	defer p.Reset()

	write := func(img []byte) error {
		<-tick
		Log.Debug("writing image", "len", len(img))
		_, err := dst.Write(img)
		return err
	}

	buf := make([]byte, size)
	for {
		n, rerr := src.Read(buf)
		if rerr != nil && rerr != io.EOF {
			return rerr
		}

		chunk := buf[:n]
		for {
			img, ok := p.Feed(chunk)
			if !ok {
				break
			}
			chunk = nil
			err := write(img)
			if err != nil {
				return err
			}
		}

		if l.MaxRecord > 0 && p.Retained() > l.MaxRecord {
			return errors.Wrapf(ErrRecordTooLarge, "%d bytes held, limit %d", p.Retained(), l.MaxRecord)
		}

		if rerr != io.EOF {
			continue
		}
		img, err := p.Flush()
		if img != nil {
			werr := write(img)
			if werr != nil {
				return werr
			}
		}
		if err != nil {
			Log.Warning("stream ended within an image", "error", err)
			return io.ErrUnexpectedEOF
		}
		return io.EOF
	}
}
