/*
NAME
  parse_test.go

DESCRIPTION
  parse_test.go provides testing for the Parser in parse.go.

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
	"errors"
	"fmt"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
)

// image returns header followed by n bytes of binary payload.
func image(header string, n int) []byte {
	b := []byte(header)
	for i := 0; i < n; i++ {
		b = append(b, byte(i*7))
	}
	return b
}

func pamImage(w, h, depth int) []byte {
	return image(fmt.Sprintf("P7\nWIDTH %d\nHEIGHT %d\nDEPTH %d\nMAXVAL 255\nENDHDR\n", w, h, depth), w*h*depth)
}

// noise returns n bytes that can never start a header.
func noise(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a' + byte(i%26)
	}
	return b
}

func join(b ...[]byte) []byte { return bytes.Join(b, nil) }

// feed feeds each chunk to p and drains any images held after each.
func feed(p *Parser, chunks ...[]byte) [][]byte {
	var imgs [][]byte
	for _, c := range chunks {
		for {
			img, ok := p.Feed(c)
			if !ok {
				break
			}
			imgs = append(imgs, img)
			c = nil
		}
	}
	return imgs
}

// split splits b into chunks of size n.
func split(b []byte, n int) [][]byte {
	var chunks [][]byte
	for len(b) > n {
		chunks = append(chunks, b[:n])
		b = b[n:]
	}
	return append(chunks, b)
}

func TestFeedFixedExact(t *testing.T) {
	dims := []int{1, 2, 100}
	for _, w := range dims {
		for _, h := range dims {
			for _, n := range dims {
				hdr := fmt.Sprintf("P7\nWIDTH %d\nHEIGHT %d\nDEPTH %d\nMAXVAL 255\nENDHDR\n", w, h, n)
				p := NewParser((*logging.TestLogger)(t))
				img, ok := p.Feed(join(pamImage(w, h, n), []byte("P5 1 1")))
				if !ok {
					t.Errorf("no image for %dx%dx%d", w, h, n)
					continue
				}
				if want := len(hdr) + w*h*n; len(img) != want {
					t.Errorf("unexpected image length for %dx%dx%d: got:%d want:%d", w, h, n, len(img), want)
				}
				if p.Retained() != len("P5 1 1") {
					t.Errorf("unexpected retained length for %dx%dx%d: got:%d want:%d", w, h, n, p.Retained(), len("P5 1 1"))
				}
			}
		}
	}
}

func TestFeedSplit(t *testing.T) {
	img := image("P6\n# split\n3 2\n255\n", 18)

	whole, ok := NewParser((*logging.TestLogger)(t)).Feed(img)
	if !ok || !bytes.Equal(whole, img) {
		t.Fatalf("unexpected result for single chunk:\ngot :%q\nwant:%q", whole, img)
	}

	for i := 1; i < len(img); i++ {
		p := NewParser((*logging.TestLogger)(t))
		if got, ok := p.Feed(img[:i]); ok {
			t.Errorf("unexpected image from first %d bytes: %q", i, got)
			continue
		}
		got, ok := p.Feed(img[i:])
		if !ok {
			t.Errorf("no image when split at %d", i)
			continue
		}
		if !bytes.Equal(got, whole) {
			t.Errorf("unexpected image when split at %d:\ngot :%q\nwant:%q", i, got, whole)
		}
	}
}

func TestFeedScanned(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  [][]byte
	}{
		{
			name:  "comment before marker",
			input: []byte("P2\n2 1\n255\n0 255\n# Pictures go here\nP2\n1 1\n255\n7\n"),
			want: [][]byte{
				[]byte("P2\n2 1\n255\n0 255\n# Pictures go here\n"),
				[]byte("P2\n1 1\n255\n7\n"),
			},
		},
		{
			name:  "marker in payload comment",
			input: []byte("P1\n2 2\n1 0\n# Pnot a marker\n0 1\nP1\n1 1\n1\n"),
			want: [][]byte{
				[]byte("P1\n2 2\n1 0\n# Pnot a marker\n0 1\n"),
				[]byte("P1\n1 1\n1\n"),
			},
		},
		{
			name:  "scanned then fixed",
			input: join([]byte("P3\n1 1\n255\n1 2 3\n"), image("P5 2 1 255\n", 2)),
			want: [][]byte{
				[]byte("P3\n1 1\n255\n1 2 3\n"),
				image("P5 2 1 255\n", 2),
			},
		},
	}

	for _, test := range tests {
		for i := 1; i <= len(test.input); i++ {
			p := NewParser((*logging.TestLogger)(t))
			got := feed(p, test.input[:i], test.input[i:])
			last, err := p.Flush()
			if err != nil {
				t.Errorf("unexpected flush error for %q split at %d: %v", test.name, i, err)
				continue
			}
			if last != nil {
				got = append(got, last)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected images for %q split at %d (-want +got):\n%s", test.name, i, diff)
			}
		}
	}
}

func TestFeedResync(t *testing.T) {
	img := image("P5 1 1 255\n", 1)
	for _, k := range []int{1, 2, 10, 100, 4 << 10} {
		garbage := noise(k)

		p := NewParser((*logging.TestLogger)(t))
		got := feed(p, join(garbage, img))
		if diff := cmp.Diff([][]byte{img}, got); diff != "" {
			t.Errorf("unexpected images after %d garbage bytes (-want +got):\n%s", k, diff)
		}
		if p.Discarded() != k {
			t.Errorf("unexpected discard count: got:%d want:%d", p.Discarded(), k)
		}

		p = NewParser((*logging.TestLogger)(t))
		got = feed(p, garbage, img)
		if diff := cmp.Diff([][]byte{img}, got); diff != "" {
			t.Errorf("unexpected images after separate %d garbage bytes (-want +got):\n%s", k, diff)
		}
		if p.Retained() != 0 {
			t.Errorf("unexpected retained bytes after %d garbage bytes: %d", k, p.Retained())
		}
	}
}

func TestFeedPartialHeader(t *testing.T) {
	img := image("P5 1 1 255\n", 1)
	p := NewParser((*logging.TestLogger)(t))
	if _, ok := p.Feed(img[:1]); ok {
		t.Fatal("unexpected image from first header byte")
	}
	got, ok := p.Feed(img[1:])
	if !ok {
		t.Fatal("no image after rest of header")
	}
	if !bytes.Equal(got, img) {
		t.Errorf("unexpected image:\ngot :%q\nwant:%q", got, img)
	}
}

func TestFeedStream(t *testing.T) {
	want := [][]byte{
		image("P5 3 2 255\n", 6),
		[]byte("P3\n1 1\n255\n1 2 3\n"),
		image("P4\n9 2\n", 4),
		[]byte("P1\n2 1\n0 1\n"),
		pamImage(2, 3, 2),
		image("P6 1 1 65535\n", 6),
	}
	stream := join(join(want...), []byte("\n"))

	for _, n := range []int{1, 2, 3, 5, 16, 1 << 10, len(stream)} {
		p := NewParser((*logging.TestLogger)(t))
		got := feed(p, split(stream, n)...)
		last, err := p.Flush()
		if err != nil {
			t.Errorf("unexpected flush error for chunk size %d: %v", n, err)
		}
		if last != nil {
			got = append(got, last)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("unexpected images for chunk size %d (-want +got):\n%s", n, diff)
			continue
		}

		// Every fed byte is either in an image or was dropped.
		if emitted := len(join(got...)); emitted+p.Discarded() != len(stream) {
			t.Errorf("bytes unaccounted for with chunk size %d: emitted:%d discarded:%d fed:%d", n, emitted, p.Discarded(), len(stream))
		}
		if !bytes.Equal(join(got...), stream[:len(stream)-1]) {
			t.Errorf("images do not reproduce stream for chunk size %d", n)
		}
	}
}

func TestFeedResyncPolicy(t *testing.T) {
	img := image("P5 1 1 255\n", 1)
	first := join(img, []byte("zz"), img[:5])

	tests := []struct {
		name      string
		opts      []Option
		want      []byte
		discarded int
	}{
		{name: "skip", opts: []Option{WithResync(ResyncSkip)}, want: img, discarded: 2},
		{name: "discard", opts: []Option{WithResync(ResyncDiscard)}, want: nil, discarded: 2 + 5 + len(img) - 5},
		{name: "default", want: nil, discarded: 2 + 5 + len(img) - 5},
	}

	for _, test := range tests {
		p := NewParser((*logging.TestLogger)(t), test.opts...)
		got, ok := p.Feed(first)
		if !ok || !bytes.Equal(got, img) {
			t.Errorf("unexpected first image for %q: %q", test.name, got)
			continue
		}
		got, _ = p.Feed(img[5:])
		if !bytes.Equal(got, test.want) {
			t.Errorf("unexpected second image for %q:\ngot :%q\nwant:%q", test.name, got, test.want)
		}
		if p.Discarded() != test.discarded {
			t.Errorf("unexpected discard count for %q: got:%d want:%d", test.name, p.Discarded(), test.discarded)
		}
	}
}

func TestFeedNoiseWhitespace(t *testing.T) {
	img := image("P5 1 1 255\n", 1)
	in := join([]byte("xx\n"), img, []byte(" \n"), img[:5])

	for i := 0; i <= len(in); i++ {
		p := NewParser((*logging.TestLogger)(t))
		got := feed(p, in[:i], in[i:])
		if len(got) != 1 || !bytes.Equal(got[0], img) {
			t.Errorf("unexpected images for split at %d: %q", i, got)
			continue
		}
		if p.Discarded() != 3 {
			t.Errorf("unexpected discard count for split at %d: got:%d want:3", i, p.Discarded())
		}
		if p.Retained() != 7 {
			t.Errorf("unexpected retained count for split at %d: got:%d want:7", i, p.Retained())
		}
	}
}

func TestScanResume(t *testing.T) {
	tests := []struct {
		in     string
		i      int
		resume int
	}{
		{in: "", i: -1, resume: 0},
		{in: "1 2 3\n", i: -1, resume: 6},
		{in: "1 2 # P\n3", i: -1, resume: 9},
		{in: "1 2 # P", i: -1, resume: 4},
		{in: "1 # x\n P2", i: 7, resume: 0},
	}

	for _, test := range tests {
		i, resume := scan([]byte(test.in))
		if i != test.i || resume != test.resume {
			t.Errorf("unexpected scan of %q: got:(%d, %d) want:(%d, %d)", test.in, i, resume, test.i, test.resume)
		}
	}
}

func TestFeedScannedResume(t *testing.T) {
	hdr := "P2 2 1 255\n"
	img := []byte(hdr + "1 2\n# a P in a comment\n3 4\n")
	in := join(img, []byte("P2 1 1 9\n5\n"))

	for n := 1; n <= 8; n++ {
		p := NewParser((*logging.TestLogger)(t))
		var got [][]byte
		for _, c := range split(in, n) {
			rec, ok := p.Feed(c)
			for ok {
				got = append(got, rec)
				rec, ok = p.Feed(nil)
			}
			if len(got) == 0 && p.Retained() > len(hdr) && p.scanned > p.Retained()-len(hdr) {
				t.Fatalf("scan offset past retained bytes for chunk size %d: %d > %d", n, p.scanned, p.Retained()-len(hdr))
			}
		}
		if len(got) != 1 || !bytes.Equal(got[0], img) {
			t.Errorf("unexpected images for chunk size %d: %q", n, got)
		}
		if p.scanned == 0 {
			t.Errorf("expected scan progress on retained image for chunk size %d", n)
		}
	}
}

func TestFlush(t *testing.T) {
	img := image("P5 2 2 255\n", 4)

	tests := []struct {
		name  string
		input []byte
		want  []byte
		err   error
	}{
		{name: "empty"},
		{name: "whitespace", input: []byte("\n \r\n")},
		{name: "scanned", input: []byte("P2 1 1 9 5"), want: []byte("P2 1 1 9 5")},
		{name: "scanned after noise", input: []byte("xyP2 1 1 9 5"), want: []byte("P2 1 1 9 5")},
		{name: "truncated payload", input: img[:len(img)-1], err: ErrTruncated},
		{name: "truncated header", input: img[:4], err: ErrTruncated},
	}

	for _, test := range tests {
		p := NewParser((*logging.TestLogger)(t))
		if got := feed(p, test.input); len(got) != 0 {
			t.Errorf("unexpected images for %q: %q", test.name, got)
			continue
		}
		got, err := p.Flush()
		if !errors.Is(err, test.err) {
			t.Errorf("unexpected error for %q: got:%v want:%v", test.name, err, test.err)
		}
		if !bytes.Equal(got, test.want) {
			t.Errorf("unexpected image for %q:\ngot :%q\nwant:%q", test.name, got, test.want)
		}
		if p.Retained() != 0 {
			t.Errorf("unexpected retained bytes for %q after flush: %d", test.name, p.Retained())
		}
	}
}

func TestFeedSizeError(t *testing.T) {
	img := image("P5 2 2 255\n", 4)
	p := NewParser((*logging.TestLogger)(t), WithPayloadSize(func(Header) (int, error) {
		return 0, errors.New("no size")
	}))
	if _, ok := p.Feed(img); ok {
		t.Fatal("unexpected image without payload size")
	}
	if p.Retained() != len(img) {
		t.Errorf("unexpected retained bytes: got:%d want:%d", p.Retained(), len(img))
	}
}
