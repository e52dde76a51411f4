/*
NAME
  carry_test.go

DESCRIPTION
  carry_test.go provides testing for the CarryBuffer in carry.go.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package codecutil

import (
	"bytes"
	"testing"
)

func TestCarryBufferCombine(t *testing.T) {
	tests := []struct {
		name     string
		retained string
		p        string
		next     int
		frame    string
		ok       bool
		left     string
		pending  int
	}{
		{name: "not found", retained: "ab", p: "cd", next: EndNotFound, left: "abcd"},
		{name: "from new only", p: "abcdef", next: 4, frame: "abcd", ok: true, left: "ef"},
		{name: "across retained and new", retained: "abc", p: "def", next: 5, frame: "abcde", ok: true, left: "f"},
		{name: "all bytes", retained: "abc", p: "def", next: 6, frame: "abcdef", ok: true},
		{name: "within retained", retained: "abcdef", p: "gh", next: 2, frame: "ab", ok: true, left: "cdefgh", pending: 6},
		{name: "empty frame", retained: "ab", p: "c", next: 0, frame: "", ok: true, left: "abc"},
	}

	for _, test := range tests {
		var c CarryBuffer
		c.Append([]byte(test.retained))
		frame, ok := c.Combine([]byte(test.p), test.next)
		if ok != test.ok {
			t.Errorf("unexpected ok for %q: got:%v want:%v", test.name, ok, test.ok)
		}
		if string(frame) != test.frame {
			t.Errorf("unexpected frame for %q: got:%q want:%q", test.name, frame, test.frame)
		}
		if got := string(c.Bytes()); got != test.left {
			t.Errorf("unexpected retained bytes for %q: got:%q want:%q", test.name, got, test.left)
		}
		if c.Pending() != test.pending {
			t.Errorf("unexpected pending count for %q: got:%d want:%d", test.name, c.Pending(), test.pending)
		}
		if n := c.Replay(); n != len(test.left) {
			t.Errorf("unexpected replay length for %q: got:%d want:%d", test.name, n, len(test.left))
		}
		if c.Pending() != 0 || string(c.Bytes()) != test.left {
			t.Errorf("unexpected state after replay for %q: pending:%d bytes:%q", test.name, c.Pending(), c.Bytes())
		}
	}
}

func TestCarryBufferFrameIsCopy(t *testing.T) {
	var c CarryBuffer
	p := []byte("abcdef")
	frame, _ := c.Combine(p, 3)
	copy(p, "xxxxxx")
	if !bytes.Equal(frame, []byte("abc")) {
		t.Errorf("frame changed with source: %q", frame)
	}
	if !bytes.Equal(c.Bytes(), []byte("def")) {
		t.Errorf("retained bytes changed with source: %q", c.Bytes())
	}
}

func TestCarryBufferDiscard(t *testing.T) {
	var c CarryBuffer
	c.Append([]byte("noiseP5"))
	c.Discard(5)
	if got := string(c.Bytes()); got != "P5" {
		t.Errorf("unexpected bytes after discard: got:%q want:%q", got, "P5")
	}
	c.Discard(2)
	if c.Len() != 0 || c.Pending() != 0 {
		t.Errorf("unexpected state after discarding all: len:%d pending:%d", c.Len(), c.Pending())
	}
}

func TestCarryBufferBadEnd(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for frame end beyond available bytes")
		}
	}()
	var c CarryBuffer
	c.Combine([]byte("ab"), 3)
}
