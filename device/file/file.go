/*
DESCRIPTION
  file.go provides an implementation of the Device interface for anymap files
  and standard input.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package file provides an implementation of Device for files.
package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ausocean/pnmsplit/device"
	"github.com/ausocean/pnmsplit/splitter/config"
	"github.com/ausocean/utils/logging"
)

// Stdin is the input path that selects standard input.
const Stdin = "-"

var (
	errNoPath     = errors.New("no input path")
	errStdinLoop  = errors.New("standard input cannot be looped")
	errNotStarted = errors.New("file source not started")
)

// Source is an implementation of the Device interface for a file containing
// a stream of anymaps.
type Source struct {
	f         io.ReadCloser
	path      string
	loop      bool
	isRunning bool
	log       logging.Logger
	set       bool
	mu        sync.Mutex
}

// New returns a new Source.
func New(l logging.Logger) *Source { return &Source{log: l} }

// NewWith returns a new Source with required params provided i.e. the Set
// method does not need to be called.
func NewWith(l logging.Logger, path string, loop bool) *Source {
	return &Source{log: l, path: path, loop: loop && path != Stdin, set: true}
}

// Name returns the name of the device.
func (m *Source) Name() string {
	return "File"
}

// Set sets the path and loop fields from the InputPath and Loop fields of c.
// An empty path, or a request to loop standard input, gives an error; the
// loop request is then ignored.
func (m *Source) Set(c config.Config) error {
	var errs device.MultiError
	if c.InputPath == "" {
		errs = append(errs, errNoPath)
	}
	m.path = c.InputPath
	m.loop = c.Loop
	if c.Loop && c.InputPath == Stdin {
		errs = append(errs, errStdinLoop)
		m.loop = false
	}
	m.set = true
	if errs != nil {
		return errs
	}
	return nil
}

// Start will open the file at the location of the InputPath field of the
// config struct, or take standard input if the path is Stdin.
func (m *Source) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return errors.New("file source has not been set with config")
	}
	if m.path == Stdin {
		m.log.Debug("reading from standard input")
		m.f = io.NopCloser(os.Stdin)
		m.isRunning = true
		return nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("could not open anymap file: %w", err)
	}
	m.f = f
	m.isRunning = true
	return nil
}

// Stop will close the file such that any further reads will fail. Stopping a
// stopped Source does nothing.
func (m *Source) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return errNotStarted
	}
	if !m.isRunning {
		return nil
	}
	err := m.f.Close()
	if err == nil {
		m.isRunning = false
		return nil
	}
	return err
}

// Read implements io.Reader. If start has not been called, or Start has been
// called and Stop has since been called, an error is returned. A looped file
// is rewound when it is exhausted, so io.EOF is only seen for an empty file.
func (m *Source) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return 0, errNotStarted
	}
	if !m.isRunning {
		return 0, os.ErrClosed
	}

	n, err := m.f.Read(p)
	if err != io.EOF || n != 0 || !m.loop {
		return n, err
	}

	m.log.Info("looping input file")
	s, ok := m.f.(io.Seeker)
	if !ok {
		return 0, io.EOF
	}
	_, err = s.Seek(0, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("could not seek to start of file for input loop: %w", err)
	}
	return m.f.Read(p)
}

// IsRunning is used to determine if the Source device is running.
func (m *Source) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.f != nil && m.isRunning
}
