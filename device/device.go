/*
DESCRIPTION
  device.go provides Device, an interface that describes a configurable
  source of portable anymap data that can be started and stopped, and
  ManualInput, a Device fed through software writes.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package device provides an interface and implementations for input devices
// that can be started and stopped from which anymap streams can be obtained.
package device

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ausocean/pnmsplit/splitter/config"
)

// Device describes a configurable source from which a byte stream of
// concatenated anymaps can be obtained. Device is an io.Reader.
type Device interface {
	io.Reader

	// Name returns the name of the Device.
	Name() string

	// Set allows for configuration of the Device using a Config struct. All,
	// some or none of the fields of the Config struct may be used for configuration
	// by an implementation. An implementation should specify what fields are
	// considered.
	Set(c config.Config) error

	// Start will start the Device; after which the Read method may be called
	// to obtain the data.
	Start() error

	// Stop will stop the Device. An implementation should specify what Read
	// returns from this point.
	Stop() error

	// IsRunning is used to determine if the device is running.
	IsRunning() bool
}

// MultiError implements the built in error interface. MultiError is used here
// to collect multiple errors during validation of configuration parameters for
// Devices.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("device: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

// ManualInput is an implementation of the Device interface that represents
// a manual input mechanism, i.e. data is written to this input manually through
// software (ManualInput also implements io.Writer, unlike other implementations).
// The ManualInput employs an io.Pipe, as such, every write must be accompanied
// by a full read (or reads) of the bytes, otherwise blocking will occur (and
// vice versa). Stopping a ManualInput closes the write side of the pipe so that
// a reader sees io.EOF once it has consumed what was written.
type ManualInput struct {
	mu        sync.Mutex
	isRunning bool
	reader    *io.PipeReader
	writer    *io.PipeWriter
}

// NewManualInput provides a new ManualInput.
func NewManualInput() *ManualInput {
	return &ManualInput{}
}

// Read reads from the manual input and puts the bytes into p.
func (m *ManualInput) Read(p []byte) (int, error) {
	m.mu.Lock()
	r := m.reader
	m.mu.Unlock()
	if r == nil {
		return 0, errors.New("manual input has not been started, can't read")
	}
	return r.Read(p)
}

// Name returns the name of ManualInput i.e. "ManualInput".
func (m *ManualInput) Name() string { return "ManualInput" }

// Set is a stub to satisfy the Device interface; no configuration fields are
// required by ManualInput.
func (m *ManualInput) Set(c config.Config) error { return nil }

// Start creates the pipe and sets the ManualInput isRunning flag to true.
func (m *ManualInput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isRunning = true
	m.reader, m.writer = io.Pipe()
	return nil
}

// Stop closes the write side of the pipe and sets the isRunning flag to false.
func (m *ManualInput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writer != nil {
		m.writer.Close()
	}
	m.isRunning = false
	return nil
}

// IsRunning returns the value of the isRunning flag to indicate if Start has
// been called (and Stop has not been called after).
func (m *ManualInput) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// Write writes p to the ManualInput's writer side of its pipe.
func (m *ManualInput) Write(p []byte) (int, error) {
	m.mu.Lock()
	w, running := m.writer, m.isRunning
	m.mu.Unlock()
	if !running {
		return 0, errors.New("manual input has not been started, can't write")
	}
	return w.Write(p)
}
