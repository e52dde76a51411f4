/*
NAME
  splitter.go

DESCRIPTION
  splitter.go provides the Splitter type, which reads a stream of concatenated
  portable anymaps from an input device and writes each image to the
  configured outputs.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package splitter provides an API for splitting streams of portable anymap
// images into individual images.
package splitter

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ausocean/pnmsplit/codec/pnm"
	"github.com/ausocean/pnmsplit/device"
	"github.com/ausocean/pnmsplit/splitter/config"
)

var (
	errNotManual  = errors.New("cannot write to anything but ManualInput")
	errNotStarted = errors.New("splitter has not been started")
)

// Splitter provides methods to control a splitting session; providing methods
// to start, stop and change the state of an instance using the Config struct.
type Splitter struct {
	cfg config.Config

	// input provides the anymap stream.
	input device.Device

	// lexer splits the input stream into images.
	lexer pnm.Lexer

	// senders holds the multiWriteCloser that writes images to outputs.
	senders io.WriteCloser

	// running is used to keep track of the running state between methods.
	running bool

	// wg will be used to wait for any processing routines to finish.
	wg sync.WaitGroup

	// err will channel errors from splitter routines to the handle errors routine.
	// It is made by Start and closed by Stop once the processing routine has
	// returned.
	err chan error

	// errWG is used to wait for the handle errors routine to finish.
	errWG sync.WaitGroup

	// stop is closed when Stop is called, so that errors caused by stopping
	// the input are not reported.
	stop chan struct{}

	// done is closed when the processing routine returns, after which result
	// holds its outcome.
	done   chan struct{}
	result error
}

// New returns a pointer to a new Splitter with the desired configuration, and/or
// an error if construction of the new instance was not successful.
func New(c config.Config) (*Splitter, error) {
	var s Splitter
	err := s.setConfig(c)
	if err != nil {
		return nil, fmt.Errorf("could not set config, failed with error: %w", err)
	}
	return &s, nil
}

// Config returns a copy of the splitter's current config.
func (s *Splitter) Config() config.Config {
	return s.cfg
}

// Write writes p to the input, which must be a ManualInput.
func (s *Splitter) Write(p []byte) (int, error) {
	mi, ok := s.input.(*device.ManualInput)
	if !ok {
		return 0, errNotManual
	}
	return mi.Write(p)
}

// Start invokes a Splitter to start reading from the configured input and
// writing images to the configured outputs.
func (s *Splitter) Start() error {
	if s.running {
		s.cfg.Logger.Warning("start called, but splitter already running")
		return nil
	}

	s.cfg.Logger.Debug("resetting splitter")
	err := s.reset(s.cfg)
	if err != nil {
		return err
	}
	s.cfg.Logger.Info("splitter reset")

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.result = nil

	s.err = make(chan error)
	s.errWG.Add(1)
	go s.handleErrors()

	// Calculate delay between images if the FileFPS != 0. Otherwise use no delay.
	d := time.Duration(0)
	if s.cfg.FileFPS != 0 {
		d = time.Second / time.Duration(s.cfg.FileFPS)
	}

	s.cfg.Logger.Debug("starting input processing routine")
	s.wg.Add(1)
	go s.processFrom(d)

	s.running = true
	return nil
}

// Wait blocks until the input has been consumed, or the splitter has been
// stopped, and returns the outcome of processing. A nil error means the input
// ended on an image boundary. Wait does not close the outputs; Stop must
// still be called.
func (s *Splitter) Wait() error {
	if s.done == nil {
		return errNotStarted
	}
	<-s.done
	return s.result
}

// Stop closes down the pipeline. A ManualInput is closed for writing first, so
// that images already written are flushed to the outputs before they are
// closed.
func (s *Splitter) Stop() {
	if !s.running {
		s.cfg.Logger.Warning("stop called but splitter isn't running")
		return
	}

	close(s.stop)

	if s.input.IsRunning() {
		s.cfg.Logger.Debug("stopping input")
		err := s.input.Stop()
		if err != nil {
			s.cfg.Logger.Error("could not stop input", "error", err.Error())
		} else {
			s.cfg.Logger.Info("input stopped")
		}
	}

	s.cfg.Logger.Debug("waiting for routines to finish")
	s.wg.Wait()
	close(s.err)
	s.errWG.Wait()
	s.cfg.Logger.Info("routines finished")

	s.cfg.Logger.Debug("closing pipeline")
	err := s.senders.Close()
	if err != nil {
		s.cfg.Logger.Error("failed to close pipeline", "error", err.Error())
	} else {
		s.cfg.Logger.Info("pipeline closed")
	}

	s.running = false
}

// Running returns true if the splitter has been started and not stopped.
func (s *Splitter) Running() bool {
	return s.running
}

// Update takes a map of variables and their values and edits the current config
// if the variables are recognised as valid parameters. A running splitter is
// stopped first; the new config is validated on the next Start.
func (s *Splitter) Update(vars map[string]string) error {
	if s.running {
		s.cfg.Logger.Debug("splitter running; stopping for re-config")
		s.Stop()
		s.cfg.Logger.Info("splitter was running; stopped for re-config")
	}

	s.cfg.Logger.Debug("checking vars", "vars", vars)
	s.cfg.Update(vars)
	s.cfg.Logger.Info("finished reconfig")
	s.cfg.Logger.Debug("config changed", "config", s.cfg)
	return nil
}
