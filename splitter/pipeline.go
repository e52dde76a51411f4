/*
NAME
  pipeline.go

DESCRIPTION
  pipeline.go provides functionality for set up of the splitter pipeline.

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

package splitter

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ausocean/pnmsplit/codec/codecutil"
	"github.com/ausocean/pnmsplit/codec/pnm"
	"github.com/ausocean/pnmsplit/device"
	"github.com/ausocean/pnmsplit/device/file"
	"github.com/ausocean/pnmsplit/splitter/config"
	"github.com/ausocean/utils/ioext"
	"github.com/ausocean/utils/pool"
)

// handleErrors logs errors from the processing routine until s.err is closed.
func (s *Splitter) handleErrors() {
	defer s.errWG.Done()
	for err := range s.err {
		if err != nil {
			s.cfg.Logger.Error("async error", "error", err.Error())
		}
	}
}

// reset swaps the current config of a Splitter with the passed
// configuration; checking validity and returning errors if not valid. It then
// sets up the data pipeline accordingly to this configuration.
func (s *Splitter) reset(c config.Config) error {
	s.cfg.Logger.Debug("setting config")
	err := s.setConfig(c)
	if err != nil {
		return fmt.Errorf("could not set config: %w", err)
	}
	s.cfg.Logger.Info("config set")

	s.cfg.Logger.Debug("setting up splitter pipeline")
	err = s.setupPipeline(ioext.MultiWriteCloser)
	if err != nil {
		return fmt.Errorf("could not set up pipeline: %w", err)
	}
	s.cfg.Logger.Info("finished setting pipeline")

	return nil
}

// setConfig takes a config, checks it's validity and then replaces the current
// splitter config.
func (s *Splitter) setConfig(config config.Config) error {
	if config.Logger == nil {
		return errors.New("config has no logger")
	}
	s.cfg.Logger = config.Logger
	s.cfg.Logger.Debug("validating config")
	err := config.Validate()
	if err != nil {
		return errors.New("Config struct is bad: " + err.Error())
	}
	s.cfg.Logger.Info("config validated")
	s.cfg = config
	s.cfg.Logger.SetLevel(s.cfg.LogLevel)
	return nil
}

// setupPipeline constructs the splitter pipeline. The input, lexer and
// senders are created and linked based on the current config. multiWriter
// will be used to create an ioext.multiWriteCloser so that the lexer can
// write to multiple senders.
func (s *Splitter) setupPipeline(multiWriter func(...io.WriteCloser) io.WriteCloser) error {
	err := s.setLexer(s.cfg.InputCodec)
	if err != nil {
		return fmt.Errorf("could not set lexer: %w", err)
	}

	switch s.cfg.Input {
	case config.InputFile:
		s.cfg.Logger.Debug("using file input")
		s.input = file.New(s.cfg.Logger)
	case config.InputManual:
		s.cfg.Logger.Debug("using manual input")
		s.input = device.NewManualInput()
	default:
		return fmt.Errorf("unrecognised input type: %v", s.cfg.Input)
	}

	// Configure the input device. Bad fields are found again when the input
	// is started, so we only log here.
	s.cfg.Logger.Debug("configuring input device")
	err = s.input.Set(s.cfg)
	if err != nil {
		s.cfg.Logger.Warning("errors from configuring input device", "errors", err)
	}
	s.cfg.Logger.Info("input device configured")

	// Calculate no. of pool buffer elements based on starting element size
	// and config directed max pool buffer size. This is only used if the
	// selected output uses a pool buffer.
	nElements := s.cfg.PoolCapacity / s.cfg.PoolStartElementSize
	writeTimeout := time.Duration(s.cfg.PoolWriteTimeout) * time.Second

	var senders []io.WriteCloser
	for _, out := range s.cfg.Outputs {
		switch out {
		case config.OutputFile:
			s.cfg.Logger.Debug("using File output")
			fs, err := newFileSender(s.cfg.Logger, s.cfg.OutputPath, false, s.cfg.MaxFileSize)
			if err != nil {
				closeAll(senders)
				return err
			}
			senders = append(senders, fs)
		case config.OutputFiles:
			s.cfg.Logger.Debug("using Files output")
			fs, err := newFileSender(s.cfg.Logger, s.cfg.OutputPath, true, 0)
			if err != nil {
				closeAll(senders)
				return err
			}
			pb := pool.NewBuffer(int(nElements), int(s.cfg.PoolStartElementSize), writeTimeout)
			senders = append(senders, newPoolSender(fs, s.cfg.Logger, pb, int(s.cfg.MaxRecordSize)))
		default:
			s.cfg.Logger.Warning("ignoring unknown output", "output", out)
		}
	}
	if len(senders) == 0 {
		return errors.New("no outputs")
	}
	s.senders = multiWriter(senders...)

	return nil
}

// setLexer sets the splitter lexer based on the input codec. Any member of
// the anymap family may be mixed in the stream whichever is named.
func (s *Splitter) setLexer(c string) error {
	switch c {
	case codecutil.PNM, codecutil.PBM, codecutil.PGM, codecutil.PPM, codecutil.PAM:
		s.cfg.Logger.Debug("using anymap lexer", "codec", c)
	default:
		return fmt.Errorf("unrecognised codec: %s", c)
	}

	resync := pnm.ResyncDiscard
	if s.cfg.Resync == config.ResyncSkip {
		resync = pnm.ResyncSkip
	}
	s.lexer = pnm.Lexer{
		MaxRecord: int(s.cfg.MaxRecordSize),
		ReadSize:  int(s.cfg.ReadSize),
		Opts:      []pnm.Option{pnm.WithResync(resync)},
	}
	pnm.Log = s.cfg.Logger
	return nil
}

// processFrom is run as a routine to read from the input, lex and then send
// individual images to the senders.
func (s *Splitter) processFrom(delay time.Duration) {
	defer s.wg.Done()
	defer close(s.done)

	err := s.input.Start()
	if err != nil {
		s.result = fmt.Errorf("could not start input device: %w", err)
		s.err <- s.result
		return
	}

	// Lex data from the input until finished or an error is encountered. For a
	// looped file or a manual input we remain in this call until Stop is called.
	s.cfg.Logger.Debug("lexing")
	err = s.lexer.Lex(s.senders, s.input, delay)
	switch err {
	case nil, io.EOF:
		s.cfg.Logger.Info("end of input")
	case io.ErrUnexpectedEOF:
		s.cfg.Logger.Warning("input ended within an image")
		s.result = pnm.ErrTruncated
	default:
		select {
		case <-s.stop:
			s.cfg.Logger.Info("input stopped while lexing", "error", err.Error())
		default:
			s.result = err
			s.err <- err
		}
	}
	s.cfg.Logger.Info("finished reading input")

	s.cfg.Logger.Debug("stopping input")
	err = s.input.Stop()
	if err != nil {
		s.err <- fmt.Errorf("could not stop input source: %w", err)
	} else {
		s.cfg.Logger.Info("input stopped")
	}
}

func closeAll(ws []io.WriteCloser) {
	for _, w := range ws {
		w.Close()
	}
}
