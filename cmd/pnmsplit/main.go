/*
DESCRIPTION
  pnmsplit splits a stream of concatenated portable anymap images, read from
  a file or standard input, into one file per image. In watch mode every file
  created in a directory is split as it arrives.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pnmsplit is a command line program for splitting anymap streams.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/pnmsplit/splitter"
	"github.com/ausocean/pnmsplit/splitter/config"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

// Misc constants.
const (
	pkg             = "pnmsplit: "
	defaultLogPath  = "/var/log/pnmsplit/pnmsplit.log"
	exitOK          = 0
	exitFailed      = 1
	exitBadUsage    = 2
	defaultOutPath  = "out/"
	defaultLogLevel = "Info"
)

// options holds the command line flags.
type options struct {
	in       string
	out      string
	outputs  string
	fps      uint
	max      uint
	readSize uint
	resync   string
	loop     bool
	logLevel string
	logPath  string
	watch    string
}

func main() {
	showVersion := flag.Bool("version", false, "show version")
	var o options
	flag.StringVar(&o.in, "in", "", "Input anymap stream; - for standard input.")
	flag.StringVar(&o.out, "out", defaultOutPath, "Output path prefix; images are written to <out><seq>.<ext>.")
	flag.StringVar(&o.outputs, "outputs", "Files", "Comma separated outputs: Files (one file per image) and/or File (one file).")
	flag.UintVar(&o.fps, "fps", 0, "Images written per second; 0 for no limit.")
	flag.UintVar(&o.max, "max", 0, "Largest image in bytes; 0 for no limit.")
	flag.UintVar(&o.readSize, "read-size", 0, "Bytes read from the input at a time; 0 for the default.")
	flag.StringVar(&o.resync, "resync", "discard", "Policy when held bytes do not start an image: skip or discard.")
	flag.BoolVar(&o.loop, "loop", false, "Restart the input file when it ends.")
	flag.StringVar(&o.logLevel, "log-level", defaultLogLevel, "Log level: Debug, Info, Warning, Error or Fatal.")
	flag.StringVar(&o.logPath, "log-path", defaultLogPath, "Log file path; empty to log to standard error only.")
	flag.StringVar(&o.watch, "watch", "", "Directory to watch; each file created is split.")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(exitOK)
	}

	if (o.in == "") == (o.watch == "") {
		fmt.Fprintln(os.Stderr, pkg+"exactly one of -in and -watch is required")
		flag.Usage()
		os.Exit(exitBadUsage)
	}

	log := newLogger(o.logPath)
	log.Info("starting pnmsplit", "version", version)

	if o.watch != "" {
		err := watch(o, log)
		if err != nil {
			log.Error(pkg+"watch failed", "error", err.Error())
			os.Exit(exitFailed)
		}
		os.Exit(exitOK)
	}

	err := split(o, o.in, o.out, log)
	if err != nil {
		log.Error(pkg+"could not split input", "input", o.in, "error", err.Error())
		os.Exit(exitFailed)
	}
}

// newLogger returns a logger writing to standard error and, if path is not
// empty, to a rotated log file at path.
func newLogger(path string) logging.Logger {
	var w io.Writer = os.Stderr
	if path != "" {
		// Create lumberjack logger to handle logging to file.
		fileLog := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		}
		w = io.MultiWriter(fileLog, os.Stderr)
	}
	return logging.New(logVerbosity, w, logSuppress)
}

// vars returns the config variables given by the flags for splitting the
// input at in into images written with the path prefix out.
func (o options) vars(in, out string) map[string]string {
	return map[string]string{
		config.KeyInput:         "file",
		config.KeyInputPath:     in,
		config.KeyLoop:          strconv.FormatBool(o.loop && in != "-"),
		config.KeyOutputs:       o.outputs,
		config.KeyOutputPath:    out,
		config.KeyFileFPS:       strconv.FormatUint(uint64(o.fps), 10),
		config.KeyMaxRecordSize: strconv.FormatUint(uint64(o.max), 10),
		config.KeyReadSize:      strconv.FormatUint(uint64(o.readSize), 10),
		config.KeyResync:        o.resync,
		config.KeyLogging:       o.logLevel,
	}
}

// split splits the stream at in into images written with the path prefix
// out, returning once the stream has been consumed.
func split(o options, in, out string, log logging.Logger) error {
	cfg := config.Config{Logger: log}
	cfg.Update(o.vars(in, out))

	log.Debug("initialising splitter")
	s, err := splitter.New(cfg)
	if err != nil {
		return fmt.Errorf("could not initialise splitter: %w", err)
	}

	err = s.Start()
	if err != nil {
		return fmt.Errorf("could not start splitter: %w", err)
	}
	err = s.Wait()
	s.Stop()
	if err != nil {
		return err
	}
	log.Info("split input", "input", in)
	return nil
}
