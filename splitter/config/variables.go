/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/pnmsplit/codec/codecutil"
	"github.com/ausocean/utils/logging"
)

// Config map Keys.
const (
	KeyFileFPS              = "FileFPS"
	KeyInput                = "Input"
	KeyInputCodec           = "InputCodec"
	KeyInputPath            = "InputPath"
	KeyLogging              = "logging"
	KeyLoop                 = "Loop"
	KeyMaxFileSize          = "MaxFileSize"
	KeyMaxRecordSize        = "MaxRecordSize"
	KeyOutputPath           = "OutputPath"
	KeyOutputs              = "Outputs"
	KeyPoolCapacity         = "PoolCapacity"
	KeyPoolStartElementSize = "PoolStartElementSize"
	KeyPoolWriteTimeout     = "PoolWriteTimeout"
	KeyReadSize             = "ReadSize"
	KeyResync               = "Resync"
	KeySuppress             = "Suppress"
)

// Config map parameter types.
const (
	typeString = "string"
	typeUint   = "uint"
	typeBool   = "bool"
)

// Default variable values.
const (
	// General splitter defaults.
	defaultInput      = InputFile
	defaultOutput     = OutputFiles
	defaultInputCodec = codecutil.PNM
	defaultVerbosity  = logging.Error
	defaultFileFPS    = 0
	defaultReadSize   = 4 << 10 // bytes
	defaultResync     = ResyncDiscard

	// Ring buffer defaults.
	defaultPoolCapacity         = 50000000 // => 50MB
	defaultPoolStartElementSize = 1000     // bytes
	defaultPoolWriteTimeout     = 5        // Seconds.
)

// Variables describes the variables that can be used for splitter control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyFileFPS,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.FileFPS = parseUint(KeyFileFPS, v, c) },
		Validate: func(c *Config) {
			if c.FileFPS > 0 && c.Input != InputFile {
				c.LogInvalidField(KeyFileFPS, defaultFileFPS)
				c.FileFPS = defaultFileFPS
			}
		},
	},
	{
		Name: KeyInput,
		Type: "enum:file,manual",
		Update: func(c *Config, v string) {
			c.Input = parseEnum(
				KeyInput,
				v,
				map[string]uint8{
					"file":   InputFile,
					"manual": InputManual,
				},
				c,
			)
		},
		Validate: func(c *Config) {
			switch c.Input {
			case InputFile, InputManual:
			default:
				c.LogInvalidField(KeyInput, defaultInput)
				c.Input = defaultInput
			}
		},
	},
	{
		Name: KeyInputCodec,
		Type: "enum:pnm",
		Update: func(c *Config, v string) {
			c.InputCodec = v
		},
		Validate: func(c *Config) {
			if !codecutil.IsValid(c.InputCodec) {
				c.LogInvalidField(KeyInputCodec, defaultInputCodec)
				c.InputCodec = defaultInputCodec
			}
		},
	},
	{
		Name:   KeyInputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.InputPath = v },
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyLoop,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Loop = parseBool(KeyLoop, v, c) },
	},
	{
		Name:   KeyMaxFileSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.MaxFileSize = parseUint(KeyMaxFileSize, v, c) },
	},
	{
		Name:   KeyMaxRecordSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.MaxRecordSize = parseUint(KeyMaxRecordSize, v, c) },
	},
	{
		Name:   KeyOutputPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.OutputPath = v },
	},
	{
		Name: KeyOutputs,
		Type: "enums:File,Files",
		Update: func(c *Config, v string) {
			outputs := strings.Split(v, ",")
			c.Outputs = make([]uint8, 0, len(outputs))
			for _, output := range outputs {
				switch strings.ToLower(strings.TrimSpace(output)) {
				case "file":
					c.Outputs = append(c.Outputs, OutputFile)
				case "files":
					c.Outputs = append(c.Outputs, OutputFiles)
				default:
					c.Logger.Warning("invalid outputs param", "value", v)
				}
			}
		},
		Validate: func(c *Config) {
			if len(c.Outputs) == 0 {
				c.LogInvalidField(KeyOutputs, defaultOutput)
				c.Outputs = append(c.Outputs, defaultOutput)
			}
		},
	},
	{
		Name:   KeyPoolCapacity,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PoolCapacity = parseUint(KeyPoolCapacity, v, c) },
		Validate: func(c *Config) {
			c.PoolCapacity = lessThanOrEqual(KeyPoolCapacity, c.PoolCapacity, 0, c, defaultPoolCapacity)
		},
	},
	{
		Name:   KeyPoolStartElementSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PoolStartElementSize = parseUint(KeyPoolStartElementSize, v, c) },
		Validate: func(c *Config) {
			c.PoolStartElementSize = lessThanOrEqual(KeyPoolStartElementSize, c.PoolStartElementSize, 0, c, defaultPoolStartElementSize)
		},
	},
	{
		Name:   KeyPoolWriteTimeout,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.PoolWriteTimeout = parseUint(KeyPoolWriteTimeout, v, c) },
		Validate: func(c *Config) {
			c.PoolWriteTimeout = lessThanOrEqual(KeyPoolWriteTimeout, c.PoolWriteTimeout, 0, c, defaultPoolWriteTimeout)
		},
	},
	{
		Name:     KeyReadSize,
		Type:     typeUint,
		Update:   func(c *Config, v string) { c.ReadSize = parseUint(KeyReadSize, v, c) },
		Validate: func(c *Config) { c.ReadSize = lessThanOrEqual(KeyReadSize, c.ReadSize, 0, c, defaultReadSize) },
	},
	{
		Name: KeyResync,
		Type: "enum:skip,discard",
		Update: func(c *Config, v string) {
			c.Resync = parseEnum(
				KeyResync,
				v,
				map[string]uint8{
					"skip":    ResyncSkip,
					"discard": ResyncDiscard,
				},
				c,
			)
		},
		Validate: func(c *Config) {
			switch c.Resync {
			case ResyncSkip, ResyncDiscard:
			default:
				c.LogInvalidField(KeyResync, defaultResync)
				c.Resync = defaultResync
			}
		},
	},
	{
		Name: KeySuppress,
		Type: typeBool,
		Update: func(c *Config, v string) {
			c.Suppress = parseBool(KeySuppress, v, c)
			if l, ok := c.Logger.(*logging.JSONLogger); ok {
				l.SetSuppress(c.Suppress)
			}
		},
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

func parseEnum(n, v string, enums map[string]uint8, c *Config) uint8 {
	_v, ok := enums[strings.ToLower(v)]
	if !ok {
		c.Logger.Warning(fmt.Sprintf("invalid value for %s param", n), "value", v)
	}
	return _v
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}
