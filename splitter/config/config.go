/*
NAME
  config.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for the splitter.
package config

import (
	"github.com/ausocean/utils/logging"
)

// Enums to define inputs and outputs.
const (
	// Indicates no option has been set.
	NothingDefined = iota

	// Inputs.
	InputFile
	InputManual

	// Outputs.
	OutputFile
	OutputFiles
)

// Resync policies applied when retained bytes stop looking like a header.
const (
	ResyncDiscard = iota // Abandon the retained bytes and probe the fresh chunk.
	ResyncSkip           // Skip noise byte by byte, keeping the retained bytes in the window.
)

// Config provides parameters relevant to a splitter instance. A new config must
// be passed to the constructor. Default values for these fields are defined
// as consts in variables.go.
type Config struct {
	FileFPS uint // Defines the rate at which records from a file source are written out.

	Input uint8

	// InputCodec names the stream format; only pnm is understood.
	InputCodec string

	InputPath string

	Logger logging.Logger

	LogLevel int8

	Loop          bool // If true will restart reading of input after an io.EOF.
	MaxFileSize   uint // Maximum size in bytes that a file will be written when File output is to be used. A value of 0 means unlimited.
	MaxRecordSize uint // Largest number of bytes held while looking for a record's end. A value of 0 means unlimited.

	OutputPath string

	Outputs []uint8

	PoolCapacity         uint // The number of bytes the pool buffer will occupy.
	PoolStartElementSize uint // The starting element size of the pool buffer from which element size will increase to accomodate records.
	PoolWriteTimeout     uint // The pool buffer write timeout in seconds.

	ReadSize uint // Number of bytes requested from the input per read.

	Resync uint8

	Suppress bool // Holds logger suppression state.
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
