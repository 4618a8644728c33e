// Package logging builds the zap loggers used by the p4dctl command: plain
// console output split across stdout and stderr, or syslog when quiet.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTag is the syslog tag used when Options.Tag is empty
const DefaultTag = "p4dctl-ng"

// Options selects the logger's destination and verbosity
type Options struct {
	// Quiet sends every message to syslog instead of the console
	Quiet bool
	// Tag is the syslog tag
	Tag string
	// Debug lowers the minimum level to debug
	Debug bool
	// Stdout and Stderr override the console streams; nil means os.Stdout and os.Stderr
	Stdout io.Writer
	Stderr io.Writer
}

// New builds a logger for opts. Console output carries only the message text:
// info and warnings go to stdout, errors to stderr.
func New(opts Options) (*zap.Logger, error) {
	lowest := zapcore.InfoLevel
	if opts.Debug {
		lowest = zapcore.DebugLevel
	}

	if opts.Quiet {
		tag := opts.Tag
		if tag == "" {
			tag = DefaultTag
		}
		core, err := newSyslogCore(tag, lowest)
		if err != nil {
			return nil, err
		}
		return zap.New(core), nil
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	enc := zapcore.NewConsoleEncoder(messageOnly())
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(stdout), levelRange(lowest, zapcore.WarnLevel)),
		zapcore.NewCore(enc, zapcore.AddSync(stderr), levelRange(zapcore.ErrorLevel, zapcore.FatalLevel)),
	)
	return zap.New(core), nil
}

func levelRange(lo, hi zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l >= lo && l <= hi
	}
}

// messageOnly drops time, level and caller so console lines read like plain output.
// Structured fields are still appended for debug diagnostics.
func messageOnly() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}
