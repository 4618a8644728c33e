//go:build !windows && !plan9

package logging

import (
	"log/syslog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syslogSink writes each entry at a fixed syslog priority
type syslogSink struct {
	w     *syslog.Writer
	write func(*syslog.Writer, string) error
}

func (s syslogSink) Write(p []byte) (int, error) {
	if err := s.write(s.w, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s syslogSink) Sync() error { return nil }

func newSyslogCore(tag string, lowest zapcore.Level) (zapcore.Core, error) {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, err
	}

	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	return zapcore.NewTee(
		zapcore.NewCore(enc, syslogSink{w, (*syslog.Writer).Debug}, levelRange(lowest, zapcore.DebugLevel)),
		zapcore.NewCore(enc, syslogSink{w, (*syslog.Writer).Info}, levelRange(max(lowest, zapcore.InfoLevel), zapcore.InfoLevel)),
		zapcore.NewCore(enc, syslogSink{w, (*syslog.Writer).Warning}, zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l == zapcore.WarnLevel })),
		zapcore.NewCore(enc, syslogSink{w, (*syslog.Writer).Err}, levelRange(zapcore.ErrorLevel, zapcore.FatalLevel)),
	), nil
}
