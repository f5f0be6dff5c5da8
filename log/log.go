// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides a small leveled logger used across the pdb
// package. It mirrors the shape of a structured logger (key/value
// pairs, level filtering, a Helper convenience wrapper) without
// pulling in a third-party logging framework.
package log

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Level is a logging severity.
type Level int

// Severities, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal logging sink the pdb package writes through.
// Callers may supply their own implementation via Options.Logger.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes log lines to an io.Writer.
type stdLogger struct {
	w io.Writer
}

// NewStdLogger returns a Logger that writes "time level key=value ..."
// lines to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	buf := fmt.Sprintf("%s level=%s", time.Now().Format(time.RFC3339), level)
	for i := 0; i < len(keyvals); i += 2 {
		buf += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	_, err := fmt.Fprintln(l.w, buf)
	return err
}

// filter drops log records below a minimum level.
type filter struct {
	Logger
	level Level
}

// FilterOption configures a filtering Logger.
type FilterOption func(*filter)

// FilterLevel sets the minimum level that passes the filter.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) {
		f.level = level
	}
}

// NewFilter wraps logger with level filtering.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &filter{Logger: logger, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.Logger.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in a Helper.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

// Debugf logs at debug level.
func (h *Helper) Debugf(format string, a ...interface{}) {
	h.log(LevelDebug, format, a...)
}

// Infof logs at info level.
func (h *Helper) Infof(format string, a ...interface{}) {
	h.log(LevelInfo, format, a...)
}

// Warnf logs at warn level.
func (h *Helper) Warnf(format string, a ...interface{}) {
	h.log(LevelWarn, format, a...)
}

// Errorf logs at error level.
func (h *Helper) Errorf(format string, a ...interface{}) {
	h.log(LevelError, format, a...)
}

func (h *Helper) log(level Level, format string, a ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, "msg", fmt.Sprintf(format, a...))
}

// Discard is a Logger that throws every record away; a caller can pass
// it as Options.Logger to silence the parser. The default when no
// logger is supplied is NewStderrHelper's Warn-level stderr logger.
var Discard Logger = discard{}

type discard struct{}

func (discard) Log(Level, ...interface{}) error { return nil }

// NewStderrHelper is a convenience constructor matching the default
// wiring used by Open/OpenFile/OpenBytes: errors and warnings only,
// written to os.Stderr.
func NewStderrHelper() *Helper {
	return NewHelper(NewFilter(NewStdLogger(os.Stderr), FilterLevel(LevelWarn)))
}
