// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dclog provides the process-wide leveled logger, used both
// during bootstrap (flag parsing, config-file resolution, plugin
// loading) and by every internal runtime package once a pipeline is
// running. cmd/dcrunner sets its level from DC_LOG or -loglevel.
//
// Uses these prefixes: https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package dclog

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]    "
	InfoPrefix  string = "<6>[INFO]     "
	WarnPrefix  string = "<4>[WARNING]  "
	ErrPrefix   string = "<3>[ERROR]    "
)

var (
	DebugLog *log.Logger = log.New(DebugWriter, DebugPrefix, 0)
	InfoLog  *log.Logger = log.New(InfoWriter, InfoPrefix, 0)
	WarnLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	ErrLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	DebugTimeLog *log.Logger = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	InfoTimeLog  *log.Logger = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	WarnTimeLog  *log.Logger = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	ErrTimeLog   *log.Logger = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel maps DC_LOG / -loglevel values onto writer discarding,
// across the `error|warn|info|debug|trace` level set (trace folds into
// debug at this layer).
func SetLevel(lvl string) {
	switch lvl {
	case "error", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug", "trace":
		// Nothing to discard.
	default:
		fmt.Fprintf(os.Stderr, "dclog: invalid loglevel %q, using 'info'\n", lvl)
		SetLevel("info")
	}
}

func SetLogDateTime(v bool) {
	logDateTime = v
}

func printStr(v ...interface{}) string { return fmt.Sprint(v...) }

func Debug(v ...interface{}) {
	if DebugWriter == io.Discard {
		return
	}
	if logDateTime {
		DebugTimeLog.Output(2, printStr(v...))
	} else {
		DebugLog.Output(2, printStr(v...))
	}
}

func Info(v ...interface{}) {
	if InfoWriter == io.Discard {
		return
	}
	if logDateTime {
		InfoTimeLog.Output(2, printStr(v...))
	} else {
		InfoLog.Output(2, printStr(v...))
	}
}

func Warn(v ...interface{}) {
	if WarnWriter == io.Discard {
		return
	}
	if logDateTime {
		WarnTimeLog.Output(2, printStr(v...))
	} else {
		WarnLog.Output(2, printStr(v...))
	}
}

func Error(v ...interface{}) {
	out := printStr(v...)
	if logDateTime {
		ErrTimeLog.Output(2, out)
	} else {
		ErrLog.Output(2, out)
	}
}

func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func Debugf(format string, v ...interface{}) { Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { Error(fmt.Sprintf(format, v...)) }
func Fatalf(format string, v ...interface{}) { Fatal(fmt.Sprintf(format, v...)) }
