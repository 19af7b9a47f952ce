package log

import (
	"io"
	"log"
	"os"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

type Logger struct {
	level Level
	err   *log.Logger
	warn  *log.Logger
	info  *log.Logger
	debug *log.Logger
}

func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		level: level,
		err:   log.New(out, "ERROR: ", log.LstdFlags),
		warn:  log.New(out, "WARN: ", log.LstdFlags),
		info:  log.New(out, "INFO: ", log.LstdFlags),
		debug: log.New(out, "DEBUG: ", log.LstdFlags),
	}
}

// FromVerbosity maps a repeated -v count onto a level, starting at warnings.
func FromVerbosity(n int) Level {
	level := LevelWarn + Level(n)
	if level > LevelDebug {
		level = LevelDebug
	}
	return level
}

func (l *Logger) Errorf(format string, args ...any) {
	l.err.Printf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l.level >= LevelWarn {
		l.warn.Printf(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l.level >= LevelInfo {
		l.info.Printf(format, args...)
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.level >= LevelDebug {
		l.debug.Printf(format, args...)
	}
}

func (l *Logger) Level() Level {
	return l.level
}
