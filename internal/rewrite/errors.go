package rewrite

import "fmt"

// ConfigurationError reports an invocation that cannot start: an unknown
// mode, a bad mode definition or an empty file list. It is always returned
// before any file is opened.
type ConfigurationError struct {
	Mode   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Mode != "" {
		msg += fmt.Sprintf(" (mode %q)", e.Mode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IOError reports a file that could not be read, decoded, transformed or
// written. Op names the failing step.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
