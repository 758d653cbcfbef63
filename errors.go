package cachekit

import (
	"errors"
	"fmt"
)

// ErrInvalidKey is returned by adapters that cannot represent a key on their
// backend (e.g. path separators for the filesystem adapter).
var ErrInvalidKey = errors.New("cachekit: invalid key")

// ConfigError reports an invalid or missing option at construction time.
type ConfigError struct {
	Adapter string
	Option  string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: option %q: %v", e.Adapter, e.Option, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectionError reports a failure to reach or authenticate against a
// backend. It is returned by the first call that needs the connection and is
// not retried.
type ConnectionError struct {
	Adapter string
	Target  string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connect %s: %v", e.Adapter, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrMissingOption is the cause of a ConfigError for a required option.
var ErrMissingOption = errors.New("required option missing")
