package gamecompat

import (
	"errors"

	"goflare.io/gamecompat/internal/config"
)

var (
	// ErrInvalidConfig is wrapped by New when a setting is out of range.
	ErrInvalidConfig = config.ErrInvalid
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("gamecompat: client is closed")
)
