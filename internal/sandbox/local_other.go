//go:build !linux

package sandbox

import (
	"errors"
	"log/slog"
)

// NewLocal is only available on linux.
func NewLocal(cfg LocalConfig, log *slog.Logger) (Sandbox, error) {
	return nil, errors.New("local sandbox requires linux")
}
