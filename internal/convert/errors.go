package convert

import (
	"errors"
	"fmt"
)

// ErrNotPrepared reports Render called outside the Prepared state. This is
// a caller programming error and has no side effects.
var ErrNotPrepared = errors.New("converter is not prepared")

// ConfigError reports a Prepare that could not build a working pipeline:
// unsupported input format or failed buffer-pool allocation. The converter
// stays Unprepared; the caller may retry with a different configuration.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("converter configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("converter configuration: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }
