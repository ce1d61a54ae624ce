package definitions

import (
	"fmt"

	"github.com/hwameistor/bootrepair/pkg/boot-repair/config"
)

// Global settings, Read from bootrepair flags
var (
	Debug      bool
	ConfigPath string
	// Config is loaded before any sub command runs
	Config *config.Configuration
)

// ExitError carries the exit code of a command which ran to completion but
// didn't fully succeed
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("finished with exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
