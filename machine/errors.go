package machine

import (
	"errors"
	"fmt"
)

// ErrNoImageSelected rejects a display-on before any image has been
// selected, so an undefined frame is never projected.
var ErrNoImageSelected = errors.New("machine: display on with no image selected")

// A HardwareFault is a failed port call. Target names the subsystem,
// Action the call that failed.
type HardwareFault struct {
	Target string
	Action string
	Err    error
}

func (e *HardwareFault) Error() string {
	return fmt.Sprintf("machine: %s %s: %v", e.Target, e.Action, e.Err)
}

func (e *HardwareFault) Unwrap() error { return e.Err }

// A LineError ties a run failure to the script line that caused it.
type LineError struct {
	Line int
	Raw  string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Raw, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }
