package gcode

import (
	"fmt"
	"time"
)

type Opcode int

const (
	OpSelectImage Opcode = iota + 1
	OpDisplayOn
	OpDisplayOff
	OpWait
)

func (c Opcode) String() string {
	switch c {
	case OpSelectImage:
		return "SELECT_IMAGE"
	case OpDisplayOn:
		return "DISPLAY_ON"
	case OpDisplayOff:
		return "DISPLAY_OFF"
	case OpWait:
		return "WAIT"
	}
	return fmt.Sprintf("Opcode(%d)", int(c))
}

// An Operation is one parsed script instruction. Image is set for
// OpSelectImage, Duration for OpWait; Line and Raw identify the source
// line for error reporting.
type Operation struct {
	Code Opcode

	Image    string
	Duration time.Duration

	Line int
	Raw  string
}

func (op Operation) String() string {
	switch op.Code {
	case OpSelectImage:
		return fmt.Sprintf("%s %q", op.Code, op.Image)
	case OpWait:
		return fmt.Sprintf("%s %s", op.Code, op.Duration)
	}
	return op.Code.String()
}
