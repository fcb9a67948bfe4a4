package gcode

import "fmt"

// MalformedLineError indicates a line with a recognized opcode but
// arguments that do not fit its form.
type MalformedLineError struct {
	Line   int
	Raw    string
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("gcode: line %d: malformed line %q: %s", e.Line, e.Raw, e.Reason)
}

// UnknownOpcodeError indicates a line whose leading word is not one of
// the recognized opcodes.
type UnknownOpcodeError struct {
	Line int
	Raw  string
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("gcode: line %d: unknown opcode in %q", e.Line, e.Raw)
}
