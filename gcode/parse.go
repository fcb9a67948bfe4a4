package gcode

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

func Parse(data string) ([]Operation, error) {
	r := NewParser(bytes.NewBufferString(data))
	var ops []Operation
	for {
		op, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func MustParse(data string) []Operation {
	ops, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return ops
}

// ParseLine interprets a single script line. ok is false for lines that
// are blank or comment-only. n is the 1-based line number carried into
// the Operation and any error.
func ParseLine(n int, text string) (Operation, bool, error) {
	raw := strings.TrimRight(text, "\r\n")

	s := strings.TrimSpace(stripComment(raw))
	if s == "" {
		return Operation{}, false, nil
	}

	malformed := func(reason string) (Operation, bool, error) {
		return Operation{}, false, &MalformedLineError{Line: n, Raw: raw, Reason: reason}
	}

	op := Operation{Line: n, Raw: raw}

	fields := strings.Fields(s)
	switch fields[0] {
	case "M6054":
		name, reason := quotedArg(strings.TrimSpace(s[len("M6054"):]))
		if reason != "" {
			return malformed(reason)
		}
		op.Code, op.Image = OpSelectImage, name
	case "M106":
		if len(fields) != 2 {
			return malformed("want a single S argument")
		}
		switch fields[1] {
		case "S255":
			op.Code = OpDisplayOn
		case "S0":
			op.Code = OpDisplayOff
		default:
			return malformed("S argument must be 0 or 255")
		}
	case "G4":
		if len(fields) != 2 || !strings.HasPrefix(fields[1], "P") {
			return malformed("want a single P<ms> argument")
		}
		ms, err := strconv.Atoi(fields[1][1:])
		if err != nil || ms < 0 {
			return malformed("P argument must be a non-negative integer")
		}
		op.Code, op.Duration = OpWait, time.Duration(ms)*time.Millisecond
	default:
		return Operation{}, false, &UnknownOpcodeError{Line: n, Raw: raw}
	}

	return op, true, nil
}

// stripComment drops everything from the first unescaped ';' on. A
// backslash escapes a semicolon and is itself dropped; all other
// backslashes pass through.
func stripComment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == ';' {
			b.WriteByte(';')
			i++
			continue
		}
		if s[i] == ';' {
			break
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func quotedArg(s string) (name, reason string) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", "filename must be a quoted string"
	}
	name = s[1 : len(s)-1]
	if name == "" {
		return "", "filename is empty"
	}
	if strings.Contains(name, `"`) {
		return "", "stray quote in filename"
	}
	return name, ""
}
