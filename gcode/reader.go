package gcode

import "io"

type Reader interface {
	Read() (Operation, error)
}

type OpsReader struct {
	Ops []Operation
	n   int
}

func (r *OpsReader) Read() (Operation, error) {
	if r.n == len(r.Ops) {
		return Operation{}, io.EOF
	}

	r.n++
	return r.Ops[r.n-1], nil
}
