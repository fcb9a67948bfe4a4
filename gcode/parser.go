package gcode

import (
	"bufio"
	"io"
)

// Parser reads Operations from a script, skipping blank and
// comment-only lines. It returns io.EOF when the input is exhausted.
type Parser struct {
	br   *bufio.Reader
	line int
}

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}

	return &Parser{br: bufio.NewReader(r)}
}

// Line reports the number of the last line read, 1-based.
func (p *Parser) Line() int { return p.line }

func (p *Parser) Read() (Operation, error) {
	for {
		s, err := p.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return Operation{}, err
		}
		p.line++

		op, ok, err := ParseLine(p.line, s)
		if err != nil {
			return Operation{}, err
		}
		if !ok {
			continue
		}

		return op, nil
	}
}
