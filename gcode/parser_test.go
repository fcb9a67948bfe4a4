package gcode

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParser(t *testing.T) {
	p := NewParser(strings.NewReader("; job header\n\nM6054 \"0001.png\"\nM106 S255\nG4 P100\nM106 S0"))

	op, err := p.Read()
	assert.NoError(t, err)
	assert.Equal(t, OpSelectImage, op.Code)
	assert.Equal(t, "0001.png", op.Image)
	assert.Equal(t, 3, op.Line)

	op, err = p.Read()
	assert.NoError(t, err)
	assert.Equal(t, OpDisplayOn, op.Code)
	assert.Equal(t, 4, op.Line)

	op, err = p.Read()
	assert.NoError(t, err)
	assert.Equal(t, OpWait, op.Code)

	op, err = p.Read()
	assert.NoError(t, err)
	assert.Equal(t, OpDisplayOff, op.Code)
	assert.Equal(t, 6, op.Line)
	assert.Equal(t, 6, p.Line())

	_, err = p.Read()
	assert.Equal(t, io.EOF, err)
}

func TestParser_ErrLine(t *testing.T) {
	p := NewParser(strings.NewReader("M106 S255\n; fine\nbogus line\n"))

	_, err := p.Read()
	assert.NoError(t, err)

	_, err = p.Read()
	var uErr *UnknownOpcodeError
	assert.True(t, errors.As(err, &uErr))
	assert.Equal(t, 3, uErr.Line)
	assert.Equal(t, "bogus line", uErr.Raw)
}
