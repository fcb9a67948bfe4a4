package grbl

import (
	"context"
	"time"

	"github.com/ikastra/dlprun/machine"
)

const defaultTimeout = time.Second

// A Light switches the curing light through the fan output of a grbl
// controller.
type Light struct {
	conn    *Conn
	timeout time.Duration
}

var _ machine.Light = &Light{}

// NewLight wraps an open Conn. timeout bounds each command
// acknowledgement; zero means 1s.
func NewLight(c *Conn, timeout time.Duration) *Light {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Light{conn: c, timeout: timeout}
}

func (l *Light) SetLight(ctx context.Context, on bool) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if on {
		return l.conn.Do(ctx, "M106 S255")
	}
	return l.conn.Do(ctx, "M106 S0")
}
