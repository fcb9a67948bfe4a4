package grbl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// Options configure a direct serial connection to the controller.
type Options struct {
	// Port is the device path, e.g. /dev/ttyUSB0.
	Port string
	// Baud defaults to 115200.
	Baud int
	// Settle is how long to wait for the controller to boot after the
	// port opens. Zero means 2s.
	Settle time.Duration
	// Unlock sends $X once the controller is up, clearing a leftover
	// alarm lock.
	Unlock bool

	Log zerolog.Logger
}

// Open connects to a grbl controller over a local serial port and waits
// for it to come up. Opening the port resets most boards, so Open
// blocks through the boot banner before returning.
func Open(ctx context.Context, opts Options) (*Conn, error) {
	baud := opts.Baud
	if baud == 0 {
		baud = 115200
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = 2 * time.Second
	}

	port, err := serial.OpenPort(&serial.Config{Name: opts.Port, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("grbl: open %s: %w", opts.Port, err)
	}

	c := NewConn(port, opts.Log)

	select {
	case <-c.resetCh:
	case <-time.After(settle):
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}

	if opts.Unlock {
		unlockCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
		if err := c.Unlock(unlockCtx); err != nil {
			c.Close()
			return nil, fmt.Errorf("grbl: unlock: %w", err)
		}
	}

	return c, nil
}
