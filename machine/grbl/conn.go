// Package grbl drives the curing light through a grbl controller,
// either over a local serial port or through an SPJS bridge.
package grbl

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrReset is returned for a command in flight when the controller
// announces a reset instead of acknowledging it.
var ErrReset = errors.New("grbl: controller reset")

// A ResponseError is a grbl "error:N" or "ALARM:N" reply.
type ResponseError struct {
	Response string
}

func (e *ResponseError) Error() string {
	return "grbl: " + e.Response
}

// Conn speaks the grbl line protocol over a ReadWriter: one command in
// flight at a time, each acknowledged with "ok" or rejected with
// "error:"/"ALARM:".
type Conn struct {
	rw  io.ReadWriter
	log zerolog.Logger

	mx  sync.Mutex // one command in flight
	wmx sync.Mutex // serializes raw writes

	ackCh    chan error
	statusCh chan string
	resetCh  chan struct{}
	closeCh  chan struct{}
	closing  sync.Once
}

func NewConn(rw io.ReadWriter, log zerolog.Logger) *Conn {
	c := &Conn{
		rw:       rw,
		log:      log.With().Str("component", "grbl").Logger(),
		ackCh:    make(chan error, 1),
		statusCh: make(chan string, 1),
		resetCh:  make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close aborts any command in flight and closes the underlying
// ReadWriter if it implements io.Closer.
func (c *Conn) Close() error {
	c.closing.Do(func() { close(c.closeCh) })
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) readLoop() {
	scan := bufio.NewScanner(c.rw)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		switch {
		case line == "":
		case line == "ok":
			c.deliver(c.ackCh, nil)
		case strings.HasPrefix(line, "error:"), strings.HasPrefix(line, "ALARM:"):
			c.deliver(c.ackCh, &ResponseError{Response: line})
		case strings.HasPrefix(line, "<"):
			c.deliverStatus(line)
		case strings.HasPrefix(line, "Grbl"):
			c.log.Info().Str("banner", line).Msg("controller reset")
			select {
			case c.resetCh <- struct{}{}:
			default:
			}
		default:
			c.log.Debug().Str("line", line).Msg("unsolicited")
		}
	}
	if err := scan.Err(); err != nil {
		select {
		case <-c.closeCh:
		default:
			c.log.Error().Err(err).Msg("read")
		}
	}
}

func (c *Conn) deliver(ch chan error, err error) {
	select {
	case ch <- err:
	case <-c.closeCh:
	}
}

func (c *Conn) deliverStatus(line string) {
	for {
		select {
		case c.statusCh <- line:
			return
		default:
		}
		select {
		case <-c.statusCh:
		default:
		}
	}
}

// Do writes one command line and blocks until the controller
// acknowledges it. Cancellation abandons the wait; the command already
// on the wire is not recalled.
func (c *Conn) Do(ctx context.Context, cmd string) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	select {
	case <-c.closeCh:
		return io.ErrClosedPipe
	default:
	}

	// drop leftovers from an abandoned command
	select {
	case <-c.ackCh:
	default:
	}
	select {
	case <-c.resetCh:
	default:
	}

	c.log.Debug().Str("cmd", cmd).Msg("send")
	if err := c.write([]byte(cmd + "\n")); err != nil {
		return err
	}

	select {
	case err := <-c.ackCh:
		return err
	case <-c.resetCh:
		return ErrReset
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closeCh:
		return io.ErrClosedPipe
	}
}

// Unlock clears an alarm lock ($X).
func (c *Conn) Unlock(ctx context.Context) error {
	return c.Do(ctx, "$X")
}

// SoftReset sends the realtime reset byte, wiping the controller's
// queue.
func (c *Conn) SoftReset() error {
	return c.writeRealtime(0x18)
}

func (c *Conn) write(p []byte) error {
	c.wmx.Lock()
	defer c.wmx.Unlock()
	_, err := c.rw.Write(p)
	return err
}

func (c *Conn) writeRealtime(b byte) error {
	select {
	case <-c.closeCh:
		return io.ErrClosedPipe
	default:
	}
	return c.write([]byte{b})
}
