package grbl

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// ParseStatus extracts the state name from a realtime status report,
// "<Idle|MPos:0.000,0.000,0.000>" -> "Idle". Both the modern pipe and
// the old comma separators are handled.
func ParseStatus(line string) (string, error) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") {
		return "", fmt.Errorf("grbl: not a status report: %q", line)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
	if i := strings.IndexByte(s, '|'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "", fmt.Errorf("grbl: empty status report: %q", line)
	}
	return s, nil
}

// Status sends a realtime '?' and returns the controller's state name,
// e.g. "Idle", "Run", "Alarm".
func (c *Conn) Status(ctx context.Context) (string, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	// drop a stale report
	select {
	case <-c.statusCh:
	default:
	}

	if err := c.writeRealtime('?'); err != nil {
		return "", err
	}

	select {
	case line := <-c.statusCh:
		return ParseStatus(line)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.closeCh:
		return "", io.ErrClosedPipe
	}
}
