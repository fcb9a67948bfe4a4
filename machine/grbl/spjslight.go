package grbl

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ikastra/dlprun/machine"
	"github.com/ikastra/dlprun/spjs"
)

var lastID int64

func nextID() string {
	id := atomic.AddInt64(&lastID, 1)
	return "cmd_" + strconv.FormatInt(id, 36)
}

// spjsConn is the slice of the SPJS client the light needs.
type spjsConn interface {
	SendJSON(spjs.JSON)
	WriteString(string)
	Messages() chan interface{}
}

// An SPJSLight switches the curing light through a grbl controller
// behind a Serial Port JSON Server.
type SPJSLight struct {
	sp   spjsConn
	port string
	log  zerolog.Logger

	timeout time.Duration

	cmds    chan spjsCmd
	waiting map[string]chan error
}

type spjsCmd struct {
	id   string
	data string
	wait chan error
}

var _ machine.Light = &SPJSLight{}

// NewSPJSLight targets a named port on the server. timeout bounds each
// command completion; zero means 5s.
func NewSPJSLight(sp *spjs.Client, port string, timeout time.Duration, log zerolog.Logger) *SPJSLight {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	l := &SPJSLight{
		sp:      sp,
		port:    port,
		log:     log.With().Str("component", "spjs-light").Logger(),
		timeout: timeout,
		cmds:    make(chan spjsCmd, 16),
		waiting: make(map[string]chan error),
	}
	go l.loop()
	return l
}

func (l *SPJSLight) loop() {
	for {
		select {
		case resp := <-l.sp.Messages():
			l.handle(resp)
		case cmd := <-l.cmds:
			l.waiting[cmd.id] = cmd.wait
			l.sp.SendJSON(spjs.JSON{
				Port: l.port,
				Data: []spjs.Data{{Data: cmd.data, ID: cmd.id}},
			})
		}
	}
}

func (l *SPJSLight) handle(resp interface{}) {
	switch msg := resp.(type) {
	case *spjs.CmdStatus:
		switch msg.Cmd {
		case "WipedQueue":
			for id, ch := range l.waiting {
				ch <- errors.New("grbl: queue wiped")
				delete(l.waiting, id)
			}
		case "Complete":
			if ch := l.waiting[msg.ID]; ch != nil {
				ch <- nil
				delete(l.waiting, msg.ID)
			}
		}
	case *spjs.DataFrame:
		if data := strings.TrimSpace(msg.Data); strings.HasPrefix(data, "error:") || strings.HasPrefix(data, "ALARM:") {
			l.log.Warn().Str("data", data).Msg("controller error")
		}
	case *spjs.SerialPortList:
		for _, port := range msg.SerialPorts {
			if port.Name != l.port {
				continue
			}
			if !port.IsOpen {
				l.log.Info().Str("port", l.port).Msg("opening port")
				l.sp.WriteString("open " + l.port + " grbl 115200")
			}
		}
	case *spjs.ErrorMessage:
		l.log.Error().Str("error", msg.Error).Msg("server error")
	}
}

func (l *SPJSLight) SetLight(ctx context.Context, on bool) error {
	if on {
		return l.do(ctx, "M106 S255")
	}
	return l.do(ctx, "M106 S0")
}

func (l *SPJSLight) do(ctx context.Context, cmd string) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	wait := make(chan error, 1)

	select {
	case l.cmds <- spjsCmd{id: nextID(), data: cmd + "\n", wait: wait}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
