package machine

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ikastra/dlprun/gcode"
)

// Stats counts what a run executed.
type Stats struct {
	Ops       int           `json:"ops"`
	Selects   int           `json:"selects"`
	Exposures int           `json:"exposures"`
	Blanks    int           `json:"blanks"`
	Dwells    int           `json:"dwells"`
	Waited    time.Duration `json:"waited"`
}

// A Snapshot is a point-in-time copy of the run for observers.
type Snapshot struct {
	Status    Status `json:"status"`
	Line      int    `json:"line"`
	Image     string `json:"image,omitempty"`
	DisplayOn bool   `json:"display_on"`
	LightOn   bool   `json:"light_on"`
	Stats     Stats  `json:"stats"`
	Err       string `json:"error,omitempty"`
}

// An Engine owns the single thread of control over the hardware: it
// reads operations in order, dispatches each to completion, and dwells
// between them. A dwell blocks at least its requested duration; the
// only overshoot is ordinary timer jitter. Exactly one Run per Engine.
type Engine struct {
	Dispatcher *Dispatcher
	Log        zerolog.Logger

	// ShutdownTimeout bounds the forced off sequence once the run
	// context is gone. Zero means 5s.
	ShutdownTimeout time.Duration

	st    State
	stats Stats

	mx      sync.Mutex
	started bool
	snap    Snapshot
	updates chan Snapshot
}

func NewEngine(d *Dispatcher) *Engine {
	return &Engine{
		Dispatcher: d,
		Log:        zerolog.Nop(),
		snap:       Snapshot{Status: StatusInit},
		updates:    make(chan Snapshot, 1),
	}
}

// Snapshot returns the most recently published run state.
func (e *Engine) Snapshot() Snapshot {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.snap
}

// Updates emits a snapshot after every state change and closes when the
// run ends. A slow receiver only sees the most recent one.
func (e *Engine) Updates() <-chan Snapshot {
	return e.updates
}

func (e *Engine) publish(status Status, err error) {
	e.mx.Lock()
	e.snap = Snapshot{
		Status:    status,
		Line:      e.st.Line,
		Image:     e.st.Image,
		DisplayOn: e.st.DisplayOn,
		LightOn:   e.st.LightOn,
		Stats:     e.stats,
	}
	if err != nil {
		e.snap.Err = err.Error()
	}
	snap := e.snap
	e.mx.Unlock()

	for {
		select {
		case e.updates <- snap:
			return
		default:
		}
		select {
		case <-e.updates:
		default:
		}
	}
}

// Run executes the script from r until it is exhausted, fails, or ctx
// is cancelled. Every exit path ends with a forced light-off and
// display-off before the terminal status is published. Run returns nil
// on success and ctx.Err() (joined with any shutdown fault) on
// cancellation.
func (e *Engine) Run(ctx context.Context, r gcode.Reader) error {
	e.mx.Lock()
	if e.started {
		e.mx.Unlock()
		return errors.New("machine: engine already ran")
	}
	e.started = true
	e.mx.Unlock()
	defer close(e.updates)

	e.Log.Info().Msg("run started")
	e.publish(StatusRunning, nil)

	runErr := e.loop(ctx, r)
	shutErr := e.shutdown()
	if shutErr != nil {
		e.Log.Error().Err(shutErr).Msg("shutdown fault")
	}

	err := runErr
	switch {
	case err == nil:
		err = shutErr
	case shutErr != nil:
		err = errors.Join(err, shutErr)
	}

	switch {
	case err == nil:
		e.publish(StatusFinished, nil)
		e.Log.Info().Int("ops", e.stats.Ops).Dur("waited", e.stats.Waited).Msg("run finished")
	case errors.Is(err, context.Canceled):
		e.publish(StatusCancelled, err)
		e.Log.Info().Int("line", e.st.Line).Msg("run cancelled")
	default:
		e.publish(StatusFailed, err)
		e.Log.Error().Err(err).Int("line", e.st.Line).Msg("run failed")
	}
	return err
}

func (e *Engine) loop(ctx context.Context, r gcode.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		op, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		e.st.Line = op.Line
		e.Log.Debug().Int("line", op.Line).Stringer("op", op).Msg("dispatch")

		wait, err := e.Dispatcher.Dispatch(ctx, op, &e.st)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &LineError{Line: op.Line, Raw: op.Raw, Err: err}
		}
		e.count(op)

		if wait > 0 {
			e.publish(StatusWaiting, nil)
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			e.stats.Waited += wait
		}
		e.publish(StatusRunning, nil)
	}
}

func (e *Engine) count(op gcode.Operation) {
	e.stats.Ops++
	switch op.Code {
	case gcode.OpSelectImage:
		e.stats.Selects++
	case gcode.OpDisplayOn:
		e.stats.Exposures++
	case gcode.OpDisplayOff:
		e.stats.Blanks++
	case gcode.OpWait:
		e.stats.Dwells++
	}
}

// shutdown runs on its own context; the run context may already be
// cancelled.
func (e *Engine) shutdown() error {
	d := e.ShutdownTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	return e.Dispatcher.Shutdown(ctx, &e.st)
}
