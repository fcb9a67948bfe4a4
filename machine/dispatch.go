package machine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikastra/dlprun/gcode"
)

// A Dispatcher turns one Operation into port calls and the resulting
// state. Display-on commands the projector before the light so the
// light never cures a stale frame; display-off reverses the order.
type Dispatcher struct {
	Projector Projector
	Light     Light
	Resolver  ImageResolver

	// PreExposure delays display-on and PostExposure follows each
	// display-off, both with the outputs dark. Zero disables them.
	PreExposure  time.Duration
	PostExposure time.Duration
}

// Dispatch executes op against the ports. A non-zero wait instructs the
// caller to dwell before the next operation. On error the state is left
// exactly as it was.
func (d *Dispatcher) Dispatch(ctx context.Context, op gcode.Operation, st *State) (wait time.Duration, err error) {
	switch op.Code {
	case gcode.OpSelectImage:
		img := d.Resolver.Ref(op.Image)
		if err := d.Projector.Select(ctx, img); err != nil {
			return 0, &HardwareFault{Target: "projector", Action: "select", Err: err}
		}
		st.Image = op.Image

	case gcode.OpDisplayOn:
		if st.Image == "" {
			return 0, ErrNoImageSelected
		}
		if _, err := d.Resolver.Resolve(st.Image); err != nil {
			return 0, err
		}
		if err := sleepCtx(ctx, d.PreExposure); err != nil {
			return 0, err
		}
		if err := d.Projector.SetDisplay(ctx, true); err != nil {
			return 0, &HardwareFault{Target: "projector", Action: "display on", Err: err}
		}
		if err := d.Light.SetLight(ctx, true); err != nil {
			return 0, &HardwareFault{Target: "light", Action: "light on", Err: err}
		}
		st.DisplayOn, st.LightOn = true, true

	case gcode.OpDisplayOff:
		wasOn := st.LightOn
		if err := d.Light.SetLight(ctx, false); err != nil {
			return 0, &HardwareFault{Target: "light", Action: "light off", Err: err}
		}
		if err := d.Projector.SetDisplay(ctx, false); err != nil {
			return 0, &HardwareFault{Target: "projector", Action: "display off", Err: err}
		}
		st.DisplayOn, st.LightOn = false, false
		if wasOn {
			if err := sleepCtx(ctx, d.PostExposure); err != nil {
				return 0, err
			}
		}

	case gcode.OpWait:
		return op.Duration, nil

	default:
		return 0, fmt.Errorf("machine: unhandled opcode %v", op.Code)
	}

	return 0, nil
}

// Shutdown forces the light and display off regardless of tracked
// state, continuing past failures.
func (d *Dispatcher) Shutdown(ctx context.Context, st *State) error {
	var errs []error
	if err := d.Light.SetLight(ctx, false); err != nil {
		errs = append(errs, &HardwareFault{Target: "light", Action: "light off", Err: err})
	} else {
		st.LightOn = false
	}
	if err := d.Projector.SetDisplay(ctx, false); err != nil {
		errs = append(errs, &HardwareFault{Target: "projector", Action: "display off", Err: err})
	} else {
		st.DisplayOn = false
	}
	return errors.Join(errs...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
