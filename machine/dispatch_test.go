package machine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ikastra/dlprun/gcode"
	"github.com/ikastra/dlprun/images"
)

// rig records every port call in order and tracks the would-be hardware
// state, so tests can assert both sequencing and the final outputs.
type rig struct {
	mx    sync.Mutex
	calls []string
	fail  map[string]error

	displayOn bool
	lightOn   bool
}

func (r *rig) record(call string) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.calls = append(r.calls, call)
	if err := r.fail[call]; err != nil {
		return err
	}
	switch call {
	case "display on":
		r.displayOn = true
	case "display off":
		r.displayOn = false
	case "light on":
		r.lightOn = true
	case "light off":
		r.lightOn = false
	}
	return nil
}

func (r *rig) log() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]string(nil), r.calls...)
}

type rigProjector struct{ *rig }

func (p rigProjector) Select(_ context.Context, img images.Image) error {
	return p.record("select " + img.Name)
}

func (p rigProjector) SetDisplay(_ context.Context, on bool) error {
	if on {
		return p.record("display on")
	}
	return p.record("display off")
}

type rigLight struct{ *rig }

func (l rigLight) SetLight(_ context.Context, on bool) error {
	if on {
		return l.record("light on")
	}
	return l.record("light off")
}

type fakeResolver struct {
	missing map[string]bool
}

func (r fakeResolver) Ref(name string) images.Image {
	return images.Image{Name: name, Path: "/img/" + name}
}

func (r fakeResolver) Resolve(name string) (images.Image, error) {
	if r.missing[name] {
		return images.Image{}, &images.NotFoundError{Name: name, Path: "/img/" + name}
	}
	return r.Ref(name), nil
}

func newTestDispatcher(rg *rig, missing ...string) *Dispatcher {
	m := make(map[string]bool, len(missing))
	for _, name := range missing {
		m[name] = true
	}
	return &Dispatcher{
		Projector: rigProjector{rg},
		Light:     rigLight{rg},
		Resolver:  fakeResolver{missing: m},
	}
}

func mustOp(t *testing.T, line string) gcode.Operation {
	t.Helper()
	op, ok, err := gcode.ParseLine(1, line)
	assert.NoError(t, err)
	assert.True(t, ok)
	return op
}

func TestDispatch_Select(t *testing.T) {
	rg := &rig{}
	d := newTestDispatcher(rg)

	var st State
	wait, err := d.Dispatch(context.Background(), mustOp(t, `M6054 "1.png"`), &st)
	assert.NoError(t, err)
	assert.Zero(t, wait)
	assert.Equal(t, []string{"select 1.png"}, rg.log())
	assert.Equal(t, "1.png", st.Image)
	assert.False(t, st.DisplayOn)
	assert.False(t, st.LightOn)
}

func TestDispatch_SelectMissing(t *testing.T) {
	rg := &rig{}
	d := newTestDispatcher(rg, "missing.png")

	var st State
	_, err := d.Dispatch(context.Background(), mustOp(t, `M6054 "missing.png"`), &st)
	assert.NoError(t, err)
	assert.Equal(t, "missing.png", st.Image)
}

func TestDispatch_DisplayOn(t *testing.T) {
	rg := &rig{}
	d := newTestDispatcher(rg)

	st := State{Image: "1.png"}
	wait, err := d.Dispatch(context.Background(), mustOp(t, `M106 S255`), &st)
	assert.NoError(t, err)
	assert.Zero(t, wait)
	assert.Equal(t, []string{"display on", "light on"}, rg.log())
	assert.True(t, st.DisplayOn)
	assert.True(t, st.LightOn)
}

func TestDispatch_DisplayOnNoImage(t *testing.T) {
	rg := &rig{}
	d := newTestDispatcher(rg)

	var st State
	_, err := d.Dispatch(context.Background(), mustOp(t, `M106 S255`), &st)
	assert.ErrorIs(t, err, ErrNoImageSelected)
	assert.Empty(t, rg.log())
	assert.Equal(t, State{}, st)
}

func TestDispatch_DisplayOnMissingImage(t *testing.T) {
	rg := &rig{}
	d := newTestDispatcher(rg, "missing.png")

	st := State{Image: "missing.png"}
	_, err := d.Dispatch(context.Background(), mustOp(t, `M106 S255`), &st)

	var nfErr *images.NotFoundError
	assert.True(t, errors.As(err, &nfErr))
	assert.Equal(t, "missing.png", nfErr.Name)
	assert.Empty(t, rg.log())
	assert.False(t, st.DisplayOn)
	assert.False(t, st.LightOn)
}

func TestDispatch_DisplayOnLightFault(t *testing.T) {
	rg := &rig{fail: map[string]error{"light on": errors.New("bus gone")}}
	d := newTestDispatcher(rg)

	st := State{Image: "1.png"}
	_, err := d.Dispatch(context.Background(), mustOp(t, `M106 S255`), &st)

	var hwErr *HardwareFault
	assert.True(t, errors.As(err, &hwErr))
	assert.Equal(t, "light", hwErr.Target)
	assert.Equal(t, "light on", hwErr.Action)

	assert.Equal(t, []string{"display on", "light on"}, rg.log())
	assert.False(t, st.DisplayOn)
	assert.False(t, st.LightOn)
}

func TestDispatch_DisplayOff(t *testing.T) {
	rg := &rig{displayOn: true, lightOn: true}
	d := newTestDispatcher(rg)

	st := State{Image: "1.png", DisplayOn: true, LightOn: true}
	wait, err := d.Dispatch(context.Background(), mustOp(t, `M106 S0`), &st)
	assert.NoError(t, err)
	assert.Zero(t, wait)
	assert.Equal(t, []string{"light off", "display off"}, rg.log())
	assert.False(t, st.DisplayOn)
	assert.False(t, st.LightOn)
}

func TestDispatch_Wait(t *testing.T) {
	rg := &rig{}
	d := newTestDispatcher(rg)

	var st State
	wait, err := d.Dispatch(context.Background(), mustOp(t, `G4 P1500`), &st)
	assert.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, wait)
	assert.Empty(t, rg.log())
}

func TestDispatch_PreExposureDelay(t *testing.T) {
	rg := &rig{}
	d := newTestDispatcher(rg)
	d.PreExposure = 30 * time.Millisecond

	st := State{Image: "1.png"}
	start := time.Now()
	_, err := d.Dispatch(context.Background(), mustOp(t, `M106 S255`), &st)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, []string{"display on", "light on"}, rg.log())
}

func TestDispatch_PreExposureCancel(t *testing.T) {
	rg := &rig{}
	d := newTestDispatcher(rg)
	d.PreExposure = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	st := State{Image: "1.png"}
	_, err := d.Dispatch(ctx, mustOp(t, `M106 S255`), &st)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rg.log())
	assert.False(t, st.DisplayOn)
}

func TestDispatch_Shutdown(t *testing.T) {
	rg := &rig{displayOn: true, lightOn: true}
	d := newTestDispatcher(rg)

	st := State{Image: "1.png", DisplayOn: true, LightOn: true}
	assert.NoError(t, d.Shutdown(context.Background(), &st))
	assert.Equal(t, []string{"light off", "display off"}, rg.log())
	assert.False(t, rg.displayOn)
	assert.False(t, rg.lightOn)
	assert.False(t, st.DisplayOn)
	assert.False(t, st.LightOn)
}

func TestDispatch_ShutdownFault(t *testing.T) {
	rg := &rig{fail: map[string]error{"light off": errors.New("bus gone")}, displayOn: true, lightOn: true}
	d := newTestDispatcher(rg)

	st := State{DisplayOn: true, LightOn: true}
	err := d.Shutdown(context.Background(), &st)

	var hwErr *HardwareFault
	assert.True(t, errors.As(err, &hwErr))
	assert.Equal(t, "light", hwErr.Target)

	// display off is still attempted after the light fault
	assert.Equal(t, []string{"light off", "display off"}, rg.log())
	assert.False(t, rg.displayOn)
	assert.False(t, st.DisplayOn)
	assert.True(t, st.LightOn)
}
