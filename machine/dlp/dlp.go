// Package dlp drives a DLPC343x projector controller over I2C. Frames
// are preloaded splash slots; exposure on/off maps to enabling and
// disabling the blue LED channel.
package dlp

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ikastra/dlprun/images"
	"github.com/ikastra/dlprun/machine"
)

// DefaultAddr is the DLPC343x controller address.
const DefaultAddr = 0x1b

// Controller command opcodes.
const (
	cmdInputSource   = 0x05
	cmdSplashSelect  = 0x0d
	cmdSplashExecute = 0x35
	cmdLEDControl    = 0x50
	cmdLEDEnable     = 0x52
	cmdLEDCurrent    = 0x54
)

const (
	srcSplash = 0x02

	ledOff  = 0x00
	ledBlue = 0b100 // blue channel only; red and green stay dark

	// the controller needs a short gap between writes
	settle = 2 * time.Millisecond
)

// Options configure the I2C connection to the controller.
type Options struct {
	// Bus is the I2C bus name or number, e.g. "1".
	Bus string
	// Addr overrides the controller address. Zero means DefaultAddr.
	Addr uint16
	// BlueCurrent is the 10-bit blue LED drive level. Zero keeps the
	// controller's stored value.
	BlueCurrent uint16

	Log zerolog.Logger
}

// A Projector talks to the controller on a single bus handle. Numeric
// image stems address their splash slot directly; other names get the
// next free slot on first use.
type Projector struct {
	dev *i2c.Dev
	bus i2c.BusCloser
	log zerolog.Logger

	mx    sync.Mutex
	slots map[string]int
	next  int
}

var _ machine.Projector = &Projector{}

// Open initializes the host, opens the bus, and puts the controller in
// manual LED mode with all channels off.
func Open(opts Options) (*Projector, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("dlp: init host: %w", err)
	}
	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("dlp: open bus %q: %w", opts.Bus, err)
	}

	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	p := &Projector{
		dev:   &i2c.Dev{Addr: addr, Bus: bus},
		bus:   bus,
		log:   opts.Log.With().Str("component", "dlp").Logger(),
		slots: make(map[string]int),
	}

	if err := p.setup(opts.BlueCurrent); err != nil {
		bus.Close()
		return nil, err
	}
	return p, nil
}

func (p *Projector) setup(blue uint16) error {
	// manual LED control; nothing lights up until the first exposure
	if err := p.write(cmdLEDControl, 0x01); err != nil {
		return err
	}
	if blue > 0 {
		if err := p.setCurrent(blue); err != nil {
			return err
		}
	}
	if err := p.write(cmdInputSource, srcSplash); err != nil {
		return err
	}
	return p.write(cmdLEDEnable, ledOff)
}

func (p *Projector) write(cmd byte, data ...byte) error {
	if err := p.dev.Tx(append([]byte{cmd}, data...), nil); err != nil {
		return fmt.Errorf("dlp: cmd 0x%02x: %w", cmd, err)
	}
	time.Sleep(settle)
	return nil
}

// setCurrent drives only the blue channel; values are 10-bit little
// endian per channel.
func (p *Projector) setCurrent(blue uint16) error {
	if blue > 0x3ff {
		blue = 0x3ff
	}
	return p.write(cmdLEDCurrent,
		0x00, 0x00,
		0x00, 0x00,
		byte(blue&0xff), byte(blue>>8),
	)
}

func (p *Projector) slot(img images.Image) int {
	p.mx.Lock()
	defer p.mx.Unlock()

	if s, ok := p.slots[img.Name]; ok {
		return s
	}
	stem := strings.TrimSuffix(filepath.Base(img.Path), filepath.Ext(img.Path))
	if n, err := strconv.Atoi(stem); err == nil && n >= 0 && n <= 0xff {
		p.slots[img.Name] = n
		return n
	}
	s := p.next
	p.next++
	p.slots[img.Name] = s
	return s
}

func (p *Projector) Select(ctx context.Context, img images.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slot := p.slot(img)
	p.log.Debug().Str("image", img.Name).Int("slot", slot).Msg("select")

	if err := p.write(cmdSplashSelect, byte(slot)); err != nil {
		return err
	}
	return p.write(cmdSplashExecute)
}

func (p *Projector) SetDisplay(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.log.Debug().Bool("on", on).Msg("display")

	if on {
		return p.write(cmdLEDEnable, ledBlue)
	}
	return p.write(cmdLEDEnable, ledOff)
}

// Close blanks the output and releases the bus.
func (p *Projector) Close() error {
	err := p.write(cmdLEDEnable, ledOff)
	if cerr := p.bus.Close(); err == nil {
		err = cerr
	}
	return err
}
