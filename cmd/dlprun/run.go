package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ikastra/dlprun/config"
	"github.com/ikastra/dlprun/gcode"
	"github.com/ikastra/dlprun/images"
	"github.com/ikastra/dlprun/machine"
	"github.com/ikastra/dlprun/machine/dlp"
	"github.com/ikastra/dlprun/machine/grbl"
	"github.com/ikastra/dlprun/spjs"
)

func newRunCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the exposure script against the hardware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(root)
			if err != nil {
				return err
			}
			return runScript(cfg, log)
		},
	}
}

func runScript(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f, err := os.Open(cfg.GcodeFile)
	if err != nil {
		return err
	}
	defer f.Close()

	res := &images.Resolver{Dir: cfg.ImageDir}

	if cfg.Preflight {
		rep, err := machine.Preflight(gcode.NewParser(f), res)
		if err != nil {
			return fmt.Errorf("preflight: %w", err)
		}
		if len(rep.Missing) > 0 {
			return fmt.Errorf("preflight: missing images: %s", strings.Join(rep.Missing, ", "))
		}
		log.Info().
			Int("ops", rep.Ops).
			Int("exposures", rep.Exposures).
			Dur("dwell", rep.Waited).
			Int("images", len(rep.Images)).
			Msg("preflight passed")
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	proj, light, closePorts, err := openPorts(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePorts()

	eng := machine.NewEngine(&machine.Dispatcher{
		Projector:    proj,
		Light:        light,
		Resolver:     res,
		PreExposure:  cfg.PreExposureDelay.Std(),
		PostExposure: cfg.PostExposureDelay.Std(),
	})
	eng.Log = log

	if cfg.MonitorAddr != "" {
		srv := startMonitor(cfg.MonitorAddr, eng, cancel, cfg.ImageDir, log)
		defer srv.Close()
	}

	err = eng.Run(ctx, gcode.NewParser(f))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openPorts builds the projector and light from the config. The
// returned close func releases whatever was opened, in reverse order.
func openPorts(ctx context.Context, cfg *config.Config, log zerolog.Logger) (machine.Projector, machine.Light, func(), error) {
	if cfg.DryRun {
		log.Info().Msg("dry run, hardware disabled")
		return machine.NoopProjector{}, machine.NoopLight{}, func() {}, nil
	}

	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn().Err(err).Msg("close port")
			}
		}
	}

	var proj machine.Projector = machine.NoopProjector{}
	if cfg.ProjectorEnabled {
		p, err := dlp.Open(dlp.Options{
			Bus:         strconv.Itoa(cfg.DisplayIndex),
			BlueCurrent: uint16(cfg.BlueBrightness),
			Log:         log,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open projector: %w", err)
		}
		closers = append(closers, p.Close)
		proj = p
	}

	var light machine.Light
	if cfg.SPJSURL != "" {
		sp := spjs.NewClient(cfg.SPJSURL, log)
		light = grbl.NewSPJSLight(sp, cfg.SerialPort, cfg.SerialTimeout.Std(), log)
	} else {
		conn, err := grbl.Open(ctx, grbl.Options{
			Port:   cfg.SerialPort,
			Baud:   cfg.BaudRate,
			Unlock: cfg.UnlockOnOpen,
			Log:    log,
		})
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("open light: %w", err)
		}
		closers = append(closers, conn.Close)
		light = grbl.NewLight(conn, cfg.SerialTimeout.Std())
	}

	return proj, light, closeAll, nil
}
