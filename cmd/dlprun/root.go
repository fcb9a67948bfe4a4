package main

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ikastra/dlprun/config"
)

type rootFlags struct {
	configPath string
	logLevel   string

	gcodeFile string
	imageDir  string
	port      string
	dryRun    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "dlprun",
		Short:         "dlprun drives a DLP resin printer from a gcode exposure script",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "dlprun.yml", "Path of the config file.")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log_level from the config.")
	cmd.PersistentFlags().StringVar(&flags.gcodeFile, "gcode", "", "Override gcode_file from the config.")
	cmd.PersistentFlags().StringVar(&flags.imageDir, "images", "", "Override image_dir from the config.")
	cmd.PersistentFlags().StringVar(&flags.port, "port", "", "Override serial_port from the config.")
	cmd.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "Run the script without touching hardware.")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig layers flag overrides onto the config file, validates the
// result, and builds the root logger.
func loadConfig(flags *rootFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if flags.gcodeFile != "" {
		cfg.GcodeFile = flags.gcodeFile
	}
	if flags.imageDir != "" {
		cfg.ImageDir = flags.imageDir
	}
	if flags.port != "" {
		cfg.SerialPort = flags.port
	}
	if flags.dryRun {
		cfg.DryRun = true
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, zerolog.Nop(), err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	console := zerolog.NewConsoleWriter()
	console.TimeFormat = time.RFC3339
	log := zerolog.New(console).Level(level).With().Timestamp().Logger()
	return cfg, log, nil
}
