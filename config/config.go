// Package config loads and validates the run configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML duration strings like "1s" or "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"1s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the immutable bundle of run options, read once at startup.
// The light controller speaks grbl over a local serial port, or over an
// SPJS server when spjs_url is set; serial_port then names the port on
// the SPJS side. Dry runs need neither.
type Config struct {
	GcodeFile string `yaml:"gcode_file" validate:"required"`
	ImageDir  string `yaml:"image_dir" validate:"required"`

	SerialPort    string   `yaml:"serial_port"`
	BaudRate      int      `yaml:"baud_rate" validate:"gte=0"`
	SerialTimeout Duration `yaml:"serial_timeout" validate:"gte=0"`
	UnlockOnOpen  bool     `yaml:"unlock_on_open"`

	SPJSURL string `yaml:"spjs_url" validate:"omitempty,url"`

	DisplayIndex     int  `yaml:"display_index" validate:"gte=0"`
	ProjectorEnabled bool `yaml:"projector_enabled"`
	BlueBrightness   int  `yaml:"blue_brightness" validate:"gte=0,lte=1023"`

	DryRun bool `yaml:"dry_run"`

	PreExposureDelay  Duration `yaml:"pre_exposure_delay" validate:"gte=0"`
	PostExposureDelay Duration `yaml:"post_exposure_delay" validate:"gte=0"`

	Preflight bool `yaml:"preflight"`

	MonitorAddr string `yaml:"monitor_addr"`
	LogLevel    string `yaml:"log_level" validate:"required"`
}

// Default returns the values used for absent keys.
func Default() Config {
	return Config{
		BaudRate:         115200,
		SerialTimeout:    Duration(time.Second),
		UnlockOnOpen:     true,
		DisplayIndex:     1,
		ProjectorEnabled: true,
		LogLevel:         "info",
	}
}

// Parse decodes YAML into a defaulted Config. Callers apply any flag
// overrides, then Validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Load reads and decodes the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}
