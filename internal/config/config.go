package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	PPS     PPSConfig     `yaml:"pps"`
	Publish PublishConfig `yaml:"publish"`
	Status  StatusConfig  `yaml:"status"`
	Poll    PollConfig    `yaml:"poll"`
}

type SerialConfig struct {
	// Device is the receiver's serial port, e.g. /dev/gps0.
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type PPSConfig struct {
	// Source selects the edge capture backend: "ppsdev" (a /dev/ppsN
	// kernel PPS device) or "gpio" (edge events on a GPIO line).
	Source string `yaml:"source"`

	// Device is the PPS device path for source=="ppsdev".
	Device string `yaml:"device"`

	// GPIOChip and GPIOLine locate the pulse input for source=="gpio".
	GPIOChip string `yaml:"gpio_chip"`
	GPIOLine int    `yaml:"gpio_line"`

	// Edge is "assert" (rising) or "clear" (falling).
	Edge string `yaml:"edge"`

	// KernelDiscipline binds the pulse to the kernel hardpps path
	// (ppsdev source only).
	KernelDiscipline bool `yaml:"kernel_discipline"`
}

type PublishConfig struct {
	// Dest is the host:port the corrected timestamps are sent to.
	Dest string `yaml:"dest"`
}

type StatusConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"`
}

type PollConfig struct {
	Interval     time.Duration `yaml:"interval"`
	TimeoutPolls int           `yaml:"timeout_polls"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Serial.Device == "" {
		return Config{}, fmt.Errorf("serial.device is required")
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}

	if cfg.PPS.Source == "" {
		cfg.PPS.Source = "ppsdev"
	}
	switch cfg.PPS.Source {
	case "ppsdev":
		if cfg.PPS.Device == "" {
			cfg.PPS.Device = "/dev/pps0"
		}
	case "gpio":
		if cfg.PPS.GPIOChip == "" {
			cfg.PPS.GPIOChip = "/dev/gpiochip0"
		}
		if cfg.PPS.GPIOLine <= 0 {
			return Config{}, fmt.Errorf("pps.gpio_line is required when pps.source is gpio")
		}
		if cfg.PPS.KernelDiscipline {
			return Config{}, fmt.Errorf("pps.kernel_discipline is not available with pps.source=gpio")
		}
	default:
		return Config{}, fmt.Errorf("pps.source must be ppsdev or gpio")
	}
	if cfg.PPS.Edge == "" {
		cfg.PPS.Edge = "assert"
	}
	if cfg.PPS.Edge != "assert" && cfg.PPS.Edge != "clear" {
		return Config{}, fmt.Errorf("pps.edge must be assert or clear")
	}

	if cfg.Publish.Dest == "" {
		return Config{}, fmt.Errorf("publish.dest is required")
	}

	if cfg.Status.Enable && cfg.Status.Addr == "" {
		cfg.Status.Addr = ":8080"
	}

	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 1 * time.Second
	}
	if cfg.Poll.TimeoutPolls <= 0 {
		cfg.Poll.TimeoutPolls = 2
	}

	return cfg, nil
}
