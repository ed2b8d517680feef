// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv = "COORDSERVE"

	ModeSynthetic = "synthetic"
	ModeSerial    = "serial"
	ModeGPSD      = "gpsd"
)

// DefaultSerialPorts is the ordered list of device paths probed when no ports are configured.
// Entries containing glob metacharacters are expanded before opening.
var DefaultSerialPorts = []string{
	"/dev/ttyACM0", "/dev/ttyACM1",
	"/dev/ttyUSB0", "/dev/ttyUSB1",
	"/dev/cu.usbmodem*",
	"COM3", "COM4", "COM5",
}

// Config represents the application's configuration structure.
type Config struct {
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Server struct {
		Address         string        `fig:"address" default:"0.0.0.0:8080"`
		ShutdownTimeout time.Duration `fig:"shutdown_timeout" default:"5s"`
	} `fig:"server"`

	Position struct {
		DefaultLatitude  float64 `fig:"default_latitude" default:"49.8174252"`
		DefaultLongitude float64 `fig:"default_longitude" default:"24.0246498"`
	} `fig:"position"`

	Producer struct {
		// Allowed values: synthetic, serial, gpsd
		Mode string `fig:"mode" default:"synthetic"`
	} `fig:"producer"`

	Synthetic struct {
		Interval time.Duration `fig:"interval" default:"3s"`
		// Steps are given in degrees scaled by 10^7
		LatitudeStep  int64 `fig:"latitude_step" default:"1000"`
		LongitudeStep int64 `fig:"longitude_step" default:"500"`
	} `fig:"synthetic"`

	Serial struct {
		Ports          []string      `fig:"ports"`
		BaudRate       uint          `fig:"baud_rate" default:"115200"`
		ConnectTimeout time.Duration `fig:"connect_timeout" default:"1s"`
		PollInterval   time.Duration `fig:"poll_interval" default:"100ms"`
		ErrorBackoff   time.Duration `fig:"error_backoff" default:"1s"`
		BufferLimit    int           `fig:"buffer_limit" default:"1000"`
		BufferKeep     int           `fig:"buffer_keep" default:"500"`
	} `fig:"serial"`

	GPSD struct {
		Host           string        `fig:"host" default:"localhost"`
		Port           string        `fig:"port" default:"2947"`
		ConnectTimeout time.Duration `fig:"connect_timeout" default:"1s"`
	} `fig:"gpsd"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address must not be empty")
	}
	if c.Position.DefaultLatitude < -90 || c.Position.DefaultLatitude > 90 {
		return fmt.Errorf("invalid default latitude: %f", c.Position.DefaultLatitude)
	}
	if c.Position.DefaultLongitude < -180 || c.Position.DefaultLongitude > 180 {
		return fmt.Errorf("invalid default longitude: %f", c.Position.DefaultLongitude)
	}

	switch c.Producer.Mode {
	case ModeSynthetic:
		if c.Synthetic.Interval <= 0 {
			return fmt.Errorf("invalid synthetic interval: %s", c.Synthetic.Interval)
		}
	case ModeSerial:
		if c.Serial.PollInterval <= 0 {
			return fmt.Errorf("invalid serial poll interval: %s", c.Serial.PollInterval)
		}
		if c.Serial.BufferKeep <= 0 || c.Serial.BufferKeep > c.Serial.BufferLimit {
			return fmt.Errorf("invalid serial buffer bounds: keep %d of %d", c.Serial.BufferKeep,
				c.Serial.BufferLimit)
		}
	case ModeGPSD:
		if c.GPSD.Host == "" || c.GPSD.Port == "" {
			return fmt.Errorf("invalid gpsd address: %q:%q", c.GPSD.Host, c.GPSD.Port)
		}
		if c.GPSD.ConnectTimeout <= 0 {
			return fmt.Errorf("invalid gpsd connect timeout: %s", c.GPSD.ConnectTimeout)
		}
	default:
		return fmt.Errorf("invalid producer mode: %s", c.Producer.Mode)
	}

	if len(c.Serial.Ports) == 0 {
		c.Serial.Ports = append([]string(nil), DefaultSerialPorts...)
	}

	return nil
}
