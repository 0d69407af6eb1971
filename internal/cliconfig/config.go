package cliconfig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/serialmux/internal/domain"
)

// DefaultDevDir is where serial device nodes are looked up.
const DefaultDevDir = "/dev"

// Config holds CLI configuration for serialmux.
type Config struct {
	DevDir      string
	PortPattern string // empty selects the platform default

	BaudRate int
	DataBits int
	StopBits string
	Parity   string

	Hotplug         bool
	HotplugDebounce time.Duration

	LogLevel string

	Simulate bool
	SimPorts []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DevDir:          DefaultDevDir,
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        "1",
		Parity:          "none",
		Hotplug:         true,
		HotplugDebounce: 250 * time.Millisecond,
		LogLevel:        "info",
		SimPorts:        []string{"/dev/ttySIM0", "/dev/ttySIM1"},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DevDir == "" && !c.Simulate {
		return fmt.Errorf("%w: dev-dir is required", domain.ErrInvalidConfig)
	}
	if c.PortPattern != "" {
		if _, err := regexp.Compile(c.PortPattern); err != nil {
			return fmt.Errorf("%w: port pattern: %v", domain.ErrInvalidConfig, err)
		}
	}
	if _, err := c.LineParams(); err != nil {
		return err
	}
	if c.Hotplug && c.HotplugDebounce <= 0 {
		return fmt.Errorf("%w: hotplug debounce must be positive", domain.ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %v", domain.ErrInvalidConfig, err)
	}
	if c.Simulate && len(c.SimPorts) == 0 {
		return fmt.Errorf("%w: simulation needs at least one port", domain.ErrInvalidConfig)
	}
	return nil
}

// LineParams converts the line settings to domain parameters.
func (c *Config) LineParams() (domain.LineParams, error) {
	parity, err := domain.ParseParity(c.Parity)
	if err != nil {
		return domain.LineParams{}, err
	}
	stop, err := domain.ParseStopBits(c.StopBits)
	if err != nil {
		return domain.LineParams{}, err
	}
	p := domain.LineParams{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: stop,
		Parity:   parity,
	}
	if err := p.Validate(); err != nil {
		return domain.LineParams{}, err
	}
	return p, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int for environment variables.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setListFromString splits a comma-separated list.
func (s *configSetter) setListFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
