package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	DevDir          string   `toml:"dev_dir"`
	PortPattern     string   `toml:"port_pattern"`
	BaudRate        int      `toml:"baud_rate"`
	DataBits        int      `toml:"data_bits"`
	StopBits        string   `toml:"stop_bits"`
	Parity          string   `toml:"parity"`
	Hotplug         *bool    `toml:"hotplug"`
	HotplugDebounce string   `toml:"hotplug_debounce"`
	LogLevel        string   `toml:"log_level"`
	Simulate        *bool    `toml:"simulate"`
	SimPorts        []string `toml:"sim_ports"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.serialmux/config.toml, or "" if the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".serialmux", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("dev-dir", fc.DevDir, &cfg.DevDir)
	s.setString("port-pattern", fc.PortPattern, &cfg.PortPattern)
	s.setString("stop-bits", fc.StopBits, &cfg.StopBits)
	s.setString("parity", fc.Parity, &cfg.Parity)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt("baud", fc.BaudRate, &cfg.BaudRate)
	s.setInt("data-bits", fc.DataBits, &cfg.DataBits)

	if err := s.setDuration("hotplug-debounce", fc.HotplugDebounce, &cfg.HotplugDebounce); err != nil {
		return err
	}

	s.setBool("hotplug", fc.Hotplug, &cfg.Hotplug)
	s.setBool("simulate", fc.Simulate, &cfg.Simulate)
	s.setStrings("sim-ports", fc.SimPorts, &cfg.SimPorts)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
