package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (SERIALMUX_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("dev-dir", os.Getenv("SERIALMUX_DEV_DIR"), &cfg.DevDir)
	s.setString("port-pattern", os.Getenv("SERIALMUX_PORT_PATTERN"), &cfg.PortPattern)
	s.setString("stop-bits", os.Getenv("SERIALMUX_STOP_BITS"), &cfg.StopBits)
	s.setString("parity", os.Getenv("SERIALMUX_PARITY"), &cfg.Parity)
	s.setString("log-level", os.Getenv("SERIALMUX_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("baud", os.Getenv("SERIALMUX_BAUD_RATE"), &cfg.BaudRate); err != nil {
		return err
	}
	if err := s.setIntFromString("data-bits", os.Getenv("SERIALMUX_DATA_BITS"), &cfg.DataBits); err != nil {
		return err
	}
	if err := s.setDuration("hotplug-debounce", os.Getenv("SERIALMUX_HOTPLUG_DEBOUNCE"), &cfg.HotplugDebounce); err != nil {
		return err
	}

	s.setBoolFromString("hotplug", os.Getenv("SERIALMUX_HOTPLUG"), &cfg.Hotplug)
	s.setBoolFromString("simulate", os.Getenv("SERIALMUX_SIMULATE"), &cfg.Simulate)
	s.setListFromString("sim-ports", os.Getenv("SERIALMUX_SIM_PORTS"), &cfg.SimPorts)

	return nil
}
