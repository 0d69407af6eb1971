package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/serialmux/internal/adapters/memory"
	"github.com/bft-labs/serialmux/internal/cliconfig"
	"github.com/bft-labs/serialmux/pkg/log"
	"github.com/bft-labs/serialmux/pkg/serialmux"
	"github.com/bft-labs/serialmux/plugins/hotplug"
)

const longHelp = `Share serial ports between independent consumers.

Every byte read from a port is fanned out to each registered listener, which
collects fixed or length-prefixed frames. Ports that are unplugged are evicted
automatically.

Configure via $HOME/.serialmux/config.toml, SERIALMUX_* environment variables
or flags (flags win).`

var exampleUsage = strings.TrimSpace(`
  serialmux start
  serialmux list
  serialmux monitor /dev/ttyUSB0 --baud 115200 --frame-len 8
  serialmux monitor /dev/ttyACM0 --length-prefixed
  serialmux send /dev/ttyUSB0 "02 41 42"
  serialmux --simulate monitor /dev/ttySIM0
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the resolved configuration between cobra hooks.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  zerolog.Logger
	sim     *memory.Transport
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig(), logger: cliconfig.Logger()}

	root := &cobra.Command{
		Use:               "serialmux",
		Short:             "Share serial ports between independent frame consumers",
		Long:              longHelp,
		Example:           exampleUsage,
		Version:           fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.serialmux/config.toml)")
	flags.StringVar(&c.cfg.DevDir, "dev-dir", c.cfg.DevDir, "directory scanned for serial device nodes")
	flags.StringVar(&c.cfg.PortPattern, "port-pattern", c.cfg.PortPattern, "regular expression selecting device node names (default: platform specific)")
	flags.IntVar(&c.cfg.BaudRate, "baud", c.cfg.BaudRate, "baud rate")
	flags.IntVar(&c.cfg.DataBits, "data-bits", c.cfg.DataBits, "data bits (5-8)")
	flags.StringVar(&c.cfg.StopBits, "stop-bits", c.cfg.StopBits, "stop bits (1, 1.5, 2)")
	flags.StringVar(&c.cfg.Parity, "parity", c.cfg.Parity, "parity (none, odd, even, mark, space)")
	flags.BoolVar(&c.cfg.Hotplug, "hotplug", c.cfg.Hotplug, "evict ports whose device node disappears")
	flags.DurationVar(&c.cfg.HotplugDebounce, "hotplug-debounce", c.cfg.HotplugDebounce, "delay between a device event and the port refresh")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&c.cfg.Simulate, "simulate", c.cfg.Simulate, "use in-memory loopback ports instead of real devices")
	flags.StringSliceVar(&c.cfg.SimPorts, "sim-ports", c.cfg.SimPorts, "port names created in simulation mode")

	root.AddCommand(c.startCommand(), c.listCommand(), c.monitorCommand(), c.sendCommand())

	if err := root.Execute(); err != nil {
		c.logger.Error().Err(err).Msg("serialmux")
		os.Exit(1)
	}
}

// load resolves configuration: defaults < file < env < flags.
func (c *cli) load(cmd *cobra.Command, args []string) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.logger = cliconfig.NewLogger(os.Stderr, c.cfg.LogLevel)
	c.logger.Debug().Interface("config", c.cfg).Msg("configuration")
	return nil
}

// start builds and starts a service from the resolved configuration.
func (c *cli) start(ctx context.Context, extra ...serialmux.Option) (*serialmux.Service, error) {
	opts := []serialmux.Option{
		serialmux.WithLogger(c.adapter()),
	}

	cfg := serialmux.Config{
		DevDir:      c.cfg.DevDir,
		PortPattern: c.cfg.PortPattern,
	}
	if c.cfg.Simulate {
		c.sim = memory.New()
		for _, name := range c.cfg.SimPorts {
			c.sim.Attach(name, memory.Loopback())
		}
		opts = append(opts, serialmux.WithTransport(c.sim))
	} else if c.cfg.Hotplug {
		opts = append(opts, hotplug.WithHotplug(hotplug.Config{DebounceDelay: c.cfg.HotplugDebounce}))
	}

	svc, err := serialmux.New(cfg, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start service: %w", err)
	}
	return svc, nil
}

func (c *cli) adapter() log.Logger {
	return log.NewZerologAdapterWithLogger(c.logger)
}

// refreshLogger reports port list changes seen by a long-running service.
type refreshLogger struct {
	serialmux.BaseEventHandler
	logger log.Logger
}

func (r refreshLogger) OnRefresh(ev serialmux.RefreshEvent) {
	if ev.Err != nil {
		r.logger.Warn("port refresh failed", log.Err(ev.Err))
		return
	}
	fields := []log.Field{log.Strings("available", ev.Available)}
	if len(ev.Evicted) > 0 {
		fields = append(fields, log.Strings("evicted", ev.Evicted))
	}
	r.logger.Info("ports refreshed", fields...)
}

// settle waits for simulated input to be dispatched.
func (c *cli) settle() {
	if c.sim != nil {
		c.sim.Settle()
	}
}

func (c *cli) startCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the port registry and log device changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := c.start(ctx, serialmux.WithEventHandler(refreshLogger{logger: c.adapter()}))
			if err != nil {
				return err
			}
			defer svc.Stop()

			c.logger.Info().Msg("serialmux running, press Ctrl+C to stop")
			<-ctx.Done()
			c.logger.Info().Msg("received signal, stopping...")
			return nil
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available and connected serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.start(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Stop()

			for _, line := range svc.Diagnostics() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func (c *cli) monitorCommand() *cobra.Command {
	var (
		frameLen       int
		lengthPrefixed bool
	)
	cmd := &cobra.Command{
		Use:   "monitor PORT",
		Short: "Log every frame received on a port until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if frameLen < 0 {
				return fmt.Errorf("frame-len must not be negative")
			}
			name := args[0]

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := c.start(ctx)
			if err != nil {
				return err
			}
			defer svc.Stop()

			params, err := c.cfg.LineParams()
			if err != nil {
				return err
			}

			logFrame := func(frame []byte) {
				c.logger.Info().Str("port", name).Int("len", len(frame)).Hex("frame", frame).Msg("frame")
			}
			newListener := func() *serialmux.Framer {
				if lengthPrefixed {
					return serialmux.NewLengthPrefixedListener(logFrame)
				}
				return serialmux.NewListener(serialmux.HandlerFunc(logFrame), frameLen)
			}

			ticker := time.NewTicker(250 * time.Millisecond)
			defer ticker.Stop()
			for {
				port, err := svc.WaitOpen(ctx, name, params)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				port.Register(newListener())
				c.logger.Info().Str("port", name).Str("params", params.String()).Msg("monitoring, press Ctrl+C to stop")

				for port.IsOpen() && ctx.Err() == nil {
					select {
					case <-ctx.Done():
					case <-ticker.C:
					}
				}
				if ctx.Err() != nil {
					c.logger.Info().Uint64("bytes", port.BytesReceived()).Msg("received signal, stopping...")
					return nil
				}
				c.logger.Warn().Str("port", name).Msg("port lost, waiting for it to return")
			}
		},
	}
	cmd.Flags().IntVar(&frameLen, "frame-len", 1, "fixed frame length in bytes")
	cmd.Flags().BoolVar(&lengthPrefixed, "length-prefixed", false, "frames carry a one-byte length header")
	return cmd
}

func (c *cli) sendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send PORT HEX",
		Short: "Write hex-encoded bytes to a port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			data, err := parseHex(args[1])
			if err != nil {
				return err
			}

			svc, err := c.start(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Stop()

			params, err := c.cfg.LineParams()
			if err != nil {
				return err
			}
			port, err := svc.Open(name, params)
			if err != nil {
				return err
			}

			// Simulated ports echo what is written.
			if c.sim != nil {
				port.Register(serialmux.NewListener(serialmux.HandlerFunc(func(frame []byte) {
					c.logger.Info().Str("port", name).Hex("frame", frame).Msg("echo")
				}), len(data)))
			}

			n, err := port.Write(data)
			if err != nil {
				return err
			}
			c.settle()
			c.logger.Info().Str("port", name).Int("bytes", n).Msg("sent")
			return nil
		},
	}
}

// parseHex decodes hex ignoring spaces, colons and an optional 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse hex payload: %w", err)
	}
	return b, nil
}
