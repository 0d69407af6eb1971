//go:build linux || darwin

// Package serial implements ports.Transport on POSIX termios devices.
package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

// DefaultDevDir is where device nodes are listed.
const DefaultDevDir = "/dev"

// DefaultPollInterval bounds how long a closed handle's watcher lingers.
const DefaultPollInterval = 100 * time.Millisecond

// Transport opens termios devices found under a device directory.
type Transport struct {
	devDir       string
	pattern      *regexp.Regexp
	pollInterval time.Duration
	logger       ports.Logger
}

// New creates a transport listing entries of devDir whose name matches
// pattern. Empty arguments select DefaultDevDir and DefaultPattern.
func New(devDir, pattern string, logger ports.Logger) (*Transport, error) {
	if devDir == "" {
		devDir = DefaultDevDir
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("port pattern: %w", err)
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Transport{
		devDir:       devDir,
		pattern:      re,
		pollInterval: DefaultPollInterval,
		logger:       logger,
	}, nil
}

// ListPortNames returns the sorted paths of matching device nodes.
func (t *Transport) ListPortNames() ([]string, error) {
	entries, err := os.ReadDir(t.devDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !t.pattern.MatchString(e.Name()) {
			continue
		}
		names = append(names, filepath.Join(t.devDir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// Open opens name for exclusive raw access. Line parameters are applied
// separately with SetParams.
func (t *Transport) Open(name string) (ports.Handle, error) {
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	// prevent handle leaks
	fail := func(err error) (ports.Handle, error) {
		unix.Close(fd)
		return nil, err
	}

	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		return fail(fmt.Errorf("exclusive access: %w", err))
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		return fail(err)
	}
	settings, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fail(err)
	}
	makeRaw(settings)
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, settings); err != nil {
		return fail(err)
	}

	return &handle{
		name:         name,
		fd:           fd,
		open:         true,
		done:         make(chan struct{}),
		pollInterval: t.pollInterval,
		logger:       t.logger,
	}, nil
}
