// Package hotplug refreshes the serialmux port list when device nodes
// appear in or vanish from the device directory.
package hotplug

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/serialmux/pkg/log"
	"github.com/bft-labs/serialmux/pkg/serialmux"
)

// Plugin watches the device directory with fsnotify.
// Bursts of events (a USB adapter creates several nodes at once) are
// debounced into a single refresh.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	devDir    string
	pattern   *regexp.Regexp
	refresher serialmux.Refresher
	logger    serialmux.Logger
	watcher   *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	debounce  *time.Timer
}

// Config holds configuration options for the hotplug plugin.
type Config struct {
	// DebounceDelay is how long to wait after the last device event before
	// refreshing.
	// Default: 250 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 250 * time.Millisecond,
	}
}

// New creates a new hotplug plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 250 * time.Millisecond
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "hotplug"
}

// Initialize starts watching cfg.DevDir.
func (p *Plugin) Initialize(ctx context.Context, cfg serialmux.PluginConfig) error {
	if cfg.Refresher == nil {
		return fmt.Errorf("hotplug: no refresher configured")
	}

	var pattern *regexp.Regexp
	if cfg.PortPattern != "" {
		re, err := regexp.Compile(cfg.PortPattern)
		if err != nil {
			return fmt.Errorf("hotplug: port pattern: %w", err)
		}
		pattern = re
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("hotplug: create watcher: %w", err)
	}
	if err := watcher.Add(cfg.DevDir); err != nil {
		watcher.Close()
		return fmt.Errorf("hotplug: watch %s: %w", cfg.DevDir, err)
	}

	p.mu.Lock()
	p.devDir = cfg.DevDir
	p.pattern = pattern
	p.refresher = cfg.Refresher
	p.logger = logger
	p.watcher = watcher
	p.mu.Unlock()

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	logger.Info("hotplug watcher started",
		log.String("dir", cfg.DevDir),
		log.Duration("debounce", p.debounceDelay),
	)

	p.wg.Add(1)
	go p.watchLoop(watchCtx)
	return nil
}

// Shutdown stops the watcher and any pending refresh.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounce != nil {
		p.debounce.Stop()
		p.debounce = nil
	}
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	p.watcher = nil
	return err
}

func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !p.matches(event.Name) {
				continue
			}
			p.logger.Debug("device node changed",
				log.String("path", event.Name),
				log.String("op", event.Op.String()),
			)
			p.debounceRefresh(ctx)

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("hotplug watcher error", log.Err(err))
		}
	}
}

// matches reports whether path names a device the transport would list.
// Without a pattern every node counts; the refresh filters anyway.
func (p *Plugin) matches(path string) bool {
	if p.pattern == nil {
		return true
	}
	return p.pattern.MatchString(filepath.Base(path))
}

func (p *Plugin) debounceRefresh(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := p.refresher.Refresh(); err != nil {
			p.logger.Warn("hotplug refresh failed", log.Err(err))
		}
	})
}
