package serialmux

import "context"

// Refresher re-reads the list of attached ports.
type Refresher interface {
	Refresh() error
}

// PluginConfig is handed to every plugin on Initialize.
type PluginConfig struct {
	DevDir      string
	PortPattern string
	Logger      Logger

	// Refresher re-reads the port list, evicting vanished ports.
	Refresher Refresher
}

// Plugin extends a Service with optional background behavior. Plugins are
// initialized in registration order on Start and shut down in reverse
// order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// BasePlugin implements Plugin with no-ops. Embed it to override only the
// methods you need.
type BasePlugin struct {
	PluginName string
}

func (b BasePlugin) Name() string {
	return b.PluginName
}

func (BasePlugin) Initialize(ctx context.Context, cfg PluginConfig) error {
	return nil
}

func (BasePlugin) Shutdown(ctx context.Context) error {
	return nil
}
