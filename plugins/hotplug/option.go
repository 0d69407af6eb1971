package hotplug

import "github.com/bft-labs/serialmux/pkg/serialmux"

// WithHotplug returns a serialmux Option that refreshes the port list when
// device nodes are created or removed.
//
// Usage:
//
//	svc, err := serialmux.New(cfg,
//	    hotplug.WithHotplug(hotplug.Config{
//	        DebounceDelay: 500 * time.Millisecond,
//	    }),
//	)
func WithHotplug(cfg Config) serialmux.Option {
	return serialmux.WithPlugin(New(cfg))
}

// WithDefaultHotplug enables hotplug with default settings (debounce 250ms).
func WithDefaultHotplug() serialmux.Option {
	return WithHotplug(DefaultConfig())
}
