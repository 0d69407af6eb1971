// Package serialmux shares serial ports between independent consumers.
//
// Every open port is read by a single dispatcher. Each byte is handed to
// every registered [Framer] in registration order; a framer collects bytes
// until its expected frame length is reached and then calls its [Handler].
// Handlers may change the expected length of the next frame from inside the
// callback, which is how variable-length protocols are parsed.
//
// # Basic Usage
//
//	svc, err := serialmux.New(serialmux.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop()
//
//	port, err := svc.Open("/dev/ttyUSB0", serialmux.DefaultLineParams())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	port.Register(serialmux.NewListener(serialmux.HandlerFunc(func(frame []byte) {
//	    fmt.Printf("% x\n", frame)
//	}), 4))
//
// # Sharing Ports
//
// Opening a port that is already open returns the same [Port] when the line
// parameters match and fails with [ErrConfigMismatch] otherwise. Destroy the
// port through [Service.Registry] to reopen it with other parameters.
//
// # Hotplug
//
// Ports that disappear from the device directory are evicted on the next
// [Service.Refresh]. Refresh runs on Start, on every RescanInterval tick when
// configured, and whenever a plugin such as plugins/hotplug asks for it.
//
// # Lifecycle States
//
// A Service moves through Stopped, Starting, Running and Stopping. A failed
// Start leaves it in Crashed, from which Start may be called again.
package serialmux
