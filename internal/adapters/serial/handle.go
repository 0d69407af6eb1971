//go:build linux || darwin

package serial

import (
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/serialmux/internal/domain"
	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

type handle struct {
	name         string
	pollInterval time.Duration
	logger       ports.Logger

	mu       sync.Mutex
	fd       int
	open     bool
	watching bool
	done     chan struct{}
}

func (h *handle) SetParams(params domain.LineParams) error {
	fd, err := h.descriptor()
	if err != nil {
		return err
	}
	settings, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	if err := applyParams(settings, params); err != nil {
		return err
	}
	return unix.IoctlSetTermios(fd, ioctlSetTermios, settings)
}

func (h *handle) Read(p []byte) (int, error) {
	fd, err := h.descriptor()
	if err != nil {
		return 0, err
	}
	for {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		// Do not return -1 unix errors
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func (h *handle) Write(p []byte) (int, error) {
	fd, err := h.descriptor()
	if err != nil {
		return 0, err
	}
	n, err := unix.Write(fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return os.ErrClosed
	}
	h.open = false
	close(h.done)

	// Release exclusive access; the close below drops it anyway.
	_ = unix.IoctlSetInt(h.fd, unix.TIOCNXCL, 0)
	return unix.Close(h.fd)
}

func (h *handle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

// OnByteAvailable starts a goroutine polling the descriptor for input.
func (h *handle) OnByteAvailable(fn ports.NotifyFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return os.ErrClosed
	}
	if h.watching {
		return errors.New("serial: notification hook already installed")
	}
	h.watching = true
	go h.watch(h.fd, fn)
	return nil
}

func (h *handle) descriptor() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return -1, os.ErrClosed
	}
	return h.fd, nil
}

func (h *handle) watch(fd int, fn ports.NotifyFunc) {
	timeout := int(h.pollInterval / time.Millisecond)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		select {
		case <-h.done:
			return
		default:
		}

		fds[0].Revents = 0
		n, err := unix.Poll(fds, timeout)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			h.logger.Error("serial poll failed, notifications stopped",
				log.String("port", h.name),
				log.Err(err),
			)
			return
		}
		if n == 0 {
			continue
		}

		revents := fds[0].Revents
		if revents&unix.POLLIN != 0 {
			available, err := inputQueued(fd)
			if err != nil {
				available = 0
			}
			fn(available)
			continue
		}
		if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			if h.IsOpen() {
				h.logger.Warn("serial device hung up",
					log.String("port", h.name),
				)
			}
			return
		}
	}
}
