//go:build linux || darwin

package serial

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/serialmux/internal/domain"
)

// makeRaw disables every form of line processing and makes reads block until
// at least one byte is available.
func makeRaw(settings *unix.Termios) {
	// disable handshake
	settings.Cflag &^= tcCRTSCTS

	settings.Cflag |= unix.CREAD | unix.CLOCAL

	settings.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK |
		unix.ECHONL | unix.ECHOCTL | unix.ECHOPRT | unix.ECHOKE |
		unix.ISIG | unix.IEXTEN

	settings.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK |
		unix.IGNPAR | unix.PARMRK | unix.ISTRIP | unix.IGNBRK | unix.BRKINT |
		unix.INLCR | unix.IGNCR | unix.ICRNL | tcIUCLC

	settings.Oflag &^= unix.OPOST

	settings.Cc[unix.VMIN] = 1
	settings.Cc[unix.VTIME] = 0
}

// applyParams writes params into settings without touching the device.
func applyParams(settings *unix.Termios, params domain.LineParams) error {
	if err := setSpeed(settings, params.BaudRate); err != nil {
		return err
	}

	settings.Cflag &^= unix.CSIZE
	switch params.DataBits {
	case 5:
		settings.Cflag |= unix.CS5
	case 6:
		settings.Cflag |= unix.CS6
	case 7:
		settings.Cflag |= unix.CS7
	case 8:
		settings.Cflag |= unix.CS8
	default:
		return fmt.Errorf("%w: databits %d", domain.ErrInvalidParams, params.DataBits)
	}

	switch params.StopBits {
	case domain.StopBits1:
		settings.Cflag &^= unix.CSTOPB
	case domain.StopBits2:
		settings.Cflag |= unix.CSTOPB
	default:
		return fmt.Errorf("%w: stopbits %s not supported by termios", domain.ErrInvalidParams, params.StopBits)
	}

	settings.Cflag &^= unix.PARENB | unix.PARODD | tcCMSPAR
	settings.Iflag &^= unix.INPCK
	switch params.Parity {
	case domain.ParityNone:
	case domain.ParityOdd:
		settings.Cflag |= unix.PARENB | unix.PARODD
		settings.Iflag |= unix.INPCK
	case domain.ParityEven:
		settings.Cflag |= unix.PARENB
		settings.Iflag |= unix.INPCK
	case domain.ParityMark, domain.ParitySpace:
		if tcCMSPAR == 0 {
			return fmt.Errorf("%w: %s parity not supported on this platform", domain.ErrInvalidParams, params.Parity)
		}
		settings.Cflag |= unix.PARENB | tcCMSPAR
		if params.Parity == domain.ParityMark {
			settings.Cflag |= unix.PARODD
		}
		settings.Iflag |= unix.INPCK
	default:
		return fmt.Errorf("%w: parity %s", domain.ErrInvalidParams, params.Parity)
	}
	return nil
}
