//go:build darwin

package serial

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/serialmux/internal/domain"
)

// DefaultPattern matches callout and dial-in devices.
const DefaultPattern = `^(cu|tty)\..*`

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA

	tcCRTSCTS = unix.CRTSCTS
	tcCMSPAR  = 0 // mark/space parity is not available
	tcIUCLC   = 0
)

var baudRates = map[int]uint64{
	50:     unix.B50,
	75:     unix.B75,
	110:    unix.B110,
	134:    unix.B134,
	150:    unix.B150,
	200:    unix.B200,
	300:    unix.B300,
	600:    unix.B600,
	1200:   unix.B1200,
	1800:   unix.B1800,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

func setSpeed(settings *unix.Termios, baud int) error {
	rate, ok := baudRates[baud]
	if !ok {
		return fmt.Errorf("%w: speed %d", domain.ErrInvalidParams, baud)
	}
	settings.Ispeed = rate
	settings.Ospeed = rate
	return nil
}

// inputQueued reports zero: the caller then reads one byte per notification
// and is notified again while input remains.
func inputQueued(fd int) (int, error) {
	return 0, nil
}
