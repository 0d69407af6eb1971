//go:build linux

package serial

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/serialmux/internal/domain"
)

// DefaultPattern matches on-board UARTs, USB serial adapters, CDC ACM
// devices and Raspberry Pi / BeagleBone ports.
const DefaultPattern = `^(ttyS|ttyUSB|ttyACM|ttyAMA|ttyO|ttyTHS|rfcomm)[0-9]+$`

const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS

	tcCRTSCTS = unix.CRTSCTS
	tcCMSPAR  = unix.CMSPAR
	tcIUCLC   = unix.IUCLC
)

var baudRates = map[int]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

func setSpeed(settings *unix.Termios, baud int) error {
	rate, ok := baudRates[baud]
	if !ok {
		return fmt.Errorf("%w: speed %d", domain.ErrInvalidParams, baud)
	}
	settings.Cflag &^= unix.CBAUD
	settings.Cflag |= rate
	settings.Ispeed = rate
	settings.Ospeed = rate
	return nil
}

// inputQueued returns the number of bytes waiting in the input queue.
func inputQueued(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCINQ)
}
