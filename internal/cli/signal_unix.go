//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// terminationSignals lists the signals that trigger a graceful shutdown.
// SIGTERM is used by most process managers (systemd, kubernetes) to request shutdown.
func terminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
