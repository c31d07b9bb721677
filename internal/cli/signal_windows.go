//go:build windows

package cli

import (
	"os"
)

// terminationSignals lists the signals that trigger a graceful shutdown.
// Windows primarily uses os.Interrupt (Ctrl+C).
func terminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
