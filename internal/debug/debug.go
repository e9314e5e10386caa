// Package debug prints wire-protocol traces when the WAYLAND_DEBUG
// environment variable is set to a positive integer, mirroring the
// behavior of the reference client libraries.
package debug

import (
	"log"
	"os"
	"strconv"
)

var debug = func(string, ...any) {}

// Enabled reports whether tracing is active.
var Enabled bool

func init() {
	debugLevel, err := strconv.ParseInt(os.Getenv("WAYLAND_DEBUG"), 10, 0)
	if err != nil {
		return
	}
	if debugLevel > 0 {
		Enabled = true
		debug = func(str string, args ...any) { log.Printf(str, args...) }
	}
}

func Printf(str string, args ...any) {
	debug(str, args...)
}
