package log

import (
	"io"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

func EnableDebug() {
	enableDebug(os.Getenv)
}

func enableDebug(getenv func(string) string) {
	if str := getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	} else {
		L.SetLevel(hclog.Debug)
	}
}

// Configure sets L to the named level. TRACE in the environment still
// forces trace, whatever the level. A nil getenv reads the process
// environment.
func Configure(level string, getenv func(string) string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}

	ok := SetLevel(level)

	if getenv("TRACE") != "" {
		enableDebug(getenv)
	}

	return ok
}

// Capture returns a logger writing to w at the given level. Tests use it to
// inspect what the kernel reports.
func Capture(w io.Writer, level hclog.Level) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "batchos",
		Output: w,
		Level:  level,
	})
}
