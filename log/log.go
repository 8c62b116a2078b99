package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{
		Name: "batchos",
	})
	L.SetLevel(hclog.Info)

	if str := os.Getenv("BATCHOS_LOG"); str != "" {
		SetLevel(str)
	}

	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// SetLevel changes the level of L. Unknown names leave the level alone and
// report false.
func SetLevel(name string) bool {
	lvl := hclog.LevelFromString(name)
	if lvl == hclog.NoLevel {
		return false
	}

	L.SetLevel(lvl)
	return true
}
