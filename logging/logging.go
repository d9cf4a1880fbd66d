// Package logging wires up the process-wide leveled logger used by every
// other package in this module.
package logging

import (
	"os"
	"strings"

	"github.com/op/go-logging"
)

var Log = logging.MustGetLogger("supplyd")

func init() {
	format := logging.MustStringFormatter(`%{color}%{time:15:04:05.000} ▶ %{level:.4s} %{shortfile}%{color:reset} %{message}`)
	backend := logging.NewLogBackend(os.Stdout, "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(backendFormatter)

	logging.SetBackend(leveled)
}

// LogLevelIsValid reports whether ll names a known go-logging level.
func LogLevelIsValid(ll string) bool {
	_, err := logging.LogLevel(strings.ToUpper(ll))

	return err == nil
}

// SetLoggingLevel updates the running log level. An unrecognized level
// falls back to ERROR rather than failing startup.
func SetLoggingLevel(ll string) {
	level, err := logging.LogLevel(strings.ToUpper(ll))

	if err != nil {
		level = logging.ERROR
	}

	logging.SetLevel(level, "")
}
