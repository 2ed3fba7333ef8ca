// Package utils contains helpers shared by trailctl commands.
package utils

import (
	"os"

	"github.com/concave-dev/trail/cmd/trailctl/config"
	"github.com/concave-dev/trail/internal/logging"
)

// RestyLogger routes resty's internal logging through the trail logger.
type RestyLogger struct{}

func (RestyLogger) Errorf(format string, v ...any) {
	logging.Error(format, v...)
}

func (RestyLogger) Warnf(format string, v ...any) {
	logging.Warn(format, v...)
}

func (RestyLogger) Debugf(format string, v ...any) {
	logging.Debug(format, v...)
}

// SetupLogging keeps log lines off the terminal unless DEBUG=true, so
// command output stays clean for scripts.
func SetupLogging() {
	if os.Getenv("DEBUG") == "true" {
		logging.RestoreOutput()
		logging.SetLevel("DEBUG")
		return
	}
	logging.SetLevel(config.Global.LogLevel)
	logging.SuppressOutput()
}
