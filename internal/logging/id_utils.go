package logging

import (
	"github.com/charmbracelet/log"
	"github.com/concave-dev/trail/internal/utils"
)

// FormatID returns the full identifier when DEBUG logging is enabled and the
// short form otherwise, so routine logs stay readable while debug logs keep
// full traceability.
//
// Usage: logging.Info("Dispatched batch %s", logging.FormatID(batchID))
func FormatID(id string) string {
	_, errOut := loggers()
	if errOut.GetLevel() <= log.DebugLevel {
		return id
	}
	return utils.TruncateID(id)
}
