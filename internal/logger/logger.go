package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New creates the process wide logger. An unknown level falls back to
// info instead of failing startup; a consultation service with a typo
// in LOG_LEVEL should still come up.
func New(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	logger.SetOutput(os.Stdout)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	return logger
}

// ForConsulta returns an entry carrying the two fields every
// consultation log line shares, so one portal's noise stays filterable
// by source and identity.
func ForConsulta(logger *logrus.Logger, source, identity string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"source":   source,
		"identity": identity,
	})
}
