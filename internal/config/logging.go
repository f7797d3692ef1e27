package config

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ConfigureLogging sets up the package-level logger for a binary.
func ConfigureLogging(level string) {
	log.SetOutput(os.Stderr)
	log.SetTimeFormat("2006-01-02 15:04:05")

	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "fatal":
		log.SetLevel(log.FatalLevel)
	default:
		log.Warnf("Invalid LOG_LEVEL '%s' specified in config, defaulting to 'info'", level)
		log.SetLevel(log.InfoLevel)
	}
}
