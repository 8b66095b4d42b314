package sentry

import (
	"time"

	"nowplaying/config"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// Init configures the global Sentry client. With an empty DSN the client is
// still installed but drops every event, so callers never need to check.
func Init(cfg config.SentryConfig) error {
	if !cfg.IsEnabled() {
		log.Debug("SENTRY_DSN not set, error reporting disabled")
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Release:          cfg.Release,
		Environment:      cfg.Environment,
		TracesSampleRate: 1.0,
	})
}

// Flush waits for buffered events before the process exits.
func Flush() {
	if !sentry.Flush(2 * time.Second) {
		log.Debug("sentry flush timed out")
	}
}
