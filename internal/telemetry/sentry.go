// Package telemetry provides opt-in error reporting through Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/eventrec/internal/conf"
	"github.com/tphakala/eventrec/internal/errors"
	"github.com/tphakala/eventrec/internal/logging"
)

// flushTimeout bounds how long Flush waits for queued events on shutdown.
const flushTimeout = 2 * time.Second

// transport overrides the Sentry transport in tests.
var transport sentry.Transport

// Init initializes Sentry and routes enhanced errors to it. Reporting is
// opt-in: nothing is sent unless sentry.enabled is set.
func Init(settings *conf.Settings, version string) error {
	logger := logging.ForService("telemetry")
	if !settings.Sentry.Enabled {
		logger.Debug("sentry telemetry is disabled (opt-in required)")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Debug:            settings.Sentry.Debug,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Sentry.Environment,
		ServerName:       "",
		Release:          fmt.Sprintf("eventrec@%s", version),
		Transport:        transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("version", version)
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	logger.Info("sentry telemetry initialized",
		"environment", settings.Sentry.Environment,
		"version", version)
	return nil
}

// Flush waits for queued events to be delivered. It is a no-op when Sentry
// was never initialized.
func Flush() bool {
	if sentry.CurrentHub().Client() == nil {
		return true
	}
	return sentry.Flush(flushTimeout)
}

// applyPrivacyFilters strips host identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
