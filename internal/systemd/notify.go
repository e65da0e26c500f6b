// Package systemd reports service state to systemd when running under a
// Type=notify unit. Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// notify is swapped in tests.
var notify = daemon.SdNotify

// Ready tells systemd that startup has finished.
func Ready(logger *slog.Logger) {
	send(logger, daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown has begun.
func Stopping(logger *slog.Logger) {
	send(logger, daemon.SdNotifyStopping)
}

// Reloading tells systemd a configuration reload is in progress. Call
// Ready once it is done.
func Reloading(logger *slog.Logger) {
	send(logger, daemon.SdNotifyReloading)
}

func send(logger *slog.Logger, state string) {
	sent, err := notify(false, state)
	switch {
	case err != nil:
		logger.Warn("Failed to notify systemd", "state", state, "error", err)
	case sent:
		logger.Debug("Notified systemd", "state", state)
	}
}

// RunWatchdog pings the systemd watchdog at half the configured interval
// until ctx is done. It returns at once when no watchdog is configured.
func RunWatchdog(ctx context.Context, logger *slog.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("Failed to read watchdog settings", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send(logger, daemon.SdNotifyWatchdog)
		}
	}
}
