// Package logging provides structured logging with per-module log levels.
//
// Output goes to stdout when something is attached to it and to the systemd
// journal when journald is running; both at once through MultiHandler.
//
// Initialize once at startup, then ask for a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"capture": "debug"},
//	})
//	logger := logging.GetLogger("capture")
//	logger.Info("Session started", "address", addr)
//
// Loggers are cached and backed by a slog.LevelVar, so SetLevels changes
// the threshold of loggers already handed out. The server calls it when
// the config file changes.
//
// Journal entries carry SYSLOG_IDENTIFIER=camhal and one upper-case field
// per attribute:
//
//	journalctl -t camhal MODULE=capture
//
// TOML:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	capture = "debug"
//	api = "warn"
package logging
