// Package logging provides structured logging with per-module log level
// configuration.
//
// The logging system uses Go's slog package with automatic output routing:
//   - systemd journal when journald is accepting writes
//   - stdout when a terminal, pipe, or file is connected
//   - an in-memory ring buffer, always, for the log API and event stream
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"dpst": "debug",
//			"api":  "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("dpst")
//	logger.Info("histogram enabled", "platform", platform)
//
// Module-specific levels override the global level for that module only.
// Loggers are cached; Initialize updates their levels in place via
// slog.LevelVar, so the order of GetLogger and Initialize does not matter.
//
// When running under systemd:
//
//	journalctl -t dpstd              # all daemon logs
//	journalctl -t dpstd -f           # follow live
//	journalctl -t dpstd MODULE=dpst  # filter by structured field
package logging
