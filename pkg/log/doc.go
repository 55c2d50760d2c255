/*
Package log provides structured logging for Shoal using zerolog.

The log package wraps the zerolog library to provide JSON-structured
logging with component-specific loggers, configurable log levels, and
helper functions for common logging patterns. Logs are written to
stderr so that plan and status output on stdout stays machine-readable.

# Usage

Initializing the logger:

	// Console output (interactive runs)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

	// JSON output (watch mode under a supervisor)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Simple logging:

	log.Info("topology loaded")
	log.Warn("reference node degraded")
	log.Fatal("cannot open run journal") // exits the process

Structured logging:

	log.Logger.Info().
		Str("component", "executor").
		Str("addr", "10.0.0.4:6379").
		Str("action", "rebind-replica").
		Msg("action applied")

Component loggers:

	probeLog := log.WithComponent("probe")
	probeLog.Debug().Str("addr", addr.String()).Msg("probing node")

# Conventions

Every long-lived component creates its logger once with WithComponent
and attaches per-event fields at the call site. Reconciliation runs
carry a run_id field via WithRunID so one run's events can be filtered
out of watch-mode output. Errors are always attached with .Err(err),
never interpolated into the message.
*/
package log
