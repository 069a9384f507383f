/*
Package log provides structured logging for Quarry built on zerolog.

A single global logger is initialized once at process start via Init and
shared by all packages. Child loggers carry contextual fields (component,
namespace, executor_id, task_id) so log lines from the apply path can be
correlated with the entities they touch.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("statemachine")
	logger.Debug().Str("payload", "CreateTasks").Msg("applied request")

Console output (with RFC3339 timestamps) is the default; JSON output is
intended for production deployments where logs are shipped.
*/
package log
