// Package logging provides the structured, subsystem-scoped logger used
// throughout forgecore: the route registry, the addon engine, the artifact
// resolver, and the CLI all log through this package rather than writing to
// stdout/stderr directly.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("Addon", "loaded %s", manifest.Name)
//	logging.Error("Resolver", err, "failed to resolve %s", coord)
//
// Every call is tagged with a subsystem string (e.g. "Addon", "Dispatcher",
// "Resolver") so log aggregation can filter by component. Audit writes
// structured [AUDIT] records for security-relevant events, and DumpError
// writes the error-dump files used for post-mortem diagnosis.
package logging
