// Package logging provides a tiny abstraction over slog so the execution
// engine can depend on a minimal Logger interface while letting users plug in
// any structured logger. A NoOpLogger keeps logging optional in tests and
// ensures hook and interceptor containment paths never require a sink.
package logging
