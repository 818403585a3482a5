// Package log provides the logging abstraction used by cart store components.
//
// The store never writes to stdout or stderr on its own: it logs through the
// Logger interface defined here. Adapters are provided for zerolog and logrus,
// and a no-op logger is the library default.
//
// # Usage
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	store, err := cart.New(kv, cart.WithLogger(logger))
//
// or, with logrus:
//
//	logger := log.NewLogrusAdapter(logrus.StandardLogger())
//
// # Custom Loggers
//
// Implement Logger to integrate with existing logging infrastructure:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
