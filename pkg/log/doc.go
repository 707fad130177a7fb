// Package log provides a logging abstraction for feedrelay components.
//
// This package defines a Logger interface that can be implemented by
// any logging library. Default implementations are provided for zerolog
// and a no-op logger for testing.
//
// # Usage
//
// Use the provided zerolog adapter:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or build one from CLI settings:
//
//	logger, err := log.NewZerolog(os.Stderr, "debug", "json")
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
package log
