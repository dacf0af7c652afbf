// Package logger provides structured logging based on Zap.
//
// New builds a production JSON logger by default, the development preset for
// the debug level and a colored console encoder when Format is "console".
//
// WithRayID attaches the request's ray id, set by the rayid middleware, so
// that every line logged while serving one request can be correlated.
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Server started")
//
//	l := logger.WithRayID(log, c)
//	l.Error("Handler failed", zap.Error(err))
package logger
