// Package logger builds the structured loggers used throughout tabula.
//
// Every subsystem (catalog, heap, index family, manager) takes a
// *zap.SugaredLogger via its Config struct rather than reaching for a
// package-level global, so tests can inject a silent logger and callers can
// wire their own zap core.
package logger

import "go.uber.org/zap"

// New builds a production-configured, service-scoped sugared logger.
// service typically names the component ("catalog", "heap", "manager").
func New(service string) *zap.SugaredLogger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return base.Sugar().With("service", service)
}

// Nop returns a logger that discards everything, for tests and embedders
// who don't want tabula's logging on their console.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
