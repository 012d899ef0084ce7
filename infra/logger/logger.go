package logger

import corelogger "github.com/harvestplan/harvestplan/core/logger"

// Logger mirrors the core logger interface so infra packages need only one
// import.
type Logger = corelogger.Logger

// NopLogger mirrors the core no-op implementation.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component. The environment is detected
// via the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
