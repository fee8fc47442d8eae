package utils

import "go.uber.org/zap"

// ServiceName is attached to every log line as the "service" field.
const ServiceName = "otoshimono"

// NewLogger returns a zap logger tagged with the service name. When debug is true it
// uses the development config (console, debug level); otherwise production (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", ServiceName)), nil
}
