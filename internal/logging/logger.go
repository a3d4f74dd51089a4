// Package logging builds the zap loggers used by the commands.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger for mode "release" and a colored
// development logger otherwise. Mode "silent" disables logging.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	switch mode {
	case "silent":
		return zap.NewNop(), nil
	case "release":
		config = zap.NewProductionConfig()
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}

// Sync flushes the logger, ignoring the error stderr returns on some platforms
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
