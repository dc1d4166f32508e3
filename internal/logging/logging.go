// Package logging builds the zap logger every worker process uses.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production JSON logger, or a development console logger
// when isProd is false. Mirrors the split the original Python service's
// log_format setting made between JSON and human-readable output.
func New(isProd bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if isProd {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		logger, err = cfg.Build()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
