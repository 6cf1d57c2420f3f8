package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger is the process-wide logger. It discards everything until Init runs.
var Logger = zap.NewNop().Sugar()

// New builds a console logger writing to stderr. Debug mode logs
// everything; otherwise only warnings and errors are shown.
func New(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.DisableStacktrace = true
	}
	cfg.Encoding = "console"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Init replaces Logger.
func Init(debug bool) error {
	logger, err := New(debug)
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}
