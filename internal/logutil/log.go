package logutil

import (
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/angariumd/dsclient/internal/config"
)

// InitLogger installs the global zap logger described by cfg.
func InitLogger(cfg config.LogConfig) error {
	logCfg := &log.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		File: log.FileLogConfig{
			Filename: cfg.File,
		},
	}
	if logCfg.Level == "" {
		logCfg.Level = "info"
	}
	if logCfg.Format == "" {
		logCfg.Format = "text"
	}

	logger, props, err := log.InitLogger(logCfg, zap.AddStacktrace(zap.DPanicLevel))
	if err != nil {
		return errors.Wrap(err, "initializing logger")
	}
	log.ReplaceGlobals(logger, props)
	return nil
}
