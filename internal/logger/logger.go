package logger

import (
	"pos-sync/internal/config"
	"pos-sync/internal/database"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. With a local database, WARN and
// above are also persisted to sync_log so operators can read them later.
func NewLogger(cfg *config.Config, db *database.LocalDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Caller function name is stored with every persisted entry
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return baseLogger, nil
	}

	dbWriter := NewDBLogWriter(db, cfg)
	finalCore := NewDBCore(baseLogger.Core(), dbWriter)

	return zap.New(finalCore, zap.AddCaller()), nil
}
