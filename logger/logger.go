package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/windowhan/airbnb-demands-research/config"
)

// New returns a configured zerolog.Logger for the crawler process.
func New(cfg *config.Config) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	lvl := zerolog.InfoLevel
	if cfg.Env == "development" {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log := zerolog.New(out).With().Timestamp().Str("tier", cfg.Tier).Logger()
	return log
}
