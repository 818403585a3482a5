package cliconfig

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"

	"github.com/gomarket/cartstore/pkg/log"
)

// NewLogger builds the logger selected by cfg.LogFormat writing to w.
func NewLogger(cfg Config, w io.Writer) (log.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	switch cfg.LogFormat {
	case LogFormatJSON:
		return log.NewZerologJSONAdapter(w, level), nil
	case LogFormatLogrus:
		l := logrus.New()
		l.SetOutput(w)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
		lvl, err := logrus.ParseLevel(level.String())
		if err != nil {
			return nil, fmt.Errorf("log-level: %w", err)
		}
		l.SetLevel(lvl)
		return log.NewLogrusAdapter(l), nil
	default:
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		zl := zerolog.New(output).Level(level).With().Timestamp().Logger()
		return log.NewZerologAdapterWithLogger(zl), nil
	}
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log-level: %w", err)
	}
	switch level {
	case zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel:
		return level, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("log-level must be one of debug, info, warn, error (got %q)", s)
	}
}
