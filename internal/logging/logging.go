package logging

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// Setup installs a tinted slog handler as the default logger.
func Setup(level string) *slog.Logger {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		AddSource:   true,
		Level:       slogLevel,
		ReplaceAttr: replaceAttrs,
	}))
	slog.SetDefault(logger)
	return logger
}
