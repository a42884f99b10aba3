package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/linemk/storefront/internal/lib/logger/handlers/slogpretty"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const serviceName = "storefront"

// SetupLogger инициализирует логгер сервиса в stdout.
func SetupLogger(env string) *slog.Logger {
	return New(env, os.Stdout)
}

// New собирает логгер для окружения env:
// local - цветной pretty вывод с debug, dev - JSON с debug и местом вызова,
// prod и всё остальное - JSON с info. JSON записи помечены сервисом и окружением.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case EnvLocal:
		return newPretty(w)
	case EnvDev:
		return newJSON(w, env, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	default:
		return newJSON(w, env, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
}

func newJSON(w io.Writer, env string, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, opts)).With(
		slog.String("service", serviceName),
		slog.String("env", env),
	)
}

func newPretty(w io.Writer) *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	return slog.New(opts.NewPrettyHandler(w))
}
