package log

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// BuildLogger arma el logger JSON sobre stderr con el nivel indicado en la configuración.
func BuildLogger(level string) *slog.Logger {
	ops := &slog.HandlerOptions{
		AddSource: true,
		Level:     ParseLevel(level),
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, ops))
}

// ParseLevel traduce el log_level de la configuración. Un valor desconocido cae en INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

func StringAttr(key, value string) slog.Attr {
	return slog.String(key, value)
}

func IntAttr(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

func AnyAttr(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// HexAttr loguea direcciones y números de página en hexadecimal.
func HexAttr(key string, value uint64) slog.Attr {
	return slog.String(key, fmt.Sprintf("%#x", value))
}
