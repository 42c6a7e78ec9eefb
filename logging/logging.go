package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/optionals"
)

type Config struct {
	// Console output at debug level instead of JSON at info level.
	Development bool

	// Overrides the level implied by Development when set.
	Level optionals.Optional[zapcore.Level]
}

// Parses a level name such as "debug" or "warn". The empty string means no
// override.
func ParseLevel(s string) (optionals.Optional[zapcore.Level], error) {
	if s == "" {
		return optionals.None[zapcore.Level](), nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return optionals.None[zapcore.Level](), err
	}
	return optionals.Some(l), nil
}

func New(c Config) (*zap.Logger, error) {
	var zc zap.Config
	level := zap.InfoLevel
	if c.Development {
		zc = zap.NewDevelopmentConfig()
		level = zap.DebugLevel
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(c.Level.GetOrDefault(level))

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "tlsprobe")), nil
}

// Child logger for one probe.
func ForProbe(l *zap.Logger, id gid.ProbeID, remoteAddr string) *zap.Logger {
	fields := []zap.Field{zap.Stringer("probe_id", id)}
	if remoteAddr != "" {
		fields = append(fields, zap.String("remote_addr", remoteAddr))
	}
	return l.With(fields...)
}
