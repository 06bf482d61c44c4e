package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

func NewLogger(level string, format string) (*Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    format,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{Logger: logger}, nil
}

// Noop returns a logger that discards everything; used when a Document is
// constructed without an explicit logger.
func Noop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func (l *Logger) WithPeer(peer uint64) *zap.Logger {
	return l.With(zap.Uint64("peer", peer))
}

func (l *Logger) WithChangeID(peer uint64, counter int32) *zap.Logger {
	return l.With(zap.Uint64("peer", peer), zap.Int32("counter", counter))
}

func (l *Logger) WithContainer(cid string) *zap.Logger {
	return l.With(zap.String("container_id", cid))
}

func (l *Logger) WithError(err error) *zap.Logger {
	return l.With(zap.Error(err))
}
