package logging

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/divpanel/internal/infrastructure/config"
)

// Logger is the process logger. Its level can be changed while running.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// New builds a logger from the environment settings. Development mode
// writes colored console lines at debug level; otherwise entries are JSON.
func New(cfg config.LogConfig) (*Logger, error) {
	level := zapcore.DebugLevel
	if !cfg.Development {
		var err error
		if level, err = zapcore.ParseLevel(orDefault(cfg.Level, "info")); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	atom := zap.NewAtomicLevelAt(level)

	sink, _, err := zap.Open(orDefault(cfg.Output, "stdout"))
	if err != nil {
		return nil, fmt.Errorf("log output: %w", err)
	}

	var encoder zapcore.Encoder
	if cfg.Development {
		encoder = zapcore.NewConsoleEncoder(consoleEncoding())
	} else {
		encoder = zapcore.NewJSONEncoder(jsonEncoding())
	}

	opts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	} else {
		opts = append(opts, zap.AddStacktrace(zapcore.DPanicLevel))
	}

	return &Logger{
		Logger: zap.New(zapcore.NewCore(encoder, sink, atom), opts...),
		level:  atom,
	}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// Wrap adopts an existing zap logger. Its level cannot be changed.
func Wrap(l *zap.Logger) *Logger {
	atom := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	for lvl := zapcore.DebugLevel; lvl <= zapcore.FatalLevel; lvl++ {
		if l.Core().Enabled(lvl) {
			atom.SetLevel(lvl)
			break
		}
	}
	return &Logger{Logger: l, level: atom}
}

// Level returns the current minimum level
func (l *Logger) Level() zapcore.Level { return l.level.Level() }

// SetLevel changes the minimum level
func (l *Logger) SetLevel(level zapcore.Level) { l.level.SetLevel(level) }

// LevelHandler serves the level as JSON: GET reads it, PUT
// {"level":"debug"} changes it
func (l *Logger) LevelHandler() http.Handler { return l.level }

// Panel returns a child logger for one panel session
func (l *Logger) Panel(panelID string) *zap.Logger {
	return l.With(zap.String("panel_id", panelID))
}

// Component returns a child logger named after a subsystem
func (l *Logger) Component(name string) *zap.Logger {
	return l.Named(name)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func consoleEncoding() zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	return enc
}

func jsonEncoding() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	return enc
}
