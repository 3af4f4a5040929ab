// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// WithRun tags every entry of a command run with its id.
func WithRun(logger *zap.Logger, command, runID string) *zap.Logger {
	return logger.With(zap.String("command", command), zap.String("run_id", runID))
}

// Printf adapts a zap logger to libraries that log through Printf-style
// methods, such as the migration runner.
type Printf struct {
	sugar *zap.SugaredLogger
}

// NewPrintf wraps logger.
func NewPrintf(logger *zap.Logger) Printf {
	return Printf{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Printf logs at info level with trailing newlines trimmed.
func (p Printf) Printf(format string, v ...any) {
	p.sugar.Info(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

// Print logs at info level.
func (p Printf) Print(v ...any) {
	p.sugar.Info(strings.TrimRight(fmt.Sprint(v...), "\n"))
}

// Println logs at info level.
func (p Printf) Println(v ...any) {
	p.sugar.Info(strings.TrimRight(fmt.Sprintln(v...), "\n"))
}

// Fatalf logs at error level. It does not exit; callers receive the error
// through their normal return path.
func (p Printf) Fatalf(format string, v ...any) {
	p.sugar.Error(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
}

// Fatal logs at error level without exiting.
func (p Printf) Fatal(v ...any) {
	p.sugar.Error(strings.TrimRight(fmt.Sprint(v...), "\n"))
}
