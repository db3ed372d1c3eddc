package auth

import "go.uber.org/zap"

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps a zap logger so it satisfies Logger
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		l = zap.L()
	}
	return zapLogger{sugar: l.Sugar()}
}

func (z zapLogger) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z zapLogger) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z zapLogger) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z zapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

type zapProvider struct {
	base *zap.Logger
}

// NewZapLoggerProvider returns a provider handing out named children of base.
// A nil base follows the process-wide zap logger.
func NewZapLoggerProvider(base *zap.Logger) LoggerProvider {
	return zapProvider{base: base}
}

func (p zapProvider) GetLogger(name string) Logger {
	base := p.base
	if base == nil {
		base = zap.L()
	}
	return zapLogger{sugar: base.Named(name).Sugar()}
}

// ResolveLogger picks the logger for a component: an explicit logger wins,
// then the provider, then the process-wide zap logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if provider == nil {
		provider = NewZapLoggerProvider(nil)
	}

	if logger != nil {
		return provider, logger
	}

	if resolved := provider.GetLogger(name); resolved != nil {
		return provider, resolved
	}

	return provider, NewZapLoggerProvider(nil).GetLogger(name)
}
