package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-auth-stamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubProvider struct {
	logger auth.Logger
	names  []string
}

func (p *stubProvider) GetLogger(name string) auth.Logger {
	p.names = append(p.names, name)
	return p.logger
}

func TestResolveLogger(t *testing.T) {
	explicit := &MockLogger{}
	fromProvider := &MockLogger{}

	t.Run("explicit logger wins", func(t *testing.T) {
		provider := &stubProvider{logger: fromProvider}
		gotProvider, got := auth.ResolveLogger("auth.test", provider, explicit)
		assert.Same(t, provider, gotProvider)
		assert.Same(t, explicit, got)
		assert.Empty(t, provider.names)
	})

	t.Run("provider is asked by name", func(t *testing.T) {
		provider := &stubProvider{logger: fromProvider}
		_, got := auth.ResolveLogger("auth.test", provider, nil)
		assert.Same(t, fromProvider, got)
		assert.Equal(t, []string{"auth.test"}, provider.names)
	})

	t.Run("provider without logger falls back to zap", func(t *testing.T) {
		provider := &stubProvider{}
		_, got := auth.ResolveLogger("auth.test", provider, nil)
		assert.NotNil(t, got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		provider, got := auth.ResolveLogger("auth.test", nil, nil)
		assert.NotNil(t, provider)
		assert.NotNil(t, got)
	})
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	provider := auth.NewZapLoggerProvider(zap.New(core))

	logger := provider.GetLogger("auth.guard")
	logger.Debug("debug message", "account_id", int64(1))
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", "scheme", "Identity.Application")

	entries := logs.All()
	if assert.Len(t, entries, 4) {
		assert.Equal(t, "auth.guard", entries[0].LoggerName)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, int64(1), entries[0].ContextMap()["account_id"])
		assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
		assert.Equal(t, "Identity.Application", entries[3].ContextMap()["scheme"])
	}

	direct := auth.NewZapLogger(zap.New(core))
	direct.Info("direct")
	assert.Equal(t, 1, logs.FilterMessage("direct").Len())
}

func TestActivitySinkFailureIsLogged(t *testing.T) {
	logger := &MockLogger{}
	logger.On("Warn", "activity sink failed", mock.Anything).Return()
	logger.On("Info", mock.Anything, mock.Anything).Return()

	sink := auth.ActivitySinkFunc(func(_ context.Context, _ auth.ActivityEvent) error {
		return assert.AnError
	})

	guard := newGuard(t, staticLookup(nil, nil), emptyRoles(),
		auth.WithGuardActivitySink(sink),
		auth.WithGuardLogger(logger),
	)

	p := principalFor(newTestAccount(1, "user@example.com"), auth.DefaultPrimaryScheme)
	assert.Equal(t, auth.DecisionReject, guard.Enforce(context.Background(), p, nil))
	logger.AssertCalled(t, "Warn", "activity sink failed", mock.Anything)
}
