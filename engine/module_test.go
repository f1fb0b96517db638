package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/joshuafuller/svcinfo/internal/errors"
	"github.com/joshuafuller/svcinfo/internal/logger"
	"github.com/joshuafuller/svcinfo/internal/transport"
)

func TestModule_Lifecycle(t *testing.T) {
	mock := transport.NewMockTransport()
	var eng *Engine

	app := fxtest.New(t,
		Module,
		fx.Provide(
			AsOption(func() Option { return WithTransports(mock) }),
			AsOption(func() Option { return WithLogger(logger.Discard()) }),
		),
		fx.Populate(&eng),
	)
	require.NotNil(t, eng)
	assert.False(t, eng.Started())

	app.RequireStart()
	assert.True(t, eng.Started())

	app.RequireStop()
	assert.ErrorIs(t, eng.Start(context.Background()), errors.ErrEngineClosed)
}

func TestProvideEngine_UnknownInterface(t *testing.T) {
	_, err := ProvideEngine(ModuleInput{Config: &Config{Interfaces: []string{"does-not-exist0"}}})
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "interfaces", verr.Field)
}
