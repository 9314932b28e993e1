package monolith

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-sweeper/internal/config"
	"github.com/fd1az/token-sweeper/internal/di"
	"github.com/fd1az/token-sweeper/internal/logger"
)

type stubModule struct {
	name     string
	startErr error
	trail    *[]string
}

func (m *stubModule) Name() string { return m.name }

func (m *stubModule) RegisterServices(c di.Container) error {
	*m.trail = append(*m.trail, "register "+m.name)
	return nil
}

func (m *stubModule) Startup(_ context.Context, mono Monolith) error {
	*m.trail = append(*m.trail, "start "+m.name)
	mono.OnClose(func() error {
		*m.trail = append(*m.trail, "close "+m.name)
		return nil
	})
	return m.startErr
}

func testApp() *App {
	return newApp(&config.Config{}, logger.New(io.Discard, logger.LevelError, "test", nil), nil)
}

func TestApp_LifecycleOrder(t *testing.T) {
	var trail []string
	a := testApp()

	require.NoError(t, a.RegisterModules(
		&stubModule{name: "wallet", trail: &trail},
		&stubModule{name: "sweep", trail: &trail},
	))
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Close())

	assert.Equal(t, []string{
		"register wallet", "register sweep",
		"start wallet", "start sweep",
		"close sweep", "close wallet",
	}, trail)
}

func TestApp_StartStopsAtFirstFailure(t *testing.T) {
	var trail []string
	a := testApp()

	require.NoError(t, a.RegisterModules(
		&stubModule{name: "wallet", startErr: errors.New("no rpc"), trail: &trail},
		&stubModule{name: "sweep", trail: &trail},
	))
	err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start wallet: no rpc")
	assert.NotContains(t, trail, "start sweep")
}

func TestApp_CloseJoinsErrors(t *testing.T) {
	a := testApp()
	a.OnClose(func() error { return errors.New("db") })
	a.OnClose(func() error { return nil })

	err := a.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
	assert.NoError(t, a.Close(), "hooks run once")
}

func TestApp_SharedServices(t *testing.T) {
	a := testApp()
	sr := a.Services()

	assert.Same(t, a.Config(), SharedConfig(sr))
	assert.Same(t, a.AssetRegistry(), SharedAssetRegistry(sr))
	assert.NotNil(t, SharedLogger(sr))
}
