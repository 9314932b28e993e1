// Package monolith hosts the sweeper's bounded contexts in one process.
// Modules share one RPC client, one config and one asset registry through
// the DI container, and start in the order they were registered.
package monolith

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/token-sweeper/internal/asset"
	"github.com/fd1az/token-sweeper/internal/config"
	"github.com/fd1az/token-sweeper/internal/di"
	"github.com/fd1az/token-sweeper/internal/logger"
)

// Shared services every module may resolve.
var (
	ConfigToken    = di.NewToken[*config.Config]("config")
	LoggerToken    = di.NewToken[logger.LoggerInterface]("logger")
	EthClientToken = di.NewToken[*ethclient.Client]("ethClient")
	AssetsToken    = di.NewToken[*asset.Registry]("assetRegistry")
)

// Monolith is what a module sees at startup.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	Services() di.ServiceRegistry
	// OnClose registers a hook. Close runs hooks last-in first-out.
	OnClose(fn func() error)
}

// Module is a bounded context.
type Module interface {
	Name() string
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// App owns the container and the modules registered on it.
type App struct {
	cfg       *config.Config
	log       logger.LoggerInterface
	eth       *ethclient.Client
	assets    *asset.Registry
	container di.Container

	mu      sync.Mutex
	modules []Module
	closers []func() error
}

var _ Monolith = (*App)(nil)

// New dials the RPC node and seeds the container with the shared services.
// Base assets are pre-registered; tokens found on chain are upserted later.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*App, error) {
	eth, err := ethclient.DialContext(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return newApp(cfg, log, eth), nil
}

func newApp(cfg *config.Config, log logger.LoggerInterface, eth *ethclient.Client) *App {
	a := &App{
		cfg:       cfg,
		log:       log,
		eth:       eth,
		assets:    asset.DefaultRegistry(),
		container: di.NewContainer(),
	}
	di.RegisterToken(a.container, ConfigToken, func(di.ServiceRegistry) *config.Config { return a.cfg })
	di.RegisterToken(a.container, LoggerToken, func(di.ServiceRegistry) logger.LoggerInterface { return a.log })
	di.RegisterToken(a.container, EthClientToken, func(di.ServiceRegistry) *ethclient.Client { return a.eth })
	di.RegisterToken(a.container, AssetsToken, func(di.ServiceRegistry) *asset.Registry { return a.assets })
	return a
}

func (a *App) Config() *config.Config         { return a.cfg }
func (a *App) Logger() logger.LoggerInterface { return a.log }
func (a *App) AssetRegistry() *asset.Registry { return a.assets }
func (a *App) Services() di.ServiceRegistry   { return a.container }

func (a *App) OnClose(fn func() error) {
	a.mu.Lock()
	a.closers = append(a.closers, fn)
	a.mu.Unlock()
}

// RegisterModules lets each module add its factories and remembers it for
// Start.
func (a *App) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return fmt.Errorf("register %s: %w", m.Name(), err)
		}
		a.mu.Lock()
		a.modules = append(a.modules, m)
		a.mu.Unlock()
	}
	return nil
}

// Start runs Startup on every registered module in order and stops at the
// first failure.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	modules := append([]Module(nil), a.modules...)
	a.mu.Unlock()

	for _, m := range modules {
		began := time.Now()
		if err := m.Startup(ctx, a); err != nil {
			return fmt.Errorf("start %s: %w", m.Name(), err)
		}
		a.log.Debug(ctx, "module started", "module", m.Name(), "took", time.Since(began).String())
	}
	return nil
}

// Close runs the hooks, then closes the RPC client. Hook errors are joined.
func (a *App) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if a.eth != nil {
		a.eth.Close()
	}
	return errors.Join(errs...)
}

func SharedConfig(sr di.ServiceRegistry) *config.Config         { return di.GetToken(sr, ConfigToken) }
func SharedLogger(sr di.ServiceRegistry) logger.LoggerInterface { return di.GetToken(sr, LoggerToken) }
func SharedEthClient(sr di.ServiceRegistry) *ethclient.Client   { return di.GetToken(sr, EthClientToken) }
func SharedAssetRegistry(sr di.ServiceRegistry) *asset.Registry { return di.GetToken(sr, AssetsToken) }
