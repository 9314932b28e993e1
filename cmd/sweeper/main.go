// Package main is the entry point for the ERC-20 token sweeper.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/fd1az/token-sweeper/business/holdings"
	holdingsDI "github.com/fd1az/token-sweeper/business/holdings/di"
	"github.com/fd1az/token-sweeper/business/sweep"
	sweepApp "github.com/fd1az/token-sweeper/business/sweep/app"
	sweepDI "github.com/fd1az/token-sweeper/business/sweep/di"
	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/business/sweep/infra"
	"github.com/fd1az/token-sweeper/business/wallet"
	walletDI "github.com/fd1az/token-sweeper/business/wallet/di"
	"github.com/fd1az/token-sweeper/internal/api"
	"github.com/fd1az/token-sweeper/internal/apm"
	"github.com/fd1az/token-sweeper/internal/config"
	"github.com/fd1az/token-sweeper/internal/health"
	"github.com/fd1az/token-sweeper/internal/logger"
	"github.com/fd1az/token-sweeper/internal/metrics"
	"github.com/fd1az/token-sweeper/internal/monolith"
	"github.com/fd1az/token-sweeper/internal/scheduler"
	"github.com/fd1az/token-sweeper/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type options struct {
	configPath string
	tuiMode    bool
	tokens     string
	amounts    string
	symbols    string
	target     string
	all        bool
	serve      bool
	attach     string
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	var opts options
	var cliMode, showVersion bool
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&cliMode, "cli", false, "Run in CLI mode with logs (no TUI)")
	flag.StringVar(&opts.tokens, "tokens", "", "Comma-separated token addresses to sweep")
	flag.StringVar(&opts.amounts, "amounts", "", "Comma-separated display amounts, parallel to -tokens")
	flag.StringVar(&opts.symbols, "symbols", "", "Optional comma-separated symbols, parallel to -tokens")
	flag.StringVar(&opts.target, "target", "", "Target token symbol or address (default from config)")
	flag.BoolVar(&opts.all, "all", false, "Sweep every eligible holding of the wallet")
	flag.BoolVar(&opts.serve, "serve", false, "Serve the HTTP API and run the scheduler")
	flag.StringVar(&opts.attach, "attach", "", "Attach the dashboard to a running API (ws://host:port)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("token-sweeper %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for scripting and debugging
	opts.tuiMode = !cliMode

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	if opts.attach != "" {
		err = runAttach(ctx, opts.attach)
	} else {
		err = run(ctx, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Sweep.TUIMode = opts.tuiMode

	// Quitting the dashboard cancels in-flight work.
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	if opts.target == "" {
		opts.target = cfg.Sweep.Target
	}

	var log *logger.Logger
	if opts.tuiMode {
		// In TUI mode, suppress logs (discard output)
		log = logger.New(io.Discard, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
		log.Info(ctx, "starting token sweeper",
			"version", version,
			"environment", cfg.App.Environment,
			"chain_id", cfg.Ethereum.ChainID,
		)
	}

	stopTelemetry := setupTelemetry(ctx, cfg, log)
	defer stopTelemetry()

	healthPort := cfg.Telemetry.HealthPort
	if healthPort == 0 {
		healthPort = 8081
	}
	healthServer := health.NewServer(healthPort, version, log)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", healthPort)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Stop(shutdownCtx)
	}()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&wallet.Module{},   // Signing session and gas pricing
		&sweep.Module{},    // Quote client, token contracts, denylist, orchestrator
		&holdings.Module{}, // Watch-list snapshot, consumes sweep token contracts
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	start := func() error {
		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "rpc", Status: "connecting"})
		if err := mono.Start(ctx); err != nil {
			ui.Send(ui.StartupMsg{Step: "rpc", Status: "failed", Message: err.Error()})
			return fmt.Errorf("failed to start modules: %w", err)
		}
		ui.Send(ui.StartupMsg{Step: "rpc", Status: "connected"})

		sr := mono.Services()
		walletSvc := walletDI.GetWalletService(sr)
		quotes := sweepDI.GetQuoteClient(sr)
		healthServer.RegisterCheck("wallet", walletSvc.HealthCheck)
		healthServer.RegisterCheck("quote", quotes.HealthCheck)
		healthServer.RegisterCheck("rpc", sweepDI.GetTokenContracts(sr).HealthCheck)

		if ok, detail := walletSvc.HealthCheck(ctx); ok {
			ui.Send(ui.StartupMsg{Step: "wallet", Status: "done"})
		} else {
			ui.Send(ui.StartupMsg{Step: "wallet", Status: "failed", Message: detail})
		}
		ui.Send(ui.StartupMsg{Step: "quote", Status: "done"})
		ui.Send(ui.ConnectionStatusMsg{Name: "RPC", Connected: true, Detail: cfg.Ethereum.RPCURL})
		ui.Send(ui.ConnectionStatusMsg{Name: "0x", Connected: true, Detail: string(sweepDI.GetSweepService(sr).Mode())})
		return nil
	}

	work := func() error {
		sr := mono.Services()
		svc := sweepDI.GetSweepService(sr)
		target, err := mono.AssetRegistry().Resolve(cfg.Ethereum.ChainID, opts.target)
		if err != nil {
			return fmt.Errorf("unknown target %q: %w", opts.target, err)
		}

		if opts.serve {
			return serve(ctx, cfg, mono, target, log)
		}

		req, err := buildRequest(ctx, svc, opts, target)
		if err != nil {
			return err
		}
		if len(req.Tokens) == 0 {
			log.Info(ctx, "nothing to sweep")
			ui.Send(ui.LogMsg{Level: "info", Message: "nothing to sweep"})
			return nil
		}

		var observer sweepApp.Observer
		if opts.tuiMode {
			observer = infra.NewTUIReporter(ui.Program)
		} else {
			observer = infra.NewConsoleReporter(mono.AssetRegistry(), cfg.Ethereum.ChainID)
		}

		status, err := svc.Sweep(ctx, req, observer)
		if err != nil {
			return err
		}
		summary := status.Summary()
		log.Info(ctx, "sweep finished",
			"batch_id", status.ID.String(),
			"status", string(status.Status),
			"swapped", summary.Success,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
		)
		sendHoldings(ctx, mono)
		return nil
	}

	if opts.tuiMode {
		return runTUI(ctx, stop, func() error {
			if err := start(); err != nil {
				return err
			}
			sendHoldings(ctx, mono)
			if opts.serve {
				// The dashboard follows batches started over the API or by the scheduler.
				go forwardBatches(ctx, sweepDI.GetSweepService(mono.Services()))
			}
			return work()
		})
	}

	if err := start(); err != nil {
		return err
	}
	return work()
}

// serve runs the HTTP API and the scheduler until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, mono monolith.Monolith, target common.Address, log logger.LoggerInterface) error {
	sr := mono.Services()
	svc := sweepDI.GetSweepService(sr)

	port := cfg.API.Port
	if port == 0 {
		port = 8090
	}
	server := api.NewServer(
		api.Config{Port: port, ChainID: cfg.Ethereum.ChainID, DefaultTarget: cfg.Sweep.Target},
		svc,
		svc.Denylist(),
		holdingsDI.GetHoldingsService(sr),
		walletDI.GetWalletService(sr),
		mono.AssetRegistry(),
		log,
	)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start api: %w", err)
	}
	log.Info(ctx, "api server started", "port", port)
	ui.Send(ui.ConnectionStatusMsg{Name: "API", Connected: true, Detail: ":" + strconv.Itoa(port)})

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(scheduler.Config{
			Cron:     cfg.Scheduler.Cron,
			Timezone: cfg.Scheduler.Timezone,
			Target:   target,
		}, svc, log)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
		log.Info(ctx, "next scheduled sweep", "at", sched.Next().Format(time.RFC3339))
		ui.Send(ui.LogMsg{Level: "info", Message: "next scheduled sweep at " + sched.Next().Format(time.Kitchen)})
	}

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// buildRequest turns the command line into a sweep request. -all takes the
// request from the holdings snapshot.
func buildRequest(ctx context.Context, svc *sweepApp.SweepService, opts options, target common.Address) (domain.SweepRequest, error) {
	if opts.all {
		return svc.HoldingsRequest(ctx, target)
	}
	if opts.tokens == "" {
		return domain.SweepRequest{Target: target}, nil
	}
	req, err := parseRequest(opts.tokens, opts.amounts, opts.symbols, target)
	if err != nil {
		return domain.SweepRequest{}, err
	}
	return req, req.Validate()
}

func sendHoldings(ctx context.Context, mono monolith.Monolith) {
	if ui.Program == nil {
		return
	}
	sr := mono.Services()
	owner := walletDI.GetWalletService(sr).Address()
	if owner == (common.Address{}) {
		return
	}
	snapshot, err := holdingsDI.GetHoldingsService(sr).Snapshot(ctx, owner)
	if err != nil {
		ui.Send(ui.ErrorMsg{Error: err})
		return
	}
	ui.Send(ui.HoldingsMsg{Snapshot: snapshot})
}

func forwardBatches(ctx context.Context, svc *sweepApp.SweepService) {
	updates, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	reporter := infra.NewTUIReporter(ui.Program)
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			reporter.OnUpdate(status)
		}
	}
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	var console io.Writer = os.Stderr
	if cfg.Sweep.TUIMode {
		console = io.Discard
	}

	provider := apm.ParseProvider(cfg.Telemetry.TracingProvider)
	traceProvider, err := apm.NewTraceProvider(ctx, apm.Config{
		Provider:    provider,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
		Protocol:    cfg.Telemetry.OTLPProtocol,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Console:     console,
	})
	if err != nil {
		log.Warn(ctx, "tracing disabled", "provider", string(provider), "error", err)
		traceProvider, _ = apm.NewTraceProvider(ctx, apm.Config{Provider: apm.EmptyProvider})
	} else {
		log.Info(ctx, "tracing initialized", "provider", string(provider), "endpoint", cfg.Telemetry.OTLPEndpoint)
	}

	metricsCfg := metrics.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Prometheus:  true,
	}
	if provider == apm.OTLPProvider && cfg.Telemetry.OTLPEndpoint != "" {
		headers, _ := apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)
		metricsCfg.OTLP = &metrics.OTLPConfig{
			Endpoint: cfg.Telemetry.OTLPEndpoint,
			Headers:  headers,
		}
	}
	meterProvider, err := metrics.New(ctx, metricsCfg)
	if err != nil {
		log.Warn(ctx, "metrics disabled", "error", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	if meterProvider != nil {
		go func() {
			addr := ":" + strconv.Itoa(port)
			if err := metrics.Serve(ctx, log, addr, meterProvider.Handler()); err != nil {
				log.Error(ctx, "metrics server stopped", "error", err)
			}
		}()
	}

	return func() {
		if meterProvider != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meterProvider.Shutdown(shutdownCtx); err != nil {
				log.Warn(shutdownCtx, "failed to stop meter provider", "error", err)
			}
		}
		if err := traceProvider.Stop(); err != nil {
			log.Warn(context.Background(), "failed to stop trace provider", "error", err)
		}
	}
}

// runTUI shows the dashboard and runs startFunc once the welcome screen is
// done. Quitting the dashboard calls stop and waits for startFunc to return.
func runTUI(ctx context.Context, stop context.CancelFunc, startFunc func() error) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		// Modules start once the welcome screen is dismissed.
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}
		errCh <- nil
	}()

	_, runErr := p.Run()
	stop()

	var err error
	select {
	case err = <-errCh:
	case <-time.After(15 * time.Second):
		err = fmt.Errorf("timed out waiting for shutdown")
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
