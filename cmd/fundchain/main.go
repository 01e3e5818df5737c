package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/app/service"
	"fundchain/internal/app/session"
	"fundchain/internal/infrastructure/configloader"
	"fundchain/internal/infrastructure/gateway"
	"fundchain/internal/infrastructure/mirrornode"
	clientprovider "fundchain/internal/infrastructure/network/client"
	networkdefinition "fundchain/internal/infrastructure/network/definition"
	"fundchain/internal/infrastructure/restapi"
	"fundchain/internal/infrastructure/wallet"
	"fundchain/internal/infrastructure/walletloader"
	"fundchain/internal/pkg/logger"
)

const defaultConfigPath = "config/config.yml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fundchain: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := configloader.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zapLogger, err := logger.Init(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	appLogger := logger.NewSlogAdapter()
	logger.Info("FundChain service starting", "config", configPath, "network", cfg.Network.Name)

	var netDefs port.NetworkDefinitionProvider
	netDefs, err = networkdefinition.NewNetworkDefinitionProvider(appLogger, cfg.Network)
	if err != nil {
		return err
	}
	netDef := netDefs.Active()

	clients := clientprovider.NewEVMClientProvider(clientprovider.Options{
		ConnectionTimeout: cfg.DialTimeout(),
		CallTimeout:       cfg.CallTimeout(),
		PollInterval:      cfg.PollInterval(),
		FallbackGasLimit:  cfg.Transactions.FallbackGasLimit,
		RateLimit:         cfg.RpcClient.RateLimit,
		BurstLimit:        cfg.RpcClient.BurstLimit,
	}, appLogger)
	ledger, err := clients.GetClient(netDef)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", netDef.Name, err)
	}

	reader := gateway.NewReadGateway(ledger, cfg.PoolAddress(), appLogger)
	writer := gateway.NewWriteGateway(ledger, cfg.PoolAddress(), cfg.TokenServiceAddress(), cfg.ConfirmTimeout(), appLogger)

	mirror := mirrornode.NewClient(
		netDef.MirrorNodeURL,
		time.Duration(cfg.MirrorNode.RequestTimeoutMillis)*time.Millisecond,
		time.Duration(cfg.MirrorNode.CacheTTLMinutes)*time.Minute,
		zapLogger,
	)
	keys := walletloader.NewKeyFileLoader(cfg.Wallet.KeyFile, cfg.Wallet.PassphraseEnv, appLogger)
	pairer := wallet.NewLocalPairer(keys, mirror, appLogger)

	store := session.NewStore(pairer, session.Options{
		Metadata:         cfg.Wallet.Metadata,
		PairingTimeout:   cfg.PairingTimeout(),
		FailedResetAfter: cfg.FailedResetAfter(),
	}, appLogger)
	signers := session.NewSignerProvider(store)

	hub := service.NewEventHub(appLogger)
	defer hub.Close()
	balances := service.NewBalanceTracker(reader, store, cfg.CallTimeout(), appLogger)
	defer store.OnChange(hub.PublishSession)()
	defer store.OnChange(balances.HandleSession)()

	asks := service.NewAskSynchronizer(reader, writer, signers, store, hub, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout())
		defer cancel()
		if _, err := asks.Refresh(loadCtx); err != nil {
			logger.Warn("Initial ask load failed; the UI can retry", "error", err)
		}
	}()

	handler := restapi.NewHandler(store, asks, netDef, appLogger)
	stream := restapi.NewEventStream(hub, store, netDef, cfg.Server.AllowedOrigins, appLogger)
	router := restapi.SetupRouter(handler, stream, restapi.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		// Write endpoints wait for confirmation, so this must exceed the confirm timeout.
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown of HTTP server failed", "error", err)
	}

	store.Disconnect()
	balances.Wait()
	logger.Info("FundChain service stopped")
	return nil
}
