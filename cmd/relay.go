package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erc20-burn-relay/relayer/internal"
	"github.com/erc20-burn-relay/relayer/internal/burn"
	"github.com/erc20-burn-relay/relayer/internal/clients"
	"github.com/erc20-burn-relay/relayer/internal/config"
	"github.com/erc20-burn-relay/relayer/internal/submitter"
)

// relayCmd represents the command to relay burns to the claim registry
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay ERC-20 burns to the destination claim registry",
	Long: `Reads transfers of the configured ERC-20 contract from the indexing API one
complete block at a time, and records every transfer to the burn address in the
destination claim registry.

The starting block is derived from the registry's end height on every iteration,
so the relayer can be restarted at any point without skipping or repeating blocks.`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().Duration(
		"cooldown",
		time.Minute,
		"Pause between relay iterations")

	relayCmd.Flags().Int(
		"blocks-per-iteration",
		1,
		"Blocks relayed per iteration before cooling down")

	relayCmd.Flags().String(
		"dest-rpc-url",
		"",
		"JSON-RPC URL of the destination chain (required)")

	relayCmd.Flags().String(
		"dest-contract",
		"",
		"Claim registry contract on the destination chain (required)")

	relayCmd.Flags().String(
		"private-key",
		"",
		"Private key signing registry transactions (required)")

	relayCmd.Flags().String(
		"metrics-addr",
		"",
		"Address serving Prometheus metrics, e.g. :9090 (disabled when empty)")
}

func runRelay(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateRelay(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	logger.Info("Configuration",
		zap.String("network", cfg.Network),
		zap.String("contract", cfg.ContractAddress().Hex()),
		zap.Uint64("deployHeight", cfg.DeployHeight),
		zap.String("indexer", cfg.IndexerURL),
		zap.Bool("proxy", cfg.HTTPProxy != ""),
		zap.Int("pageSize", cfg.PageSize),
		zap.String("burnAddress", cfg.BurnSinkAddress().Hex()),
		zap.Int64("scaleFactor", cfg.ScaleFactor),
		zap.String("destRPC", cfg.DestRPCURL),
		zap.String("destContract", cfg.DestContractAddress().Hex()))

	indexer := newIndexerClient(logger, cfg)

	evmClient, err := clients.NewEVMClient(logger, cfg.DestRPCURL, cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to create EVM client: %w", err)
	}
	defer evmClient.Close()

	logger.Info("Connected to destination chain",
		zap.String("address", evmClient.GetAddress().Hex()))

	evmSubmitter := submitter.NewEVMSubmitter(logger, cfg.DestContractAddress(), evmClient)

	processor := internal.NewDefaultBlockProcessor(logger,
		burn.NewFilter(cfg.ContractAddress(), cfg.BurnSinkAddress(), cfg.ScaleFactor),
		evmSubmitter)

	relayer, err := internal.NewRelayer(logger, internal.RelayerConfig{
		Contract:           cfg.ContractAddress(),
		DeployHeight:       cfg.DeployHeight,
		PageSize:           cfg.PageSize,
		MaxRetries:         cfg.MaxRetries,
		BlocksPerIteration: cfg.BlocksPerIteration,
		Cooldown:           cfg.Cooldown,
	}, indexer, evmSubmitter, processor)
	if err != nil {
		return fmt.Errorf("failed to initialize relayer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("Received shutdown signal")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relayer.Start(gctx)
	})

	if cfg.MetricsAddr != "" {
		serveMetrics(gctx, g, logger, cfg.MetricsAddr)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("relayer stopped with error: %w", err)
	}
	return nil
}

func newIndexerClient(logger *zap.Logger, cfg *config.Config) *clients.IndexerClient {
	return clients.NewIndexerClient(logger, clients.IndexerConfig{
		Endpoint:          cfg.IndexerURL,
		APIKey:            cfg.IndexerAPIKey,
		Proxy:             cfg.HTTPProxy,
		RequestsPerSecond: cfg.IndexerRPS,
	})
}

// serveMetrics exposes /metrics until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, logger *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
