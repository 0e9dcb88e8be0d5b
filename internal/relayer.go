package internal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erc20-burn-relay/relayer/internal/metrics"
	"github.com/erc20-burn-relay/relayer/internal/reader"
	"github.com/erc20-burn-relay/relayer/internal/retry"
	"github.com/erc20-burn-relay/relayer/internal/submitter"
)

type Relayer struct {
	indexer   Indexer
	submitter submitter.ClaimSubmitter
	processor BlockProcessor
	config    RelayerConfig
	logger    *zap.Logger
}

// NewRelayer creates a new relayer instance
func NewRelayer(logger *zap.Logger, config RelayerConfig, indexer Indexer, claimSubmitter submitter.ClaimSubmitter, processor BlockProcessor) (*Relayer, error) {
	if indexer == nil || claimSubmitter == nil || processor == nil {
		return nil, fmt.Errorf("relayer needs an indexer, a submitter and a block processor")
	}
	if config.BlocksPerIteration <= 0 {
		config.BlocksPerIteration = 1
	}

	return &Relayer{
		logger:    logger.With(zap.String("component", "Relayer")),
		indexer:   indexer,
		submitter: claimSubmitter,
		processor: processor,
		config:    config,
	}, nil
}

// Start runs relay iterations until ctx is done or an iteration fails.
func (r *Relayer) Start(ctx context.Context) error {
	r.logger.Info("Starting relay loop",
		zap.String("contract", r.config.Contract.Hex()),
		zap.Uint64("deployHeight", r.config.DeployHeight),
		zap.Int("blocksPerIteration", r.config.BlocksPerIteration),
		zap.Duration("cooldown", r.config.Cooldown))

	var watermark uint64
	for {
		started := time.Now()
		next, err := r.Iterate(ctx, watermark)
		metrics.IterationDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("Shutting down relayer", zap.Uint64("watermark", watermark))
				return nil
			}
			r.logger.Error("Relay iteration failed", zap.Uint64("watermark", watermark), zap.Error(err))
			return err
		}
		watermark = next

		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down relayer", zap.Uint64("watermark", watermark))
			return nil
		case <-time.After(r.config.Cooldown):
		}
	}
}

// Iterate runs one watermark-read-submit pass starting after local and
// returns the new local watermark, which is the last block fully processed
// or local when no block was.
func (r *Relayer) Iterate(ctx context.Context, local uint64) (uint64, error) {
	destEnd, err := retry.Do(ctx, r.policy("queryEndHeight"), r.submitter.QueryEndHeight)
	if err != nil {
		return local, fmt.Errorf("query destination end height: %w", err)
	}

	startBlock := max(local+1, destEnd+1, r.config.DeployHeight)

	height, err := retry.Do(ctx, r.policy("readHeight"), r.indexer.ReadHeight)
	if err != nil {
		return local, fmt.Errorf("read source height: %w", err)
	}
	metrics.SourceHeight.Set(float64(height))

	if startBlock > height {
		r.logger.Debug("Up to date",
			zap.Uint64("startBlock", startBlock),
			zap.Uint64("sourceHeight", height))
		return local, nil
	}

	r.logger.Info("Reading burn transactions",
		zap.Uint64("startBlock", startBlock),
		zap.Uint64("endBlock", height),
		zap.Uint64("destinationEndHeight", destEnd),
		zap.Uint64("watermark", local))

	blocks := reader.New(r.logger, r.indexer, reader.Config{
		Contract:    r.config.Contract,
		StartHeight: startBlock,
		EndHeight:   height,
		PageSize:    r.config.PageSize,
		MaxAttempts: r.config.MaxRetries,
	})

	watermark := local
	for processed := 0; processed < r.config.BlocksPerIteration; processed++ {
		block, ok, err := blocks.Next(ctx)
		if err != nil {
			return watermark, fmt.Errorf("read blocks from %d: %w", startBlock, err)
		}
		if !ok {
			break
		}

		if _, err := r.processor.ProcessBlock(ctx, block); err != nil {
			return watermark, err
		}

		watermark = block.Number
		metrics.Watermark.Set(float64(watermark))
		r.logger.Info("Block processed",
			zap.Uint64("block", block.Number),
			zap.Int("txCount", len(block.Transactions)))
	}

	if blocks.Stalled() {
		r.logger.Warn("Reader stopped inside a block larger than the result window",
			zap.Uint64("watermark", watermark),
			zap.Int("pageSize", r.config.PageSize))
	}

	return watermark, nil
}

func (r *Relayer) policy(name string) retry.Policy {
	return retry.Policy{
		Name:        name,
		MaxAttempts: r.config.MaxRetries,
		OnRetry: func(attempt int, err error) {
			metrics.RetryAttempts.WithLabelValues(name).Inc()
			r.logger.Warn("Retrying", zap.String("op", name), zap.Int("attempt", attempt), zap.Error(err))
		},
	}
}
