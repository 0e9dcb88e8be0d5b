package internal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erc20-burn-relay/relayer/internal/burn"
	"github.com/erc20-burn-relay/relayer/internal/metrics"
	"github.com/erc20-burn-relay/relayer/internal/model"
	"github.com/erc20-burn-relay/relayer/internal/submitter"
)

type BlockProcessor interface {
	// ProcessBlock relays the burns of a complete block and returns the transaction hash,
	// empty when nothing was submitted
	ProcessBlock(ctx context.Context, block model.Block) (string, error)
}

type DefaultBlockProcessor struct {
	filter    *burn.Filter
	logger    *zap.Logger
	submitter submitter.ClaimSubmitter
}

func NewDefaultBlockProcessor(logger *zap.Logger, filter *burn.Filter, submitter submitter.ClaimSubmitter) *DefaultBlockProcessor {
	return &DefaultBlockProcessor{
		filter:    filter,
		logger:    logger.With(zap.String("component", "DefaultBlockProcessor")),
		submitter: submitter,
	}
}

func (p *DefaultBlockProcessor) ProcessBlock(ctx context.Context, block model.Block) (string, error) {
	p.logger.Debug("Block details",
		zap.Uint64("block", block.Number),
		zap.Int("txCount", len(block.Transactions)))

	claims, err := p.filter.Claims(block)
	if err != nil {
		return "", err
	}

	if len(claims) == 0 {
		p.logger.Debug("Skipping block (no burns)", zap.Uint64("block", block.Number))
		return "", nil
	}

	logClaims(p.logger, block.Number, claims)

	txHash, err := p.submitter.SubmitClaims(ctx, block.Number, claims)
	if errors.Is(err, submitter.ErrDuplicateClaims) {
		metrics.DuplicateSubmissions.Inc()
		p.logger.Warn("Skipping already recorded claims",
			zap.Uint64("block", block.Number),
			zap.Error(err))
		return "", nil
	}
	if err != nil {
		p.logger.Error("Failed to submit claims",
			zap.Uint64("block", block.Number),
			zap.Int("claims", len(claims)),
			zap.Error(err))
		return "", fmt.Errorf("submit block %d: %w", block.Number, err)
	}

	metrics.ClaimsSubmitted.Add(float64(len(claims)))
	p.logger.Info("Burn claims written",
		zap.Uint64("block", block.Number),
		zap.Int("claims", len(claims)),
		zap.String("txHash", txHash))

	return txHash, nil
}
