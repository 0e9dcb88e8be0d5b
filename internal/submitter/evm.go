package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/erc20-burn-relay/relayer/internal/clients"
	"github.com/erc20-burn-relay/relayer/internal/model"
)

// Registry is the destination claim registry as exposed by clients.EVMClient.
type Registry interface {
	EndHeight(ctx context.Context, registry common.Address) (uint64, error)
	StoreBurnedTransactions(ctx context.Context, registry common.Address, height uint64, claims []model.Claim) (string, error)
}

// EVMSubmitter handles submission of burn claims to an EVM claim registry
type EVMSubmitter struct {
	targetContract common.Address
	evmClient      Registry
	timeout        time.Duration
	logger         *zap.Logger
}

// NewEVMSubmitter creates a new EVM submitter instance
func NewEVMSubmitter(logger *zap.Logger, targetContract common.Address, evmClient Registry) *EVMSubmitter {
	return &EVMSubmitter{
		targetContract: targetContract,
		evmClient:      evmClient,
		timeout:        5 * time.Minute,
		logger:         logger.With(zap.String("component", "EVMSubmitter")),
	}
}

func (s *EVMSubmitter) QueryEndHeight(ctx context.Context) (uint64, error) {
	height, err := s.evmClient.EndHeight(ctx, s.targetContract)
	if err != nil {
		return 0, fmt.Errorf("query end height: %w", err)
	}
	return height, nil
}

// SubmitClaims stores the claims of one source block. A height the registry
// already covers, or a claim it already holds, yields ErrDuplicateClaims.
func (s *EVMSubmitter) SubmitClaims(ctx context.Context, height uint64, claims []model.Claim) (string, error) {
	// covers the wait for the transaction to be mined
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	endHeight, err := s.QueryEndHeight(ctx)
	if err != nil {
		return "", err
	}
	if endHeight >= height {
		return "", fmt.Errorf("%w: height %d, registry end height %d", ErrDuplicateClaims, height, endHeight)
	}

	s.logger.Info("Submitting claims",
		zap.Uint64("block", height),
		zap.Int("claims", len(claims)),
		zap.String("targetContract", s.targetContract.Hex()))

	txHash, err := s.evmClient.StoreBurnedTransactions(ctx, s.targetContract, height, claims)
	if errors.Is(err, clients.ErrTxHashAlreadyExist) {
		return "", fmt.Errorf("%w: %v", ErrDuplicateClaims, err)
	}
	if err != nil {
		if ctx.Err() != nil {
			return txHash, fmt.Errorf("submission interrupted: %w", ctx.Err())
		}
		return txHash, fmt.Errorf("failed to submit claims: %w", err)
	}

	s.logger.Info("Claims recorded",
		zap.Uint64("block", height),
		zap.String("txHash", txHash))

	return txHash, nil
}
