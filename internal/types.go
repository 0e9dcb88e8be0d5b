package internal

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erc20-burn-relay/relayer/internal/reader"
)

// Indexer is the source chain as seen through the indexing API.
type Indexer interface {
	reader.PageSource
	ReadHeight(ctx context.Context) (uint64, error)
}

type RelayerConfig struct {
	Contract           common.Address // ERC-20 contract on the source chain
	DeployHeight       uint64         // first block that can hold a transfer
	PageSize           int
	MaxRetries         int
	BlocksPerIteration int           // blocks processed before cooling down
	Cooldown           time.Duration // pause between iterations
}
