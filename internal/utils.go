package internal

import (
	"go.uber.org/zap"

	"github.com/erc20-burn-relay/relayer/internal/burn"
	"github.com/erc20-burn-relay/relayer/internal/model"
)

// logClaims lists the burns found in a block at info level
func logClaims(logger *zap.Logger, block uint64, claims []model.Claim) {
	logger.Info("Burns found",
		zap.Uint64("block", block),
		zap.Int("count", len(claims)),
		zap.String("total", burn.Total(claims).String()))

	for _, claim := range claims {
		logger.Info("Found transaction",
			zap.String("hash", claim.TxHash.Hex()),
			zap.String("from", claim.Address.Hex()),
			zap.String("amount", claim.Amount.String()))
	}
}
