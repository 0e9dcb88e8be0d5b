package submitter

import (
	"context"
	"errors"

	"github.com/erc20-burn-relay/relayer/internal/model"
)

// ErrDuplicateClaims means the destination already recorded the submitted height.
var ErrDuplicateClaims = errors.New("claims already recorded")

type ClaimSubmitter interface {
	// QueryEndHeight returns the highest source height the destination has durably recorded
	QueryEndHeight(ctx context.Context) (uint64, error)

	// SubmitClaims records the claims of one source block and returns the transaction hash
	// or an error wrapping ErrDuplicateClaims
	SubmitClaims(ctx context.Context, height uint64, claims []model.Claim) (string, error)
}
