package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/erc20-burn-relay/relayer/internal/clients"
	"github.com/erc20-burn-relay/relayer/internal/metrics"
	"github.com/erc20-burn-relay/relayer/internal/model"
	"github.com/erc20-burn-relay/relayer/internal/retry"
)

// MaxResultWindow is the largest page*offset the indexer will serve.
const MaxResultWindow = 10000

// PageSource is the paginated transaction query of the indexer.
type PageSource interface {
	ReadPage(ctx context.Context, page, pageSize int, endHeight, startHeight uint64, contract common.Address) ([]model.TokenTransaction, error)
}

// Config describes the window a BlockReader covers and how it pages through it.
type Config struct {
	Contract    common.Address
	StartHeight uint64
	EndHeight   uint64
	PageSize    int
	MaxAttempts int // per page, see retry.Policy
}

// OrderingError reports a new transfer for a block that was already yielded,
// which means the indexer broke its ascending sort guarantee.
type OrderingError struct {
	Block       uint64
	Hash        common.Hash
	LastEmitted uint64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("transaction %s of block %d arrived after block %d was emitted", e.Hash.Hex(), e.Block, e.LastEmitted)
}

// transferKey identifies a transfer record refetched after a rebase. Distinct
// transfers may share a key, so copies are counted rather than deduplicated.
type transferKey struct {
	hash  common.Hash
	from  common.Address
	to    common.Address
	value string
}

func keyOf(tx model.TokenTransaction) transferKey {
	return transferKey{hash: tx.Hash, from: tx.From, to: tx.To, value: tx.Value.String()}
}

// BlockReader yields the transfers of [StartHeight, EndHeight] one complete
// block at a time, in ascending order, never yielding a block twice.
//
// A block is complete once a higher block has been seen (the indexer sorts
// ascending) or once the indexer reports the window exhausted. A BlockReader
// is single-use and not safe for concurrent use.
type BlockReader struct {
	source PageSource
	cfg    Config
	logger *zap.Logger

	backlog   map[uint64][]model.TokenTransaction
	refetched map[transferKey]int

	nextPage    int
	nextStart   uint64
	lastEmitted uint64
	emitted     bool
	exhausted   bool
	stalled     bool
}

// New creates a reader over the given window
func New(logger *zap.Logger, source PageSource, cfg Config) *BlockReader {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	return &BlockReader{
		source:    source,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "BlockReader")),
		backlog:   make(map[uint64][]model.TokenTransaction),
		nextPage:  1,
		nextStart: cfg.StartHeight,
	}
}

// Next returns the next complete block. ok is false once no further block
// can be proven complete; Last then reports the resume point.
func (r *BlockReader) Next(ctx context.Context) (block model.Block, ok bool, err error) {
	if err := r.fill(ctx); err != nil {
		return model.Block{}, false, err
	}

	if len(r.backlog) >= 2 || (r.exhausted && len(r.backlog) == 1) {
		return r.emitLowest(), true, nil
	}
	return model.Block{}, false, nil
}

// Last returns the last emitted block number, or the start height if no
// block was emitted.
func (r *BlockReader) Last() uint64 {
	if !r.emitted {
		return r.cfg.StartHeight
	}
	return r.lastEmitted
}

// Stalled reports whether reading stopped at the result window ceiling with
// a block that could not be proven complete.
func (r *BlockReader) Stalled() bool {
	return r.stalled
}

func (r *BlockReader) fill(ctx context.Context) error {
	for len(r.backlog) < 2 && !r.exhausted && !r.stalled {
		if r.nextPage*r.cfg.PageSize > MaxResultWindow {
			if !r.rebase() {
				r.stalled = true
				r.logger.Warn("Result window ceiling reached inside a single block, stopping",
					zap.Uint64("startBlock", r.nextStart),
					zap.Int("page", r.nextPage),
					zap.Int("pageSize", r.cfg.PageSize))
			}
			continue
		}

		page, start := r.nextPage, r.nextStart
		txs, err := retry.Do(ctx, retry.Policy{
			Name:         "readPage",
			MaxAttempts:  r.cfg.MaxAttempts,
			NonRetryable: isEndOfData,
			OnRetry: func(attempt int, err error) {
				metrics.RetryAttempts.WithLabelValues("readPage").Inc()
				r.logger.Warn("Retrying. Read page failed",
					zap.Int("page", page),
					zap.Uint64("startBlock", start),
					zap.Int("attempt", attempt),
					zap.Error(err))
			},
		}, func(ctx context.Context) ([]model.TokenTransaction, error) {
			return r.source.ReadPage(ctx, page, r.cfg.PageSize, r.cfg.EndHeight, start, r.cfg.Contract)
		})
		if isEndOfData(err) {
			r.logger.Debug("Window exhausted", zap.Int("page", page), zap.Uint64("startBlock", start))
			r.exhausted = true
			break
		}
		if err != nil {
			return fmt.Errorf("read page %d from block %d: %w", page, start, err)
		}

		if err := r.absorb(txs); err != nil {
			return err
		}
		r.nextPage++

		if len(txs) < r.cfg.PageSize {
			// a short page is the last one
			r.exhausted = true
		}
	}
	return nil
}

func (r *BlockReader) absorb(txs []model.TokenTransaction) error {
	for _, tx := range txs {
		if tx.BlockNumber < r.nextStart || tx.BlockNumber > r.cfg.EndHeight {
			return &clients.ProtocolError{
				Op:     "readPage",
				Reason: fmt.Sprintf("block %d outside requested window [%d, %d]", tx.BlockNumber, r.nextStart, r.cfg.EndHeight),
			}
		}

		if key := keyOf(tx); r.refetched[key] > 0 {
			r.refetched[key]--
			r.logger.Debug("Dropping refetched transfer", zap.Uint64("block", tx.BlockNumber), zap.String("hash", tx.Hash.Hex()))
			continue
		}
		if r.emitted && tx.BlockNumber <= r.lastEmitted {
			return &OrderingError{Block: tx.BlockNumber, Hash: tx.Hash, LastEmitted: r.lastEmitted}
		}

		r.backlog[tx.BlockNumber] = append(r.backlog[tx.BlockNumber], tx)
	}
	return nil
}

// rebase restarts pagination at the lowest block still needed so that the
// page offset drops below the ceiling. It reports false when that would not
// move the start forward.
func (r *BlockReader) rebase() bool {
	resume := r.nextStart
	if low, ok := r.lowestPending(); ok {
		resume = low
	} else if r.emitted {
		resume = r.lastEmitted + 1
	}
	if resume <= r.nextStart {
		return false
	}

	r.logger.Info("Result window ceiling reached, restarting pagination",
		zap.Uint64("fromBlock", r.nextStart),
		zap.Uint64("toBlock", resume))
	metrics.ReaderRebases.Inc()

	// pending transfers stay in the backlog and pagination from resume
	// returns each of them once more
	r.refetched = make(map[transferKey]int)
	for _, txs := range r.backlog {
		for _, tx := range txs {
			r.refetched[keyOf(tx)]++
		}
	}
	r.nextStart = resume
	r.nextPage = 1
	return true
}

func (r *BlockReader) lowestPending() (uint64, bool) {
	var (
		low   uint64
		found bool
	)
	for number := range r.backlog {
		if !found || number < low {
			low, found = number, true
		}
	}
	return low, found
}

func (r *BlockReader) emitLowest() model.Block {
	low, _ := r.lowestPending()
	txs := r.backlog[low]
	delete(r.backlog, low)

	r.lastEmitted = low
	r.emitted = true
	metrics.BlocksRead.Inc()

	r.logger.Debug("Block complete",
		zap.Uint64("block", low),
		zap.Int("txCount", len(txs)),
		zap.Int("pendingBlocks", len(r.backlog)))

	return model.Block{Number: low, Transactions: txs}
}

func isEndOfData(err error) bool {
	return errors.Is(err, clients.ErrNoTransactions)
}
