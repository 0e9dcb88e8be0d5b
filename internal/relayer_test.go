package internal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erc20-burn-relay/relayer/internal/burn"
	"github.com/erc20-burn-relay/relayer/internal/clients"
	"github.com/erc20-burn-relay/relayer/internal/model"
	"github.com/erc20-burn-relay/relayer/internal/retry"
	"github.com/erc20-burn-relay/relayer/internal/submitter"
)

var (
	contract = common.HexToAddress("0x6c5ba91642f10282b576d91922ae6448c9d52f4e")
	alice    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob      = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeIndexer struct {
	height      uint64
	heightFails int
	txs         []model.TokenTransaction
	pageCalls   int
}

func (f *fakeIndexer) ReadHeight(context.Context) (uint64, error) {
	if f.heightFails > 0 {
		f.heightFails--
		return 0, &clients.TransportError{Op: "eth_blockNumber", StatusCode: 502, Status: "502 Bad Gateway"}
	}
	return f.height, nil
}

func (f *fakeIndexer) ReadPage(_ context.Context, page, pageSize int, endHeight, startHeight uint64, c common.Address) ([]model.TokenTransaction, error) {
	f.pageCalls++
	if c != contract {
		return nil, fmt.Errorf("unexpected contract %s", c.Hex())
	}
	var window []model.TokenTransaction
	for _, tx := range f.txs {
		if tx.BlockNumber >= startHeight && tx.BlockNumber <= endHeight {
			window = append(window, tx)
		}
	}
	offset := (page - 1) * pageSize
	if offset >= len(window) {
		return nil, clients.ErrNoTransactions
	}
	return window[offset:min(offset+pageSize, len(window))], nil
}

type submission struct {
	height uint64
	claims []model.Claim
}

type fakeSubmitter struct {
	endHeight  uint64
	duplicates map[uint64]bool
	failWith   error
	submitted  []submission
}

func (f *fakeSubmitter) QueryEndHeight(context.Context) (uint64, error) {
	return f.endHeight, nil
}

func (f *fakeSubmitter) SubmitClaims(_ context.Context, height uint64, claims []model.Claim) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	if f.duplicates[height] {
		return "", fmt.Errorf("%w: height %d", submitter.ErrDuplicateClaims, height)
	}
	f.submitted = append(f.submitted, submission{height: height, claims: claims})
	f.endHeight = height
	return fmt.Sprintf("0x%x", height), nil
}

func transfer(block uint64, hash byte, from, to common.Address, value int64) model.TokenTransaction {
	return model.TokenTransaction{
		BlockNumber:     block,
		ContractAddress: contract,
		From:            from,
		To:              to,
		Hash:            common.BytesToHash([]byte{hash}),
		Value:           big.NewInt(value),
	}
}

func newTestRelayer(t *testing.T, indexer *fakeIndexer, dest *fakeSubmitter, config RelayerConfig) *Relayer {
	t.Helper()
	config.Contract = contract
	processor := NewDefaultBlockProcessor(zap.NewNop(), burn.NewFilter(contract, burn.DefaultSinkAddress, burn.DefaultScaleFactor), dest)
	relayer, err := NewRelayer(zap.NewNop(), config, indexer, dest, processor)
	require.NoError(t, err)
	return relayer
}

func scenarioIndexer() *fakeIndexer {
	return &fakeIndexer{
		height: 1005,
		txs: []model.TokenTransaction{
			transfer(1001, 1, alice, burn.DefaultSinkAddress, 12345),
			transfer(1001, 2, alice, bob, 500),
			transfer(1002, 3, bob, alice, 700),
		},
	}
}

func TestRelayer_ProcessesOneBlockPerIteration(t *testing.T) {
	indexer := scenarioIndexer()
	dest := &fakeSubmitter{endHeight: 1000}
	relayer := newTestRelayer(t, indexer, dest, RelayerConfig{DeployHeight: 1000})

	watermark, err := relayer.Iterate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1001), watermark)
	require.Len(t, dest.submitted, 1)
	assert.Equal(t, uint64(1001), dest.submitted[0].height)
	require.Len(t, dest.submitted[0].claims, 1)
	assert.Equal(t, alice, dest.submitted[0].claims[0].Address)
	assert.Equal(t, "123", dest.submitted[0].claims[0].Amount.String())
	assert.Equal(t, common.BytesToHash([]byte{1}), dest.submitted[0].claims[0].TxHash)

	watermark, err = relayer.Iterate(context.Background(), watermark)
	require.NoError(t, err)
	assert.Equal(t, uint64(1002), watermark)
	assert.Len(t, dest.submitted, 1, "block without burns is not submitted")

	// nothing left in range
	watermark, err = relayer.Iterate(context.Background(), watermark)
	require.NoError(t, err)
	assert.Equal(t, uint64(1002), watermark)
}

func TestRelayer_StartBlockNeverRegresses(t *testing.T) {
	testCases := []struct {
		name         string
		local        uint64
		destEnd      uint64
		deployHeight uint64
		expected     uint64
	}{
		{name: "deploy height wins", local: 0, destEnd: 0, deployHeight: 1002, expected: 1002},
		{name: "destination wins over stale local", local: 900, destEnd: 1000, deployHeight: 1000, expected: 1001},
		{name: "local wins over lagging destination", local: 1001, destEnd: 1000, deployHeight: 1000, expected: 1002},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			dest := &fakeSubmitter{endHeight: tc.destEnd}
			relayer := newTestRelayer(t, scenarioIndexer(), dest, RelayerConfig{DeployHeight: tc.deployHeight})

			watermark, err := relayer.Iterate(context.Background(), tc.local)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, watermark)
		})
	}
}

func TestRelayer_DuplicateSubmissionAdvancesWatermark(t *testing.T) {
	dest := &fakeSubmitter{endHeight: 1000, duplicates: map[uint64]bool{1001: true}}
	relayer := newTestRelayer(t, scenarioIndexer(), dest, RelayerConfig{DeployHeight: 1000})

	watermark, err := relayer.Iterate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1001), watermark)
	assert.Empty(t, dest.submitted)

	watermark, err = relayer.Iterate(context.Background(), watermark)
	require.NoError(t, err)
	assert.Equal(t, uint64(1002), watermark)
}

func TestRelayer_SubmitFailureKeepsWatermark(t *testing.T) {
	dest := &fakeSubmitter{endHeight: 1000, failWith: errors.New("insufficient funds for gas")}
	relayer := newTestRelayer(t, scenarioIndexer(), dest, RelayerConfig{DeployHeight: 1000})

	watermark, err := relayer.Iterate(context.Background(), 1000)
	require.Error(t, err)
	assert.Equal(t, uint64(1000), watermark)
}

func TestRelayer_CorruptBlockIsFatal(t *testing.T) {
	indexer := scenarioIndexer()
	indexer.txs[0].ContractAddress = bob
	dest := &fakeSubmitter{endHeight: 1000}
	relayer := newTestRelayer(t, indexer, dest, RelayerConfig{DeployHeight: 1000})

	_, err := relayer.Iterate(context.Background(), 0)
	var assertion *burn.AssertionError
	require.ErrorAs(t, err, &assertion)
	assert.Empty(t, dest.submitted)
}

func TestRelayer_MultipleBlocksPerIteration(t *testing.T) {
	indexer := scenarioIndexer()
	indexer.txs = append(indexer.txs, transfer(1004, 4, bob, burn.DefaultSinkAddress, 900))
	dest := &fakeSubmitter{endHeight: 1000}
	relayer := newTestRelayer(t, indexer, dest, RelayerConfig{DeployHeight: 1000, BlocksPerIteration: 10})

	watermark, err := relayer.Iterate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1004), watermark)
	require.Len(t, dest.submitted, 2)
	assert.Equal(t, uint64(1001), dest.submitted[0].height)
	assert.Equal(t, uint64(1004), dest.submitted[1].height)
}

func TestRelayer_RetriesHeightProbe(t *testing.T) {
	indexer := scenarioIndexer()
	indexer.heightFails = 2
	dest := &fakeSubmitter{endHeight: 1000}
	relayer := newTestRelayer(t, indexer, dest, RelayerConfig{DeployHeight: 1000})

	watermark, err := relayer.Iterate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1001), watermark)

	indexer.heightFails = retry.DefaultMaxAttempts
	_, err = relayer.Iterate(context.Background(), watermark)
	var tooMany *retry.TooManyRetriesError
	require.ErrorAs(t, err, &tooMany)
	var transportErr *clients.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestRelayer_UpToDate(t *testing.T) {
	indexer := scenarioIndexer()
	dest := &fakeSubmitter{endHeight: 1005}
	relayer := newTestRelayer(t, indexer, dest, RelayerConfig{DeployHeight: 1000})

	watermark, err := relayer.Iterate(context.Background(), 1005)
	require.NoError(t, err)
	assert.Equal(t, uint64(1005), watermark)
	assert.Zero(t, indexer.pageCalls)
}

func TestRelayer_StartStopsOnFatalError(t *testing.T) {
	dest := &fakeSubmitter{endHeight: 1000, failWith: errors.New("nonce too low")}
	relayer := newTestRelayer(t, scenarioIndexer(), dest, RelayerConfig{DeployHeight: 1000, Cooldown: time.Millisecond})

	err := relayer.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce too low")
}

func TestRelayer_StartStopsOnCancel(t *testing.T) {
	dest := &fakeSubmitter{endHeight: 1000}
	relayer := newTestRelayer(t, scenarioIndexer(), dest, RelayerConfig{DeployHeight: 1000, Cooldown: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, relayer.Start(ctx))
	require.Len(t, dest.submitted, 1)
	assert.Equal(t, uint64(1001), dest.submitted[0].height)
}

func TestNewRelayer_RequiresCollaborators(t *testing.T) {
	_, err := NewRelayer(zap.NewNop(), RelayerConfig{}, nil, &fakeSubmitter{}, nil)
	require.Error(t, err)
}
