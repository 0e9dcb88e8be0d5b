package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erc20-burn-relay/relayer/internal/metrics"
	"github.com/erc20-burn-relay/relayer/internal/model"
)

// IndexerConfig configures the indexing API client.
type IndexerConfig struct {
	Endpoint          string        // API base, e.g. https://api.etherscan.io/api
	APIKey            string        // sent as the apiKey query parameter
	Proxy             string        // optional HTTP proxy URL
	RequestsPerSecond float64       // <= 0 disables client-side rate limiting
	Timeout           time.Duration // per request
}

// IndexerClient queries an Etherscan-compatible indexing API.
type IndexerClient struct {
	endpoint string
	apiKey   string
	http     *resty.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewIndexerClient creates a new client for the indexing API
func NewIndexerClient(logger *zap.Logger, cfg IndexerConfig) *IndexerClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().SetTimeout(timeout)
	if cfg.Proxy != "" {
		httpClient.SetProxy(cfg.Proxy)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &IndexerClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.With(zap.String("component", "IndexerClient")),
	}
}

func (c *IndexerClient) get(ctx context.Context, action, module string, params map[string]string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: action, Err: err}
	}

	query := map[string]string{
		"action": action,
		"apiKey": c.apiKey,
		"module": module,
	}
	for k, v := range params {
		query[k] = v
	}

	c.logger.Debug("GET",
		zap.String("module", module),
		zap.String("action", action),
		zap.Any("params", params))

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(c.endpoint)
	if err != nil {
		metrics.IndexerRequests.WithLabelValues(action, "transport_error").Inc()
		return nil, &TransportError{Op: action, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		metrics.IndexerRequests.WithLabelValues(action, "http_"+strconv.Itoa(resp.StatusCode())).Inc()
		return nil, &TransportError{Op: action, StatusCode: resp.StatusCode(), Status: resp.Status()}
	}
	metrics.IndexerRequests.WithLabelValues(action, "ok").Inc()
	return resp, nil
}

// ReadHeight returns the latest block number of the source chain.
func (c *IndexerClient) ReadHeight(ctx context.Context) (uint64, error) {
	resp, err := c.get(ctx, "eth_blockNumber", "proxy", nil)
	if err != nil {
		return 0, err
	}

	var data proxyResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return 0, &ProtocolError{Op: "readHeight", Reason: "malformed body", Err: err}
	}

	var result string
	if len(data.Result) == 0 || json.Unmarshal(data.Result, &result) != nil {
		return 0, &ProtocolError{Op: "readHeight", Reason: fmt.Sprintf("missing or non-string result in %s", resp.Body())}
	}

	height, err := hexutil.DecodeUint64(result)
	if err != nil {
		return 0, &ProtocolError{Op: "readHeight", Reason: fmt.Sprintf("result %q is not a hex quantity", result), Err: err}
	}
	return height, nil
}

// ReadPage returns one page of token transfers of contract between
// startHeight and endHeight (inclusive), sorted ascending by block number.
// Pages are 1-indexed and hold at most pageSize entries.
func (c *IndexerClient) ReadPage(ctx context.Context, page, pageSize int, endHeight, startHeight uint64, contract common.Address) ([]model.TokenTransaction, error) {
	resp, err := c.get(ctx, "tokentx", "account", map[string]string{
		"contractaddress": strings.ToLower(contract.Hex()),
		"endblock":        strconv.FormatUint(endHeight, 10),
		"page":            strconv.Itoa(page),
		"offset":          strconv.Itoa(pageSize),
		"sort":            "asc",
		"startblock":      strconv.FormatUint(startHeight, 10),
	})
	if err != nil {
		return nil, err
	}

	var data queryResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, &ProtocolError{Op: "readPage", Reason: "malformed body", Err: err}
	}
	if data.Status == nil || data.Message == nil {
		return nil, &ProtocolError{Op: "readPage", Reason: "missing status or message"}
	}

	switch *data.Status {
	case statusOK:
		if *data.Message != messageOK {
			return nil, &ProtocolError{Op: "readPage", Reason: fmt.Sprintf("status %s with message %q", statusOK, *data.Message)}
		}
		if !isJSONArray(data.Result) {
			return nil, &ProtocolError{Op: "readPage", Reason: fmt.Sprintf("status %s with non-array result %s", statusOK, string(data.Result))}
		}
		txs, err := decodeTokenTransactions(data.Result)
		if err != nil {
			return nil, &ProtocolError{Op: "readPage", Reason: "undecodable transaction", Err: err}
		}
		if len(txs) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoTransactions, *data.Message)
		}
		c.logger.Debug("Read transaction page",
			zap.Int("page", page),
			zap.Int("txCount", len(txs)),
			zap.Uint64("firstBlock", txs[0].BlockNumber),
			zap.Uint64("lastBlock", txs[len(txs)-1].BlockNumber))
		return txs, nil

	case statusNoData:
		// "No transactions found" comes with an empty array. Rate limiting and
		// "Result window is too large" share status 0 but carry a string or null.
		if isJSONArray(data.Result) {
			var empty []json.RawMessage
			if err := json.Unmarshal(data.Result, &empty); err == nil && len(empty) == 0 {
				c.logger.Debug("Remote returned no transactions", zap.String("message", *data.Message))
				return nil, fmt.Errorf("%w: %s", ErrNoTransactions, *data.Message)
			}
		}
		return nil, &ProtocolError{Op: "readPage", Reason: fmt.Sprintf("status %s: %s: %s", statusNoData, *data.Message, string(data.Result))}

	default:
		return nil, &ProtocolError{Op: "readPage", Reason: fmt.Sprintf("unknown status %q: %s", *data.Status, *data.Message)}
	}
}
