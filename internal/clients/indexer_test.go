package clients

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testContract = "0x6c5ba91642f10282b576d91922ae6448c9d52f4e"
	burnSink     = "0x000000000000000000000000000000000000dead"
	holder       = "0x1111111111111111111111111111111111111111"
	txHashA      = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	txHashB      = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newTestIndexer(t *testing.T, handler http.HandlerFunc) *IndexerClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewIndexerClient(zap.NewNop(), IndexerConfig{
		Endpoint: srv.URL + "/api",
		APIKey:   "test-key",
	})
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestReadPage_QueryParameters(t *testing.T) {
	client := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "tokentx", q.Get("action"))
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "test-key", q.Get("apiKey"))
		assert.Equal(t, testContract, q.Get("contractaddress"))
		assert.Equal(t, "1005", q.Get("endblock"))
		assert.Equal(t, "1001", q.Get("startblock"))
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "500", q.Get("offset"))
		assert.Equal(t, "asc", q.Get("sort"))
		respond(`{"status":"1","message":"OK","result":[
			{"blockNumber":"1001","contractAddress":"` + testContract + `","from":"` + holder + `","to":"` + burnSink + `","hash":"` + txHashA + `","value":"12345","timeStamp":"1600000000"},
			{"blockNumber":"1002","contractAddress":"` + testContract + `","from":"` + holder + `","to":"` + holder + `","hash":"` + txHashB + `","value":"0"}
		]}`)(w, r)
	})

	txs, err := client.ReadPage(context.Background(), 3, 500, 1005, 1001, common.HexToAddress(testContract))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, uint64(1001), txs[0].BlockNumber)
	assert.Equal(t, common.HexToAddress(testContract), txs[0].ContractAddress)
	assert.Equal(t, common.HexToAddress(holder), txs[0].From)
	assert.Equal(t, common.HexToAddress(burnSink), txs[0].To)
	assert.Equal(t, common.HexToHash(txHashA), txs[0].Hash)
	assert.Equal(t, 0, txs[0].Value.Cmp(big.NewInt(12345)))
	assert.Equal(t, uint64(1002), txs[1].BlockNumber)
}

func TestReadPage_Classification(t *testing.T) {
	validTx := func(blockNumber, value string) string {
		return `{"blockNumber":"` + blockNumber + `","contractAddress":"` + testContract + `","from":"` + holder + `","to":"` + burnSink + `","hash":"` + txHashA + `","value":"` + value + `"}`
	}

	testCases := []struct {
		name       string
		status     int
		body       string
		noData     bool
		protocol   bool
		statusCode int
	}{
		{
			name:   "success with empty array",
			body:   `{"status":"1","message":"OK","result":[]}`,
			noData: true,
		},
		{
			name:   "no transactions found",
			body:   `{"status":"0","message":"No transactions found","result":[]}`,
			noData: true,
		},
		{
			name:     "success status with null result",
			body:     `{"status":"1","message":"OK","result":null}`,
			protocol: true,
		},
		{
			name:     "result window too large",
			body:     `{"status":"0","message":"Result window is too large, PageNo x Offset size must be less than or equal to 10000","result":null}`,
			protocol: true,
		},
		{
			name:     "rate limited",
			body:     `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`,
			protocol: true,
		},
		{
			name:     "unknown status",
			body:     `{"status":"2","message":"OK","result":[]}`,
			protocol: true,
		},
		{
			name:     "missing status",
			body:     `{"message":"OK","result":[]}`,
			protocol: true,
		},
		{
			name:     "not json",
			body:     `<html>bad gateway</html>`,
			protocol: true,
		},
		{
			name:     "hex block number",
			body:     `{"status":"1","message":"OK","result":[` + validTx("0x3e9", "1") + `]}`,
			protocol: true,
		},
		{
			name:     "negative value",
			body:     `{"status":"1","message":"OK","result":[` + validTx("1001", "-5") + `]}`,
			protocol: true,
		},
		{
			name:     "numeric value",
			body:     `{"status":"1","message":"OK","result":[{"blockNumber":"1001","contractAddress":"` + testContract + `","from":"` + holder + `","to":"` + burnSink + `","hash":"` + txHashA + `","value":7}]}`,
			protocol: true,
		},
		{
			name:     "short address",
			body:     `{"status":"1","message":"OK","result":[{"blockNumber":"1001","contractAddress":"0x1234","from":"` + holder + `","to":"` + burnSink + `","hash":"` + txHashA + `","value":"7"}]}`,
			protocol: true,
		},
		{
			name:       "server error",
			status:     http.StatusServiceUnavailable,
			body:       `oops`,
			statusCode: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
				if tc.status != 0 {
					w.WriteHeader(tc.status)
				}
				_, _ = w.Write([]byte(tc.body))
			})

			txs, err := client.ReadPage(context.Background(), 1, 500, 2000, 1000, common.HexToAddress(testContract))
			require.Error(t, err)
			assert.Nil(t, txs)

			assert.Equal(t, tc.noData, errors.Is(err, ErrNoTransactions), "no-data classification: %v", err)

			var protocolErr *ProtocolError
			assert.Equal(t, tc.protocol, errors.As(err, &protocolErr), "protocol classification: %v", err)

			var transportErr *TransportError
			if tc.statusCode != 0 {
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, tc.statusCode, transportErr.StatusCode)
			} else {
				assert.False(t, errors.As(err, &transportErr))
			}
		})
	}
}

func TestReadHeight(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected uint64
		wantErr  bool
	}{
		{name: "hex quantity", body: `{"jsonrpc":"2.0","id":83,"result":"0x3ed"}`, expected: 1005},
		{name: "missing result", body: `{"jsonrpc":"2.0","id":83}`, wantErr: true},
		{name: "numeric result", body: `{"jsonrpc":"2.0","id":83,"result":1005}`, wantErr: true},
		{name: "rate limited", body: `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "eth_blockNumber", r.URL.Query().Get("action"))
				assert.Equal(t, "proxy", r.URL.Query().Get("module"))
				respond(tc.body)(w, r)
			})

			height, err := client.ReadHeight(context.Background())
			if tc.wantErr {
				var protocolErr *ProtocolError
				require.ErrorAs(t, err, &protocolErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, height)
		})
	}
}
