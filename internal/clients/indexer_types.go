package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erc20-burn-relay/relayer/internal/model"
)

const (
	statusOK     = "1"
	statusNoData = "0"
	messageOK    = "OK"
)

var (
	integerLiteral = regexp.MustCompile(`^\d+$`)
	hexAddress     = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hexHash        = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// queryResponse is the envelope of the account/tokentx endpoint.
type queryResponse struct {
	Status  *string         `json:"status"`
	Message *string         `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// proxyResponse is the envelope of the JSON-RPC passthrough (proxy module).
type proxyResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// rawTokenTransaction holds the fields we use from a tokentx record. Every
// field must be a JSON string; anything else fails the unmarshal.
type rawTokenTransaction struct {
	BlockNumber     string `json:"blockNumber"`
	ContractAddress string `json:"contractAddress"`
	From            string `json:"from"`
	To              string `json:"to"`
	Hash            string `json:"hash"`
	Value           string `json:"value"`
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func decodeTokenTransactions(raw json.RawMessage) ([]model.TokenTransaction, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}

	txs := make([]model.TokenTransaction, 0, len(records))
	for i, record := range records {
		tx, err := decodeTokenTransaction(record)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func decodeTokenTransaction(record json.RawMessage) (model.TokenTransaction, error) {
	var raw rawTokenTransaction
	if err := json.Unmarshal(record, &raw); err != nil {
		return model.TokenTransaction{}, err
	}

	if !integerLiteral.MatchString(raw.BlockNumber) {
		return model.TokenTransaction{}, fmt.Errorf("blockNumber %q is not a non-negative integer", raw.BlockNumber)
	}
	blockNumber, err := strconv.ParseUint(raw.BlockNumber, 10, 64)
	if err != nil {
		return model.TokenTransaction{}, fmt.Errorf("blockNumber %q: %w", raw.BlockNumber, err)
	}

	if !integerLiteral.MatchString(raw.Value) {
		return model.TokenTransaction{}, fmt.Errorf("value %q is not a non-negative integer", raw.Value)
	}
	value, ok := new(big.Int).SetString(raw.Value, 10)
	if !ok {
		return model.TokenTransaction{}, fmt.Errorf("value %q is not a non-negative integer", raw.Value)
	}

	contract, err := parseAddress("contractAddress", raw.ContractAddress)
	if err != nil {
		return model.TokenTransaction{}, err
	}
	from, err := parseAddress("from", raw.From)
	if err != nil {
		return model.TokenTransaction{}, err
	}
	to, err := parseAddress("to", raw.To)
	if err != nil {
		return model.TokenTransaction{}, err
	}

	if !hexHash.MatchString(raw.Hash) {
		return model.TokenTransaction{}, fmt.Errorf("hash %q is not a 32-byte hex string", raw.Hash)
	}

	return model.TokenTransaction{
		BlockNumber:     blockNumber,
		ContractAddress: contract,
		From:            from,
		To:              to,
		Hash:            common.HexToHash(raw.Hash),
		Value:           value,
	}, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !hexAddress.MatchString(s) {
		return common.Address{}, fmt.Errorf("%s %q is not a 20-byte hex address", field, s)
	}
	return common.HexToAddress(s), nil
}
