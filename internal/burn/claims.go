package burn

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erc20-burn-relay/relayer/internal/model"
)

// DefaultSinkAddress is the conventional "dead" address burns are sent to.
var DefaultSinkAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// DefaultScaleFactor converts 18-decimal source amounts to the destination's 16 decimals.
const DefaultScaleFactor = 100

// AssertionError reports block data that can only come from upstream corruption.
type AssertionError struct {
	Block    uint64
	Message  string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	if e.Expected == "" && e.Actual == "" {
		return fmt.Sprintf("assertion failed in block %d: %s", e.Block, e.Message)
	}
	return fmt.Sprintf("assertion failed in block %d: %s (expected %s, got %s)", e.Block, e.Message, e.Expected, e.Actual)
}

// Filter selects the burns of a block and turns them into claims.
type Filter struct {
	Contract common.Address
	Sink     common.Address
	Scale    *big.Int
}

// NewFilter returns a Filter for contract. A zero sink or a non-positive
// scale fall back to the defaults.
func NewFilter(contract, sink common.Address, scale int64) *Filter {
	if sink == (common.Address{}) {
		sink = DefaultSinkAddress
	}
	if scale <= 0 {
		scale = DefaultScaleFactor
	}
	return &Filter{Contract: contract, Sink: sink, Scale: big.NewInt(scale)}
}

// Claims returns one claim per transfer to the sink, in block order. An empty
// result is valid; an empty block or a burn of a foreign contract is not.
func (f *Filter) Claims(block model.Block) ([]model.Claim, error) {
	if len(block.Transactions) == 0 {
		return nil, &AssertionError{Block: block.Number, Message: "block has no transactions"}
	}

	var claims []model.Claim
	for _, tx := range block.Transactions {
		if tx.To != f.Sink {
			continue
		}
		if tx.ContractAddress != f.Contract {
			return nil, &AssertionError{
				Block:    block.Number,
				Message:  fmt.Sprintf("burn %s has an unexpected contract", tx.Hash.Hex()),
				Expected: f.Contract.Hex(),
				Actual:   tx.ContractAddress.Hex(),
			}
		}
		if tx.BlockNumber != block.Number {
			return nil, &AssertionError{
				Block:    block.Number,
				Message:  fmt.Sprintf("burn %s belongs to another block", tx.Hash.Hex()),
				Expected: fmt.Sprint(block.Number),
				Actual:   fmt.Sprint(tx.BlockNumber),
			}
		}

		claims = append(claims, model.Claim{
			Address: tx.From,
			Amount:  new(big.Int).Quo(tx.Value, f.Scale),
			TxHash:  tx.Hash,
		})
	}
	return claims, nil
}

// Verify checks that every transfer of block, burn or not, belongs to the
// filter's contract and to the block itself.
func (f *Filter) Verify(block model.Block) error {
	for _, tx := range block.Transactions {
		if tx.ContractAddress != f.Contract {
			return &AssertionError{
				Block:    block.Number,
				Message:  fmt.Sprintf("transfer %s has an unexpected contract", tx.Hash.Hex()),
				Expected: f.Contract.Hex(),
				Actual:   tx.ContractAddress.Hex(),
			}
		}
		if tx.BlockNumber != block.Number {
			return &AssertionError{
				Block:    block.Number,
				Message:  fmt.Sprintf("transfer %s belongs to another block", tx.Hash.Hex()),
				Expected: fmt.Sprint(block.Number),
				Actual:   fmt.Sprint(tx.BlockNumber),
			}
		}
	}
	return nil
}

// Total sums claim amounts.
func Total(claims []model.Claim) *big.Int {
	sum := new(big.Int)
	for _, c := range claims {
		sum.Add(sum, c.Amount)
	}
	return sum
}
