package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenTransaction is one ERC-20 transfer event as reported by the indexer.
// Values are validated during decoding and never mutated afterwards.
type TokenTransaction struct {
	BlockNumber     uint64
	ContractAddress common.Address
	From            common.Address
	To              common.Address
	Hash            common.Hash
	Value           *big.Int
}

// Block is the complete set of transfers sharing one block number, in indexer order.
type Block struct {
	Number       uint64
	Transactions []TokenTransaction
}

// Claim is a destination-ledger record of one burn.
type Claim struct {
	Address common.Address // burner on the source chain
	Amount  *big.Int       // value rescaled to destination precision
	TxHash  common.Hash    // source transaction
}
