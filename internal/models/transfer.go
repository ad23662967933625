package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TransferKind tells a balance move apart from supply changes. The zero
// address is an ordinary account for moves, so From/To alone cannot.
type TransferKind string

const (
	TransferMove TransferKind = "move"
	TransferMint TransferKind = "mint"
	TransferBurn TransferKind = "burn"
)

// Transfer records units moving between two accounts. Mints use the zero
// address as From, burns use it as To.
type Transfer struct {
	Kind   TransferKind   `json:"kind"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *uint256.Int   `json:"amount"`
}

// Approval records an allowance being set (not incremented).
type Approval struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  *uint256.Int   `json:"amount"`
}
