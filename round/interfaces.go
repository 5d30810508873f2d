package round

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger is the external token used for contributions and payouts.
// Standard transfer semantics; Decimals feeds the voice credit factor.
type TokenLedger interface {
	Decimals() uint8
	BalanceOf(addr common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}

// RecipientResolver maps a vote option index to a payout address. Resolve
// returns false when no recipient was registered for the index during the
// given window (for example a recipient removed before the round ended);
// the settlement then redirects the allocation to the round owner, i.e.
// back to the matching pool.
type RecipientResolver interface {
	Resolve(index uint64, windowStart, windowEnd time.Time) (common.Address, bool)
}
