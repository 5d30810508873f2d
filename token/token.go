// Package token implements a db-backed native token ledger. It stands in
// for an external token: the funding round pulls contributions from it and
// pays allocations back out of its own account.
package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/clrfund/maci-node/log"
)

var (
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")
	ErrInvalidAmount       = fmt.Errorf("invalid transfer amount")
)

var balancePrefix = []byte("tb/")

// Ledger is a minimal fungible token ledger with persistent balances.
type Ledger struct {
	mu       sync.Mutex
	db       db.Database
	decimals uint8
}

// New opens a ledger over the given database.
func New(database db.Database, decimals uint8) *Ledger {
	return &Ledger{db: database, decimals: decimals}
}

// Decimals returns the token's decimal places.
func (l *Ledger) Decimals() uint8 {
	return l.decimals
}

// BalanceOf returns the balance of an account. Unknown accounts have zero.
func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account)
}

func (l *Ledger) balance(account common.Address) *big.Int {
	reader := prefixeddb.NewPrefixedReader(l.db, balancePrefix)
	data, err := reader.Get(account.Bytes())
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(data)
}

func (l *Ledger) setBalances(updates map[common.Address]*big.Int) error {
	tx := prefixeddb.NewPrefixedWriteTx(l.db.WriteTx(), balancePrefix)
	defer tx.Discard()
	for account, balance := range updates {
		if err := tx.Set(account.Bytes(), balance.Bytes()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return nil
	}
	fromBalance := l.balance(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance, amount)
	}
	toBalance := l.balance(to)
	if err := l.setBalances(map[common.Address]*big.Int{
		from: fromBalance.Sub(fromBalance, amount),
		to:   toBalance.Add(toBalance, amount),
	}); err != nil {
		return err
	}
	log.Debugw("token transfer",
		"from", from.Hex(),
		"to", to.Hex(),
		"amount", amount.String())
	return nil
}

// Mint credits amount to an account out of thin air.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	balance := l.balance(to)
	return l.setBalances(map[common.Address]*big.Int{
		to: balance.Add(balance, amount),
	})
}
