package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	alice = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x1000000000000000000000000000000000000002")
)

func TestMintAndTransfer(t *testing.T) {
	c := qt.New(t)
	l := New(metadb.NewTest(c.TB), 18)
	c.Assert(l.Decimals(), qt.Equals, uint8(18))

	c.Assert(l.BalanceOf(alice).Sign(), qt.Equals, 0)
	c.Assert(l.Mint(alice, big.NewInt(1000)), qt.IsNil)
	c.Assert(l.BalanceOf(alice).Int64(), qt.Equals, int64(1000))

	c.Assert(l.Transfer(alice, bob, big.NewInt(400)), qt.IsNil)
	c.Assert(l.BalanceOf(alice).Int64(), qt.Equals, int64(600))
	c.Assert(l.BalanceOf(bob).Int64(), qt.Equals, int64(400))
}

func TestTransferInsufficientBalance(t *testing.T) {
	c := qt.New(t)
	l := New(metadb.NewTest(c.TB), 18)

	c.Assert(l.Mint(alice, big.NewInt(100)), qt.IsNil)
	err := l.Transfer(alice, bob, big.NewInt(101))
	c.Assert(err, qt.ErrorIs, ErrInsufficientBalance)
	c.Assert(l.BalanceOf(alice).Int64(), qt.Equals, int64(100))
	c.Assert(l.BalanceOf(bob).Sign(), qt.Equals, 0)
}

func TestTransferInvalidAmounts(t *testing.T) {
	c := qt.New(t)
	l := New(metadb.NewTest(c.TB), 18)

	c.Assert(l.Transfer(alice, bob, nil), qt.ErrorIs, ErrInvalidAmount)
	c.Assert(l.Transfer(alice, bob, big.NewInt(-1)), qt.ErrorIs, ErrInvalidAmount)

	// Self-transfer is a no-op.
	c.Assert(l.Mint(alice, big.NewInt(100)), qt.IsNil)
	c.Assert(l.Transfer(alice, alice, big.NewInt(50)), qt.IsNil)
	c.Assert(l.BalanceOf(alice).Int64(), qt.Equals, int64(100))
}
