package maci

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/clrfund/maci-node/types"
)

var (
	testCoordinator = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testVoter       = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// acceptAll is a Verifier that accepts every proof.
type acceptAll struct{}

func (acceptAll) Verify(*types.Proof, []*big.Int) bool { return true }

// rejectAll is a Verifier that rejects every proof.
type rejectAll struct{}

func (rejectAll) Verify(*types.Proof, []*big.Int) bool { return false }

// captureVerifier records the public signals of the last Verify call.
type captureVerifier struct {
	signals []*big.Int
}

func (v *captureVerifier) Verify(_ *types.Proof, signals []*big.Int) bool {
	v.signals = signals
	return true
}

// openGate admits every caller.
type openGate struct{}

func (openGate) Register(common.Address, []byte) error { return nil }

// fixedCredits grants the same balance to every caller.
type fixedCredits struct {
	credits *big.Int
	err     error
}

func (f fixedCredits) GetCredits(common.Address, []byte) (*big.Int, error) {
	return f.credits, f.err
}

func testParams() Params {
	return Params{
		StateTreeDepth:      4,
		MessageTreeDepth:    4,
		VoteOptionTreeDepth: 2,
		MessageBatchSize:    2,
		TallyBatchSize:      2,
		SignUpDuration:      time.Hour,
		VotingDuration:      time.Hour,
		Coordinator:         testCoordinator,
		CoordinatorPubKey:   types.NewPubKey(big.NewInt(1), big.NewInt(2)),
		BatchVerifier:       acceptAll{},
		TallyVerifier:       acceptAll{},
		Gate:                openGate{},
		Credits:             fixedCredits{credits: big.NewInt(100)},
	}
}

func newTestEngine(c *qt.C, mutate func(*Params)) *Engine {
	params := testParams()
	if mutate != nil {
		mutate(&params)
	}
	e, err := New(params)
	c.Assert(err, qt.IsNil)
	return e
}

// advanceClock moves the engine's clock past the given deadline.
func advanceClock(e *Engine, deadline time.Time) {
	e.now = func() time.Time { return deadline.Add(time.Second) }
}

func TestSignUpIndicesStartAtOne(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	rootBefore := e.StateRoot()
	for want := uint64(1); want <= 3; want++ {
		index, err := e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
		c.Assert(err, qt.IsNil)
		c.Assert(index, qt.Equals, want)
	}
	c.Assert(e.NumSignUps(), qt.Equals, uint64(3))
	c.Assert(e.StateRoot().Cmp(rootBefore), qt.Not(qt.Equals), 0)
}

func TestSignUpCap(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, func(p *Params) { p.StateTreeDepth = 2 })

	// Depth 2 binary tree holds 4 leaves, one reserved for the blank leaf.
	for i := 0; i < 3; i++ {
		_, err := e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
		c.Assert(err, qt.IsNil)
	}
	_, err := e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
	c.Assert(err, qt.ErrorIs, ErrSignUpCapReached)
}

func TestSignUpAfterDeadline(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)
	advanceClock(e, e.SignUpDeadline())

	_, err := e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
	c.Assert(err, qt.ErrorIs, ErrSignUpClosed)
}

func TestSignUpDebugMode(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, func(p *Params) { p.SignUpDuration = 0 })

	_, err := e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
	c.Assert(err, qt.ErrorIs, ErrNotCoordinator)

	index, err := e.SignUp(testCoordinator, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(index, qt.Equals, uint64(1))
}

type closedGate struct{ err error }

func (g closedGate) Register(common.Address, []byte) error { return g.err }

func TestSignUpGateFailsClosed(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, func(p *Params) {
		p.Gate = closedGate{err: ErrNotCoordinator}
	})
	rootBefore := e.StateRoot()

	_, err := e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
	c.Assert(err, qt.ErrorIs, ErrNotCoordinator)
	c.Assert(e.NumSignUps(), qt.Equals, uint64(0))
	c.Assert(e.StateRoot().Cmp(rootBefore), qt.Equals, 0)
}

func TestSignUpCreditCeiling(t *testing.T) {
	c := qt.New(t)

	over := new(big.Int).Add(types.MaxVoiceCreditBalance, big.NewInt(1))
	e := newTestEngine(c, func(p *Params) {
		p.Credits = fixedCredits{credits: over}
	})
	_, err := e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
	c.Assert(err, qt.ErrorIs, ErrCreditsOverCeiling)

	// The ceiling itself is accepted.
	e = newTestEngine(c, func(p *Params) {
		p.Credits = fixedCredits{credits: new(big.Int).Set(types.MaxVoiceCreditBalance)}
	})
	_, err = e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
	c.Assert(err, qt.IsNil)
}

func TestSignUpPubKeyOutOfField(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	outOfField := new(big.Int).Set(types.SnarkScalarField)
	_, err := e.SignUp(testVoter, types.NewPubKey(outOfField, big.NewInt(20)), nil, nil)
	c.Assert(err, qt.ErrorIs, ErrFieldRange)
}

func TestSealRejectsReset(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	c.Assert(e.Sealed(), qt.IsFalse)
	e.Seal()
	c.Assert(e.Sealed(), qt.IsTrue)
	c.Assert(e.CoordinatorReset(testCoordinator), qt.ErrorIs, ErrSealed)
}
