package maci

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/clrfund/maci-node/types"
)

func testMessage(seed int64) *types.Message {
	msg := &types.Message{IV: (*types.BigInt)(big.NewInt(seed))}
	for i := range msg.Data {
		msg.Data[i] = (*types.BigInt)(big.NewInt(seed*100 + int64(i)))
	}
	return msg
}

func testEncKeys(n int) []types.PubKey {
	keys := make([]types.PubKey, n)
	for i := range keys {
		keys[i] = types.NewPubKey(big.NewInt(int64(i+1)), big.NewInt(int64(i+2)))
	}
	return keys
}

func TestPublishMessageBatchPointer(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil) // batch size 2

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	for i, wantIndex := range []uint64{0, 2, 2, 4, 4} {
		c.Assert(e.PublishMessage(testVoter, testMessage(int64(i)), pubKey), qt.IsNil)
		c.Assert(e.CurrentMessageBatchIndex(), qt.Equals, wantIndex)
	}
	c.Assert(e.NumMessages(), qt.Equals, uint64(5))
	c.Assert(e.HasUnprocessedMessages(), qt.IsTrue)
}

func TestPublishMessageAfterDeadline(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)
	advanceClock(e, e.VotingDeadline())

	err := e.PublishMessage(testVoter, testMessage(1), types.NewPubKey(big.NewInt(5), big.NewInt(6)))
	c.Assert(err, qt.ErrorIs, ErrVotingClosed)
}

func TestPublishMessageDebugMode(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, func(p *Params) { p.VotingDuration = 0 })

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	c.Assert(e.PublishMessage(testVoter, testMessage(1), pubKey), qt.ErrorIs, ErrNotCoordinator)
	c.Assert(e.PublishMessage(testCoordinator, testMessage(1), pubKey), qt.IsNil)
}

func TestPublishMessageOutOfField(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	msg := testMessage(1)
	msg.Data[3] = (*types.BigInt)(new(big.Int).Set(types.SnarkScalarField))
	err := e.PublishMessage(testVoter, msg, types.NewPubKey(big.NewInt(5), big.NewInt(6)))
	c.Assert(err, qt.ErrorIs, ErrFieldRange)
	c.Assert(e.NumMessages(), qt.Equals, uint64(0))
}

func TestBatchProcessDescendingOrder(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	for i := int64(0); i < 5; i++ {
		c.Assert(e.PublishMessage(testVoter, testMessage(i), pubKey), qt.IsNil)
	}
	c.Assert(e.CurrentMessageBatchIndex(), qt.Equals, uint64(4))
	advanceClock(e, e.VotingDeadline())

	keys := testEncKeys(2)
	for step, want := range []uint64{2, 0, 0} {
		newRoot := big.NewInt(int64(9000 + step))
		c.Assert(e.BatchProcessMessage(testCoordinator, newRoot, keys, &types.Proof{}), qt.IsNil)
		c.Assert(e.CurrentMessageBatchIndex(), qt.Equals, want)
		c.Assert(e.StateRoot().Cmp(newRoot), qt.Equals, 0)
	}
	c.Assert(e.HasUnprocessedMessages(), qt.IsFalse)

	err := e.BatchProcessMessage(testCoordinator, big.NewInt(1), keys, &types.Proof{})
	c.Assert(err, qt.ErrorIs, ErrNoUnprocessedMessages)
}

func TestBatchProcessBeforeDeadline(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	c.Assert(e.PublishMessage(testVoter, testMessage(1), pubKey), qt.IsNil)

	err := e.BatchProcessMessage(testCoordinator, big.NewInt(1), testEncKeys(2), &types.Proof{})
	c.Assert(err, qt.ErrorIs, ErrVotingOpen)
}

func TestBatchProcessRejectedProof(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, func(p *Params) { p.BatchVerifier = rejectAll{} })

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	c.Assert(e.PublishMessage(testVoter, testMessage(1), pubKey), qt.IsNil)
	advanceClock(e, e.VotingDeadline())

	rootBefore := e.StateRoot()
	err := e.BatchProcessMessage(testCoordinator, big.NewInt(77), testEncKeys(2), &types.Proof{})
	c.Assert(err, qt.ErrorIs, ErrProofRejected)
	c.Assert(e.StateRoot().Cmp(rootBefore), qt.Equals, 0)
	c.Assert(e.HasUnprocessedMessages(), qt.IsTrue)
}

func TestBatchProcessWrongKeyCount(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	c.Assert(e.PublishMessage(testVoter, testMessage(1), pubKey), qt.IsNil)
	advanceClock(e, e.VotingDeadline())

	err := e.BatchProcessMessage(testCoordinator, big.NewInt(77), testEncKeys(3), &types.Proof{})
	c.Assert(err, qt.ErrorIs, ErrFieldRange)
}

func TestBatchPublicSignalsShape(t *testing.T) {
	c := qt.New(t)
	capture := &captureVerifier{}
	e := newTestEngine(c, func(p *Params) { p.BatchVerifier = capture })

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	for i := int64(0); i < 3; i++ {
		c.Assert(e.PublishMessage(testVoter, testMessage(i), pubKey), qt.IsNil)
	}
	_, err := e.SignUp(testVoter, types.NewPubKey(big.NewInt(10), big.NewInt(20)), nil, nil)
	c.Assert(err, qt.IsNil)
	advanceClock(e, e.VotingDeadline())

	newRoot := big.NewInt(4242)
	keys := testEncKeys(2)
	batchIndex := e.CurrentMessageBatchIndex()
	messageRoot := e.MessageRoot()
	c.Assert(e.BatchProcessMessage(testCoordinator, newRoot, keys, &types.Proof{}), qt.IsNil)

	signals := capture.signals
	c.Assert(signals, qt.HasLen, 8+2*2)
	c.Assert(signals[0].Cmp(newRoot), qt.Equals, 0)
	c.Assert(signals[1].Cmp(big.NewInt(1)), qt.Equals, 0) // coordinator key x
	c.Assert(signals[2].Cmp(big.NewInt(2)), qt.Equals, 0) // coordinator key y
	c.Assert(signals[3].Uint64(), qt.Equals, e.VoteOptionsMaxLeafIndex())
	c.Assert(signals[4].Cmp(messageRoot), qt.Equals, 0)
	c.Assert(signals[5].Uint64(), qt.Equals, batchIndex)
	c.Assert(signals[6].Uint64(), qt.Equals, batchIndex+1)
	c.Assert(signals[7].Uint64(), qt.Equals, uint64(1)) // numSignUps
	for i, k := range keys {
		c.Assert(signals[8+2*i].Cmp(k.X.MathBigInt()), qt.Equals, 0)
		c.Assert(signals[9+2*i].Cmp(k.Y.MathBigInt()), qt.Equals, 0)
	}
}

func TestCoordinatorReset(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	for i := int64(0); i < 3; i++ {
		c.Assert(e.PublishMessage(testVoter, testMessage(i), pubKey), qt.IsNil)
	}
	advanceClock(e, e.VotingDeadline())
	rootBefore := e.StateRoot()

	c.Assert(e.BatchProcessMessage(testCoordinator, big.NewInt(9001), testEncKeys(2), &types.Proof{}), qt.IsNil)
	c.Assert(e.StateRoot().Cmp(rootBefore), qt.Not(qt.Equals), 0)

	c.Assert(e.CoordinatorReset(testVoter), qt.ErrorIs, ErrNotCoordinator)
	c.Assert(e.CoordinatorReset(testCoordinator), qt.IsNil)

	c.Assert(e.StateRoot().Cmp(rootBefore), qt.Equals, 0)
	c.Assert(e.CurrentMessageBatchIndex(), qt.Equals, uint64(2))
	c.Assert(e.HasUnprocessedMessages(), qt.IsTrue)
	c.Assert(e.CurrentTallyBatchNum(), qt.Equals, uint64(0))
}

func TestMessageTreeRootHistory(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	roots := []*big.Int{e.MessageRoot()}
	for i := int64(0); i < 3; i++ {
		c.Assert(e.PublishMessage(testVoter, testMessage(i), pubKey), qt.IsNil)
		roots = append(roots, e.MessageRoot())
	}
	for _, root := range roots {
		c.Assert(e.MessageTreeContains(root), qt.IsTrue)
	}
	c.Assert(e.MessageTreeContains(big.NewInt(31337)), qt.IsFalse)
}

func TestBatchProcessNonCoordinator(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(c, nil)

	err := e.BatchProcessMessage(testVoter, big.NewInt(1), testEncKeys(2), &types.Proof{})
	c.Assert(err, qt.ErrorIs, ErrNotCoordinator)
}
