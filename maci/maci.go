// Package maci implements the MACI core: a two-phase state machine over two
// append-only Merkle accumulators (state tree, message tree), advanced in
// batches gated by zk-SNARK proofs, plus the proof-gated tally engine. The
// engine never inspects individual messages; an untrusted coordinator
// computes off-chain and the engine only verifies succinct proofs over
// public inputs it assembles itself.
package maci

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clrfund/maci-node/crypto/hash/poseidon"
	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/tree"
	"github.com/clrfund/maci-node/types"
)

// Params configures an Engine. Zero durations enable debug mode for the
// corresponding phase: no deadline, but only the coordinator may call the
// phase entry points.
type Params struct {
	StateTreeDepth      int
	MessageTreeDepth    int
	VoteOptionTreeDepth int

	MessageBatchSize uint64
	TallyBatchSize   uint64

	SignUpDuration time.Duration
	VotingDuration time.Duration

	Coordinator       common.Address
	CoordinatorPubKey types.PubKey

	BatchVerifier Verifier
	TallyVerifier Verifier

	Gate    EligibilityGate
	Credits CreditSource
}

// Engine is the state-transition and tally engine of one voting round.
// Every entry point is serialized through a single mutex: sign-up index
// assignment and batch pointers are externally visible sequences that later
// proofs bind as public inputs, so no reordering is permitted.
type Engine struct {
	mu sync.Mutex

	params Params

	stateTree   *tree.Tree
	messageTree *tree.Tree

	emptyVoteOptionTreeRoot *big.Int
	voteOptionsMaxLeafIndex uint64
	maxUsers                uint64
	maxMessages             uint64

	signUpDeadline time.Time
	votingDeadline time.Time

	numSignUps  uint64
	numMessages uint64

	stateRoot                 *big.Int
	stateRootBeforeProcessing *big.Int
	currentMessageBatchIndex  uint64
	hasUnprocessedMessages    bool

	tally  tallyState
	sealed bool

	// now is swapped in tests to control the deadlines.
	now func() time.Time
}

// New creates an Engine, precomputes the empty vote option tree root, and
// inserts the blank state leaf at index 0 of the state tree (sign-up indices
// start at 1).
func New(params Params) (*Engine, error) {
	if params.MessageBatchSize == 0 || params.TallyBatchSize == 0 {
		return nil, fmt.Errorf("batch sizes must be positive")
	}
	if params.BatchVerifier == nil || params.TallyVerifier == nil {
		return nil, fmt.Errorf("missing proof verifier")
	}
	if !params.CoordinatorPubKey.InField() {
		return nil, ErrFieldRange
	}
	stateTree, err := tree.New(params.StateTreeDepth, types.StateTreeArity, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("state tree: %w", err)
	}
	messageTree, err := tree.New(params.MessageTreeDepth, types.MessageTreeArity, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("message tree: %w", err)
	}
	emptyVORoot, err := tree.EmptyRoot(params.VoteOptionTreeDepth, types.VoteOptionTreeArity, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("vote option tree root: %w", err)
	}

	e := &Engine{
		params:                  params,
		stateTree:               stateTree,
		messageTree:             messageTree,
		emptyVoteOptionTreeRoot: emptyVORoot,
		voteOptionsMaxLeafIndex: pow(types.VoteOptionTreeArity, params.VoteOptionTreeDepth) - 1,
		maxUsers:                stateTree.MaxLeaves() - 1, // index 0 is reserved
		maxMessages:             messageTree.MaxLeaves() - 1,
		now:                     time.Now,
	}
	createdAt := e.now()
	e.signUpDeadline = createdAt.Add(params.SignUpDuration)
	e.votingDeadline = e.signUpDeadline.Add(params.VotingDuration)

	// Reserve index 0 with the blank state leaf.
	blank := &types.StateLeaf{
		PubKey:             types.NewPubKey(big.NewInt(0), big.NewInt(0)),
		VoteOptionTreeRoot: (*types.BigInt)(emptyVORoot),
		VoiceCreditBalance: types.NewInt(0),
		Nonce:              types.NewInt(0),
	}
	blankHash, err := poseidon.HashStateLeaf(blank)
	if err != nil {
		return nil, err
	}
	if _, err := stateTree.Insert(blankHash); err != nil {
		return nil, err
	}
	e.stateRoot = stateTree.Root()

	if err := e.initTallyState(); err != nil {
		return nil, err
	}

	log.Infow("maci engine created",
		"stateTreeDepth", params.StateTreeDepth,
		"messageTreeDepth", params.MessageTreeDepth,
		"voteOptionTreeDepth", params.VoteOptionTreeDepth,
		"signUpDeadline", e.signUpDeadline,
		"votingDeadline", e.votingDeadline)
	return e, nil
}

func pow(base uint64, exp int) uint64 {
	out := uint64(1)
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

// signUpDebugMode reports whether the sign-up phase runs without a deadline,
// restricted to the coordinator.
func (e *Engine) signUpDebugMode() bool {
	return e.params.SignUpDuration == 0
}

// votingDebugMode is the voting-phase equivalent of signUpDebugMode.
func (e *Engine) votingDebugMode() bool {
	return e.params.VotingDuration == 0
}

func (e *Engine) isAfterSignUpDeadline() bool {
	if e.signUpDebugMode() {
		return true
	}
	return !e.now().Before(e.signUpDeadline)
}

func (e *Engine) isAfterVotingDeadline() bool {
	if e.votingDebugMode() {
		return true
	}
	return !e.now().Before(e.votingDeadline)
}

// SignUp registers a new identity. The eligibility gate and the credit
// source fail closed: any error aborts the call before the tree is touched.
// Returns the assigned state tree index; indices form a strictly increasing
// sequence starting at 1.
func (e *Engine) SignUp(caller common.Address, pubKey types.PubKey, gateData, creditData []byte) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.signUpDebugMode() {
		if caller != e.params.Coordinator {
			return 0, ErrNotCoordinator
		}
	} else if e.isAfterSignUpDeadline() {
		return 0, ErrSignUpClosed
	}
	if e.numSignUps >= e.maxUsers {
		return 0, ErrSignUpCapReached
	}
	if !pubKey.InField() {
		return 0, ErrFieldRange
	}

	if err := e.params.Gate.Register(caller, gateData); err != nil {
		return 0, fmt.Errorf("sign-up gate rejected caller: %w", err)
	}
	credits, err := e.params.Credits.GetCredits(caller, creditData)
	if err != nil {
		return 0, fmt.Errorf("voice credit lookup failed: %w", err)
	}
	if credits == nil || credits.Sign() < 0 || credits.Cmp(types.MaxVoiceCreditBalance) > 0 {
		return 0, ErrCreditsOverCeiling
	}

	leaf := &types.StateLeaf{
		PubKey:             pubKey,
		VoteOptionTreeRoot: (*types.BigInt)(e.emptyVoteOptionTreeRoot),
		VoiceCreditBalance: (*types.BigInt)(credits),
		Nonce:              types.NewInt(0),
	}
	leafHash, err := poseidon.HashStateLeaf(leaf)
	if err != nil {
		return 0, err
	}
	index, err := e.stateTree.Insert(leafHash)
	if err != nil {
		return 0, err
	}
	e.numSignUps++
	e.stateRoot = e.stateTree.Root()

	log.Debugw("sign-up accepted",
		"index", index,
		"numSignUps", e.numSignUps,
		"caller", caller.Hex())
	return index, nil
}

// NumSignUps returns the count of successful sign-ups.
func (e *Engine) NumSignUps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.numSignUps
}

// NumMessages returns the count of published messages.
func (e *Engine) NumMessages() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.numMessages
}

// StateRoot returns the current proof-gated state root.
func (e *Engine) StateRoot() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.stateRoot)
}

// MessageRoot returns the current message tree root.
func (e *Engine) MessageRoot() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messageTree.Root()
}

// HasUnprocessedMessages reports whether message batches remain to process.
func (e *Engine) HasUnprocessedMessages() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasUnprocessedMessages
}

// CurrentMessageBatchIndex returns the start index of the next batch to
// process.
func (e *Engine) CurrentMessageBatchIndex() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentMessageBatchIndex
}

// SignUpDeadline returns the end of the sign-up period.
func (e *Engine) SignUpDeadline() time.Time {
	return e.signUpDeadline
}

// VotingDeadline returns the end of the voting period.
func (e *Engine) VotingDeadline() time.Time {
	return e.votingDeadline
}

// VotingPeriodOver reports whether the voting deadline has passed.
func (e *Engine) VotingPeriodOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isAfterVotingDeadline()
}

// VoteOptionsMaxLeafIndex returns the largest vote option index.
func (e *Engine) VoteOptionsMaxLeafIndex() uint64 {
	return e.voteOptionsMaxLeafIndex
}

// VoteOptionTreeDepth returns the depth of the per-voter vote option trees.
func (e *Engine) VoteOptionTreeDepth() int {
	return e.params.VoteOptionTreeDepth
}

// Coordinator returns the coordinator identity.
func (e *Engine) Coordinator() common.Address {
	return e.params.Coordinator
}

// Sealed reports whether the working state has been sealed by settlement.
func (e *Engine) Sealed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sealed
}

// Seal marks the tally state terminal. Called by the settlement layer at
// finalization time; afterwards CoordinatorReset is rejected, so committed
// results can never be rewritten.
func (e *Engine) Seal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sealed = true
	log.Infow("maci engine sealed", "stateRoot", e.stateRoot.String())
}
