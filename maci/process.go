package maci

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clrfund/maci-node/crypto/hash/poseidon"
	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/types"
)

// PublishMessage inserts the hash of an encrypted command in the message
// tree. Valid only before the voting deadline (or coordinator-only in debug
// mode). The batch pointer always points at the start of the batch holding
// the most recently published message; batches are later consumed
// back-to-front.
func (e *Engine) PublishMessage(caller common.Address, msg *types.Message, encPubKey types.PubKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.votingDebugMode() {
		if caller != e.params.Coordinator {
			return ErrNotCoordinator
		}
	} else if e.isAfterVotingDeadline() {
		return ErrVotingClosed
	}
	if e.numMessages >= e.maxMessages {
		return ErrMessageCapReached
	}
	if !msg.InField() || !encPubKey.InField() {
		return ErrFieldRange
	}

	msgHash, err := poseidon.HashMessage(msg)
	if err != nil {
		return err
	}
	if _, err := e.messageTree.Insert(msgHash); err != nil {
		return err
	}
	e.numMessages++
	e.hasUnprocessedMessages = true
	e.currentMessageBatchIndex = (e.numMessages / e.params.MessageBatchSize) * e.params.MessageBatchSize

	log.Debugw("message published",
		"numMessages", e.numMessages,
		"batchIndex", e.currentMessageBatchIndex,
		"messageRoot", e.messageTree.Root().String())
	return nil
}

// batchPublicSignals assembles the fixed-shape public input vector binding
// one message batch window: new root, coordinator key, vote option bound,
// message tree root, batch start/end index, sign-up count, and one ephemeral
// key pair per message slot.
func (e *Engine) batchPublicSignals(newStateRoot *big.Int, ecdhPubKeys []types.PubKey) []*big.Int {
	signals := make([]*big.Int, 0, 8+2*len(ecdhPubKeys))
	signals = append(signals,
		newStateRoot,
		e.params.CoordinatorPubKey.X.MathBigInt(),
		e.params.CoordinatorPubKey.Y.MathBigInt(),
		new(big.Int).SetUint64(e.voteOptionsMaxLeafIndex),
		e.messageTree.Root(),
		new(big.Int).SetUint64(e.currentMessageBatchIndex),
		new(big.Int).SetUint64(e.currentMessageBatchIndex+e.params.MessageBatchSize-1),
		new(big.Int).SetUint64(e.numSignUps),
	)
	for _, k := range ecdhPubKeys {
		signals = append(signals, k.X.MathBigInt(), k.Y.MathBigInt())
	}
	return signals
}

// BatchProcessMessage verifies a proof for the batch window at the current
// batch pointer and, on success, atomically advances the pointer and
// overwrites the state root. Coordinator only, valid only after the voting
// deadline. Batches are consumed in strict descending order; the public
// inputs bind the exact window, so replaying or skipping a batch is
// impossible.
func (e *Engine) BatchProcessMessage(caller common.Address, newStateRoot *big.Int, ecdhPubKeys []types.PubKey, proof *types.Proof) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.params.Coordinator {
		return ErrNotCoordinator
	}
	if !e.isAfterVotingDeadline() {
		return ErrVotingOpen
	}
	if !e.hasUnprocessedMessages {
		return ErrNoUnprocessedMessages
	}
	// Desync defense: the pointer can never exceed the tree capacity.
	if e.currentMessageBatchIndex > e.messageTree.MaxLeafIndex() {
		return ErrBatchIndexOutOfRange
	}
	if uint64(len(ecdhPubKeys)) != e.params.MessageBatchSize {
		return ErrFieldRange
	}
	if !types.InField(newStateRoot) {
		return ErrFieldRange
	}
	for _, k := range ecdhPubKeys {
		if !k.InField() {
			return ErrFieldRange
		}
	}

	signals := e.batchPublicSignals(newStateRoot, ecdhPubKeys)
	if !types.AllInField(signals...) {
		return ErrFieldRange
	}
	if !e.params.BatchVerifier.Verify(proof, signals) {
		return ErrProofRejected
	}

	// First successful batch snapshots the pre-processing root for
	// CoordinatorReset.
	if e.stateRootBeforeProcessing == nil {
		e.stateRootBeforeProcessing = new(big.Int).Set(e.stateRoot)
	}
	if e.currentMessageBatchIndex > 0 {
		e.currentMessageBatchIndex -= e.params.MessageBatchSize
	} else {
		e.hasUnprocessedMessages = false
	}
	e.stateRoot = new(big.Int).Set(newStateRoot)

	log.Infow("message batch processed",
		"stateRoot", e.stateRoot.String(),
		"nextBatchIndex", e.currentMessageBatchIndex,
		"hasUnprocessedMessages", e.hasUnprocessedMessages)
	return nil
}

// CoordinatorReset rewinds the working state: the state root returns to its
// pre-processing value, the batch pointer is recomputed as if no batch had
// been processed, and the tally counters and commitments return to their
// initial values. Inserted leaves, sign-up and message counts are never
// touched. Rejected once the engine is sealed, so finalized results cannot
// be rewritten.
func (e *Engine) CoordinatorReset(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.params.Coordinator {
		return ErrNotCoordinator
	}
	if e.sealed {
		return ErrSealed
	}

	if e.stateRootBeforeProcessing != nil {
		e.stateRoot = new(big.Int).Set(e.stateRootBeforeProcessing)
		e.stateRootBeforeProcessing = nil
	}
	e.currentMessageBatchIndex = (e.numMessages / e.params.MessageBatchSize) * e.params.MessageBatchSize
	e.hasUnprocessedMessages = e.numMessages > 0
	if err := e.initTallyState(); err != nil {
		return err
	}

	log.Warnw("coordinator reset performed",
		"stateRoot", e.stateRoot.String(),
		"batchIndex", e.currentMessageBatchIndex,
		"numMessages", e.numMessages)
	return nil
}

// MessageTreeContains reports whether root was ever a root of the message
// tree. Off-chain collaborators use it to pin the root a proof was built
// against.
func (e *Engine) MessageTreeContains(root *big.Int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messageTree.HasRoot(root)
}

// StateTreeContains reports whether root was ever a root of the state
// accumulator (the roots produced by sign-up insertions, not the
// proof-gated transition roots).
func (e *Engine) StateTreeContains(root *big.Int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateTree.HasRoot(root)
}

// EmptyVoteOptionTreeRoot returns the root of an empty vote option tree,
// used as the initial per-voter vote option root at sign-up.
func (e *Engine) EmptyVoteOptionTreeRoot() *big.Int {
	return new(big.Int).Set(e.emptyVoteOptionTreeRoot)
}
