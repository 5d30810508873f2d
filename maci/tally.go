package maci

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/tree"
	"github.com/clrfund/maci-node/types"
)

// tallyState holds the proof-gated running commitments of the tally engine.
// The three commitments are replaced wholesale on each accepted batch; they
// are never updated in place.
type tallyState struct {
	currentBatchNum uint64

	resultsCommitment    *big.Int
	spentCommitment      *big.Int
	perVOSpentCommitment *big.Int

	totalVotes *big.Int
}

// initTallyState resets the tally engine to its initial commitments: the
// hash of the all-zero structure with salt 0.
func (e *Engine) initTallyState() error {
	emptyResults, err := tree.Commit(e.emptyVoteOptionTreeRoot, big.NewInt(0))
	if err != nil {
		return err
	}
	emptySpent, err := tree.Commit(big.NewInt(0), big.NewInt(0))
	if err != nil {
		return err
	}
	e.tally = tallyState{
		resultsCommitment:    emptyResults,
		spentCommitment:      emptySpent,
		perVOSpentCommitment: emptyResults,
		totalVotes:           big.NewInt(0),
	}
	return nil
}

// totalTallyBatches returns ceil(numSignUps / tallyBatchSize).
func (e *Engine) totalTallyBatches() uint64 {
	return (e.numSignUps + e.params.TallyBatchSize - 1) / e.params.TallyBatchSize
}

// ProveVoteTallyBatch verifies a proof for the next tally batch and, on
// success, atomically replaces the three running commitments and records the
// cumulative vote total. Coordinator only. Batches are strictly sequential,
// 0-indexed, never skipped: the current batch number is itself a public
// input.
func (e *Engine) ProveVoteTallyBatch(
	caller common.Address,
	intermediateStateRoot *big.Int,
	newResultsCommitment *big.Int,
	newSpentCommitment *big.Int,
	newPerVOSpentCommitment *big.Int,
	totalVotes *big.Int,
	proof *types.Proof,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.params.Coordinator {
		return ErrNotCoordinator
	}
	if e.numSignUps == 0 {
		return ErrNoSignUps
	}
	if e.tally.currentBatchNum >= e.totalTallyBatches() {
		return ErrTallyComplete
	}

	signals := []*big.Int{
		newResultsCommitment,
		newSpentCommitment,
		newPerVOSpentCommitment,
		totalVotes,
		e.stateRoot,
		new(big.Int).SetUint64(e.tally.currentBatchNum),
		intermediateStateRoot,
		e.tally.resultsCommitment,
		e.tally.spentCommitment,
		e.tally.perVOSpentCommitment,
	}
	if !types.AllInField(signals...) {
		return ErrFieldRange
	}
	if !e.params.TallyVerifier.Verify(proof, signals) {
		return ErrProofRejected
	}

	e.tally.resultsCommitment = new(big.Int).Set(newResultsCommitment)
	e.tally.spentCommitment = new(big.Int).Set(newSpentCommitment)
	e.tally.perVOSpentCommitment = new(big.Int).Set(newPerVOSpentCommitment)
	e.tally.totalVotes = new(big.Int).Set(totalVotes)
	e.tally.currentBatchNum++

	log.Infow("tally batch accepted",
		"batchNum", e.tally.currentBatchNum,
		"totalBatches", e.totalTallyBatches(),
		"totalVotes", e.tally.totalVotes.String())
	return nil
}

// HasUntalliedStateLeaves reports whether tally batches remain.
func (e *Engine) HasUntalliedStateLeaves() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tally.currentBatchNum < e.totalTallyBatches()
}

// CurrentTallyBatchNum returns the next tally batch number to prove.
func (e *Engine) CurrentTallyBatchNum() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tally.currentBatchNum
}

// TotalVotes returns the cumulative vote total recorded by the last
// accepted tally batch.
func (e *Engine) TotalVotes() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.tally.totalVotes)
}

// ResultsCommitment returns the live vote tally commitment.
func (e *Engine) ResultsCommitment() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.tally.resultsCommitment)
}

// VerifyTallyResult checks a revealed per-option tally leaf against the live
// results commitment, through a quinary Merkle path of the given depth.
func (e *Engine) VerifyTallyResult(depth int, index uint64, leaf *big.Int, path [][]*big.Int, salt *big.Int) bool {
	e.mu.Lock()
	expected := new(big.Int).Set(e.tally.resultsCommitment)
	e.mu.Unlock()
	return verifyReveal(depth, index, leaf, path, salt, expected)
}

// VerifyPerVOSpentVoiceCredits checks a revealed per-option spent credit
// leaf against the live per-option spent commitment.
func (e *Engine) VerifyPerVOSpentVoiceCredits(depth int, index uint64, leaf *big.Int, path [][]*big.Int, salt *big.Int) bool {
	e.mu.Lock()
	expected := new(big.Int).Set(e.tally.perVOSpentCommitment)
	e.mu.Unlock()
	return verifyReveal(depth, index, leaf, path, salt, expected)
}

// VerifySpentVoiceCredits checks the revealed total of spent voice credits
// against the live spent commitment.
func (e *Engine) VerifySpentVoiceCredits(totalSpent, salt *big.Int) bool {
	e.mu.Lock()
	expected := new(big.Int).Set(e.tally.spentCommitment)
	e.mu.Unlock()
	return tree.VerifyCommitment(totalSpent, salt, expected)
}

func verifyReveal(depth int, index uint64, leaf *big.Int, path [][]*big.Int, salt *big.Int, expected *big.Int) bool {
	root, err := tree.ComputeRootFromPath(depth, types.VoteOptionTreeArity, index, leaf, path)
	if err != nil {
		return false
	}
	return tree.VerifyCommitment(root, salt, expected)
}
