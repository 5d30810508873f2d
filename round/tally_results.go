package round

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/storage"
	"github.com/clrfund/maci-node/types"
)

// AddTallyResultsBatch verifies a batch of revealed per-option tally results
// against the live results commitment and records them. All-or-nothing: a
// single failing entry voids the whole batch before anything is persisted.
// Re-verification of an already verified index is rejected.
func (r *FundingRound) AddTallyResultsBatch(
	caller common.Address,
	depth int,
	indices []uint64,
	results []*big.Int,
	proofs [][][]*big.Int,
	salt *big.Int,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.coordinator {
		return ErrNotCoordinator
	}
	if r.engine == nil {
		return fmt.Errorf("engine is not attached")
	}
	if len(indices) != len(results) || len(indices) != len(proofs) {
		return fmt.Errorf("indices, results and proofs must have the same length")
	}
	meta, err := r.stg.RoundMeta()
	if err != nil {
		return err
	}
	if meta.Finalized {
		return ErrRoundFinalized
	}

	// Verify the whole batch before persisting anything.
	verified := make([]*storage.RecipientStatus, len(indices))
	seen := make(map[uint64]struct{}, len(indices))
	for i, index := range indices {
		if _, dup := seen[index]; dup {
			return fmt.Errorf("index %d: %w", index, ErrAlreadyVerified)
		}
		seen[index] = struct{}{}
		current, err := r.stg.Recipient(index)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if current != nil && current.TallyVerified {
			return fmt.Errorf("index %d: %w", index, ErrAlreadyVerified)
		}
		if !r.engine.VerifyTallyResult(depth, index, results[i], proofs[i], salt) {
			return fmt.Errorf("index %d: %w", index, ErrInvalidTallyReveal)
		}
		verified[i] = &storage.RecipientStatus{
			TallyVerified: true,
			TallyResult:   (*types.BigInt)(new(big.Int).Set(results[i])),
		}
	}

	if meta.TotalVotesSquares == nil {
		meta.TotalVotesSquares = types.NewInt(0)
	}
	squares := meta.TotalVotesSquares.MathBigInt()
	for i, index := range indices {
		if err := r.stg.SetRecipient(index, verified[i]); err != nil {
			return err
		}
		squares.Add(squares, new(big.Int).Mul(results[i], results[i]))
		meta.TotalTallyResults++
	}
	meta.TotalVotesSquares = (*types.BigInt)(squares)
	if err := r.stg.SetRoundMeta(meta); err != nil {
		return err
	}

	log.Infow("tally results batch recorded",
		"count", len(indices),
		"totalTallyResults", meta.TotalTallyResults,
		"totalVotesSquares", squares.String())
	return nil
}

// TallyResult returns the verified tally result for a vote option index.
func (r *FundingRound) TallyResult(index uint64) (*big.Int, error) {
	status, err := r.stg.Recipient(index)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTallyNotVerified
		}
		return nil, err
	}
	if !status.TallyVerified {
		return nil, ErrTallyNotVerified
	}
	return status.TallyResult.MathBigInt(), nil
}
