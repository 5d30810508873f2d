package round

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/types"
)

// voteOptionSlots returns 5^voteOptionTreeDepth, the number of vote option
// slots that must all carry a verified tally result before finalization.
func (r *FundingRound) voteOptionSlots() uint64 {
	slots := uint64(1)
	for i := 0; i < r.engine.VoteOptionTreeDepth(); i++ {
		slots *= types.VoteOptionTreeArity
	}
	return slots
}

// calcAlpha computes the capital-constrained allocation factor. budget is
// the round's token balance, totalVotesSquares the accumulated sum of
// squared tally results, totalSpent the total spent voice credits. The
// result is fixed-point with AlphaPrecision scale, in [0, AlphaPrecision].
func (r *FundingRound) calcAlpha(budget, totalVotesSquares, totalSpent *big.Int) (*big.Int, error) {
	contributions := new(big.Int).Mul(totalSpent, r.voiceCreditFactor)
	if budget.Cmp(contributions) < 0 {
		return nil, ErrBudgetTooSmall
	}
	if totalVotesSquares.Cmp(totalSpent) <= 0 {
		return nil, ErrAlphaUndefined
	}
	// alpha = (budget - contributions) * PRECISION /
	//         (factor * (squares - spent))
	num := new(big.Int).Sub(budget, contributions)
	num.Mul(num, AlphaPrecision)
	den := new(big.Int).Sub(totalVotesSquares, totalSpent)
	den.Mul(den, r.voiceCreditFactor)
	return num.Div(num, den), nil
}

// getAllocatedAmount blends the quadratic (matching) payout with the linear
// (cost-covering) payout under the fixed budget:
//
//	(alpha·factor·result² + (PRECISION−alpha)·factor·spent) / PRECISION
func (r *FundingRound) getAllocatedAmount(alpha, tallyResult, spent *big.Int) *big.Int {
	quadratic := new(big.Int).Mul(alpha, r.voiceCreditFactor)
	quadratic.Mul(quadratic, tallyResult)
	quadratic.Mul(quadratic, tallyResult)

	linear := new(big.Int).Sub(AlphaPrecision, alpha)
	linear.Mul(linear, r.voiceCreditFactor)
	linear.Mul(linear, spent)

	total := quadratic.Add(quadratic, linear)
	return total.Div(total, AlphaPrecision)
}

// Finalize settles the round: verifies the revealed total of spent voice
// credits against the live commitment, computes the matching pool size and
// the allocation factor, and seals the engine so committed results can no
// longer be rewound. Owner-only; terminal and mutually exclusive with
// Cancel.
func (r *FundingRound) Finalize(caller common.Address, totalSpent, totalSpentSalt *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrNotOwner
	}
	if r.engine == nil {
		return ErrVotingPeriodOpen
	}
	meta, err := r.stg.RoundMeta()
	if err != nil {
		return err
	}
	if meta.Finalized {
		return ErrRoundFinalized
	}
	if meta.Cancelled {
		return ErrRoundCancelled
	}
	if !r.engine.VotingPeriodOver() {
		return ErrVotingPeriodOpen
	}
	if r.engine.HasUntalliedStateLeaves() {
		return ErrUntalliedLeaves
	}
	if meta.TallyHash == "" {
		return ErrNoTallyHash
	}
	if meta.TotalTallyResults != r.voteOptionSlots() {
		return ErrIncompleteResults
	}
	totalVotes := r.engine.TotalVotes()
	if totalVotes.Sign() == 0 {
		return ErrNoVotes
	}
	if !r.engine.VerifySpentVoiceCredits(totalSpent, totalSpentSalt) {
		return ErrInvalidSpentReveal
	}

	budget := r.token.BalanceOf(r.address)
	contributions := new(big.Int).Mul(totalSpent, r.voiceCreditFactor)
	alpha, err := r.calcAlpha(budget, meta.TotalVotesSquares.MathBigInt(), totalSpent)
	if err != nil {
		return err
	}

	meta.Finalized = true
	meta.Alpha = (*types.BigInt)(alpha)
	meta.TotalSpent = (*types.BigInt)(new(big.Int).Set(totalSpent))
	meta.MatchingPoolSize = (*types.BigInt)(new(big.Int).Sub(budget, contributions))
	if err := r.stg.SetRoundMeta(meta); err != nil {
		return err
	}
	r.engine.Seal()

	log.Infow("funding round finalized",
		"budget", budget.String(),
		"totalSpent", totalSpent.String(),
		"matchingPoolSize", meta.MatchingPoolSize.String(),
		"alpha", alpha.String())
	return nil
}

// Cancel aborts the round before finalization. Owner-only; afterwards
// contributors may withdraw their contributions.
func (r *FundingRound) Cancel(caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrNotOwner
	}
	meta, err := r.stg.RoundMeta()
	if err != nil {
		return err
	}
	if meta.Finalized {
		return ErrRoundFinalized
	}
	if meta.Cancelled {
		return ErrRoundCancelled
	}
	meta.Cancelled = true
	if err := r.stg.SetRoundMeta(meta); err != nil {
		return err
	}
	log.Warnw("funding round cancelled", "owner", caller.Hex())
	return nil
}

// WithdrawContribution returns a cancelled round's contribution to the
// caller, exactly once. A second call is an idempotent no-op.
func (r *FundingRound) WithdrawContribution(caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, err := r.stg.RoundMeta()
	if err != nil {
		return err
	}
	if !meta.Cancelled {
		return ErrRoundNotCancelled
	}
	status, err := r.stg.Contributor(caller)
	if err != nil {
		return ErrNotContributor
	}
	credits := status.VoiceCredits.MathBigInt()
	if credits.Sign() == 0 {
		// already withdrawn
		return nil
	}
	amount := new(big.Int).Mul(credits, r.voiceCreditFactor)
	updated := *status
	updated.VoiceCredits = types.NewInt(0)
	if err := r.stg.SetContributor(caller, &updated); err != nil {
		return err
	}
	if err := r.token.Transfer(r.address, caller, amount); err != nil {
		// Restore the credits so the refund stays withdrawable.
		if rbErr := r.stg.SetContributor(caller, status); rbErr != nil {
			return fmt.Errorf("withdraw transfer: %w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	log.Debugw("contribution withdrawn",
		"contributor", caller.Hex(),
		"amount", amount.String())
	return nil
}
