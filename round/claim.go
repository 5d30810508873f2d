package round

import (
	"fmt"
	"math/big"

	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/storage"
)

// ClaimFunds pays out a recipient's allocation for one vote option. The
// caller reveals the per-option spent voice credits against the live
// per-option commitment; the allocation blends the quadratic match with the
// cost-covering share under the factor fixed at finalization. The claimed
// flag is set before the token moves, so a re-entrant or repeated claim is
// rejected.
func (r *FundingRound) ClaimFunds(voteOptionIndex uint64, spent *big.Int, spentProof [][]*big.Int, spentSalt *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, err := r.stg.RoundMeta()
	if err != nil {
		return err
	}
	if meta.Cancelled {
		return ErrRoundCancelled
	}
	if !meta.Finalized {
		return ErrRoundNotFinalized
	}
	status, err := r.stg.Recipient(voteOptionIndex)
	if err != nil {
		if err == storage.ErrNotFound {
			return ErrTallyNotVerified
		}
		return err
	}
	if !status.TallyVerified {
		return ErrTallyNotVerified
	}
	if status.FundsClaimed {
		return ErrAlreadyClaimed
	}
	depth := r.engine.VoteOptionTreeDepth()
	if !r.engine.VerifyPerVOSpentVoiceCredits(depth, voteOptionIndex, spent, spentProof, spentSalt) {
		return ErrInvalidSpentReveal
	}

	allocated := r.getAllocatedAmount(
		meta.Alpha.MathBigInt(),
		status.TallyResult.MathBigInt(),
		spent,
	)

	updated := *status
	updated.FundsClaimed = true
	if err := r.stg.SetRecipient(voteOptionIndex, &updated); err != nil {
		return err
	}

	// Recipients removed from the registry during the round forfeit to the
	// matching pool owner.
	recipient, ok := r.recipients.Resolve(voteOptionIndex, r.startTime, r.engine.VotingDeadline())
	if !ok {
		recipient = r.owner
	}
	if err := r.token.Transfer(r.address, recipient, allocated); err != nil {
		// Roll the claimed flag back so the allocation stays claimable.
		if rbErr := r.stg.SetRecipient(voteOptionIndex, status); rbErr != nil {
			return fmt.Errorf("claim transfer: %w (rollback failed: %v)", err, rbErr)
		}
		return fmt.Errorf("claim transfer: %w", err)
	}

	log.Infow("funds claimed",
		"voteOptionIndex", voteOptionIndex,
		"recipient", recipient.Hex(),
		"allocated", allocated.String())
	return nil
}
