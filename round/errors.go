package round

import "errors"

var (
	ErrNotOwner       = errors.New("caller is not the round owner")
	ErrNotCoordinator = errors.New("caller is not the coordinator")

	ErrContributionPhaseOver  = errors.New("contribution period has ended")
	ErrZeroContribution       = errors.New("contribution amount is zero")
	ErrContributionTooLarge   = errors.New("contribution exceeds the maximum amount")
	ErrDuplicateContribution  = errors.New("address has already contributed")
	ErrNotContributor         = errors.New("address has not contributed to this round")
	ErrAlreadyRegistered      = errors.New("contributor is already registered")

	ErrAlreadyVerified    = errors.New("tally result already verified for this index")
	ErrInvalidTallyReveal = errors.New("tally result reveal does not match the commitment")
	ErrInvalidSpentReveal = errors.New("spent credits reveal does not match the commitment")

	ErrRoundFinalized      = errors.New("round is already finalized")
	ErrRoundNotFinalized   = errors.New("round is not finalized")
	ErrRoundCancelled      = errors.New("round has been cancelled")
	ErrRoundNotCancelled   = errors.New("round has not been cancelled")
	ErrVotingPeriodOpen    = errors.New("voting period is still open")
	ErrUntalliedLeaves     = errors.New("tally is not complete")
	ErrNoTallyHash         = errors.New("tally hash has not been published")
	ErrIncompleteResults   = errors.New("not all vote options have verified results")
	ErrNoVotes             = errors.New("no votes were cast, the round must be cancelled")
	ErrTallyNotVerified    = errors.New("tally result not verified for this index")
	ErrAlreadyClaimed      = errors.New("funds already claimed for this index")

	// ErrBudgetTooSmall and ErrAlphaUndefined surface the alpha formula's
	// domain requirements: the pool must cover the contributions, and the
	// sum of squared results must exceed the spent total.
	ErrBudgetTooSmall = errors.New("budget is smaller than the total contributions")
	ErrAlphaUndefined = errors.New("total votes squares must exceed total spent")
)
