package maci

import "errors"

var (
	// ErrNotCoordinator is returned when a coordinator-only operation is
	// attempted by another caller.
	ErrNotCoordinator = errors.New("caller is not the coordinator")

	// Phase violations. Never retried automatically.
	ErrSignUpClosed = errors.New("sign-up period has ended")
	ErrVotingClosed = errors.New("voting period has ended")
	ErrVotingOpen   = errors.New("voting period is still open")

	// Capacity errors. Fatal for the round.
	ErrSignUpCapReached  = errors.New("maximum number of sign-ups reached")
	ErrMessageCapReached = errors.New("maximum number of messages reached")

	// ErrFieldRange is returned before proof verification when any public
	// input is not a canonical field element.
	ErrFieldRange = errors.New("value outside the snark scalar field")

	// ErrProofRejected is returned when the external verifier rejects a
	// batch proof. The call leaves no state change behind.
	ErrProofRejected = errors.New("proof verification failed")

	// Order violations.
	ErrNoUnprocessedMessages = errors.New("no unprocessed message batches remain")
	ErrBatchIndexOutOfRange  = errors.New("message batch index exceeds the message tree capacity")
	ErrNoSignUps             = errors.New("no sign-ups to tally")
	ErrTallyComplete         = errors.New("all tally batches have been processed")

	// ErrSealed guards committed tally state: once the round settlement is
	// finalized, the working state can no longer be rewound.
	ErrSealed = errors.New("engine is sealed, reset is no longer possible")

	// ErrCreditsOverCeiling is returned when the credit source reports a
	// balance above the circuit-imposed ceiling.
	ErrCreditsOverCeiling = errors.New("voice credit balance above ceiling")
)
