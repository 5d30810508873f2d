package maci

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clrfund/maci-node/types"
)

// Verifier checks a zk-SNARK proof against its public signals. Callers must
// range-check every signal before invoking it. Implementations live in the
// prover package; tests use VerifierFunc-style fakes.
type Verifier interface {
	Verify(proof *types.Proof, publicSignals []*big.Int) bool
}

// EligibilityGate decides whether an identity may sign up. It is expected to
// return an error on ineligibility; any error aborts the sign-up (the gate
// fails closed).
type EligibilityGate interface {
	Register(caller common.Address, data []byte) error
}

// CreditSource reports the initial voice credit balance of an identity. An
// error aborts the sign-up.
type CreditSource interface {
	GetCredits(caller common.Address, data []byte) (*big.Int, error)
}
