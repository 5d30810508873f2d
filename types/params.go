// Package types defines the shared wire and domain types of the MACI
// coordinator node: field-element wrappers, voter keys, messages, state
// leaves and the zk-SNARK proof envelope.
package types

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Tree arities and message shape, fixed by the circuits.
const (
	// StateTreeArity is the arity of the state tree accumulator.
	StateTreeArity = 2
	// MessageTreeArity is the arity of the message tree accumulator.
	MessageTreeArity = 2
	// VoteOptionTreeArity is the arity of the per-voter vote option tree.
	VoteOptionTreeArity = 5
	// MessageDataLength is the number of encrypted command field elements
	// carried in a message, besides the initialization vector.
	MessageDataLength = 10
)

// SnarkScalarField is the modulus of the bn254 scalar field. Every value
// inserted in an accumulator or passed to the proof verifier must be strictly
// below it.
var SnarkScalarField = fr.Modulus()

// MaxVoiceCreditBalance is the circuit-imposed ceiling on the initial voice
// credit balance of a single identity (2^32).
var MaxVoiceCreditBalance = new(big.Int).Lsh(big.NewInt(1), 32)

// InField reports whether v is a canonical element of the snark scalar field.
func InField(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(SnarkScalarField) < 0
}

// AllInField reports whether every value of vs is a canonical element of the
// snark scalar field.
func AllInField(vs ...*big.Int) bool {
	for _, v := range vs {
		if !InField(v) {
			return false
		}
	}
	return true
}
