// Package prover verifies Groth16 proofs produced by the message processing
// and tally circuits. Proofs arrive in circom/snarkjs JSON form; verification
// runs against an embedded verifying key.
package prover

import (
	"fmt"
	"math/big"
	"os"

	rapidsnark "github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/verifier"

	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/types"
)

// Groth16Verifier checks snarkjs-format Groth16 proofs against a single
// verifying key. It is safe for concurrent use; the key is read-only after
// construction.
type Groth16Verifier struct {
	vkey []byte
	name string
}

// NewGroth16Verifier creates a verifier from verifying key JSON. name is
// used only for logging.
func NewGroth16Verifier(name string, vkey []byte) (*Groth16Verifier, error) {
	if len(vkey) == 0 {
		return nil, fmt.Errorf("empty verifying key for %s", name)
	}
	return &Groth16Verifier{vkey: vkey, name: name}, nil
}

// NewGroth16VerifierFromFile loads the verifying key from a snarkjs JSON
// file on disk.
func NewGroth16VerifierFromFile(name, path string) (*Groth16Verifier, error) {
	vkey, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verifying key %s: %w", path, err)
	}
	return NewGroth16Verifier(name, vkey)
}

// Verify checks the proof against the public signals. Returns false on any
// malformed input rather than erroring: an unverifiable proof and an invalid
// proof are the same thing to the caller.
func (v *Groth16Verifier) Verify(proof *types.Proof, publicSignals []*big.Int) bool {
	if proof == nil {
		return false
	}
	signals := make([]string, len(publicSignals))
	for i, s := range publicSignals {
		if s == nil {
			return false
		}
		signals[i] = s.String()
	}
	zkp := rapidsnark.ZKProof{
		Proof: &rapidsnark.ProofData{
			A:        proof.A,
			B:        proof.B,
			C:        proof.C,
			Protocol: proof.Protocol,
		},
		PubSignals: signals,
	}
	if err := verifier.VerifyGroth16(zkp, v.vkey); err != nil {
		log.Debugw("proof verification failed",
			"circuit", v.name,
			"error", err.Error())
		return false
	}
	return true
}

// VerifierFunc adapts a plain function to the engine's verifier contract.
type VerifierFunc func(proof *types.Proof, publicSignals []*big.Int) bool

// Verify implements the verifier contract.
func (f VerifierFunc) Verify(proof *types.Proof, publicSignals []*big.Int) bool {
	return f(proof, publicSignals)
}
