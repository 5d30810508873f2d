package prover

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/clrfund/maci-node/types"
)

func TestNewGroth16Verifier(t *testing.T) {
	c := qt.New(t)

	_, err := NewGroth16Verifier("empty", nil)
	c.Assert(err, qt.IsNotNil)

	v, err := NewGroth16Verifier("test", []byte(`{"protocol":"groth16"}`))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.IsNotNil)
}

func TestNewGroth16VerifierFromMissingFile(t *testing.T) {
	c := qt.New(t)

	_, err := NewGroth16VerifierFromFile("test", "/nonexistent/vkey.json")
	c.Assert(err, qt.IsNotNil)
}

func TestVerifyMalformedInputs(t *testing.T) {
	c := qt.New(t)

	v, err := NewGroth16Verifier("test", []byte(`{"protocol":"groth16"}`))
	c.Assert(err, qt.IsNil)

	// Nil proof and nil signals never verify.
	c.Assert(v.Verify(nil, nil), qt.IsFalse)
	c.Assert(v.Verify(&types.Proof{}, []*big.Int{nil}), qt.IsFalse)

	// A structurally valid proof against a bogus key is rejected, not an error.
	proof := &types.Proof{
		A:        []string{"1", "2", "1"},
		B:        [][]string{{"1", "2"}, {"3", "4"}, {"1", "0"}},
		C:        []string{"5", "6", "1"},
		Protocol: "groth16",
	}
	c.Assert(v.Verify(proof, []*big.Int{big.NewInt(7)}), qt.IsFalse)
}

func TestVerifierFunc(t *testing.T) {
	c := qt.New(t)

	calls := 0
	f := VerifierFunc(func(proof *types.Proof, signals []*big.Int) bool {
		calls++
		return len(signals) == 2
	})
	c.Assert(f.Verify(&types.Proof{}, []*big.Int{big.NewInt(1), big.NewInt(2)}), qt.IsTrue)
	c.Assert(f.Verify(&types.Proof{}, nil), qt.IsFalse)
	c.Assert(calls, qt.Equals, 2)
}
