// Package poseidon wraps the Poseidon hash primitives used by the
// accumulators and commitments: a 2-ary and a 5-ary compression function over
// the bn254 scalar field, plus a chunked variant for wider inputs.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"

	"github.com/clrfund/maci-node/types"
)

// Hash2 computes the 2-ary Poseidon compression of left and right.
func Hash2(left, right *big.Int) (*big.Int, error) {
	return Hash(left, right)
}

// Hash5 computes the 5-ary Poseidon compression of exactly five inputs.
func Hash5(inputs []*big.Int) (*big.Int, error) {
	if len(inputs) != 5 {
		return nil, fmt.Errorf("hash5 requires 5 inputs, got %d", len(inputs))
	}
	return Hash(inputs...)
}

// Hash computes the Poseidon hash of a variable number of big.Int inputs.
// It handles large numbers of inputs by chunking them into groups of 16,
// hashing each chunk, and then recursively hashing the resulting hashes
// together. Every input must be a canonical field element.
// Returns an error if no inputs are provided.
func Hash(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	if !types.AllInField(inputs...) {
		return nil, fmt.Errorf("input outside the scalar field")
	}

	// For 16 or fewer inputs, hash directly
	if len(inputs) <= 16 {
		return poseidon.Hash(inputs)
	}

	numChunks := (len(inputs) + 15) / 16 // ceiling division
	hashes := make([]*big.Int, 0, numChunks)

	// Process inputs in 16-element chunks
	for i := 0; i < len(inputs); i += 16 {
		end := min(i+16, len(inputs))
		hash, err := poseidon.Hash(inputs[i:end])
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	if len(hashes) <= 16 {
		return poseidon.Hash(hashes)
	}

	// Recursively hash the chunk hashes
	return Hash(hashes...)
}

// HashStateLeaf hashes the five field elements of a state leaf with the
// 5-ary compression function.
func HashStateLeaf(leaf *types.StateLeaf) (*big.Int, error) {
	return Hash5(leaf.BigInts())
}

// HashMessage hashes the initialization vector and the data elements of a
// message. The 11 inputs fit a single Poseidon permutation.
func HashMessage(msg *types.Message) (*big.Int, error) {
	return Hash(msg.BigInts()...)
}
