package tree

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/clrfund/maci-node/crypto/hash/poseidon"
	"github.com/clrfund/maci-node/types"
)

// ErrBadPath is returned when a sibling path has the wrong shape.
var ErrBadPath = errors.New("malformed sibling path")

// ComputeRootFromPath reconstructs the root of a tree of the given depth and
// arity from a leaf, its index and the sibling path. path[l] holds the
// arity-1 siblings at level l; the positional digits of index in base arity
// decide which child slot the running value occupies at each level.
func ComputeRootFromPath(depth, arity int, index uint64, leaf *big.Int, path [][]*big.Int) (*big.Int, error) {
	if !types.InField(leaf) {
		return nil, ErrOutOfField
	}
	if len(path) != depth {
		return nil, fmt.Errorf("%w: %d levels for depth %d", ErrBadPath, len(path), depth)
	}
	current := new(big.Int).Set(leaf)
	idx := index
	for level := 0; level < depth; level++ {
		siblings := path[level]
		if len(siblings) != arity-1 {
			return nil, fmt.Errorf("%w: %d siblings at level %d", ErrBadPath, len(siblings), level)
		}
		if !types.AllInField(siblings...) {
			return nil, ErrOutOfField
		}
		pos := int(idx % uint64(arity))
		children := make([]*big.Int, 0, arity)
		children = append(children, siblings[:pos]...)
		children = append(children, current)
		children = append(children, siblings[pos:]...)
		h, err := hashChildren(arity, children)
		if err != nil {
			return nil, err
		}
		current = h
		idx /= uint64(arity)
	}
	return current, nil
}

// Commit computes the salted commitment H(value, salt).
func Commit(value, salt *big.Int) (*big.Int, error) {
	return poseidon.Hash2(value, salt)
}

// VerifyCommitment reports whether H(root, salt) equals expected.
func VerifyCommitment(root, salt, expected *big.Int) bool {
	if !types.AllInField(root, salt) || expected == nil {
		return false
	}
	h, err := poseidon.Hash2(root, salt)
	if err != nil {
		return false
	}
	return h.Cmp(expected) == 0
}
