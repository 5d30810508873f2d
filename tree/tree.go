// Package tree implements the append-only authenticated Merkle accumulator
// used for the state and message trees (arity 2) and the vote option trees
// (arity 5). Insertion is O(depth) in time and auxiliary memory, via a
// per-level cache of the subtree currently being filled. Every root ever
// produced is kept in a history set, so past roots remain provable.
package tree

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/clrfund/maci-node/crypto/hash/poseidon"
	"github.com/clrfund/maci-node/types"
)

var (
	// ErrTreeFull is returned once every leaf slot has been used. Fatal for
	// the accumulator: there is no recovery besides a new instance.
	ErrTreeFull = errors.New("merkle accumulator is full")
	// ErrOutOfField is returned for leaves outside the snark scalar field.
	ErrOutOfField = errors.New("leaf is not a field element")
)

// Tree is an incremental Merkle accumulator of fixed depth and arity.
// The zero value is not usable; use New.
type Tree struct {
	depth int
	arity int

	// zeros[l] is the hash of a complete subtree of height l whose leaves
	// all equal the zero value.
	zeros []*big.Int
	// filled[l] holds the children of the level-l node currently being
	// filled, indexed by the leaf position modulo arity at that level.
	filled [][]*big.Int

	root        *big.Int
	rootHistory map[string]struct{}
	nextIndex   uint64
	maxLeaves   uint64
}

// New creates an accumulator of the given depth and arity, with every leaf
// initialized to zeroValue. Supported arities are 2 and up; depth must be at
// least 1 and small enough for arity^depth to fit an uint64.
func New(depth, arity int, zeroValue *big.Int) (*Tree, error) {
	if depth < 1 {
		return nil, fmt.Errorf("invalid tree depth %d", depth)
	}
	if arity < 2 {
		return nil, fmt.Errorf("invalid tree arity %d", arity)
	}
	if !types.InField(zeroValue) {
		return nil, ErrOutOfField
	}
	zeros, err := zeroHashes(depth, arity, zeroValue)
	if err != nil {
		return nil, err
	}
	t := &Tree{
		depth:       depth,
		arity:       arity,
		zeros:       zeros,
		filled:      make([][]*big.Int, depth),
		root:        zeros[depth],
		rootHistory: map[string]struct{}{},
		maxLeaves:   pow(uint64(arity), depth),
	}
	t.rootHistory[t.root.String()] = struct{}{}
	return t, nil
}

// zeroHashes returns depth+1 values: the zero leaf and, per level, the hash
// of arity copies of the level below.
func zeroHashes(depth, arity int, zeroValue *big.Int) ([]*big.Int, error) {
	zeros := make([]*big.Int, depth+1)
	zeros[0] = new(big.Int).Set(zeroValue)
	for l := 1; l <= depth; l++ {
		children := make([]*big.Int, arity)
		for i := range children {
			children[i] = zeros[l-1]
		}
		h, err := hashChildren(arity, children)
		if err != nil {
			return nil, err
		}
		zeros[l] = h
	}
	return zeros, nil
}

func hashChildren(arity int, children []*big.Int) (*big.Int, error) {
	if arity == 2 {
		return poseidon.Hash2(children[0], children[1])
	}
	if arity == 5 {
		return poseidon.Hash5(children)
	}
	return poseidon.Hash(children...)
}

// pow computes base^exp for small exponents.
func pow(base uint64, exp int) uint64 {
	out := uint64(1)
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

// Insert appends a leaf and returns its index. The leaf must be a canonical
// field element and the tree must not be full. The new root is recorded in
// the root history.
func (t *Tree) Insert(leaf *big.Int) (uint64, error) {
	if !types.InField(leaf) {
		return 0, ErrOutOfField
	}
	if t.nextIndex >= t.maxLeaves {
		return 0, ErrTreeFull
	}
	index := t.nextIndex

	current := new(big.Int).Set(leaf)
	idx := index
	for level := 0; level < t.depth; level++ {
		pos := int(idx % uint64(t.arity))
		if pos == 0 {
			// start a fresh node at this level, padded with zeros
			children := make([]*big.Int, t.arity)
			for i := range children {
				children[i] = t.zeros[level]
			}
			t.filled[level] = children
		}
		t.filled[level][pos] = current
		h, err := hashChildren(t.arity, t.filled[level])
		if err != nil {
			return 0, err
		}
		current = h
		idx /= uint64(t.arity)
	}

	t.root = current
	t.rootHistory[t.root.String()] = struct{}{}
	t.nextIndex++
	return index, nil
}

// Root returns the current root.
func (t *Tree) Root() *big.Int {
	return new(big.Int).Set(t.root)
}

// HasRoot reports whether root was ever the root of this accumulator.
func (t *Tree) HasRoot(root *big.Int) bool {
	if root == nil {
		return false
	}
	_, ok := t.rootHistory[root.String()]
	return ok
}

// LeafCount returns the number of inserted leaves.
func (t *Tree) LeafCount() uint64 {
	return t.nextIndex
}

// MaxLeaves returns the leaf capacity, arity^depth.
func (t *Tree) MaxLeaves() uint64 {
	return t.maxLeaves
}

// MaxLeafIndex returns the largest valid leaf index.
func (t *Tree) MaxLeafIndex() uint64 {
	return t.maxLeaves - 1
}

// Depth returns the tree depth.
func (t *Tree) Depth() int {
	return t.depth
}

// Arity returns the tree arity.
func (t *Tree) Arity() int {
	return t.arity
}

// ZeroRoot returns the root of the empty tree.
func (t *Tree) ZeroRoot() *big.Int {
	return new(big.Int).Set(t.zeros[t.depth])
}

// EmptyRoot computes the root of a tree of the given depth and arity whose
// leaves all equal zeroValue, without building the tree.
func EmptyRoot(depth, arity int, zeroValue *big.Int) (*big.Int, error) {
	zeros, err := zeroHashes(depth, arity, zeroValue)
	if err != nil {
		return nil, err
	}
	return zeros[depth], nil
}
