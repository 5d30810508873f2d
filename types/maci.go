package types

import "math/big"

// PubKey is a point on the embedded curve identifying a voter pseudonymously.
type PubKey struct {
	X *BigInt `json:"x"`
	Y *BigInt `json:"y"`
}

// NewPubKey creates a PubKey from the two coordinates.
func NewPubKey(x, y *big.Int) PubKey {
	return PubKey{X: (*BigInt)(x), Y: (*BigInt)(y)}
}

// BigInts returns the two coordinates as math/big integers.
func (k PubKey) BigInts() []*big.Int {
	return []*big.Int{k.X.MathBigInt(), k.Y.MathBigInt()}
}

// InField reports whether both coordinates are canonical field elements.
func (k PubKey) InField() bool {
	return k.X != nil && k.Y != nil &&
		AllInField(k.X.MathBigInt(), k.Y.MathBigInt())
}

// Message carries an encrypted command: an initialization vector plus a
// fixed-length array of field elements (new key, vote option, weight, nonce,
// signature). It is immutable once published; only its hash enters the
// message tree.
type Message struct {
	IV   *BigInt                     `json:"iv"`
	Data [MessageDataLength]*BigInt `json:"data"`
}

// BigInts returns the iv followed by the data elements.
func (m *Message) BigInts() []*big.Int {
	out := make([]*big.Int, 0, 1+MessageDataLength)
	out = append(out, m.IV.MathBigInt())
	for _, d := range m.Data {
		out = append(out, d.MathBigInt())
	}
	return out
}

// InField reports whether every element of the message is a canonical field
// element.
func (m *Message) InField() bool {
	if m.IV == nil {
		return false
	}
	for _, d := range m.Data {
		if d == nil {
			return false
		}
	}
	return AllInField(m.BigInts()...)
}

// StateLeaf is the per-identity voting record. Its hash is the state tree
// leaf; the struct itself lives only in coordinator memory.
type StateLeaf struct {
	PubKey             PubKey  `json:"pubKey"`
	VoteOptionTreeRoot *BigInt `json:"voteOptionTreeRoot"`
	VoiceCreditBalance *BigInt `json:"voiceCreditBalance"`
	Nonce              *BigInt `json:"nonce"`
}

// BigInts returns the five field elements of the leaf, in circuit order.
func (l *StateLeaf) BigInts() []*big.Int {
	return []*big.Int{
		l.PubKey.X.MathBigInt(),
		l.PubKey.Y.MathBigInt(),
		l.VoteOptionTreeRoot.MathBigInt(),
		l.VoiceCreditBalance.MathBigInt(),
		l.Nonce.MathBigInt(),
	}
}

// Proof is a groth16 proof in the circom JSON shape, as produced by snarkjs
// and rapidsnark. It is treated as opaque by the engine; only the configured
// verifier interprets it.
type Proof struct {
	A        []string   `json:"pi_a"`
	B        [][]string `json:"pi_b"`
	C        []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
}
