package storage

import "github.com/clrfund/maci-node/types"

// ContributorStatus records one contributor's conversion of tokens into
// voice credits. Created strictly once per address; IsRegistered flips
// exactly once, when the sign-up gate accepts the contributor.
type ContributorStatus struct {
	VoiceCredits *types.BigInt `cbor:"voiceCredits"`
	IsRegistered bool          `cbor:"isRegistered"`
}

// RecipientStatus records the settled state of one vote option. Both flags
// are terminal: they are set at most once and never reset.
type RecipientStatus struct {
	FundsClaimed  bool          `cbor:"fundsClaimed"`
	TallyVerified bool          `cbor:"tallyVerified"`
	TallyResult   *types.BigInt `cbor:"tallyResult"`
}

// RoundMeta is the settlement-level state of the round.
type RoundMeta struct {
	TallyHash string `cbor:"tallyHash"`
	Finalized bool   `cbor:"finalized"`
	Cancelled bool   `cbor:"cancelled"`

	// Running totals accumulated while verifying tally result reveals.
	TotalTallyResults uint64        `cbor:"totalTallyResults"`
	TotalVotesSquares *types.BigInt `cbor:"totalVotesSquares"`

	// Settlement outputs, set at finalization.
	Alpha            *types.BigInt `cbor:"alpha"`
	TotalSpent       *types.BigInt `cbor:"totalSpent"`
	MatchingPoolSize *types.BigInt `cbor:"matchingPoolSize"`

	// ContributorCount tracks distinct contributors for reporting.
	ContributorCount uint64 `cbor:"contributorCount"`
}
