package api

import (
	"github.com/clrfund/maci-node/types"
)

// PublishMessageRequest is the body of the message publication endpoint. The
// message payload is the encrypted command; the ephemeral public key lets the
// coordinator derive the shared decryption key.
type PublishMessageRequest struct {
	Caller    types.HexBytes `json:"caller"`
	Message   *types.Message `json:"message"`
	EncPubKey *types.PubKey  `json:"encPubKey"`
}

// PublishMessageResponse is returned on successful message publication.
type PublishMessageResponse struct {
	MessageIndex uint64        `json:"messageIndex"`
	MessageRoot  *types.BigInt `json:"messageRoot"`
}

// EngineStatus reports the accumulator and phase state of the engine.
type EngineStatus struct {
	NumSignUps               uint64        `json:"numSignUps"`
	NumMessages              uint64        `json:"numMessages"`
	StateRoot                *types.BigInt `json:"stateRoot"`
	MessageRoot              *types.BigInt `json:"messageRoot"`
	HasUnprocessedMessages   bool          `json:"hasUnprocessedMessages"`
	CurrentMessageBatchIndex uint64        `json:"currentMessageBatchIndex"`
	CurrentTallyBatchNum     uint64        `json:"currentTallyBatchNum"`
	TotalVotes               *types.BigInt `json:"totalVotes"`
	SignUpDeadline           int64         `json:"signUpDeadline"`
	VotingDeadline           int64         `json:"votingDeadline"`
	Sealed                   bool          `json:"sealed"`
}

// RoundStatus reports the settlement state of the funding round.
type RoundStatus struct {
	Finalized         bool          `json:"finalized"`
	Cancelled         bool          `json:"cancelled"`
	TallyHash         string        `json:"tallyHash,omitempty"`
	ContributorCount  uint64        `json:"contributorCount"`
	TotalTallyResults uint64        `json:"totalTallyResults"`
	MatchingPoolSize  *types.BigInt `json:"matchingPoolSize,omitempty"`
	TotalSpent        *types.BigInt `json:"totalSpent,omitempty"`
	Alpha             *types.BigInt `json:"alpha,omitempty"`
	VoiceCreditFactor *types.BigInt `json:"voiceCreditFactor"`
}

// TallyResultResponse is the verified result for one vote option.
type TallyResultResponse struct {
	VoteOptionIndex uint64        `json:"voteOptionIndex"`
	Result          *types.BigInt `json:"result"`
}

// RecipientResponse is the payout status for one vote option slot.
type RecipientResponse struct {
	VoteOptionIndex uint64        `json:"voteOptionIndex"`
	TallyVerified   bool          `json:"tallyVerified"`
	FundsClaimed    bool          `json:"fundsClaimed"`
	TallyResult     *types.BigInt `json:"tallyResult,omitempty"`
}

// PublishTallyHashRequest is the body of the coordinator tally hash endpoint.
type PublishTallyHashRequest struct {
	TallyHash string `json:"tallyHash"`
}
