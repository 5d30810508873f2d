package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clrfund/maci-node/types"
)

// roundStatus returns the settlement state of the funding round
// GET /round
func (a *API) roundStatus(w http.ResponseWriter, r *http.Request) {
	meta, err := a.storage.RoundMeta()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, RoundStatus{
		Finalized:         meta.Finalized,
		Cancelled:         meta.Cancelled,
		TallyHash:         meta.TallyHash,
		ContributorCount:  meta.ContributorCount,
		TotalTallyResults: meta.TotalTallyResults,
		MatchingPoolSize:  meta.MatchingPoolSize,
		TotalSpent:        meta.TotalSpent,
		Alpha:             meta.Alpha,
		VoiceCreditFactor: (*types.BigInt)(a.round.VoiceCreditFactor()),
	})
}

// engineStatus returns the accumulator and phase state of the engine
// GET /maci
func (a *API) engineStatus(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, EngineStatus{
		NumSignUps:               a.engine.NumSignUps(),
		NumMessages:              a.engine.NumMessages(),
		StateRoot:                (*types.BigInt)(a.engine.StateRoot()),
		MessageRoot:              (*types.BigInt)(a.engine.MessageRoot()),
		HasUnprocessedMessages:   a.engine.HasUnprocessedMessages(),
		CurrentMessageBatchIndex: a.engine.CurrentMessageBatchIndex(),
		CurrentTallyBatchNum:     a.engine.CurrentTallyBatchNum(),
		TotalVotes:               (*types.BigInt)(a.engine.TotalVotes()),
		SignUpDeadline:           a.engine.SignUpDeadline().Unix(),
		VotingDeadline:           a.engine.VotingDeadline().Unix(),
		Sealed:                   a.engine.Sealed(),
	})
}

// tallySummary returns the tally progress
// GET /tally
func (a *API) tallySummary(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, map[string]any{
		"currentTallyBatchNum":    a.engine.CurrentTallyBatchNum(),
		"hasUntalliedStateLeaves": a.engine.HasUntalliedStateLeaves(),
		"totalVotes":              (*types.BigInt)(a.engine.TotalVotes()),
	})
}

// tallyResult returns the verified tally result for one vote option
// GET /tally/{voteOptionIndex}
func (a *API) tallyResult(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, VoteOptionURLParam), 10, 64)
	if err != nil {
		ErrMalformedParam.Withf("could not parse vote option index: %v", err).Write(w)
		return
	}
	result, err := a.round.TallyResult(index)
	if err != nil {
		ErrTallyNotVerified.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, TallyResultResponse{
		VoteOptionIndex: index,
		Result:          (*types.BigInt)(result),
	})
}

// recipient returns the payout status for one vote option slot
// GET /recipients/{voteOptionIndex}
func (a *API) recipient(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, VoteOptionURLParam), 10, 64)
	if err != nil {
		ErrMalformedParam.Withf("could not parse vote option index: %v", err).Write(w)
		return
	}
	status, err := a.storage.Recipient(index)
	if err != nil {
		ErrRecipientNotFound.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, RecipientResponse{
		VoteOptionIndex: index,
		TallyVerified:   status.TallyVerified,
		FundsClaimed:    status.FundsClaimed,
		TallyResult:     status.TallyResult,
	})
}

// publishTallyHash stores the hash of the published tally artifact
// POST /coordinator/{uuid}/tally-hash
func (a *API) publishTallyHash(w http.ResponseWriter, r *http.Request) {
	token, err := uuid.Parse(chi.URLParam(r, CoordinatorURLParam))
	if err != nil || a.coordinatorUUID == nil || token != *a.coordinatorUUID {
		ErrUnauthorized.Write(w)
		return
	}
	req := PublishTallyHashRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.TallyHash == "" {
		ErrMalformedBody.Withf("empty tally hash").Write(w)
		return
	}
	if err := a.round.PublishTallyHash(a.engine.Coordinator(), req.TallyHash); err != nil {
		ErrTallyHashNotAllowed.WithErr(err).Write(w)
		return
	}
	httpWriteOK(w)
}
