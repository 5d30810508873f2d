package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clrfund/maci-node/maci"
	"github.com/clrfund/maci-node/types"
)

// publishMessage appends an encrypted command to the message accumulator
// POST /messages
func (a *API) publishMessage(w http.ResponseWriter, r *http.Request) {
	req := PublishMessageRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.Message == nil || req.EncPubKey == nil {
		ErrMalformedBody.Withf("missing message or encryption key").Write(w)
		return
	}
	if len(req.Caller) != common.AddressLength {
		ErrMalformedAddress.Withf("expected %d bytes, got %d", common.AddressLength, len(req.Caller)).Write(w)
		return
	}
	caller := common.BytesToAddress(req.Caller)

	if err := a.engine.PublishMessage(caller, req.Message, *req.EncPubKey); err != nil {
		switch {
		case errors.Is(err, maci.ErrVotingClosed):
			ErrVotingPeriodClosed.Write(w)
		case errors.Is(err, maci.ErrMessageCapReached):
			ErrMessageCapReached.Write(w)
		case errors.Is(err, maci.ErrFieldRange):
			ErrValueOutOfField.WithErr(err).Write(w)
		default:
			ErrMessageNotAccepted.WithErr(err).Write(w)
		}
		return
	}

	httpWriteJSON(w, PublishMessageResponse{
		MessageIndex: a.engine.NumMessages() - 1,
		MessageRoot:  (*types.BigInt)(a.engine.MessageRoot()),
	})
}
