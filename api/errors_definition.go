//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400 or 404 (or even 204), whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// If you notice there's a gap (say, error code 40010, 40011 and 40013 exist, 40012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
var (
	ErrResourceNotFound    = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody       = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam      = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedAddress    = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrValueOutOfField     = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("value out of the snark scalar field")}
	ErrVotingPeriodClosed  = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting period has ended")}
	ErrMessageCapReached   = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("message capacity reached")}
	ErrUnauthorized        = Error{Code: 40010, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("unauthorized")}
	ErrTallyNotVerified    = Error{Code: 40011, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("tally result not verified yet")}
	ErrRoundNotInProgress  = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("round is not in progress")}
	ErrRecipientNotFound   = Error{Code: 40013, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("recipient not found")}
	ErrMessageNotAccepted  = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("message not accepted")}
	ErrTallyHashNotAllowed = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("tally hash not accepted")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
