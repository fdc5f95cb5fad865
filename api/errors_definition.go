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
// and they return HTTP Status 400, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound       = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody          = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedProposalID    = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed proposal ID")}
	ErrMalformedAddress       = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrMalformedCiphertext    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed ciphertext")}
	ErrProposalNotFound       = Error{Code: 40006, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("proposal not found")}
	ErrVotingClosed           = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting period has ended")}
	ErrVotingStillOpen        = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting period still open")}
	ErrAlreadyVoted           = Error{Code: 40009, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("member already voted")}
	ErrInsufficientBalance    = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("insufficient balance")}
	ErrVoteCountExceedsLimit  = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("vote count exceeds limit")}
	ErrRequestAlreadyPending  = Error{Code: 40012, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("decryption request already pending")}
	ErrUnknownRequest         = Error{Code: 40013, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown decryption request")}
	ErrRequestAlreadyFulfilled = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("decryption request already fulfilled")}
	ErrInvalidProof           = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid decryption proof")}
	ErrAlreadyDecrypted       = Error{Code: 40016, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("tally already decrypted")}
	ErrBalanceOverflow        = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("balance overflow")}
	ErrMalformedParam         = Error{Code: 40018, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
