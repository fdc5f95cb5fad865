package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quadravote/qvnode/crypto/homomorphic"
	"github.com/quadravote/qvnode/log"
	"github.com/quadravote/qvnode/types"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// fromDomainError maps a domain error to its API error, preserving the
// wrapped context as the message suffix.
func fromDomainError(err error) Error {
	switch {
	case errors.Is(err, types.ErrProposalNotFound):
		return ErrProposalNotFound
	case errors.Is(err, types.ErrVotingClosed):
		return ErrVotingClosed
	case errors.Is(err, types.ErrVotingStillOpen):
		return ErrVotingStillOpen
	case errors.Is(err, types.ErrAlreadyVoted):
		return ErrAlreadyVoted
	case errors.Is(err, types.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, types.ErrVoteCountExceedsLimit):
		return ErrVoteCountExceedsLimit
	case errors.Is(err, types.ErrRequestAlreadyPending):
		return ErrRequestAlreadyPending
	case errors.Is(err, types.ErrUnknownRequest):
		return ErrUnknownRequest
	case errors.Is(err, types.ErrAlreadyFulfilled):
		return ErrRequestAlreadyFulfilled
	case errors.Is(err, types.ErrInvalidProof):
		return ErrInvalidProof
	case errors.Is(err, types.ErrAlreadyDecrypted):
		return ErrAlreadyDecrypted
	case errors.Is(err, types.ErrOverflow):
		return ErrBalanceOverflow
	case errors.Is(err, homomorphic.ErrMalformedCiphertext):
		return ErrMalformedCiphertext
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
