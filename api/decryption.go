package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quadravote/qvnode/oracle"
)

// requestDecryption issues a decryption request for a closed proposal.
// POST /proposals/{proposalId}/decrypt
func (a *API) requestDecryption(w http.ResponseWriter, r *http.Request) {
	id, ok := urlProposalID(r)
	if !ok {
		ErrMalformedProposalID.Write(w)
		return
	}
	requestID, err := a.coord.RequestDecryption(id)
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &DecryptResponse{RequestID: requestID})
}

// decryptionCallback receives a decryption result exactly as delivered by
// the external mechanism.
// POST /decryption/callback
func (a *API) decryptionCallback(w http.ResponseWriter, r *http.Request) {
	cb := &oracle.Callback{}
	if err := json.NewDecoder(r.Body).Decode(cb); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if cb.RequestID == "" {
		ErrMalformedParam.With("requestId is required").Write(w)
		return
	}
	if err := a.coord.Fulfill(cb); err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// abandonRequest declares a pending decryption request dead.
// POST /decryption/{requestId}/abandon
func (a *API) abandonRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, RequestIDURLParam)
	if requestID == "" {
		ErrMalformedParam.With("requestId is required").Write(w)
		return
	}
	if err := a.coord.Abandon(requestID); err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteOK(w)
}
