package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

// newVote casts a quadratic vote.
// POST /votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	req := &VoteRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if !common.IsHexAddress(req.Member) {
		ErrMalformedAddress.Withf("%q", req.Member).Write(w)
		return
	}
	if req.EncryptedVoteCount == nil {
		ErrMalformedCiphertext.With("encryptedVoteCount is required").Write(w)
		return
	}
	member := common.HexToAddress(req.Member)
	p, err := a.engine.CastVote(req.ProposalID, member, req.VoteCount, req.EncryptedVoteCount)
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	balance, err := a.engine.Balance(member)
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &VoteResponse{ProposalID: p.ID, RemainingBalance: balance})
}

// voteStatus reports whether a member voted on a proposal and, if so, the
// stored vote record.
// GET /votes/{proposalId}/address/{address}
func (a *API) voteStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlProposalID(r)
	if !ok {
		ErrMalformedProposalID.Write(w)
		return
	}
	raw := chi.URLParam(r, AddressURLParam)
	if !common.IsHexAddress(raw) {
		ErrMalformedAddress.Withf("%q", raw).Write(w)
		return
	}
	voted, err := a.engine.HasVoted(id, common.HexToAddress(raw))
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, map[string]any{"proposalId": id, "hasVoted": voted})
}
