package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quadravote/qvnode/types"
)

// urlProposalID parses the proposalId URL parameter.
func urlProposalID(r *http.Request) (types.ProposalID, bool) {
	raw := chi.URLParam(r, ProposalURLParam)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return types.ProposalID(id), true
}

// newProposal creates a proposal from two ciphertext handles.
// POST /proposals
func (a *API) newProposal(w http.ResponseWriter, r *http.Request) {
	req := &NewProposalRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.EncryptedTitle == nil || req.EncryptedDetails == nil {
		ErrMalformedBody.With("encryptedTitle and encryptedDetails are required").Write(w)
		return
	}
	p, err := a.engine.CreateProposal(req.EncryptedTitle, req.EncryptedDetails,
		time.Duration(req.VotingPeriodSeconds)*time.Second)
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &NewProposalResponse{ProposalID: p.ID, EndTime: p.EndTime})
}

// listProposals returns all proposal ids in creation order.
// GET /proposals
func (a *API) listProposals(w http.ResponseWriter, _ *http.Request) {
	ids, err := a.engine.ListProposals()
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProposalListResponse{Proposals: ids})
}

// proposal returns a proposal with its derived lifecycle status.
// GET /proposals/{proposalId}
func (a *API) proposal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlProposalID(r)
	if !ok {
		ErrMalformedProposalID.Write(w)
		return
	}
	p, err := a.engine.Proposal(id)
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ProposalResponse{Proposal: p, Status: p.Status(time.Now())})
}

// tally returns the decrypted tallies, or 404 while they are unknown.
// GET /proposals/{proposalId}/tally
func (a *API) tally(w http.ResponseWriter, r *http.Request) {
	id, ok := urlProposalID(r)
	if !ok {
		ErrMalformedProposalID.Write(w)
		return
	}
	p, err := a.engine.Proposal(id)
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	if p.DecryptedVoteCount == nil || p.DecryptedCostSum == nil {
		ErrResourceNotFound.With("tally not yet decrypted").Write(w)
		return
	}
	httpWriteJSON(w, &TallyResponse{
		ProposalID: id,
		VoteCount:  *p.DecryptedVoteCount,
		CostSum:    *p.DecryptedCostSum,
	})
}
