package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

// deposit credits a member's funding balance.
// POST /funding/deposit
func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	req := &FundingRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if !common.IsHexAddress(req.Member) {
		ErrMalformedAddress.Withf("%q", req.Member).Write(w)
		return
	}
	if req.Amount == 0 {
		ErrMalformedParam.With("amount must be positive").Write(w)
		return
	}
	balance, err := a.engine.Deposit(common.HexToAddress(req.Member), req.Amount)
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &BalanceResponse{Member: req.Member, Balance: balance})
}

// withdraw debits a member's funding balance.
// POST /funding/withdraw
func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	req := &FundingRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if !common.IsHexAddress(req.Member) {
		ErrMalformedAddress.Withf("%q", req.Member).Write(w)
		return
	}
	if req.Amount == 0 {
		ErrMalformedParam.With("amount must be positive").Write(w)
		return
	}
	balance, err := a.engine.Withdraw(common.HexToAddress(req.Member), req.Amount)
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &BalanceResponse{Member: req.Member, Balance: balance})
}

// balance returns a member's funding balance.
// GET /funding/{address}/balance
func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, AddressURLParam)
	if !common.IsHexAddress(raw) {
		ErrMalformedAddress.Withf("%q", raw).Write(w)
		return
	}
	balance, err := a.engine.Balance(common.HexToAddress(raw))
	if err != nil {
		fromDomainError(err).Write(w)
		return
	}
	httpWriteJSON(w, &BalanceResponse{Member: raw, Balance: balance})
}
