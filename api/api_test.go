package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quadravote/qvnode/db/metadb"
	"github.com/quadravote/qvnode/decryptor"
	"github.com/quadravote/qvnode/internal/testutil"
	"github.com/quadravote/qvnode/oracle"
	"github.com/quadravote/qvnode/storage"
	"github.com/quadravote/qvnode/types"
	"github.com/quadravote/qvnode/voting"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	c := qt.New(t)

	stg := storage.New(metadb.NewTest(t), testutil.Scheme(t))
	engine := voting.NewEngine(stg, nil, 10, time.Hour)

	key, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	verifier := oracle.NewVerifier(ethcrypto.PubkeyToAddress(key.PublicKey))
	coord := decryptor.New(stg, discardClient{}, verifier)

	a := &API{engine: engine, coord: coord}
	a.initRouter()
	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	return srv
}

type discardClient struct{}

func (discardClient) RequestDecryption(*types.DecryptionRequest) error { return nil }

func doJSON(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, data
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	srv := newTestServer(t)

	status, _ := doJSON(t, http.MethodGet, srv.URL+PingEndpoint, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
}

func TestProposalLifecycleOverHTTP(t *testing.T) {
	c := qt.New(t)
	srv := newTestServer(t)
	s := testutil.Scheme(t)

	title, err := s.Encrypt(1)
	c.Assert(err, qt.IsNil)
	details, err := s.Encrypt(2)
	c.Assert(err, qt.IsNil)

	status, body := doJSON(t, http.MethodPost, srv.URL+ProposalsEndpoint, &NewProposalRequest{
		EncryptedTitle:   title,
		EncryptedDetails: details,
	})
	c.Assert(status, qt.Equals, http.StatusOK)
	created := &NewProposalResponse{}
	c.Assert(json.Unmarshal(body, created), qt.IsNil)
	c.Assert(uint64(created.ProposalID), qt.Equals, uint64(1))

	status, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/proposals/%d", srv.URL, created.ProposalID), nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	got := &ProposalResponse{}
	c.Assert(json.Unmarshal(body, got), qt.IsNil)
	c.Assert(string(got.Status), qt.Equals, "open")

	// Tally is a 404 until decrypted.
	status, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/proposals/%d/tally", srv.URL, created.ProposalID), nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)

	// Unknown proposal.
	status, _ = doJSON(t, http.MethodGet, srv.URL+"/proposals/99", nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)
}

func TestVoteOverHTTP(t *testing.T) {
	c := qt.New(t)
	srv := newTestServer(t)
	s := testutil.Scheme(t)
	member := testutil.DeterministicAddress(70)

	title, err := s.Encrypt(0)
	c.Assert(err, qt.IsNil)
	status, body := doJSON(t, http.MethodPost, srv.URL+ProposalsEndpoint, &NewProposalRequest{
		EncryptedTitle:   title,
		EncryptedDetails: title,
	})
	c.Assert(status, qt.Equals, http.StatusOK)
	created := &NewProposalResponse{}
	c.Assert(json.Unmarshal(body, created), qt.IsNil)

	status, body = doJSON(t, http.MethodPost, srv.URL+DepositEndpoint, &FundingRequest{
		Member: member.Hex(),
		Amount: 100,
	})
	c.Assert(status, qt.Equals, http.StatusOK)
	deposited := &BalanceResponse{}
	c.Assert(json.Unmarshal(body, deposited), qt.IsNil)
	c.Assert(deposited.Balance, qt.Equals, uint64(100))

	votes, err := s.Encrypt(3)
	c.Assert(err, qt.IsNil)
	status, body = doJSON(t, http.MethodPost, srv.URL+VotesEndpoint, &VoteRequest{
		ProposalID:         created.ProposalID,
		Member:             member.Hex(),
		VoteCount:          3,
		EncryptedVoteCount: votes,
	})
	c.Assert(status, qt.Equals, http.StatusOK)
	voted := &VoteResponse{}
	c.Assert(json.Unmarshal(body, voted), qt.IsNil)
	c.Assert(voted.RemainingBalance, qt.Equals, uint64(91))

	// Double vote maps to a conflict with the stable error code.
	status, body = doJSON(t, http.MethodPost, srv.URL+VotesEndpoint, &VoteRequest{
		ProposalID:         created.ProposalID,
		Member:             member.Hex(),
		VoteCount:          1,
		EncryptedVoteCount: votes,
	})
	c.Assert(status, qt.Equals, http.StatusConflict)
	apiErr := struct {
		Code int `json:"code"`
	}{}
	c.Assert(json.Unmarshal(body, &apiErr), qt.IsNil)
	c.Assert(apiErr.Code, qt.Equals, ErrAlreadyVoted.Code)
}

func TestVoteErrorMapping(t *testing.T) {
	c := qt.New(t)
	srv := newTestServer(t)
	s := testutil.Scheme(t)

	votes, err := s.Encrypt(1)
	c.Assert(err, qt.IsNil)

	// Unknown proposal.
	status, _ := doJSON(t, http.MethodPost, srv.URL+VotesEndpoint, &VoteRequest{
		ProposalID:         42,
		Member:             testutil.DeterministicAddress(71).Hex(),
		VoteCount:          1,
		EncryptedVoteCount: votes,
	})
	c.Assert(status, qt.Equals, http.StatusNotFound)

	// Malformed member address.
	status, _ = doJSON(t, http.MethodPost, srv.URL+VotesEndpoint, &VoteRequest{
		ProposalID:         1,
		Member:             "not-an-address",
		VoteCount:          1,
		EncryptedVoteCount: votes,
	})
	c.Assert(status, qt.Equals, http.StatusBadRequest)
}

func TestDecryptionSurfaceOverHTTP(t *testing.T) {
	c := qt.New(t)
	srv := newTestServer(t)
	s := testutil.Scheme(t)

	title, err := s.Encrypt(0)
	c.Assert(err, qt.IsNil)
	status, body := doJSON(t, http.MethodPost, srv.URL+ProposalsEndpoint, &NewProposalRequest{
		EncryptedTitle:      title,
		EncryptedDetails:    title,
		VotingPeriodSeconds: 1,
	})
	c.Assert(status, qt.Equals, http.StatusOK)
	created := &NewProposalResponse{}
	c.Assert(json.Unmarshal(body, created), qt.IsNil)

	// Still open.
	status, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/proposals/%d/decrypt", srv.URL, created.ProposalID), nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	// Unknown callback request id.
	status, body = doJSON(t, http.MethodPost, srv.URL+DecryptCallbackEndpoint, &oracle.Callback{
		RequestID: "never-issued",
	})
	c.Assert(status, qt.Equals, http.StatusNotFound)
	apiErr := struct {
		Code int `json:"code"`
	}{}
	c.Assert(json.Unmarshal(body, &apiErr), qt.IsNil)
	c.Assert(apiErr.Code, qt.Equals, ErrUnknownRequest.Code)
}
