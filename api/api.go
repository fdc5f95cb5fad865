// Package api exposes the quadratic voting ledger over HTTP: proposal
// creation and listing, vote submission, member funding, and the decryption
// request/callback surfaces.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quadravote/qvnode/decryptor"
	"github.com/quadravote/qvnode/log"
	"github.com/quadravote/qvnode/voting"
)

const maxRequestBodyLog = 512 // Maximum length of request body to log

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host        string
	Port        int
	Engine      *voting.Engine
	Coordinator *decryptor.Coordinator
}

// API type represents the API HTTP server.
type API struct {
	router *chi.Mux
	engine *voting.Engine
	coord  *decryptor.Coordinator
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Engine == nil {
		return nil, fmt.Errorf("missing voting engine instance")
	}
	if conf.Coordinator == nil {
		return nil, fmt.Errorf("missing decryption coordinator instance")
	}
	a := &API{
		engine: conf.Engine,
		coord:  conf.Coordinator,
	}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes.
func (a *API) Router() *chi.Mux {
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})
	// proposal endpoints
	log.Infow("register handler", "endpoint", ProposalsEndpoint, "method", "POST")
	a.router.Post(ProposalsEndpoint, a.newProposal)
	log.Infow("register handler", "endpoint", ProposalsEndpoint, "method", "GET")
	a.router.Get(ProposalsEndpoint, a.listProposals)
	log.Infow("register handler", "endpoint", ProposalEndpoint, "method", "GET")
	a.router.Get(ProposalEndpoint, a.proposal)
	log.Infow("register handler", "endpoint", TallyEndpoint, "method", "GET")
	a.router.Get(TallyEndpoint, a.tally)
	// vote endpoints
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.newVote)
	log.Infow("register handler", "endpoint", VoteStatusEndpoint, "method", "GET")
	a.router.Get(VoteStatusEndpoint, a.voteStatus)
	// funding endpoints
	log.Infow("register handler", "endpoint", DepositEndpoint, "method", "POST")
	a.router.Post(DepositEndpoint, a.deposit)
	log.Infow("register handler", "endpoint", WithdrawEndpoint, "method", "POST")
	a.router.Post(WithdrawEndpoint, a.withdraw)
	log.Infow("register handler", "endpoint", BalanceEndpoint, "method", "GET")
	a.router.Get(BalanceEndpoint, a.balance)
	// decryption endpoints
	log.Infow("register handler", "endpoint", DecryptEndpoint, "method", "POST")
	a.router.Post(DecryptEndpoint, a.requestDecryption)
	log.Infow("register handler", "endpoint", DecryptCallbackEndpoint, "method", "POST")
	a.router.Post(DecryptCallbackEndpoint, a.decryptionCallback)
	log.Infow("register handler", "endpoint", RequestAbandonEndpoint, "method", "POST")
	a.router.Post(RequestAbandonEndpoint, a.abandonRequest)
}
