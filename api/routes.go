package api

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Proposal endpoints
	ProposalURLParam  = "proposalId"                                   // URL parameter for proposal ID
	ProposalsEndpoint = "/proposals"                                   // GET: List proposals, POST: Create proposal
	ProposalEndpoint  = "/proposals/{" + ProposalURLParam + "}"        // GET: Get proposal with status and tallies
	TallyEndpoint     = ProposalEndpoint + "/tally"                    // GET: Get decrypted tally (404 until decrypted)
	DecryptEndpoint   = ProposalEndpoint + "/decrypt"                  // POST: Request tally decryption

	// Vote endpoints
	VotesEndpoint      = "/votes"                                                                    // POST: Cast a vote
	AddressURLParam    = "address"                                                                   // URL parameter for member address
	VoteStatusEndpoint = VotesEndpoint + "/{" + ProposalURLParam + "}/address/{" + AddressURLParam + "}" // GET: Member vote record

	// Funding endpoints
	DepositEndpoint  = "/funding/deposit"                          // POST: Credit a member balance
	WithdrawEndpoint = "/funding/withdraw"                         // POST: Debit a member balance
	BalanceEndpoint  = "/funding/{" + AddressURLParam + "}/balance" // GET: Member balance

	// Decryption endpoints
	RequestIDURLParam       = "requestId"                                               // URL parameter for request ID
	DecryptCallbackEndpoint = "/decryption/callback"                                    // POST: Verified decryption result delivery
	RequestAbandonEndpoint  = "/decryption/{" + RequestIDURLParam + "}/abandon"         // POST: Operator abandons a pending request
)
