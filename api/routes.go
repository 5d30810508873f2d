package api

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Round endpoints
	RoundEndpoint = "/round" // GET: Funding round status

	// Engine endpoints
	EngineEndpoint = "/maci" // GET: Accumulator and phase status

	// Message endpoints
	MessagesEndpoint = "/messages" // POST: Publish an encrypted command

	// Tally endpoints
	VoteOptionURLParam  = "voteOptionIndex"                                       // URL parameter for vote option index
	TallyEndpoint       = "/tally"                                                // GET: Tally summary
	TallyResultEndpoint = TallyEndpoint + "/{" + VoteOptionURLParam + "}"         // GET: Verified result for one option
	RecipientEndpoint   = "/recipients/{" + VoteOptionURLParam + "}"              // GET: Recipient payout status
	CoordinatorURLParam = "uuid"                                                  // URL parameter for coordinator auth token
	TallyHashEndpoint   = "/coordinator/{" + CoordinatorURLParam + "}/tally-hash" // POST: Publish the tally artifact hash
)

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
