package api

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/maci"
	"github.com/clrfund/maci-node/round"
	stg "github.com/clrfund/maci-node/storage"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host    string
	Port    int
	Engine  *maci.Engine
	Round   *round.FundingRound
	Storage *stg.Storage
	// CoordinatorSeed, when set, derives the auth token guarding the
	// coordinator endpoints. Empty disables them.
	CoordinatorSeed string
}

// API type represents the API HTTP server exposing the round and engine
// state over plain JSON endpoints.
type API struct {
	router          *chi.Mux
	engine          *maci.Engine
	round           *round.FundingRound
	storage         *stg.Storage
	coordinatorUUID *uuid.UUID
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Engine == nil || conf.Round == nil || conf.Storage == nil {
		return nil, fmt.Errorf("missing engine, round or storage instance")
	}
	a := &API{
		engine:  conf.Engine,
		round:   conf.Round,
		storage: conf.Storage,
	}

	if conf.CoordinatorSeed != "" {
		u, err := CoordinatorSeedToUUID(conf.CoordinatorSeed)
		if err != nil {
			return nil, err
		}
		a.coordinatorUUID = u
		log.Infow("coordinator API enabled", "url", fmt.Sprintf("/coordinator/%s", a.coordinatorUUID))
	}

	// Initialize router
	a.initRouter()
	go func() {
		log.Infow("Starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// CoordinatorSeedToUUID converts a coordinator seed string into the auth
// token UUID. It uses the first 16 bytes of the SHA256 hash of the seed.
func CoordinatorSeedToUUID(seed string) (*uuid.UUID, error) {
	hash := sha256.Sum256([]byte(seed))
	u, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator UUID: %w", err)
	}
	return &u, nil
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	// round and engine status endpoints
	log.Infow("register handler", "endpoint", RoundEndpoint, "method", "GET")
	a.router.Get(RoundEndpoint, a.roundStatus)
	log.Infow("register handler", "endpoint", EngineEndpoint, "method", "GET")
	a.router.Get(EngineEndpoint, a.engineStatus)
	// message endpoints
	log.Infow("register handler", "endpoint", MessagesEndpoint, "method", "POST")
	a.router.Post(MessagesEndpoint, a.publishMessage)
	// tally endpoints
	log.Infow("register handler", "endpoint", TallyEndpoint, "method", "GET")
	a.router.Get(TallyEndpoint, a.tallySummary)
	log.Infow("register handler", "endpoint", TallyResultEndpoint, "method", "GET")
	a.router.Get(TallyResultEndpoint, a.tallyResult)
	log.Infow("register handler", "endpoint", RecipientEndpoint, "method", "GET")
	a.router.Get(RecipientEndpoint, a.recipient)

	// coordinator endpoints (if enabled)
	if a.coordinatorUUID != nil {
		log.Infow("register handler", "endpoint", TallyHashEndpoint, "method", "POST")
		a.router.Post(TallyHashEndpoint, a.publishTallyHash)
	}
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
