package main

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/clrfund/maci-node/api"
	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/maci"
	"github.com/clrfund/maci-node/prover"
	"github.com/clrfund/maci-node/registry"
	"github.com/clrfund/maci-node/round"
	"github.com/clrfund/maci-node/storage"
	"github.com/clrfund/maci-node/token"
	"github.com/clrfund/maci-node/types"
)

// Services holds all the running components
type Services struct {
	Storage  *storage.Storage
	Ledger   *token.Ledger
	Registry *registry.Registry
	Round    *round.FundingRound
	Engine   *maci.Engine
	API      *api.API
}

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting maci-coordinator", "version", Version)

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup services
	services, err := setupServices(cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// roundAddress derives the round's own token account from the owner address.
func roundAddress(owner common.Address) common.Address {
	hash := sha256.Sum256(append(owner.Bytes(), []byte("funding-round")...))
	return common.BytesToAddress(hash[12:])
}

// setupServices initializes and starts all components
func setupServices(cfg *Config) (*Services, error) {
	services := &Services{}

	owner := common.HexToAddress(cfg.Round.Owner)
	coordinator := common.HexToAddress(cfg.Round.Coordinator)
	pubKeyX, _ := new(big.Int).SetString(cfg.Round.CoordinatorPubKeyX, 10)
	pubKeyY, _ := new(big.Int).SetString(cfg.Round.CoordinatorPubKeyY, 10)

	// Initialize storage database
	log.Infow("initializing storage", "datadir", cfg.Datadir, "type", db.TypePebble)
	database, err := metadb.New(db.TypePebble, cfg.Datadir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(database)

	// Token ledger and recipient registry share the database
	services.Ledger = token.New(database, cfg.Round.TokenDecimals)
	voteOptionSlots := uint64(1)
	for i := 0; i < cfg.Round.VoteOptionTreeDepth; i++ {
		voteOptionSlots *= types.VoteOptionTreeArity
	}
	services.Registry, err = registry.New(database, owner, voteOptionSlots)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recipient registry: %w", err)
	}

	// Load the circuit verifying keys
	batchVerifier, err := prover.NewGroth16VerifierFromFile("message-batch", cfg.Circuit.BatchVKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch verifying key: %w", err)
	}
	tallyVerifier, err := prover.NewGroth16VerifierFromFile("tally", cfg.Circuit.TallyVKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load tally verifying key: %w", err)
	}

	// Create the funding round
	services.Round, err = round.New(round.Config{
		Owner:       owner,
		Coordinator: coordinator,
		Address:     roundAddress(owner),
		Token:       services.Ledger,
		Recipients:  services.Registry,
		Storage:     services.Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create funding round: %w", err)
	}

	// Create the engine; the round acts as eligibility gate and credit source
	services.Engine, err = maci.New(maci.Params{
		StateTreeDepth:      cfg.Round.StateTreeDepth,
		MessageTreeDepth:    cfg.Round.MessageTreeDepth,
		VoteOptionTreeDepth: cfg.Round.VoteOptionTreeDepth,
		MessageBatchSize:    cfg.Round.MessageBatchSize,
		TallyBatchSize:      cfg.Round.TallyBatchSize,
		SignUpDuration:      cfg.Round.SignUpDuration,
		VotingDuration:      cfg.Round.VotingDuration,
		Coordinator:         coordinator,
		CoordinatorPubKey:   types.NewPubKey(pubKeyX, pubKeyY),
		BatchVerifier:       batchVerifier,
		TallyVerifier:       tallyVerifier,
		Gate:                services.Round,
		Credits:             services.Round,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	services.Round.SetEngine(services.Engine)

	// Start API service
	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API, err = api.New(&api.APIConfig{
		Host:            cfg.API.Host,
		Port:            cfg.API.Port,
		Engine:          services.Engine,
		Round:           services.Round,
		Storage:         services.Storage,
		CoordinatorSeed: cfg.API.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Info("maci-coordinator is running, ready to accept messages!")
	return services, nil
}

// shutdownServices gracefully shuts down all components
func shutdownServices(services *Services) {
	if services == nil {
		return
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
