package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultAPIHost             = "0.0.0.0"
	defaultAPIPort             = 9090
	defaultLogLevel            = "info"
	defaultLogOutput           = "stdout"
	defaultDatadir             = ".maci-node" // Will be prefixed with user's home directory
	defaultStateTreeDepth      = 10
	defaultMessageTreeDepth    = 10
	defaultVoteOptionTreeDepth = 2
	defaultMessageBatchSize    = 4
	defaultTallyBatchSize      = 4
	defaultSignUpDuration      = time.Hour
	defaultVotingDuration      = time.Hour
	defaultTokenDecimals       = 18
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	Round   RoundConfig
	API     APIConfig
	Circuit CircuitConfig
	Log     LogConfig
	Datadir string
}

// RoundConfig holds the round and engine parameters
type RoundConfig struct {
	Owner               string        `mapstructure:"owner"`
	Coordinator         string        `mapstructure:"coordinator"`
	CoordinatorPubKeyX  string        `mapstructure:"pubkeyx"`
	CoordinatorPubKeyY  string        `mapstructure:"pubkeyy"`
	StateTreeDepth      int           `mapstructure:"statedepth"`
	MessageTreeDepth    int           `mapstructure:"messagedepth"`
	VoteOptionTreeDepth int           `mapstructure:"votedepth"`
	MessageBatchSize    uint64        `mapstructure:"messagebatch"`
	TallyBatchSize      uint64        `mapstructure:"tallybatch"`
	SignUpDuration      time.Duration `mapstructure:"signupduration"`
	VotingDuration      time.Duration `mapstructure:"votingduration"`
	TokenDecimals       uint8         `mapstructure:"decimals"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Seed string `mapstructure:"seed"`
}

// CircuitConfig holds the verifying key file locations
type CircuitConfig struct {
	BatchVKey string `mapstructure:"batchvkey"`
	TallyVKey string `mapstructure:"tallyvkey"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	// Set up default values
	// Get user's home directory for default datadir
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)
	v.SetDefault("round.statedepth", defaultStateTreeDepth)
	v.SetDefault("round.messagedepth", defaultMessageTreeDepth)
	v.SetDefault("round.votedepth", defaultVoteOptionTreeDepth)
	v.SetDefault("round.messagebatch", defaultMessageBatchSize)
	v.SetDefault("round.tallybatch", defaultTallyBatchSize)
	v.SetDefault("round.signupduration", defaultSignUpDuration)
	v.SetDefault("round.votingduration", defaultVotingDuration)
	v.SetDefault("round.decimals", defaultTokenDecimals)

	// Configure flags
	flag.String("round.owner", "", "round owner address (required)")
	flag.StringP("round.coordinator", "c", "", "coordinator address (required)")
	flag.String("round.pubkeyx", "", "coordinator public key, x coordinate (required)")
	flag.String("round.pubkeyy", "", "coordinator public key, y coordinate (required)")
	flag.Int("round.statedepth", defaultStateTreeDepth, "state tree depth")
	flag.Int("round.messagedepth", defaultMessageTreeDepth, "message tree depth")
	flag.Int("round.votedepth", defaultVoteOptionTreeDepth, "vote option tree depth")
	flag.Uint64("round.messagebatch", defaultMessageBatchSize, "message processing batch size")
	flag.Uint64("round.tallybatch", defaultTallyBatchSize, "tally batch size")
	flag.Duration("round.signupduration", defaultSignUpDuration, "sign-up phase duration (0 enables debug mode)")
	flag.Duration("round.votingduration", defaultVotingDuration, "voting phase duration (0 enables debug mode)")
	flag.Uint8("round.decimals", defaultTokenDecimals, "token decimal places")
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.String("api.seed", "", "seed for the coordinator API auth token (empty disables)")
	flag.String("circuit.batchvkey", "", "message batch circuit verifying key file (required)")
	flag.String("circuit.tallyvkey", "", "tally circuit verifying key file (required)")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database and storage files")

	// Configure usage information
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "maci-coordinator v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: maci-coordinator [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, MACI_ROUND_COORDINATOR or MACI_API_HOST\n")
	}

	// Parse flags
	flag.CommandLine.SortFlags = false
	flag.Parse()

	// Configure Viper to use environment variables
	v.SetEnvPrefix("MACI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	// Create config struct
	cfg := &Config{}

	// Unmarshal configuration into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if !common.IsHexAddress(cfg.Round.Owner) {
		return fmt.Errorf("valid owner address is required (use --round.owner or MACI_ROUND_OWNER)")
	}
	if !common.IsHexAddress(cfg.Round.Coordinator) {
		return fmt.Errorf("valid coordinator address is required (use --round.coordinator or MACI_ROUND_COORDINATOR)")
	}
	if _, ok := new(big.Int).SetString(cfg.Round.CoordinatorPubKeyX, 10); !ok {
		return fmt.Errorf("valid coordinator public key x coordinate is required (use --round.pubkeyx)")
	}
	if _, ok := new(big.Int).SetString(cfg.Round.CoordinatorPubKeyY, 10); !ok {
		return fmt.Errorf("valid coordinator public key y coordinate is required (use --round.pubkeyy)")
	}
	if cfg.Circuit.BatchVKey == "" || cfg.Circuit.TallyVKey == "" {
		return fmt.Errorf("verifying key files are required (use --circuit.batchvkey and --circuit.tallyvkey)")
	}
	return nil
}
