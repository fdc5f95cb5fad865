package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quadravote/qvnode/db"
	"github.com/quadravote/qvnode/types"
)

const (
	defaultAPIHost         = "0.0.0.0"
	defaultAPIPort         = 9090
	defaultLogLevel        = "info"
	defaultLogOutput       = "stdout"
	defaultDatadir         = ".qvnode" // Will be prefixed with user's home directory
	defaultDBType          = db.TypePebble
	defaultMonitorInterval = 30 * time.Second
	defaultVotingPeriod    = 7 * 24 * time.Hour
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	API     APIConfig
	Log     LogConfig
	Voting  VotingConfig
	Datadir string
	DBType  string `mapstructure:"dbtype"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// VotingConfig holds the ledger policy configuration
type VotingConfig struct {
	Period          time.Duration `mapstructure:"period"`
	MaxVotes        uint64        `mapstructure:"maxvotes"`
	MonitorInterval time.Duration `mapstructure:"monitor"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

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
	v.SetDefault("voting.period", defaultVotingPeriod)
	v.SetDefault("voting.maxvotes", uint64(0))
	v.SetDefault("voting.monitor", defaultMonitorInterval)
	v.SetDefault("datadir", defaultDatadirPath)
	v.SetDefault("dbtype", defaultDBType)

	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.Duration("voting.period", defaultVotingPeriod, "voting period for new proposals (i.e 72h)")
	flag.Uint64("voting.maxvotes", 0, "maximum votes per member per proposal (0 uses the built-in default)")
	flag.Duration("voting.monitor", defaultMonitorInterval, "closed-proposal monitor interval (0 disables)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database files")
	flag.String("dbtype", defaultDBType, fmt.Sprintf("database backend (%s, %s or %s)",
		db.TypePebble, db.TypeLevelDB, db.TypeInMemory))

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "qvnode v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: qvnode [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, QVNODE_API_HOST or QVNODE_LOG_LEVEL\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	// Configure Viper to use environment variables
	v.SetEnvPrefix("QVNODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	switch cfg.DBType {
	case db.TypePebble, db.TypeLevelDB, db.TypeInMemory:
	default:
		return fmt.Errorf("invalid dbtype %q", cfg.DBType)
	}
	if cfg.Voting.Period <= 0 {
		return fmt.Errorf("voting period must be positive")
	}
	// Division instead of mv*mv, which wraps for mv >= 2^32.
	if mv := cfg.Voting.MaxVotes; mv > 0 && mv > types.MaxTallyValue/mv {
		return fmt.Errorf("voting maxvotes %d too large: its quadratic cost exceeds the tally bound %d", mv, types.MaxTallyValue)
	}
	return nil
}
