package main

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/quadravote/qvnode/db"
)

func baseConfig() *Config {
	return &Config{
		DBType: db.TypePebble,
		Voting: VotingConfig{Period: time.Hour},
	}
}

func TestValidateConfig(t *testing.T) {
	c := qt.New(t)

	c.Assert(validateConfig(baseConfig()), qt.IsNil)

	cfg := baseConfig()
	cfg.DBType = "bolt"
	c.Assert(validateConfig(cfg), qt.ErrorMatches, `invalid dbtype.*`)

	cfg = baseConfig()
	cfg.Voting.Period = 0
	c.Assert(validateConfig(cfg), qt.ErrorMatches, `voting period must be positive`)
}

func TestValidateConfigMaxVotesBound(t *testing.T) {
	c := qt.New(t)

	cfg := baseConfig()
	cfg.Voting.MaxVotes = 256 // cost 65536 == bound, admissible
	c.Assert(validateConfig(cfg), qt.IsNil)

	cfg.Voting.MaxVotes = 257
	c.Assert(validateConfig(cfg), qt.ErrorMatches, `voting maxvotes .* too large.*`)

	// The square of 2^32 wraps uint64 to 0; the check must still reject it.
	cfg.Voting.MaxVotes = 1 << 32
	c.Assert(validateConfig(cfg), qt.ErrorMatches, `voting maxvotes .* too large.*`)
}
