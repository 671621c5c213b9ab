package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "RAPPORT_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RAPPORT_CONFIG is set
//  3. env (prefix RAPPORT_)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RAPPORT_QUEUE_SIZE -> queue_size. Underscores are kept to match the
	// koanf tags, so nested keys cannot be set from the environment.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	// lists and profiles given by the user replace the defaults instead of
	// being merged into them
	if k.Exists("level_ladder") {
		cfg.LevelLadder = nil
	}
	if k.Exists("rank_labels") {
		cfg.RankLabels = nil
	}
	if k.Exists("match_profiles") {
		cfg.MatchProfiles = nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Addr) == "" {
		add("addr must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		add("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.EventQueueSize < 1 {
		add("queue_size must be positive")
	}
	if c.MaxStandingsLimit < 1 {
		add("max_standings_limit must be positive")
	}
	if len(c.LevelLadder) == 0 || c.LevelLadder[0] != 0 {
		add("level_ladder must start at 0")
	}
	for i := 1; i < len(c.LevelLadder); i++ {
		if c.LevelLadder[i] <= c.LevelLadder[i-1] {
			add("level_ladder must be strictly increasing at index %d", i)
			break
		}
	}
	if len(c.RankLabels) == 0 {
		add("rank_labels must not be empty")
	}
	if c.DecayGracePeriod < 0 {
		add("decay_grace_period must not be negative")
	}
	if c.DecayFloor < 0 || c.DecayFloor > 1 || math.IsNaN(c.DecayFloor) {
		add("decay_floor must be within [0,1]")
	}
	if c.MatchMinScore < 0 || c.MatchMinScore > 100 {
		add("match_min_score must be within [0,100]")
	}
	if _, ok := c.MatchProfiles[c.MatchDefaultProfile]; !ok {
		add("match_default_profile %q is not a configured profile", c.MatchDefaultProfile)
	}
	for name, weights := range c.MatchProfiles {
		for factor, w := range weights {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				add("match_profiles.%s.%s must be a non-negative number", name, factor)
			}
		}
	}
	if c.OpportunityDefaultLimit < 1 || c.MaxOpportunityLimit < c.OpportunityDefaultLimit {
		add("opportunity limits must satisfy 1 <= default <= max")
	}
	switch c.LedgerBackend {
	case "memory", "sqlite":
	case "postgres":
		if c.LedgerDSN == "" {
			add("ledger_dsn is required for postgres")
		}
	default:
		add("ledger_backend must be memory, sqlite or postgres, got %q", c.LedgerBackend)
	}
	if c.FetchMaxRetries < 0 {
		add("fetch_max_retries must not be negative")
	}
	if c.BreakerFailures < 1 {
		add("breaker_failures must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
