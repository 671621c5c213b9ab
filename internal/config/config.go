// Package config defines service configuration and its loading from
// defaults, an optional YAML file and RAPPORT_* environment variables.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps how many recent event ids are remembered at intake.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// LevelLadder holds the ascending score thresholds of each level.
	LevelLadder []float64 `koanf:"level_ladder"`

	// RankLabels names the levels. Levels past the end reuse the last label.
	RankLabels []string `koanf:"rank_labels"`

	DecayEnabled     bool          `koanf:"decay_enabled"`
	DecayGracePeriod time.Duration `koanf:"decay_grace_period"`
	DecayFloor       float64       `koanf:"decay_floor"`

	// MatchMinScore is the overall score a candidate must exceed to be shortlisted.
	MatchMinScore float64 `koanf:"match_min_score"`

	// MatchDefaultProfile names the weight profile used when a request names none.
	MatchDefaultProfile string `koanf:"match_default_profile"`

	// MatchProfiles maps a profile name to factor weights.
	MatchProfiles map[string]map[string]float64 `koanf:"match_profiles"`

	// OpportunityDefaultLimit is used when a ranking request has no limit.
	OpportunityDefaultLimit int `koanf:"opportunity_default_limit"`

	// MaxOpportunityLimit caps the ranking limit.
	MaxOpportunityLimit int `koanf:"max_opportunity_limit"`

	// SegmentGate hides opportunities aimed at other segments.
	SegmentGate bool `koanf:"segment_gate"`

	// EventPoints is the value given to a zero-valued event of a known kind.
	EventPoints map[string]int64 `koanf:"event_points"`

	// LedgerBackend is memory, sqlite or postgres.
	LedgerBackend string `koanf:"ledger_backend"`
	LedgerDSN     string `koanf:"ledger_dsn"`

	// CatalogFile optionally seeds the catalog from YAML at startup.
	CatalogFile string `koanf:"catalog_file"`

	// StandingsRefresh is a cron spec for recomputing every subject.
	// Empty disables the refresher.
	StandingsRefresh string `koanf:"standings_refresh"`

	// RefreshConcurrency bounds parallel reputation computations.
	RefreshConcurrency int `koanf:"refresh_concurrency"`

	FetchMaxRetries int           `koanf:"fetch_max_retries"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		EventQueueSize:    10_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        50_000,
		MaxStandingsLimit: 100,
		LevelLadder:       []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233, 377, 610},
		RankLabels: []string{
			"Newcomer", "Explorer", "Contributor", "Collaborator", "Builder",
			"Achiever", "Mentor", "Champion", "Luminary", "Legend",
		},
		DecayEnabled:        true,
		DecayGracePeriod:    90 * 24 * time.Hour,
		DecayFloor:          0.5,
		MatchMinScore:       30,
		MatchDefaultProfile: "counselor",
		MatchProfiles: map[string]map[string]float64{
			"counselor": {
				"specialization": 0.35,
				"communication":  0.30,
				"availability":   0.20,
				"location":       0.10,
				"capacity":       0.05,
			},
			"mentor": {
				"specialization": 0.30,
				"tags":           0.20,
				"communication":  0.15,
				"availability":   0.15,
				"recency":        0.10,
				"reputation":     0.05,
				"capacity":       0.05,
			},
		},
		OpportunityDefaultLimit: 10,
		MaxOpportunityLimit:     100,
		EventPoints: map[string]int64{
			"complete_gig":      10,
			"mentor_session":    8,
			"community_post":    2,
			"peer_endorsement":  5,
			"profile_completed": 3,
			"policy_violation":  -20,
			"no_show":           -5,
		},
		LedgerBackend:      "memory",
		StandingsRefresh:   "@every 1h",
		RefreshConcurrency: 8,
		FetchMaxRetries:    2,
		BreakerFailures:    5,
		BreakerTimeout:     30 * time.Second,
		ShutdownTimeout:    10 * time.Second,
	}
}
