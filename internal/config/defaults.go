package config

import "time"

// Defaults of the matching engine.
const (
	DefaultNotifyThreshold = 25
	DefaultEmailThreshold  = 50
	DefaultCandidateLimit  = 50
	DefaultTopN            = 5
	// DefaultRecencyWindow matches the archival cutoff for stale items.
	DefaultRecencyWindow = 30 * 24 * time.Hour
	DefaultMaxDistanceKm = 2.0

	DefaultArchiveSchedule = "@every 6h"

	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = time.Minute
)

// DefaultMatchWeights returns the default scorer weight table.
func DefaultMatchWeights() MatchWeights {
	return MatchWeights{
		Category: 30,
		Keywords: 30,
		Location: 20,
		Recency:  15,
		Distance: 5,
	}
}

// DefaultMatchingConfig returns a matching config with every constant at its default.
func DefaultMatchingConfig() MatchingConfig {
	m := MatchingConfig{}
	m.ApplyDefaults()
	return m
}

// ApplyDefaults sets default values for any zero values in m.
// A weight table left entirely at zero is replaced by DefaultMatchWeights.
func (m *MatchingConfig) ApplyDefaults() {
	if m.NotifyThreshold == 0 {
		m.NotifyThreshold = DefaultNotifyThreshold
	}
	if m.EmailThreshold == 0 {
		m.EmailThreshold = DefaultEmailThreshold
	}
	if m.CandidateLimit == 0 {
		m.CandidateLimit = DefaultCandidateLimit
	}
	if m.TopN == 0 {
		m.TopN = DefaultTopN
	}
	if m.RecencyWindow == 0 {
		m.RecencyWindow = DefaultRecencyWindow
	}
	if m.MaxDistanceKm == 0 {
		m.MaxDistanceKm = DefaultMaxDistanceKm
	}
	if m.Weights.Sum() == 0 {
		m.Weights = DefaultMatchWeights()
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitRequests == 0 {
		cfg.Server.RateLimitRequests = DefaultRateLimitRequests
	}
	if cfg.Server.RateLimitWindow == 0 {
		cfg.Server.RateLimitWindow = DefaultRateLimitWindow
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/otoshimono/data/otoshimono.db"
	}
	if cfg.Storage.SearchIndexPath == "" {
		cfg.Storage.SearchIndexPath = "/usr/local/var/otoshimono/data/index"
	}
	cfg.Matching.ApplyDefaults()
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "Campus Lost & Found"
	}
	if cfg.Intake.Extensions == nil {
		cfg.Intake.Extensions = []string{".json", ".yaml", ".yml", ".xlsx"}
	}
	if cfg.Intake.PostedBy == "" {
		cfg.Intake.PostedBy = "lost-and-found-desk"
	}
	if cfg.Archive.Schedule == "" {
		cfg.Archive.Schedule = DefaultArchiveSchedule
	}
}
