// Package config provides configuration loading and structs for the otoshimono server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Matching MatchingConfig `yaml:"matching"`
	Email    EmailConfig    `yaml:"email"`
	Intake   IntakeConfig   `yaml:"intake"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// CORSAllowedOrigins is empty by default, which rejects cross-origin browsers.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	// RateLimitRequests per RateLimitWindow per client IP on /api/v1.
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
	RateLimitDisabled bool          `yaml:"rate_limit_disabled"`
}

// StorageConfig holds paths for the database and the item search index.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	SearchIndexPath string `yaml:"search_index_path"`
}

// MatchWeights is the weight table of the similarity scorer.
// The weights must sum to 100 so a perfect match scores exactly 100.
type MatchWeights struct {
	Category float64 `yaml:"category" json:"category"`
	Keywords float64 `yaml:"keywords" json:"keywords"`
	Location float64 `yaml:"location" json:"location"`
	Recency  float64 `yaml:"recency" json:"recency"`
	Distance float64 `yaml:"distance" json:"distance"`
}

// Sum returns the maximum score the table can award.
func (w MatchWeights) Sum() float64 {
	return w.Category + w.Keywords + w.Location + w.Recency + w.Distance
}

// MatchingConfig holds the tunable constants of the matching engine.
type MatchingConfig struct {
	NotifyThreshold      int                      `yaml:"notify_threshold"`
	EmailThreshold       int                      `yaml:"email_threshold"`
	CandidateLimit       int                      `yaml:"candidate_limit"`
	TopN                 int                      `yaml:"top_n"`
	RecencyWindow        time.Duration            `yaml:"recency_window"`
	CampusRecencyWindows map[string]time.Duration `yaml:"campus_recency_windows"`
	MaxDistanceKm        float64                  `yaml:"max_distance_km"`
	Weights              MatchWeights             `yaml:"weights"`
}

// MaxRecencyWindow returns the longest recency window across the global and per-campus settings.
func (m *MatchingConfig) MaxRecencyWindow() time.Duration {
	longest := m.RecencyWindow
	for _, w := range m.CampusRecencyWindows {
		longest = max(longest, w)
	}
	return longest
}

// RecencyWindowFor returns the recency window for a campus, falling back to the global window.
func (m *MatchingConfig) RecencyWindowFor(campusID string) time.Duration {
	if w, ok := m.CampusRecencyWindows[campusID]; ok && w > 0 {
		return w
	}
	return m.RecencyWindow
}

// Validate checks that the matching constants are usable.
func (m *MatchingConfig) Validate() error {
	if sum := m.Weights.Sum(); sum < 99.999 || sum > 100.001 {
		return fmt.Errorf("matching weights must sum to 100, got %g", sum)
	}
	if m.NotifyThreshold < 0 || m.NotifyThreshold > 100 {
		return fmt.Errorf("notify_threshold must be within 0..100, got %d", m.NotifyThreshold)
	}
	if m.EmailThreshold < m.NotifyThreshold || m.EmailThreshold > 100 {
		return fmt.Errorf("email_threshold must be within notify_threshold..100, got %d", m.EmailThreshold)
	}
	if m.CandidateLimit <= 0 {
		return fmt.Errorf("candidate_limit must be positive, got %d", m.CandidateLimit)
	}
	if m.TopN <= 0 {
		return fmt.Errorf("top_n must be positive, got %d", m.TopN)
	}
	if m.RecencyWindow <= 0 {
		return fmt.Errorf("recency_window must be positive, got %s", m.RecencyWindow)
	}
	return nil
}

// EmailConfig holds SMTP settings. An empty SMTPHost disables SMTP delivery.
type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	From         string `yaml:"from"`
	FromName     string `yaml:"from_name"`
	UseTLS       *bool  `yaml:"use_tls"`
}

// UseTLSOrDefault returns whether to STARTTLS; defaults to true when unset.
func (e *EmailConfig) UseTLSOrDefault() bool {
	if e.UseTLS != nil {
		return *e.UseTLS
	}
	return true
}

// IntakeConfig holds the found-item intake directory settings.
type IntakeConfig struct {
	Directories     []string `yaml:"directories"`
	Extensions      []string `yaml:"extensions"`
	DefaultCampusID string   `yaml:"default_campus_id"`
	PostedBy        string   `yaml:"posted_by"`
}

// ArchiveConfig holds the stale-item archival job settings.
type ArchiveConfig struct {
	// Schedule is a cron spec ("@every 6h", "0 3 * * *").
	Schedule string `yaml:"schedule"`
	Disabled bool   `yaml:"disabled"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
// Returns an error if the file cannot be read or parsed, or if the result is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.SearchIndexPath = expandPath(cfg.Storage.SearchIndexPath, configDir)
	for i := range cfg.Intake.Directories {
		cfg.Intake.Directories[i] = expandPath(cfg.Intake.Directories[i], configDir)
	}

	if err := cfg.Matching.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
