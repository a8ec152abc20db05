// Package file loads the typed knowledge-base configuration from a
// TOML file, overlaying explicit values onto the documented defaults.
package file

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

// fileConfig is the TOML schema. Pointer fields distinguish "absent"
// from "zero", so only values the user actually wrote override the
// defaults.
type fileConfig struct {
	Storage struct {
		DataDir      *string `toml:"data_dir"`
		SnapshotFile *string `toml:"snapshot_file"`
	} `toml:"storage"`

	Freshness struct {
		RecentYears *int `toml:"recent_years"`
		AgingYears  *int `toml:"aging_years"`
	} `toml:"freshness"`

	Quality struct {
		MinChars    *int `toml:"min_chars"`
		MinEntities *int `toml:"min_entities"`
	} `toml:"quality"`

	Chunking struct {
		Size    *int `toml:"size"`
		Overlap *int `toml:"overlap"`
	} `toml:"chunking"`

	Rerank struct {
		Semantic       *float64 `toml:"semantic"`
		Freshness      *float64 `toml:"freshness"`
		Feedback       *float64 `toml:"feedback"`
		Lexical        *float64 `toml:"lexical"`
		CandidateLimit *int     `toml:"candidate_limit"`
	} `toml:"rerank"`

	Provider struct {
		RequestsPerSecond *float64 `toml:"requests_per_second"`
		MaxConcurrent     *int     `toml:"max_concurrent"`
		TimeoutSeconds    *int     `toml:"timeout_seconds"`
		MaxRetries        *int     `toml:"max_retries"`
		CacheSize         *int     `toml:"cache_size"`
	} `toml:"provider"`

	Scheduler struct {
		Enabled                  *bool `toml:"enabled"`
		IntegrityIntervalMinutes *int  `toml:"integrity_interval_minutes"`
	} `toml:"scheduler"`
}

// Load reads the config file at path and overlays it onto the
// defaults. A missing file yields the defaults unchanged; a malformed
// file is an error.
func Load(path string) (domain.Config, error) {
	cfg := domain.DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	overlay(&cfg, &fc)
	return cfg, nil
}

// overlay copies present file values onto cfg.
func overlay(cfg *domain.Config, fc *fileConfig) {
	setString(&cfg.Storage.DataDir, fc.Storage.DataDir)
	setString(&cfg.Storage.SnapshotFile, fc.Storage.SnapshotFile)

	setInt(&cfg.Freshness.RecentYears, fc.Freshness.RecentYears)
	setInt(&cfg.Freshness.AgingYears, fc.Freshness.AgingYears)

	setInt(&cfg.Quality.MinChars, fc.Quality.MinChars)
	setInt(&cfg.Quality.MinEntities, fc.Quality.MinEntities)

	setInt(&cfg.Chunking.Size, fc.Chunking.Size)
	setInt(&cfg.Chunking.Overlap, fc.Chunking.Overlap)

	setFloat(&cfg.Rerank.Semantic, fc.Rerank.Semantic)
	setFloat(&cfg.Rerank.Freshness, fc.Rerank.Freshness)
	setFloat(&cfg.Rerank.Feedback, fc.Rerank.Feedback)
	setFloat(&cfg.Rerank.Lexical, fc.Rerank.Lexical)
	setInt(&cfg.Rerank.CandidateLimit, fc.Rerank.CandidateLimit)

	setFloat(&cfg.Provider.RequestsPerSecond, fc.Provider.RequestsPerSecond)
	setInt(&cfg.Provider.MaxConcurrent, fc.Provider.MaxConcurrent)
	if fc.Provider.TimeoutSeconds != nil {
		cfg.Provider.Timeout = time.Duration(*fc.Provider.TimeoutSeconds) * time.Second
	}
	setInt(&cfg.Provider.MaxRetries, fc.Provider.MaxRetries)
	setInt(&cfg.Provider.CacheSize, fc.Provider.CacheSize)

	if fc.Scheduler.Enabled != nil {
		cfg.Scheduler.Enabled = *fc.Scheduler.Enabled
	}
	if fc.Scheduler.IntegrityIntervalMinutes != nil {
		cfg.Scheduler.IntegrityInterval = time.Duration(*fc.Scheduler.IntegrityIntervalMinutes) * time.Minute
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
