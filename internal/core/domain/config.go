package domain

import "time"

// Config is the typed configuration for the knowledge base.
// Every tunable is enumerated here; there are no dynamic config maps.
type Config struct {
	// Storage holds filesystem locations for persisted state.
	Storage StorageConfig

	// Freshness controls the decay boundaries of the freshness scorer.
	Freshness FreshnessConfig

	// Quality controls the ingestion quality gate.
	Quality QualityConfig

	// Chunking controls the fixed-size overlapping chunker.
	Chunking ChunkingConfig

	// Feedback controls the per-rating weight deltas.
	Feedback FeedbackConfig

	// Rerank controls the composite scoring weights.
	Rerank RerankConfig

	// Provider controls embedding-provider call limits.
	Provider ProviderConfig

	// Scheduler controls background maintenance tasks.
	Scheduler SchedulerConfig
}

// StorageConfig holds persisted-state locations. Index snapshot and
// metadata store are independently recoverable from each other via
// rebuild.
type StorageConfig struct {
	// DataDir is the root data directory. Empty means ~/.kbindex/data.
	DataDir string

	// SnapshotFile is the index snapshot filename within DataDir.
	SnapshotFile string
}

// FreshnessConfig holds the piecewise decay boundaries.
type FreshnessConfig struct {
	// RecentYears is the age below which documents score [0.95, 1.0].
	RecentYears int

	// AgingYears is the age up to which documents score [0.5, 0.9].
	// Older documents score [0.2, 0.5] and are flagged outdated.
	AgingYears int
}

// QualityConfig holds the quality-gate thresholds.
type QualityConfig struct {
	// MinChars is the minimum raw text length.
	MinChars int

	// MinEntities is the minimum extracted-entity count.
	MinEntities int
}

// ChunkingConfig holds the chunker window parameters.
type ChunkingConfig struct {
	// Size is the chunk window in characters.
	Size int

	// Overlap is the number of characters shared between neighbours.
	Overlap int
}

// FeedbackConfig maps ratings to weight deltas. Demotions are
// deliberately stronger than promotions.
type FeedbackConfig struct {
	// RatingDeltas indexes delta by rating 1..5.
	RatingDeltas map[int]float64
}

// RerankConfig holds the composite-score weights.
type RerankConfig struct {
	// Semantic weights the similarity signal.
	Semantic float64

	// Freshness weights the document freshness score.
	Freshness float64

	// Feedback weights the normalised document weight.
	Feedback float64

	// Lexical weights the token-overlap signal.
	Lexical float64

	// CandidateLimit is the oversized ANN candidate pool size.
	CandidateLimit int
}

// ProviderConfig bounds embedding-provider I/O.
type ProviderConfig struct {
	// RequestsPerSecond caps the call rate to the provider.
	RequestsPerSecond float64

	// MaxConcurrent bounds in-flight provider calls.
	MaxConcurrent int

	// Timeout is the per-call deadline.
	Timeout time.Duration

	// MaxRetries bounds the backoff retry loop.
	MaxRetries int

	// CacheSize is the in-memory embedding-cache capacity (entries).
	CacheSize int
}

// SchedulerConfig controls the background integrity-check task.
type SchedulerConfig struct {
	// Enabled turns the background loop on.
	Enabled bool

	// IntegrityInterval is how often the integrity check runs.
	IntegrityInterval time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			SnapshotFile: "index.snapshot",
		},
		Freshness: FreshnessConfig{
			RecentYears: 2,
			AgingYears:  5,
		},
		Quality: QualityConfig{
			MinChars:    200,
			MinEntities: 3,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Feedback: FeedbackConfig{
			RatingDeltas: map[int]float64{
				1: -0.20,
				2: -0.10,
				3: 0,
				4: 0.05,
				5: 0.10,
			},
		},
		Rerank: RerankConfig{
			Semantic:       0.60,
			Freshness:      0.15,
			Feedback:       0.15,
			Lexical:        0.10,
			CandidateLimit: 50,
		},
		Provider: ProviderConfig{
			RequestsPerSecond: 10,
			MaxConcurrent:     4,
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			CacheSize:         4096,
		},
		Scheduler: SchedulerConfig{
			Enabled:           false,
			IntegrityInterval: time.Hour,
		},
	}
}
