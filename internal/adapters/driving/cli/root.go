// Package cli provides the command-line interface for the knowledge
// base: ingestion, search, feedback and admin maintenance commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	configfile "github.com/veralis-labs/kbindex/internal/adapters/driven/config/file"
	"github.com/veralis-labs/kbindex/internal/adapters/driven/embedding/cache"
	"github.com/veralis-labs/kbindex/internal/adapters/driven/embedding/openai"
	"github.com/veralis-labs/kbindex/internal/adapters/driven/extraction"
	"github.com/veralis-labs/kbindex/internal/adapters/driven/storage/sqlite"
	"github.com/veralis-labs/kbindex/internal/adapters/driven/vector"
	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/core/ports/driving"
	"github.com/veralis-labs/kbindex/internal/core/services"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Persistent flags.
var (
	flagVerbose bool
	flagConfig  string
	flagDataDir string
)

// Wired services, populated by setupServices before a command runs.
var (
	cfg       domain.Config
	store     *sqlite.Store
	kb        driving.KnowledgeBase
	extractor driven.TextExtractor
)

var rootCmd = &cobra.Command{
	Use:   "kbindex",
	Short: "Knowledge base vector index and retrieval engine",
	Long: `kbindex indexes documents into a content-addressed knowledge base and
answers queries with semantic search, freshness and feedback reranking.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return setupServices()
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return teardownServices()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default ~/.kbindex/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.kbindex/data)")
}

// Execute runs the root command.
func Execute(buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}
	return rootCmd.Execute()
}

// setupServices loads configuration and wires the knowledge base.
func setupServices() error {
	configPath := flagConfig
	if configPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configPath = filepath.Join(home, ".kbindex", "config.toml")
		}
	}

	loaded, err := configfile.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}

	store, err = sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	dataDir := filepath.Dir(store.Path())
	index, err := vector.New(filepath.Join(dataDir, cfg.Storage.SnapshotFile))
	if err != nil {
		store.Close()
		return fmt.Errorf("opening vector index: %w", err)
	}

	embedder, err := buildEmbedder()
	if err != nil {
		store.Close()
		return err
	}

	extractor = extraction.NewPlaintextExtractor()

	kb = services.NewKnowledgeBase(
		cfg,
		store.DocumentStore(),
		store.MetadataStore(),
		index,
		embedder,
		store.FeedbackStore(),
		extraction.NewHeuristicEntityExtractor(),
	)
	return nil
}

// buildEmbedder creates the cached embedding provider from the
// environment. A missing API key leaves the embedder nil; search then
// runs lexical-only and ingestion of new content fails cleanly.
func buildEmbedder() (driven.EmbeddingProvider, error) {
	apiKey := os.Getenv("KBINDEX_OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		logger.Debug("No embedding API key configured, semantic search disabled")
		return nil, nil
	}

	provider, err := openai.New(openai.Config{
		APIKey:  apiKey,
		BaseURL: os.Getenv("KBINDEX_OPENAI_BASE_URL"),
		Model:   os.Getenv("KBINDEX_EMBEDDING_MODEL"),
		Timeout: cfg.Provider.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	cached, err := cache.New(provider, store.EmbeddingCacheStore(), cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return cached, nil
}

// teardownServices flushes and closes everything setupServices opened.
func teardownServices() error {
	var firstErr error
	if kb != nil {
		if err := kb.Close(); err != nil {
			firstErr = err
		}
		kb = nil
	}
	if store != nil {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		store = nil
	}
	return firstErr
}
