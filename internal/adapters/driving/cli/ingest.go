package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driving"
)

var (
	ingestCategory string
	ingestYear     int
	ingestForce    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Index documents into the knowledge base",
	Long: `Extracts text from the given files, runs the quality gate and indexes
the content. Already-indexed content is detected by hash and skipped
unless --force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestCategory, "category", "c", "", "override document category")
	ingestCmd.Flags().IntVarP(&ingestYear, "year", "y", 0, "override publication year")
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-index even if content is already known")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if kb == nil {
		return errors.New("knowledge base not configured")
	}

	ctx := context.Background()
	var failed int

	for _, path := range args {
		if err := ingestOne(ctx, cmd, path); err != nil {
			cmd.PrintErrf("  %s: %v\n", path, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func ingestOne(ctx context.Context, cmd *cobra.Command, path string) error {
	text, meta, err := extractor.Extract(ctx, path)
	if err != nil {
		return err
	}

	if ingestCategory != "" {
		meta.Category = ingestCategory
	}
	if ingestYear != 0 {
		meta.Year = ingestYear
	}

	result, err := kb.Ingest(ctx, text, meta, driving.IngestOptions{ForceUpdate: ingestForce})
	if err != nil {
		var dup *domain.DuplicateError
		if errors.As(err, &dup) {
			cmd.Printf("  %s: already indexed as %s (use --force to re-index)\n", path, dup.ExistingID)
			return nil
		}
		var gate *domain.QualityGateError
		if errors.As(err, &gate) {
			return fmt.Errorf("rejected by quality gate: %v", gate.Failures)
		}
		return err
	}

	outdatedNote := ""
	if result.Outdated {
		outdatedNote = " (outdated)"
	}
	cmd.Printf("  %s: indexed as %s, %d chunks, freshness %.2f%s\n",
		path, result.DocumentID, result.ChunkCount, result.FreshnessScore, outdatedNote)
	return nil
}
