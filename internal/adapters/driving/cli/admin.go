package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Maintenance operations",
	Long:  `Integrity checking, index rebuild and freshness reporting.`,
}

var adminIntegrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Check index and metadata consistency",
	Long: `Verifies that the vector index and the metadata store hold the same
number of entries and that every metadata record is complete. Detected
drift triggers an automatic rebuild.`,
	Args: cobra.NoArgs,
	RunE: runAdminIntegrity,
}

var adminRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the vector index from stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runAdminRebuild,
}

var adminFreshnessCmd = &cobra.Command{
	Use:   "freshness",
	Short: "Report the temporal distribution of the corpus",
	Args:  cobra.NoArgs,
	RunE:  runAdminFreshness,
}

func init() {
	adminCmd.AddCommand(adminIntegrityCmd)
	adminCmd.AddCommand(adminRebuildCmd)
	adminCmd.AddCommand(adminFreshnessCmd)
	rootCmd.AddCommand(adminCmd)
}

func runAdminIntegrity(cmd *cobra.Command, _ []string) error {
	if kb == nil {
		return errors.New("knowledge base not configured")
	}

	report, err := kb.IntegrityReport(context.Background())
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	cmd.Printf("Vectors:          %d\n", report.VectorCount)
	cmd.Printf("Metadata records: %d\n", report.MetadataCount)
	cmd.Printf("Invalid records:  %d\n", len(report.InvalidRecords))
	if report.Consistent {
		cmd.Println("Status:           consistent")
	} else {
		cmd.Println("Status:           drift detected")
		if report.RebuildTriggered {
			cmd.Println("Rebuild:          triggered and completed")
		}
	}
	return nil
}

func runAdminRebuild(cmd *cobra.Command, _ []string) error {
	if kb == nil {
		return errors.New("knowledge base not configured")
	}

	if err := kb.TriggerRebuild(context.Background()); err != nil {
		if errors.Is(err, domain.ErrRebuildInProgress) {
			return errors.New("a rebuild is already running")
		}
		return fmt.Errorf("rebuild failed: %w", err)
	}

	cmd.Println("Index rebuilt.")
	return nil
}

func runAdminFreshness(cmd *cobra.Command, _ []string) error {
	if kb == nil {
		return errors.New("knowledge base not configured")
	}

	report, err := kb.FreshnessReport(context.Background())
	if err != nil {
		return fmt.Errorf("freshness report failed: %w", err)
	}

	cmd.Printf("Documents: %d\n", report.Total)
	for _, bucket := range []domain.FreshnessBucket{
		domain.FreshnessRecent, domain.FreshnessAging, domain.FreshnessHistorical,
	} {
		cmd.Printf("  %-11s %d\n", string(bucket)+":", report.ByBucket[bucket])
	}
	if len(report.Outdated) > 0 {
		cmd.Println("Outdated documents:")
		for _, id := range report.Outdated {
			cmd.Printf("  %s\n", id)
		}
	}
	return nil
}
