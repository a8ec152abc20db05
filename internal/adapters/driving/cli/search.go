package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

var (
	searchLimit      int
	searchJSON       bool
	searchCategories []string
	searchAllChunks  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Long: `Performs semantic search over indexed chunks, reranked by freshness,
feedback weight and lexical overlap. Falls back to lexical-only scoring
when the embedding provider is unavailable.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringSliceVarP(&searchCategories, "category", "c", nil, "restrict results to categories")
	searchCmd.Flags().BoolVar(&searchAllChunks, "all-chunks", false, "return every matching chunk instead of one per document")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if kb == nil {
		return errors.New("knowledge base not configured")
	}

	ctx := context.Background()
	opts := domain.SearchOptions{
		TopK:             searchLimit,
		Categories:       searchCategories,
		IncludeAllChunks: searchAllChunks,
	}

	response, err := kb.Search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, response)
	}

	return outputSearchTable(cmd, response)
}

func outputSearchJSON(cmd *cobra.Command, response *domain.SearchResponse) error {
	data, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, response *domain.SearchResponse) error {
	if response.Degraded {
		cmd.Printf("Warning: degraded results (%s)\n\n", response.DegradedReason)
	}

	if len(response.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range response.Results {
		r := &response.Results[i]
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Citation.Filename, r.Score)
		cmd.Printf("      %s, %d, %s\n", r.Citation.Category, r.Citation.Year, r.Citation.SourceURI)
		cmd.Printf("      %s\n", snippet(r.Text, 160))
		cmd.Println()
	}

	return nil
}

// snippet truncates text to at most n runes on a single line.
func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) > n {
		runes = append(runes[:n], '.', '.', '.')
	}
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}
