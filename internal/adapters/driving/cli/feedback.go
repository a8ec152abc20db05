package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veralis-labs/kbindex/internal/core/domain"
)

var (
	feedbackRating    int
	feedbackQuery     string
	feedbackDocuments []string
	feedbackComment   string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback [answer-id]",
	Short: "Rate an answer",
	Long: `Records a 1-5 rating for an answer and adjusts the relevance weight of
every cited document. Low ratings demote documents faster than high
ratings promote them.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().IntVarP(&feedbackRating, "rating", "r", 0, "rating from 1 to 5 (required)")
	feedbackCmd.Flags().StringVarP(&feedbackQuery, "query", "q", "", "the question that produced the answer")
	feedbackCmd.Flags().StringSliceVarP(&feedbackDocuments, "documents", "d", nil, "IDs of documents cited by the answer")
	feedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "optional free-text comment")
	feedbackCmd.MarkFlagRequired("rating") //nolint:errcheck
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	answerID := args[0]

	if kb == nil {
		return errors.New("knowledge base not configured")
	}

	ctx := context.Background()
	err := kb.SubmitFeedback(ctx, answerID, feedbackQuery, feedbackDocuments, feedbackRating, feedbackComment)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRating) {
			return fmt.Errorf("rating must be between 1 and 5, got %d", feedbackRating)
		}
		return fmt.Errorf("recording feedback: %w", err)
	}

	cmd.Printf("Feedback recorded for answer %s (rating %d, %d documents)\n",
		answerID, feedbackRating, len(feedbackDocuments))
	return nil
}
