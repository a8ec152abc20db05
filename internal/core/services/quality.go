package services

import (
	"context"
	"fmt"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
	"github.com/veralis-labs/kbindex/internal/logger"
)

// QualityGate validates a candidate document before indexing.
// It evaluates every rule and reports all failures, not just the first.
type QualityGate struct {
	cfg       domain.QualityConfig
	extractor driven.EntityExtractor
}

// NewQualityGate creates a quality gate. The entity extractor is
// optional; when nil the entity rule is skipped.
func NewQualityGate(cfg domain.QualityConfig, extractor driven.EntityExtractor) *QualityGate {
	return &QualityGate{cfg: cfg, extractor: extractor}
}

// Check validates raw text and metadata. Returns a
// *domain.QualityGateError listing every failed rule, or nil when the
// document passes.
func (g *QualityGate) Check(ctx context.Context, rawText string, meta domain.DocumentMetadata) error {
	var failures []string

	if len(rawText) < g.cfg.MinChars {
		failures = append(failures,
			fmt.Sprintf("text too short: %d chars, minimum %d", len(rawText), g.cfg.MinChars))
	}

	if meta.Filename == "" {
		failures = append(failures, "missing required metadata: filename")
	}
	if meta.Category == "" {
		failures = append(failures, "missing required metadata: category")
	}
	if meta.Year == 0 {
		failures = append(failures, "missing required metadata: year")
	}

	if g.extractor != nil {
		count, err := g.extractor.CountEntities(ctx, rawText)
		if err != nil {
			// Extraction is an external collaborator; a failure there
			// must not reject the document on its own.
			logger.Warn("Entity extraction failed, skipping entity rule: %v", err)
		} else if count < g.cfg.MinEntities {
			failures = append(failures,
				fmt.Sprintf("too few entities: %d found, minimum %d", count, g.cfg.MinEntities))
		}
	}

	if len(failures) > 0 {
		return &domain.QualityGateError{Failures: failures}
	}
	return nil
}
