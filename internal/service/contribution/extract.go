package contribution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// RequestExtraction runs the vision gateway over a PENDING contribution.
// The contribution moves to PROCESSING for the duration of the call; any
// gateway failure returns it to PENDING with the failure recorded, so it
// never sticks in PROCESSING.
func (s *Service) RequestExtraction(ctx context.Context, id uuid.UUID) (*domain.ImageContribution, error) {
	c, err := s.contribs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.StartProcessing(); err != nil {
		return nil, err
	}
	if err := s.contribs.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	if !s.gateway.Available(ctx) {
		return nil, s.failExtraction(ctx, c, "extraction service unavailable", domain.ErrExtractionUnavailable)
	}

	res, err := s.gateway.Extract(ctx, c.ImageURL)
	if err != nil {
		return nil, s.failExtraction(ctx, c, fmt.Sprintf("extraction failed: %s", err), err)
	}

	c.ApplyExtraction(res.Timings, res.Confidence)
	if err := s.contribs.Update(ctx, c); err != nil {
		// Best effort: put the row back to PENDING rather than leave it
		// persisted as PROCESSING.
		_ = s.failExtraction(ctx, c, "extraction result could not be saved", err)
		return nil, fmt.Errorf("save extraction: %w", err)
	}

	s.log.InfoContext(ctx, "extraction applied",
		slog.String("contribution_id", c.ID.String()),
		slog.Int("destinations", len(c.ExtractedTimings)),
		slog.Float64("confidence", res.Confidence),
		slog.Bool("requires_review", c.RequiresManualReview),
	)
	return c, nil
}

// failExtraction reverts the contribution to PENDING with the failure
// message persisted, then surfaces the original error.
func (s *Service) failExtraction(ctx context.Context, c *domain.ImageContribution, message string, cause error) error {
	if err := c.RevertToPending(message); err != nil {
		return err
	}
	if err := s.contribs.Update(ctx, c); err != nil {
		s.log.WarnContext(ctx, "contribution stuck in PROCESSING",
			slog.String("contribution_id", c.ID.String()), slog.Any("error", err))
		return fmt.Errorf("revert to pending: %w", err)
	}

	s.log.WarnContext(ctx, "extraction failed",
		slog.String("contribution_id", c.ID.String()),
		slog.String("message", message),
	)
	return cause
}
