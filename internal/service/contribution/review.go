package contribution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/domain"
	"github.com/perundhu/perundhu-backend/pkg/ctxutil"
)

const (
	msgApproved           = "Approved and processed"
	msgIntegrationPending = "Approved but integration pending"
)

// Approve settles a contribution and synchronously merges its timings into
// the schedule graph. A non-nil editedTimings replaces the extracted set
// wholesale before approval. Integration failure leaves the contribution
// APPROVED and flagged for retry; the approval itself never rolls back.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, editedTimings []domain.ExtractedTiming) (*domain.ImageContribution, error) {
	actor, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.NewValidationError("actor", "acting admin is required")
	}

	c, err := s.contribs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if editedTimings != nil {
		if err := c.ReplaceTimings(editedTimings); err != nil {
			return nil, err
		}
	}
	if err := c.Approve(actor, time.Now()); err != nil {
		return nil, err
	}

	msg := msgApproved
	c.ValidationMessage = &msg
	if err := s.contribs.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("approve contribution: %w", err)
	}

	return s.integrate(ctx, c)
}

// Reject settles a contribution with a reason. Valid from any non-terminal
// state.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.ImageContribution, error) {
	actor, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.NewValidationError("actor", "acting admin is required")
	}

	c, err := s.contribs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.Reject(actor, reason, time.Now()); err != nil {
		return nil, err
	}
	if err := s.contribs.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("reject contribution: %w", err)
	}

	s.log.InfoContext(ctx, "contribution rejected",
		slog.String("contribution_id", c.ID.String()),
		slog.String("reason", reason),
	)
	return c, nil
}

// Reintegrate re-runs integration for an APPROVED contribution that was
// left flagged as pending. Safe to repeat: already-created tuples resolve
// to exact-duplicate skips.
func (s *Service) Reintegrate(ctx context.Context, id uuid.UUID) (*domain.ImageContribution, error) {
	c, err := s.contribs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.ImageStatusApproved {
		return nil, fmt.Errorf("%w: cannot integrate a %s contribution", domain.ErrConflict, c.Status)
	}
	if c.ValidationMessage == nil || !strings.HasPrefix(*c.ValidationMessage, msgIntegrationPending) {
		return nil, fmt.Errorf("%w: contribution is not awaiting integration", domain.ErrConflict)
	}
	return s.integrate(ctx, c)
}

// ListPendingIntegration returns APPROVED contributions whose integration
// has not completed yet.
func (s *Service) ListPendingIntegration(ctx context.Context) ([]*domain.ImageContribution, error) {
	return s.contribs.ListPendingIntegration(ctx)
}

// integrate runs the engine over an APPROVED contribution and records the
// outcome on the contribution itself. Engine failure is absorbed: the
// contribution keeps its APPROVED status with a retry flag, and only the
// validation message changes.
func (s *Service) integrate(ctx context.Context, c *domain.ImageContribution) (*domain.ImageContribution, error) {
	res, err := s.integrator.IntegrateContribution(ctx, c)
	if err != nil {
		s.log.ErrorContext(ctx, "integration failed",
			slog.String("contribution_id", c.ID.String()), slog.Any("error", err))

		msg := fmt.Sprintf("%s: %s", msgIntegrationPending, err)
		c.ValidationMessage = &msg
		if updErr := s.contribs.Update(ctx, c); updErr != nil {
			return nil, fmt.Errorf("flag integration pending: %w", updErr)
		}
		return c, nil
	}

	c.CreatedRecords = res.CreatedRecords
	c.MergedRecords = res.MergedRecords
	msg := fmt.Sprintf("Approved and integrated: %d timing records created, %d merged with existing buses, %d duplicates skipped, %d invalid",
		res.CreatedRecords, res.MergedRecords, res.SkippedDuplicates, res.SkippedInvalid)
	c.ValidationMessage = &msg

	if err := s.contribs.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("record integration outcome: %w", err)
	}
	return c, nil
}
