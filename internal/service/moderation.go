// Package service provides the moderation logic of the admin tool,
// delegating persistence to a ProfileRepository.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gigmarket/gigmarket/internal/models"
)

// ErrNotWorker is returned when verifying a profile that is not a worker.
var ErrNotWorker = errors.New("profile is not a worker")

// ErrInvalidTier is returned for an unknown subscription tier.
var ErrInvalidTier = errors.New("invalid subscription tier")

// DefaultPendingLimit bounds PendingWorkers when no limit is given.
const DefaultPendingLimit = 50

// ProfileRepository defines the persistence operations the moderation
// service needs.
type ProfileRepository interface {
	// ProfileByID returns models.ErrNotFound for an unknown id.
	ProfileByID(ctx context.Context, id string) (*models.Profile, error)
	ListUnverifiedWorkers(ctx context.Context, limit int) ([]models.Profile, error)
	SetVerified(ctx context.Context, id string, verified bool) error
	SetTier(ctx context.Context, id string, tier models.Tier) error
	ResetUsage(ctx context.Context, ids []string) (int64, error)
}

// ModerationService implements admin operations on profiles.
type ModerationService struct {
	repo ProfileRepository
}

// NewModerationService constructs a ModerationService over repo.
func NewModerationService(repo ProfileRepository) *ModerationService {
	return &ModerationService{repo: repo}
}

// PendingWorkers lists workers awaiting verification.
func (s *ModerationService) PendingWorkers(ctx context.Context, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	return s.repo.ListUnverifiedWorkers(ctx, limit)
}

// Verify marks a worker verified, or unverified when verified is false.
// Only worker profiles carry the flag.
func (s *ModerationService) Verify(ctx context.Context, id string, verified bool) error {
	p, err := s.repo.ProfileByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Role != models.RoleWorker {
		return fmt.Errorf("%s: %w", id, ErrNotWorker)
	}
	if p.IsVerified == verified {
		return nil
	}
	return s.repo.SetVerified(ctx, id, verified)
}

// ChangeTier moves a profile to tier.
func (s *ModerationService) ChangeTier(ctx context.Context, id string, tier models.Tier) error {
	switch tier {
	case models.TierFree, models.TierBasic, models.TierPro:
	default:
		return fmt.Errorf("%q: %w", tier, ErrInvalidTier)
	}
	return s.repo.SetTier(ctx, id, tier)
}

// ResetUsage zeroes the usage counters of ids.
func (s *ModerationService) ResetUsage(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.ResetUsage(ctx, ids)
}
