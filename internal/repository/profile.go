// Package repository provides direct Postgres access to the profiles table
// for moderation work that the public API does not expose.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gigmarket/gigmarket/internal/models"
	"github.com/lib/pq"
)

const profileColumns = `id, role, phone_number, full_name, subscription_tier, usage_count, is_verified, theme, notify_messages, notify_bookings`

// PostgresProfileRepository reads and updates profile rows.
type PostgresProfileRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresProfileRepository creates a repository over db.
func NewPostgresProfileRepository(db *sql.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p                              models.Profile
		role, phone, name, tier, theme sql.NullString
	)
	err := row.Scan(&p.ID, &role, &phone, &name, &tier, &p.UsageCount, &p.IsVerified, &theme, &p.NotifyMessages, &p.NotifyBookings)
	if err != nil {
		return nil, err
	}
	p.Role = models.Role(role.String)
	p.PhoneNumber = phone.String
	p.FullName = name.String
	p.SubscriptionTier = models.Tier(tier.String)
	p.Theme = theme.String
	return &p, nil
}

// ProfileByID returns the profile with id, or models.ErrNotFound.
func (r *PostgresProfileRepository) ProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ProfileByID: %w", err)
	}
	return p, nil
}

// ListUnverifiedWorkers returns up to limit workers awaiting verification.
func (r *PostgresProfileRepository) ListUnverifiedWorkers(ctx context.Context, limit int) ([]models.Profile, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE role = $1 AND is_verified = false
		ORDER BY id
		LIMIT $2
	`, string(models.RoleWorker), limit)
	if err != nil {
		return nil, fmt.Errorf("ListUnverifiedWorkers: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUnverifiedWorkers: %w", err)
	}
	return out, nil
}

// SetVerified sets the verification flag of id.
func (r *PostgresProfileRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE profiles SET is_verified = $2 WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("SetVerified: %w", err)
	}
	return expectOne(res, id)
}

// SetTier changes the subscription tier of id.
func (r *PostgresProfileRepository) SetTier(ctx context.Context, id string, tier models.Tier) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE profiles SET subscription_tier = $2 WHERE id = $1`, id, string(tier))
	if err != nil {
		return fmt.Errorf("SetTier: %w", err)
	}
	return expectOne(res, id)
}

// ResetUsage zeroes the usage counter of every profile in ids and returns
// how many rows changed.
func (r *PostgresProfileRepository) ResetUsage(ctx context.Context, ids []string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE profiles SET usage_count = 0 WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("ResetUsage: %w", err)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", id, models.ErrNotFound)
	}
	return nil
}
