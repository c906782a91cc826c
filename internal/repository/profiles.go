package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bensuskins/gymthon/internal/database"
	"github.com/bensuskins/gymthon/internal/models"
)

type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (models.UserProfile, error)
	Upsert(ctx context.Context, profile models.UserProfile) (models.UserProfile, error)
	UpdateSubscription(ctx context.Context, userID string, status models.SubscriptionStatus, endsAt *time.Time) error
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)
	FindEligibleForDailyGeneration(ctx context.Context) ([]models.UserProfile, error)
}

type SQLProfileRepository struct {
	database *database.DB
}

func NewProfileRepository(db *database.DB) *SQLProfileRepository {
	return &SQLProfileRepository{database: db}
}

const profileColumns = `p.user_id, p.age, p.weight_kg, p.height_cm, p.gender, p.activity_level,
	p.goals, p.preferences, p.restrictions, p.timezone, p.subscription_status,
	p.subscription_ends_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (models.UserProfile, error) {
	var profile models.UserProfile
	var goals, preferences, restrictions string
	var age sql.NullInt64
	var weight, height sql.NullFloat64

	err := row.Scan(
		&profile.UserID, &age, &weight, &height, &profile.Gender, &profile.ActivityLevel,
		&goals, &preferences, &restrictions, &profile.Timezone, &profile.SubscriptionStatus,
		&profile.SubscriptionEndsAt, &profile.UpdatedAt,
	)
	if err != nil {
		return models.UserProfile{}, err
	}

	if age.Valid {
		value := int(age.Int64)
		profile.Age = &value
	}
	if weight.Valid {
		profile.WeightKg = &weight.Float64
	}
	if height.Valid {
		profile.HeightCm = &height.Float64
	}
	if err := decodeJSONColumn(goals, &profile.Goals); err != nil {
		return models.UserProfile{}, err
	}
	if err := decodeJSONColumn(preferences, &profile.Preferences); err != nil {
		return models.UserProfile{}, err
	}
	if err := decodeJSONColumn(restrictions, &profile.Restrictions); err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (repository *SQLProfileRepository) FindByUserID(ctx context.Context, userID string) (models.UserProfile, error) {
	row := repository.database.QueryRowContext(ctx,
		repository.database.Rebind("SELECT "+profileColumns+" FROM profiles p WHERE p.user_id = ?"), userID,
	)
	profile, err := scanProfile(row)
	if err != nil {
		return models.UserProfile{}, notFoundOr(err, "finding profile")
	}
	return profile, nil
}

// Upsert writes the self-managed profile fields. Subscription fields are
// only changed through UpdateSubscription and ExpireSubscriptions.
func (repository *SQLProfileRepository) Upsert(ctx context.Context, profile models.UserProfile) (models.UserProfile, error) {
	goals, err := encodeJSONColumn(nonNil(profile.Goals))
	if err != nil {
		return models.UserProfile{}, err
	}
	preferences, err := encodeJSONColumn(nonNil(profile.Preferences))
	if err != nil {
		return models.UserProfile{}, err
	}
	restrictions, err := encodeJSONColumn(nonNil(profile.Restrictions))
	if err != nil {
		return models.UserProfile{}, err
	}

	_, err = repository.database.ExecContext(ctx,
		repository.database.Rebind(`INSERT INTO profiles (user_id, age, weight_kg, height_cm, gender, activity_level,
			goals, preferences, restrictions, timezone, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			age = excluded.age,
			weight_kg = excluded.weight_kg,
			height_cm = excluded.height_cm,
			gender = excluded.gender,
			activity_level = excluded.activity_level,
			goals = excluded.goals,
			preferences = excluded.preferences,
			restrictions = excluded.restrictions,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`),
		profile.UserID, profile.Age, profile.WeightKg, profile.HeightCm, profile.Gender, profile.ActivityLevel,
		goals, preferences, restrictions, profile.Timezone, time.Now().UTC(),
	)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("upserting profile: %w", err)
	}
	return repository.FindByUserID(ctx, profile.UserID)
}

func (repository *SQLProfileRepository) UpdateSubscription(ctx context.Context, userID string, status models.SubscriptionStatus, endsAt *time.Time) error {
	if endsAt != nil {
		utc := endsAt.UTC()
		endsAt = &utc
	}
	_, err := repository.database.ExecContext(ctx,
		repository.database.Rebind(`INSERT INTO profiles (user_id, subscription_status, subscription_ends_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			subscription_status = excluded.subscription_status,
			subscription_ends_at = excluded.subscription_ends_at,
			updated_at = excluded.updated_at`),
		userID, status, endsAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("updating subscription: %w", err)
	}
	return nil
}

// ExpireSubscriptions moves every active or trial subscription that ended
// before now to expired in a single statement.
func (repository *SQLProfileRepository) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	result, err := repository.database.ExecContext(ctx,
		repository.database.Rebind(`UPDATE profiles SET subscription_status = ?, updated_at = ?
		WHERE subscription_status IN (?, ?)
			AND subscription_ends_at IS NOT NULL
			AND subscription_ends_at < ?`),
		models.SubscriptionExpired, now, models.SubscriptionActive, models.SubscriptionTrial, now,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring subscriptions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting expired subscriptions: %w", err)
	}
	return affected, nil
}

// FindEligibleForDailyGeneration returns the profiles of non-admin users
// with age, weight and height filled in.
func (repository *SQLProfileRepository) FindEligibleForDailyGeneration(ctx context.Context) ([]models.UserProfile, error) {
	rows, err := repository.database.QueryContext(ctx,
		repository.database.Rebind(`SELECT `+profileColumns+`
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE u.role <> ?
			AND p.age IS NOT NULL
			AND p.weight_kg IS NOT NULL
			AND p.height_cm IS NOT NULL
		ORDER BY u.created_at, u.id`),
		models.RoleAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("finding eligible profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
