package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bensuskins/gymthon/internal/database"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/google/uuid"
)

type WorkoutPlanRepository interface {
	Create(ctx context.Context, plan models.WorkoutPlan) (models.WorkoutPlan, error)
	FindByID(ctx context.Context, id string) (models.WorkoutPlan, error)
	FindByUser(ctx context.Context, userID string) ([]models.WorkoutPlan, error)
	FindOverlapping(ctx context.Context, userID string, startDate string, endDate string) ([]models.WorkoutPlan, error)
	FindExpired(ctx context.Context, before string) ([]models.WorkoutPlan, error)
	UpdateStatus(ctx context.Context, id string, from models.WorkoutStatus, to models.WorkoutStatus) error
}

type SQLWorkoutPlanRepository struct {
	database *database.DB
}

func NewWorkoutPlanRepository(db *database.DB) *SQLWorkoutPlanRepository {
	return &SQLWorkoutPlanRepository{database: db}
}

const workoutPlanColumns = "id, user_id, name, duration_weeks, start_date, end_date, status, days, created_at, updated_at"

const overlappingActiveQuery = `SELECT ` + workoutPlanColumns + ` FROM workout_plans
	WHERE user_id = ? AND status = ? AND start_date <= ? AND end_date >= ?
	ORDER BY start_date`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanWorkoutPlan(row rowScanner) (models.WorkoutPlan, error) {
	var plan models.WorkoutPlan
	var days string
	err := row.Scan(
		&plan.ID, &plan.UserID, &plan.Name, &plan.DurationWeeks, &plan.StartDate, &plan.EndDate,
		&plan.Status, &days, &plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		return models.WorkoutPlan{}, err
	}
	if err := decodeJSONColumn(days, &plan.Days); err != nil {
		return models.WorkoutPlan{}, err
	}
	return plan, nil
}

func (repository *SQLWorkoutPlanRepository) queryPlans(ctx context.Context, source querier, query string, args ...any) ([]models.WorkoutPlan, error) {
	rows, err := source.QueryContext(ctx, repository.database.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []models.WorkoutPlan
	for rows.Next() {
		plan, err := scanWorkoutPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workout plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// Create inserts an active plan after checking, in the same transaction,
// that no other active plan of the user overlaps its date range.
// Postgres serializes concurrent creators per user with an advisory lock;
// sqlite is already serialized by its single connection.
func (repository *SQLWorkoutPlanRepository) Create(ctx context.Context, plan models.WorkoutPlan) (models.WorkoutPlan, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.Status == "" {
		plan.Status = models.WorkoutStatusActive
	}
	if plan.Days == nil {
		plan.Days = []models.WorkoutDay{}
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	days, err := encodeJSONColumn(plan.Days)
	if err != nil {
		return models.WorkoutPlan{}, err
	}

	transaction, err := repository.database.BeginTx(ctx, nil)
	if err != nil {
		return models.WorkoutPlan{}, fmt.Errorf("beginning workout plan transaction: %w", err)
	}
	defer transaction.Rollback()

	if repository.database.Driver == database.DriverPostgres {
		if _, err := transaction.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "workout_plans:"+plan.UserID); err != nil {
			return models.WorkoutPlan{}, fmt.Errorf("locking workout plans: %w", err)
		}
	}

	if plan.Status == models.WorkoutStatusActive {
		overlapping, err := repository.queryPlans(ctx, transaction, overlappingActiveQuery,
			plan.UserID, models.WorkoutStatusActive, plan.EndDate, plan.StartDate,
		)
		if err != nil {
			return models.WorkoutPlan{}, fmt.Errorf("checking overlapping workout plans: %w", err)
		}
		if len(overlapping) > 0 {
			return models.WorkoutPlan{}, fmt.Errorf("workout plan %s to %s overlaps plan %s: %w",
				plan.StartDate, plan.EndDate, overlapping[0].ID, ErrConflict)
		}
	}

	_, err = transaction.ExecContext(ctx,
		repository.database.Rebind("INSERT INTO workout_plans ("+workoutPlanColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		plan.ID, plan.UserID, plan.Name, plan.DurationWeeks, plan.StartDate, plan.EndDate,
		plan.Status, days, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return models.WorkoutPlan{}, fmt.Errorf("creating workout plan: %w", err)
	}

	if err := transaction.Commit(); err != nil {
		return models.WorkoutPlan{}, fmt.Errorf("committing workout plan: %w", err)
	}
	return plan, nil
}

func (repository *SQLWorkoutPlanRepository) FindByID(ctx context.Context, id string) (models.WorkoutPlan, error) {
	row := repository.database.QueryRowContext(ctx,
		repository.database.Rebind("SELECT "+workoutPlanColumns+" FROM workout_plans WHERE id = ?"), id,
	)
	plan, err := scanWorkoutPlan(row)
	if err != nil {
		return models.WorkoutPlan{}, notFoundOr(err, "finding workout plan")
	}
	return plan, nil
}

func (repository *SQLWorkoutPlanRepository) FindByUser(ctx context.Context, userID string) ([]models.WorkoutPlan, error) {
	plans, err := repository.queryPlans(ctx, repository.database,
		"SELECT "+workoutPlanColumns+" FROM workout_plans WHERE user_id = ? ORDER BY start_date DESC", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding workout plans: %w", err)
	}
	return plans, nil
}

// FindOverlapping returns the user's active plans intersecting [startDate, endDate].
func (repository *SQLWorkoutPlanRepository) FindOverlapping(ctx context.Context, userID string, startDate string, endDate string) ([]models.WorkoutPlan, error) {
	plans, err := repository.queryPlans(ctx, repository.database, overlappingActiveQuery,
		userID, models.WorkoutStatusActive, endDate, startDate,
	)
	if err != nil {
		return nil, fmt.Errorf("finding overlapping workout plans: %w", err)
	}
	return plans, nil
}

// FindExpired returns active plans whose end date is before the given date.
func (repository *SQLWorkoutPlanRepository) FindExpired(ctx context.Context, before string) ([]models.WorkoutPlan, error) {
	plans, err := repository.queryPlans(ctx, repository.database,
		"SELECT "+workoutPlanColumns+" FROM workout_plans WHERE status = ? AND end_date < ? ORDER BY end_date, id",
		models.WorkoutStatusActive, before,
	)
	if err != nil {
		return nil, fmt.Errorf("finding expired workout plans: %w", err)
	}
	return plans, nil
}

// UpdateStatus moves a plan from one status to another. It returns
// ErrNotFound when the plan does not exist or is no longer in from.
func (repository *SQLWorkoutPlanRepository) UpdateStatus(ctx context.Context, id string, from models.WorkoutStatus, to models.WorkoutStatus) error {
	result, err := repository.database.ExecContext(ctx,
		repository.database.Rebind("UPDATE workout_plans SET status = ?, updated_at = ? WHERE id = ? AND status = ?"),
		to, time.Now().UTC(), id, from,
	)
	if err != nil {
		return fmt.Errorf("updating workout plan status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating workout plan status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("updating workout plan %s from %s: %w", id, from, ErrNotFound)
	}
	return nil
}
