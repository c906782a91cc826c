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

type DietPlanRepository interface {
	Create(ctx context.Context, plan models.DietPlan) (models.DietPlan, error)
	FindByUserAndDate(ctx context.Context, userID string, date string) (models.DietPlan, error)
	FindByUser(ctx context.Context, userID string, limit int) ([]models.DietPlan, error)
	Delete(ctx context.Context, userID string, date string) error
}

type SQLDietPlanRepository struct {
	database *database.DB
}

func NewDietPlanRepository(db *database.DB) *SQLDietPlanRepository {
	return &SQLDietPlanRepository{database: db}
}

const dietPlanColumns = `id, user_id, date, target_calories, target_protein, target_carbs, target_fats,
	meals, source, progress_log_id, notes, created_at, updated_at`

func scanDietPlan(row rowScanner) (models.DietPlan, error) {
	var plan models.DietPlan
	var meals string
	var progressLogID sql.NullString
	err := row.Scan(
		&plan.ID, &plan.UserID, &plan.Date, &plan.TargetCalories,
		&plan.TargetMacros.Protein, &plan.TargetMacros.Carbs, &plan.TargetMacros.Fats,
		&meals, &plan.Source, &progressLogID, &plan.Notes, &plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		return models.DietPlan{}, err
	}
	if progressLogID.Valid {
		plan.ProgressLogID = &progressLogID.String
	}
	if err := decodeJSONColumn(meals, &plan.Meals); err != nil {
		return models.DietPlan{}, err
	}
	return plan, nil
}

// Create inserts a plan. A second plan for the same user and date fails
// with ErrConflict; existing plans are never overwritten.
func (repository *SQLDietPlanRepository) Create(ctx context.Context, plan models.DietPlan) (models.DietPlan, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.Meals == nil {
		plan.Meals = []models.Meal{}
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	meals, err := encodeJSONColumn(plan.Meals)
	if err != nil {
		return models.DietPlan{}, err
	}

	_, err = repository.database.ExecContext(ctx,
		repository.database.Rebind("INSERT INTO diet_plans ("+dietPlanColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		plan.ID, plan.UserID, plan.Date, plan.TargetCalories,
		plan.TargetMacros.Protein, plan.TargetMacros.Carbs, plan.TargetMacros.Fats,
		meals, plan.Source, plan.ProgressLogID, plan.Notes, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.DietPlan{}, fmt.Errorf("creating diet plan for %s on %s: %w", plan.UserID, plan.Date, ErrConflict)
		}
		return models.DietPlan{}, fmt.Errorf("creating diet plan: %w", err)
	}
	return plan, nil
}

func (repository *SQLDietPlanRepository) FindByUserAndDate(ctx context.Context, userID string, date string) (models.DietPlan, error) {
	row := repository.database.QueryRowContext(ctx,
		repository.database.Rebind("SELECT "+dietPlanColumns+" FROM diet_plans WHERE user_id = ? AND date = ?"),
		userID, date,
	)
	plan, err := scanDietPlan(row)
	if err != nil {
		return models.DietPlan{}, notFoundOr(err, "finding diet plan")
	}
	return plan, nil
}

func (repository *SQLDietPlanRepository) FindByUser(ctx context.Context, userID string, limit int) ([]models.DietPlan, error) {
	rows, err := repository.database.QueryContext(ctx,
		repository.database.Rebind("SELECT "+dietPlanColumns+" FROM diet_plans WHERE user_id = ? ORDER BY date DESC LIMIT ?"),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("finding diet plans: %w", err)
	}
	defer rows.Close()

	var plans []models.DietPlan
	for rows.Next() {
		plan, err := scanDietPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning diet plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (repository *SQLDietPlanRepository) Delete(ctx context.Context, userID string, date string) error {
	result, err := repository.database.ExecContext(ctx,
		repository.database.Rebind("DELETE FROM diet_plans WHERE user_id = ? AND date = ?"),
		userID, date,
	)
	if err != nil {
		return fmt.Errorf("deleting diet plan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting diet plan: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deleting diet plan: %w", ErrNotFound)
	}
	return nil
}
