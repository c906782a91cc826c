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

type ProgressLogRepository interface {
	Create(ctx context.Context, log models.ProgressLog) (models.ProgressLog, error)
	FindByID(ctx context.Context, id string) (models.ProgressLog, error)
	FindLatestBefore(ctx context.Context, userID string, date string) (models.ProgressLog, error)
	FindByUserAndRange(ctx context.Context, userID string, from string, to string) ([]models.ProgressLog, error)
}

type SQLProgressLogRepository struct {
	database *database.DB
}

func NewProgressLogRepository(db *database.DB) *SQLProgressLogRepository {
	return &SQLProgressLogRepository{database: db}
}

const progressLogColumns = "id, user_id, date, meals, weight_kg, notes, created_at"

func scanProgressLog(row rowScanner) (models.ProgressLog, error) {
	var log models.ProgressLog
	var meals string
	var weight sql.NullFloat64
	if err := row.Scan(&log.ID, &log.UserID, &log.Date, &meals, &weight, &log.Notes, &log.CreatedAt); err != nil {
		return models.ProgressLog{}, err
	}
	if weight.Valid {
		log.WeightKg = &weight.Float64
	}
	if err := decodeJSONColumn(meals, &log.Meals); err != nil {
		return models.ProgressLog{}, err
	}
	return log, nil
}

func (repository *SQLProgressLogRepository) Create(ctx context.Context, log models.ProgressLog) (models.ProgressLog, error) {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Meals == nil {
		log.Meals = []models.LoggedMeal{}
	}
	log.CreatedAt = time.Now().UTC()

	meals, err := encodeJSONColumn(log.Meals)
	if err != nil {
		return models.ProgressLog{}, err
	}

	_, err = repository.database.ExecContext(ctx,
		repository.database.Rebind("INSERT INTO progress_logs ("+progressLogColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
		log.ID, log.UserID, log.Date, meals, log.WeightKg, log.Notes, log.CreatedAt,
	)
	if err != nil {
		return models.ProgressLog{}, fmt.Errorf("creating progress log: %w", err)
	}
	return log, nil
}

func (repository *SQLProgressLogRepository) FindByID(ctx context.Context, id string) (models.ProgressLog, error) {
	row := repository.database.QueryRowContext(ctx,
		repository.database.Rebind("SELECT "+progressLogColumns+" FROM progress_logs WHERE id = ?"), id,
	)
	log, err := scanProgressLog(row)
	if err != nil {
		return models.ProgressLog{}, notFoundOr(err, "finding progress log")
	}
	return log, nil
}

// FindLatestBefore returns the most recent log dated strictly before date.
func (repository *SQLProgressLogRepository) FindLatestBefore(ctx context.Context, userID string, date string) (models.ProgressLog, error) {
	row := repository.database.QueryRowContext(ctx,
		repository.database.Rebind(`SELECT `+progressLogColumns+` FROM progress_logs
		WHERE user_id = ? AND date < ?
		ORDER BY date DESC, created_at DESC
		LIMIT 1`),
		userID, date,
	)
	log, err := scanProgressLog(row)
	if err != nil {
		return models.ProgressLog{}, notFoundOr(err, "finding latest progress log")
	}
	return log, nil
}

func (repository *SQLProgressLogRepository) FindByUserAndRange(ctx context.Context, userID string, from string, to string) ([]models.ProgressLog, error) {
	rows, err := repository.database.QueryContext(ctx,
		repository.database.Rebind(`SELECT `+progressLogColumns+` FROM progress_logs
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date, created_at`),
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("finding progress logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ProgressLog
	for rows.Next() {
		log, err := scanProgressLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning progress log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
