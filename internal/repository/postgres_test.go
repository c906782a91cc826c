package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/bensuskins/gymthon/internal/database"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/google/uuid"
)

func newPostgresDatabase(t *testing.T) *database.DB {
	t.Helper()

	connStr := os.Getenv("POSTGRES_TEST_URL")
	if connStr == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	db, err := database.Open(database.DriverPostgres, connStr)
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating postgres: %v", err)
	}
	return db
}

func TestPostgres_StorageConstraints(t *testing.T) {
	db := newPostgresDatabase(t)
	ctx := context.Background()

	userRepo := repository.NewUserRepository(db)
	dietRepo := repository.NewDietPlanRepository(db)
	workoutRepo := repository.NewWorkoutPlanRepository(db)

	user, err := userRepo.Create(ctx, models.User{Email: uuid.NewString() + "@example.com", Name: "Postgres"})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}

	if _, err := dietRepo.Create(ctx, sampleDietPlan(user.ID, "2025-03-10")); err != nil {
		t.Fatalf("creating diet plan: %v", err)
	}
	if _, err := dietRepo.Create(ctx, sampleDietPlan(user.ID, "2025-03-10")); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate diet plan, got %v", err)
	}

	if _, err := workoutRepo.Create(ctx, sampleWorkoutPlan(user.ID, "2025-03-01", "2025-03-28")); err != nil {
		t.Fatalf("creating workout plan: %v", err)
	}
	if _, err := workoutRepo.Create(ctx, sampleWorkoutPlan(user.ID, "2025-03-20", "2025-04-16")); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("expected ErrConflict for overlapping cycle, got %v", err)
	}
	if _, err := workoutRepo.Create(ctx, sampleWorkoutPlan(user.ID, "2025-03-29", "2025-04-25")); err != nil {
		t.Errorf("expected adjacent cycle to succeed, got %v", err)
	}
}
