package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/testutil"
)

func sampleDietPlan(userID string, date string) models.DietPlan {
	return models.DietPlan{
		UserID:         userID,
		Date:           date,
		TargetCalories: 2904,
		TargetMacros:   models.Macros{Protein: 218, Carbs: 327, Fats: 81},
		Meals: []models.Meal{
			models.NewMeal("Breakfast", "08:00", []models.FoodItem{
				{Name: "Oats", Portion: "80g", Calories: 311, Protein: 11, Carbs: 53, Fats: 6},
			}),
		},
		Source: models.DietPlanSourceAI,
	}
}

func TestDietPlanRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewDietPlanRepository(db)
	ctx := context.Background()

	user := createTestUser(t, userRepo)

	created, err := planRepo.Create(ctx, sampleDietPlan(user.ID, "2025-03-10"))
	if err != nil {
		t.Fatalf("creating diet plan: %v", err)
	}

	found, err := planRepo.FindByUserAndDate(ctx, user.ID, "2025-03-10")
	if err != nil {
		t.Fatalf("finding diet plan: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("expected plan %s, got %s", created.ID, found.ID)
	}
	if len(found.Meals) != 1 || found.Meals[0].TotalCalories != 311 {
		t.Errorf("expected one meal of 311 kcal, got %+v", found.Meals)
	}
	if found.TargetMacros.Protein != 218 {
		t.Errorf("expected protein target 218, got %d", found.TargetMacros.Protein)
	}
	if found.ProgressLogID != nil {
		t.Errorf("expected no progress log reference, got %v", *found.ProgressLogID)
	}
}

func TestDietPlanRepository_KeepsProgressLogReference(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	userRepo := repository.NewUserRepository(db)
	logRepo := repository.NewProgressLogRepository(db)
	planRepo := repository.NewDietPlanRepository(db)
	ctx := context.Background()

	user := createTestUser(t, userRepo)
	log, _ := logRepo.Create(ctx, models.ProgressLog{UserID: user.ID, Date: "2025-03-09"})

	plan := sampleDietPlan(user.ID, "2025-03-10")
	plan.ProgressLogID = &log.ID
	plan.Source = models.DietPlanSourceAutoDaily
	if _, err := planRepo.Create(ctx, plan); err != nil {
		t.Fatalf("creating diet plan: %v", err)
	}

	found, _ := planRepo.FindByUserAndDate(ctx, user.ID, "2025-03-10")
	if found.ProgressLogID == nil || *found.ProgressLogID != log.ID {
		t.Errorf("expected progress log %s, got %v", log.ID, found.ProgressLogID)
	}
	if found.Source != models.DietPlanSourceAutoDaily {
		t.Errorf("expected source auto-daily, got '%s'", found.Source)
	}
}

func TestDietPlanRepository_DuplicateDateConflicts(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewDietPlanRepository(db)
	ctx := context.Background()

	user := createTestUser(t, userRepo)
	other := createTestUser(t, userRepo)

	first, err := planRepo.Create(ctx, sampleDietPlan(user.ID, "2025-03-10"))
	if err != nil {
		t.Fatalf("creating first plan: %v", err)
	}

	replacement := sampleDietPlan(user.ID, "2025-03-10")
	replacement.Notes = "should not overwrite"
	_, err = planRepo.Create(ctx, replacement)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	found, _ := planRepo.FindByUserAndDate(ctx, user.ID, "2025-03-10")
	if found.ID != first.ID || found.Notes != "" {
		t.Errorf("expected original plan to survive, got %+v", found)
	}

	if _, err := planRepo.Create(ctx, sampleDietPlan(other.ID, "2025-03-10")); err != nil {
		t.Errorf("expected other user's plan on the same date to succeed, got %v", err)
	}
	if _, err := planRepo.Create(ctx, sampleDietPlan(user.ID, "2025-03-11")); err != nil {
		t.Errorf("expected next day's plan to succeed, got %v", err)
	}
}

func TestDietPlanRepository_ConcurrentCreateYieldsOneConflict(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewDietPlanRepository(db)
	ctx := context.Background()

	user := createTestUser(t, userRepo)

	var waitGroup sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			<-start
			_, errs[index] = planRepo.Create(ctx, sampleDietPlan(user.ID, "2025-03-10"))
		}(i)
	}
	close(start)
	waitGroup.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, repository.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Errorf("expected 1 success and 1 conflict, got %d and %d", successes, conflicts)
	}
}

func TestDietPlanRepository_FindByUser(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewDietPlanRepository(db)
	ctx := context.Background()

	user := createTestUser(t, userRepo)
	for _, date := range []string{"2025-03-08", "2025-03-09", "2025-03-10"} {
		planRepo.Create(ctx, sampleDietPlan(user.ID, date))
	}

	plans, err := planRepo.FindByUser(ctx, user.ID, 2)
	if err != nil {
		t.Fatalf("finding plans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].Date != "2025-03-10" {
		t.Errorf("expected newest plan first, got %s", plans[0].Date)
	}
}

func TestDietPlanRepository_Delete(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewDietPlanRepository(db)
	ctx := context.Background()

	user := createTestUser(t, userRepo)
	planRepo.Create(ctx, sampleDietPlan(user.ID, "2025-03-10"))

	if err := planRepo.Delete(ctx, user.ID, "2025-03-10"); err != nil {
		t.Fatalf("deleting plan: %v", err)
	}
	if _, err := planRepo.FindByUserAndDate(ctx, user.ID, "2025-03-10"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := planRepo.Delete(ctx, user.ID, "2025-03-10"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := planRepo.Create(ctx, sampleDietPlan(user.ID, "2025-03-10")); err != nil {
		t.Errorf("expected regeneration after delete to succeed, got %v", err)
	}
}
