package services_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
)

func TestWorkoutService_GenerateNormalizes(t *testing.T) {
	f := newFixture(t)
	profile := sampleProfile()
	user := f.createUser(t, models.RoleMember, &profile)

	cycle, err := f.workout.Generate(context.Background(), user.ID, "2025-03-10", 4, services.WorkoutOptions{
		DaysPerWeek:     5,
		ExperienceLevel: "intermediate",
	})
	if err != nil {
		t.Fatalf("generating cycle: %v", err)
	}

	if cycle.Name != "Push Pull Legs" {
		t.Errorf("expected name from response, got '%s'", cycle.Name)
	}
	if cycle.EndDate != "2025-04-06" {
		t.Errorf("expected end date 2025-04-06, got %s", cycle.EndDate)
	}
	if len(cycle.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(cycle.Days))
	}

	push := cycle.Days[0]
	if push.Label != "Push" || len(push.Exercises) != 3 {
		t.Fatalf("unexpected push day %+v", push)
	}
	bench := models.Exercise{Name: "Bench Press", Sets: 4, Reps: "10", RestSeconds: 90, Notes: "Pause at the bottom"}
	if push.Exercises[0] != bench {
		t.Errorf("expected %+v, got %+v", bench, push.Exercises[0])
	}
	defaults := models.Exercise{Name: "Exercise", Sets: 3, Reps: "8-12", RestSeconds: 60}
	if push.Exercises[1] != defaults {
		t.Errorf("expected defaults %+v, got %+v", defaults, push.Exercises[1])
	}
	plank := models.Exercise{Name: "Plank", Sets: 3, Reps: "8-12", RestSeconds: 60}
	if push.Exercises[2] != plank {
		t.Errorf("expected %+v, got %+v", plank, push.Exercises[2])
	}

	pull := cycle.Days[1]
	if pull.Label != "Day 2" {
		t.Errorf("expected fallback label 'Day 2', got '%s'", pull.Label)
	}
	deadlift := models.Exercise{Name: "Deadlift", Sets: 3, Reps: "5", RestSeconds: 180}
	if pull.Exercises[0] != deadlift {
		t.Errorf("expected %+v, got %+v", deadlift, pull.Exercises[0])
	}

	prompt := f.completer.lastPrompt()
	for _, fragment := range []string{"4-week", "5 training days", "intermediate", "warm-up"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("expected prompt to mention %q", fragment)
		}
	}
}

func TestWorkoutService_DefaultsAndClamps(t *testing.T) {
	f := newFixture(t)
	profile := sampleProfile()
	user := f.createUser(t, models.RoleMember, &profile)

	cycle, err := f.workout.Generate(context.Background(), user.ID, "2025-03-10", 0, services.WorkoutOptions{DaysPerWeek: 9})
	if err != nil {
		t.Fatalf("generating cycle: %v", err)
	}
	if cycle.DurationWeeks != services.DefaultCycleWeeks {
		t.Errorf("expected default %d weeks, got %d", services.DefaultCycleWeeks, cycle.DurationWeeks)
	}
	if !strings.Contains(f.completer.lastPrompt(), "6 training days") {
		t.Error("expected days per week to be clamped to 6")
	}
}

func TestCycleEndDate(t *testing.T) {
	tests := []struct {
		start string
		weeks int
		want  string
	}{
		{"2025-03-01", 1, "2025-03-07"},
		{"2025-03-01", 4, "2025-03-28"},
		{"2024-02-26", 1, "2024-03-03"},
		{"2025-12-29", 2, "2026-01-11"},
	}
	for _, tt := range tests {
		got, err := services.CycleEndDate(tt.start, tt.weeks)
		if err != nil {
			t.Fatalf("computing end date: %v", err)
		}
		if got != tt.want {
			t.Errorf("CycleEndDate(%s, %d) = %s, want %s", tt.start, tt.weeks, got, tt.want)
		}
	}

	if _, err := services.CycleEndDate("10/03/2025", 4); err == nil {
		t.Error("expected an error for a malformed date")
	}
	for _, weeks := range []int{0, services.MaxCycleWeeks + 1, 500000, math.MaxInt} {
		if _, err := services.CycleEndDate("2025-03-10", weeks); err == nil {
			t.Errorf("expected an error for a %d week cycle", weeks)
		}
	}
}

func TestWorkoutService_CapsCycleLength(t *testing.T) {
	f := newFixture(t)
	profile := sampleProfile()
	user := f.createUser(t, models.RoleMember, &profile)

	for _, weeks := range []int{500000, math.MaxInt} {
		cycle, err := f.workout.Generate(context.Background(), user.ID, "2025-03-10", weeks, services.WorkoutOptions{})
		if err != nil {
			t.Fatalf("generating %d week cycle: %v", weeks, err)
		}
		if cycle.DurationWeeks != services.MaxCycleWeeks {
			t.Errorf("expected %d weeks to be capped at %d, got %d", weeks, services.MaxCycleWeeks, cycle.DurationWeeks)
		}
		if cycle.EndDate != "2026-03-08" {
			t.Errorf("expected end date 2026-03-08, got %s", cycle.EndDate)
		}
	}
}

func TestWorkoutService_NamesUnnamedCycleFromGoal(t *testing.T) {
	f := newFixture(t)
	profile := sampleProfile()
	user := f.createUser(t, models.RoleMember, &profile)

	f.workout = services.NewWorkoutService(f.profiles, f.workouts, staticCompleter(`{"days": [{"label": "Full Body", "exercises": ["Squat"]}]}`))
	tests := []struct {
		goal string
		want string
	}{
		{"muscle_gain", "4-Week Muscle Gain Program"},
		{"équilibre_général", "4-Week Équilibre Général Program"},
	}
	for _, tt := range tests {
		cycle, err := f.workout.Generate(context.Background(), user.ID, "2025-03-10", 4, services.WorkoutOptions{GoalOverride: tt.goal})
		if err != nil {
			t.Fatalf("generating cycle: %v", err)
		}
		if cycle.Name != tt.want {
			t.Errorf("expected name %q, got %q", tt.want, cycle.Name)
		}
	}
}

func TestWorkoutService_InvalidStructure(t *testing.T) {
	f := newFixture(t)
	profile := sampleProfile()
	user := f.createUser(t, models.RoleMember, &profile)

	f.workout = services.NewWorkoutService(f.profiles, f.workouts, staticCompleter(`{"name": "Plan", "days": {"monday": []}}`))
	_, err := f.workout.Generate(context.Background(), user.ID, "2025-03-10", 4, services.WorkoutOptions{})
	var structure *services.InvalidStructureError
	if !errors.As(err, &structure) {
		t.Errorf("expected InvalidStructureError, got %v", err)
	}

	f.workout = services.NewWorkoutService(f.profiles, f.workouts, staticCompleter(`{"name": "Plan"}`))
	_, err = f.workout.Generate(context.Background(), user.ID, "2025-03-10", 4, services.WorkoutOptions{})
	if !errors.As(err, &structure) {
		t.Errorf("expected InvalidStructureError for missing days, got %v", err)
	}

	f.workout = services.NewWorkoutService(f.profiles, f.workouts, staticCompleter("no json here"))
	_, err = f.workout.Generate(context.Background(), user.ID, "2025-03-10", 4, services.WorkoutOptions{})
	var parseErr *services.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestWorkoutService_CreateCycle(t *testing.T) {
	f := newFixture(t)
	profile := sampleProfile()
	user := f.createUser(t, models.RoleMember, &profile)
	ctx := context.Background()

	plan, err := f.workout.CreateCycle(ctx, user.ID, "2025-03-01", 4, services.WorkoutOptions{})
	if err != nil {
		t.Fatalf("creating cycle: %v", err)
	}
	if plan.Status != models.WorkoutStatusActive || plan.EndDate != "2025-03-28" {
		t.Errorf("unexpected plan %+v", plan)
	}

	_, err = f.workout.CreateCycle(ctx, user.ID, "2025-03-20", 4, services.WorkoutOptions{})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, workoutCalls := f.completer.calls(); workoutCalls != 1 {
		t.Errorf("expected overlapping request to skip the model, got %d calls", workoutCalls)
	}

	if _, err := f.workout.CreateCycle(ctx, user.ID, "2025-03-29", 4, services.WorkoutOptions{}); err != nil {
		t.Errorf("expected adjacent cycle to succeed, got %v", err)
	}
}

func TestWorkoutService_IncompleteProfile(t *testing.T) {
	f := newFixture(t)
	profile := sampleProfile()
	profile.Age = nil
	user := f.createUser(t, models.RoleMember, &profile)

	_, err := f.workout.CreateCycle(context.Background(), user.ID, "2025-03-01", 4, services.WorkoutOptions{})
	var incomplete *services.IncompleteProfileError
	if !errors.As(err, &incomplete) {
		t.Errorf("expected IncompleteProfileError, got %v", err)
	}
}
