package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bensuskins/gymthon/internal/completion"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
	"github.com/bensuskins/gymthon/internal/testutil"
)

const dietReply = "Here is today's plan:\n```json\n" + `{
  "meals": [
    {"name": "Breakfast", "time": "08:00", "total_calories": 5000, "foods": [
      {"name": "Rolled oats", "portion": "80g", "calories": 9999, "protein": 1},
      {"name": "Banana", "portion": "1 cup"}
    ]},
    {"name": "Lunch", "time": "13:00", "foods": [
      {"name": "Chicken breast", "portion": "200g"},
      {"name": "Brown rice", "portion": "1 cup"}
    ]}
  ]
}` + "\n```\nEnjoy your meals!"

const workoutReply = `Sure! {"name": "Push Pull Legs", "days": [
  {"label": "Push", "exercises": [
    {"name": "Bench Press", "sets": "4", "reps": 10, "rest": "90s", "notes": "Pause at the bottom"},
    {},
    "Plank"
  ]},
  {"exercises": [{"name": "Deadlift", "sets": 3.0, "reps": "5", "rest_seconds": 180}]}
]}`

// fakeCompleter answers diet and workout prompts with canned replies.
type fakeCompleter struct {
	mutex       sync.Mutex
	dietReply   string
	workoutErr  error
	dietErr     error
	prompts     []string
	dietCalls   int
	workoutCall int
	block       chan struct{}
	entered     chan struct{}
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{dietReply: dietReply}
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, userPrompt string, opts completion.Options) (string, error) {
	f.mutex.Lock()
	f.prompts = append(f.prompts, userPrompt)
	block, entered := f.block, f.entered
	isDiet := strings.Contains(systemPrompt, "nutritionist")
	if isDiet {
		f.dietCalls++
	} else {
		f.workoutCall++
	}
	f.mutex.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	if isDiet {
		if opts.Temperature != 0.7 {
			return "", fmt.Errorf("unexpected diet temperature %v", opts.Temperature)
		}
		return f.dietReply, f.dietErr
	}
	if opts.Temperature != 0.6 {
		return "", fmt.Errorf("unexpected workout temperature %v", opts.Temperature)
	}
	return workoutReply, f.workoutErr
}

func (f *fakeCompleter) calls() (int, int) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.dietCalls, f.workoutCall
}

func (f *fakeCompleter) lastPrompt() string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fixture struct {
	users     *repository.SQLUserRepository
	profiles  *repository.SQLProfileRepository
	logs      *repository.SQLProgressLogRepository
	diets     *repository.SQLDietPlanRepository
	workouts  *repository.SQLWorkoutPlanRepository
	completer *fakeCompleter
	diet      *services.DietService
	workout   *services.WorkoutService
	sequence  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	f := &fixture{
		users:     repository.NewUserRepository(db),
		profiles:  repository.NewProfileRepository(db),
		logs:      repository.NewProgressLogRepository(db),
		diets:     repository.NewDietPlanRepository(db),
		workouts:  repository.NewWorkoutPlanRepository(db),
		completer: newFakeCompleter(),
	}
	f.diet = services.NewDietService(f.profiles, f.logs, f.diets, f.completer)
	f.workout = services.NewWorkoutService(f.profiles, f.workouts, f.completer)
	return f
}

func intPtr(value int) *int { return &value }

func floatPtr(value float64) *float64 { return &value }

// sampleProfile is the 30 year old, 80kg, 180cm male aiming for muscle gain.
func sampleProfile() models.UserProfile {
	return models.UserProfile{
		Age:           intPtr(30),
		WeightKg:      floatPtr(80),
		HeightCm:      floatPtr(180),
		Gender:        "male",
		ActivityLevel: models.ActivityModerate,
		Goals:         []string{models.GoalMuscleGain},
	}
}

func (f *fixture) createUser(t *testing.T, role models.Role, profile *models.UserProfile) models.User {
	t.Helper()
	f.sequence++
	user, err := f.users.Create(context.Background(), models.User{
		Email: fmt.Sprintf("athlete%d@example.com", f.sequence),
		Name:  fmt.Sprintf("Athlete %d", f.sequence),
		Role:  role,
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if profile != nil {
		profile.UserID = user.ID
		if _, err := f.profiles.Upsert(context.Background(), *profile); err != nil {
			t.Fatalf("creating profile: %v", err)
		}
	}
	return user
}

func (f *fixture) newScheduler(t *testing.T, now time.Time, profiles repository.ProfileRepository) *services.Scheduler {
	t.Helper()
	if profiles == nil {
		profiles = f.profiles
	}
	scheduler, err := services.NewScheduler(
		services.SchedulerConfig{Location: time.UTC, Now: func() time.Time { return now }},
		profiles, f.logs, f.diets, f.workouts, f.diet, f.workout,
	)
	if err != nil {
		t.Fatalf("creating scheduler: %v", err)
	}
	t.Cleanup(func() {
		scheduler.Stop()
		scheduler.Wait()
	})
	return scheduler
}

type staticCompleter string

func (s staticCompleter) Complete(ctx context.Context, systemPrompt string, userPrompt string, opts completion.Options) (string, error) {
	return string(s), nil
}
