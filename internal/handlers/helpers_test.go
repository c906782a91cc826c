package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bensuskins/gymthon/internal/completion"
	"github.com/bensuskins/gymthon/internal/middleware"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/services"
	"github.com/bensuskins/gymthon/internal/testutil"
)

const testDietReply = `{"meals": [
  {"name": "Breakfast", "time": "08:00", "foods": [{"name": "Oats", "portion": "80g"}]},
  {"name": "Dinner", "time": "19:00", "foods": [{"name": "Salmon", "portion": "150g"}]}
]}`

const testWorkoutReply = `{"name": "Strength Base", "days": [
  {"label": "Upper", "exercises": [{"name": "Row", "sets": 4, "reps": "8", "rest_seconds": 90}]},
  {"label": "Lower", "exercises": [{"name": "Squat"}]}
]}`

type stubCompleter struct {
	mutex sync.Mutex
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt string, userPrompt string, opts completion.Options) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if s.reply != "" {
		return s.reply, nil
	}
	if strings.Contains(systemPrompt, "nutritionist") {
		return testDietReply, nil
	}
	return testWorkoutReply, nil
}

type testEnv struct {
	users     *repository.SQLUserRepository
	profiles  *repository.SQLProfileRepository
	logs      *repository.SQLProgressLogRepository
	diets     *repository.SQLDietPlanRepository
	workouts  *repository.SQLWorkoutPlanRepository
	tokens    *repository.SQLAPITokenRepository
	completer *stubCompleter
	diet      *services.DietService
	workout   *services.WorkoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := testutil.NewTestDatabase(t)
	env := &testEnv{
		users:     repository.NewUserRepository(database),
		profiles:  repository.NewProfileRepository(database),
		logs:      repository.NewProgressLogRepository(database),
		diets:     repository.NewDietPlanRepository(database),
		workouts:  repository.NewWorkoutPlanRepository(database),
		tokens:    repository.NewAPITokenRepository(database),
		completer: &stubCompleter{},
	}
	env.diet = services.NewDietService(env.profiles, env.logs, env.diets, env.completer)
	env.workout = services.NewWorkoutService(env.profiles, env.workouts, env.completer)
	return env
}

func (env *testEnv) createUser(t *testing.T, name string, role models.Role, complete bool) models.User {
	t.Helper()
	ctx := context.Background()
	user, err := env.users.Create(ctx, models.User{
		Email: strings.ToLower(name) + "@example.com",
		Name:  name,
		Role:  role,
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if complete {
		age, weight, height := 35, 70.0, 170.0
		_, err := env.profiles.Upsert(ctx, models.UserProfile{
			UserID:        user.ID,
			Age:           &age,
			WeightKg:      &weight,
			HeightCm:      &height,
			Gender:        "female",
			ActivityLevel: models.ActivityLight,
			Goals:         []string{models.GoalWeightLoss},
		})
		if err != nil {
			t.Fatalf("creating profile: %v", err)
		}
	}
	return user
}

func requestWithUser(request *http.Request, user models.User) *http.Request {
	ctx := context.WithValue(request.Context(), middleware.UserContextKey, user)
	return request.WithContext(ctx)
}

func jsonRequest(method string, target string, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	request.Header.Set("Content-Type", "application/json")
	return request
}

func serveAs(handler http.Handler, user models.User, method string, target string, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestWithUser(jsonRequest(method, target, body), user))
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.NewDecoder(recorder.Body).Decode(&value); err != nil {
		t.Fatalf("decoding response %q: %v", recorder.Body.String(), err)
	}
	return value
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	if recorder.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, recorder.Code, recorder.Body.String())
	}
}

func expectReason(t *testing.T, recorder *httptest.ResponseRecorder, status int, reason string) {
	t.Helper()
	expectStatus(t, recorder, status)
	body := decodeBody[map[string]any](t, recorder)
	if body["error"] != reason {
		t.Errorf("expected error reason %q, got %v", reason, body["error"])
	}
}

func today() string {
	return time.Now().UTC().Format(models.DateLayout)
}

func serveRaw(handler http.Handler, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}
