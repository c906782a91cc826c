package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/bensuskins/gymthon/internal/models"
	"github.com/go-chi/chi/v5"
)

func workoutRouter(env *testEnv) *chi.Mux {
	handler := NewWorkoutHandler(env.workout, env.workouts, env.profiles, time.UTC)
	router := chi.NewRouter()
	router.Post("/api/workouts/generate", handler.Generate)
	router.Get("/api/workouts", handler.List)
	router.Get("/api/workouts/active", handler.Active)
	router.Post("/api/workouts/{id}/cancel", handler.Cancel)
	return router
}

func TestWorkoutHandler_Generate(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "Bea", models.RoleMember, true)
	router := workoutRouter(env)

	recorder := serveAs(router, user, http.MethodPost, "/api/workouts/generate",
		`{"start_date": "2025-03-03", "duration_weeks": 2, "days_per_week": 4, "experience_level": "beginner"}`)
	expectStatus(t, recorder, http.StatusCreated)

	plan := decodeBody[models.WorkoutPlan](t, recorder)
	if plan.Name != "Strength Base" || plan.StartDate != "2025-03-03" || plan.EndDate != "2025-03-16" {
		t.Errorf("unexpected plan %+v", plan)
	}
	if plan.Status != models.WorkoutStatusActive || len(plan.Days) != 2 {
		t.Errorf("unexpected plan contents %+v", plan)
	}
	if squat := plan.Days[1].Exercises[0]; squat.Sets != 3 || squat.Reps != "8-12" || squat.RestSeconds != 60 {
		t.Errorf("expected defaults on a sparse exercise, got %+v", squat)
	}

	recorder = serveAs(router, user, http.MethodPost, "/api/workouts/generate", `{"start_date": "2025-03-10", "duration_weeks": 1}`)
	expectReason(t, recorder, http.StatusConflict, "conflict")

	recorder = serveAs(router, user, http.MethodPost, "/api/workouts/generate", `{"start_date": "2025-03-17", "duration_weeks": 1}`)
	expectStatus(t, recorder, http.StatusCreated)

	recorder = serveAs(router, user, http.MethodGet, "/api/workouts", "")
	expectStatus(t, recorder, http.StatusOK)
	if plans := decodeBody[[]models.WorkoutPlan](t, recorder); len(plans) != 2 {
		t.Errorf("expected two plans, got %d", len(plans))
	}
}

func TestWorkoutHandler_ActiveAndCancel(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "Cal", models.RoleMember, true)
	other := env.createUser(t, "Dee", models.RoleMember, true)
	router := workoutRouter(env)

	expectReason(t, serveAs(router, user, http.MethodGet, "/api/workouts/active", ""), http.StatusNotFound, "not_found")

	recorder := serveAs(router, user, http.MethodPost, "/api/workouts/generate", `{}`)
	expectStatus(t, recorder, http.StatusCreated)
	plan := decodeBody[models.WorkoutPlan](t, recorder)
	if plan.StartDate != today() || plan.DurationWeeks != 4 {
		t.Errorf("expected a default four week cycle from today, got %+v", plan)
	}

	recorder = serveAs(router, user, http.MethodGet, "/api/workouts/active", "")
	expectStatus(t, recorder, http.StatusOK)
	if active := decodeBody[models.WorkoutPlan](t, recorder); active.ID != plan.ID {
		t.Errorf("expected active plan %s, got %s", plan.ID, active.ID)
	}

	expectReason(t, serveAs(router, other, http.MethodPost, "/api/workouts/"+plan.ID+"/cancel", ""), http.StatusNotFound, "not_found")

	recorder = serveAs(router, user, http.MethodPost, "/api/workouts/"+plan.ID+"/cancel", "")
	expectStatus(t, recorder, http.StatusOK)
	if cancelled := decodeBody[models.WorkoutPlan](t, recorder); cancelled.Status != models.WorkoutStatusCancelled {
		t.Errorf("expected cancelled, got '%s'", cancelled.Status)
	}

	expectReason(t, serveAs(router, user, http.MethodPost, "/api/workouts/"+plan.ID+"/cancel", ""), http.StatusConflict, "conflict")
	expectReason(t, serveAs(router, user, http.MethodGet, "/api/workouts/active", ""), http.StatusNotFound, "not_found")
	expectReason(t, serveAs(router, user, http.MethodPost, "/api/workouts/missing/cancel", ""), http.StatusNotFound, "not_found")
}

func TestWorkoutHandler_IncompleteProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "Eli", models.RoleMember, false)

	recorder := serveAs(workoutRouter(env), user, http.MethodPost, "/api/workouts/generate", `{"start_date": "2025-03-03"}`)
	expectReason(t, recorder, http.StatusUnprocessableEntity, "incomplete_profile")
	if env.completer.calls != 0 {
		t.Errorf("expected no model call, got %d", env.completer.calls)
	}
}

func TestWorkoutHandler_RejectsOversizedCycles(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "Fay", models.RoleMember, true)
	router := workoutRouter(env)

	for _, body := range []string{
		`{"start_date": "2025-03-03", "duration_weeks": 53}`,
		`{"start_date": "2025-03-03", "duration_weeks": 500000}`,
		`{"start_date": "2025-03-03", "duration_weeks": 4611686018427387904}`,
	} {
		recorder := serveAs(router, user, http.MethodPost, "/api/workouts/generate", body)
		expectReason(t, recorder, http.StatusBadRequest, "invalid_request")
	}
	if env.completer.calls != 0 {
		t.Errorf("expected no model call, got %d", env.completer.calls)
	}

	recorder := serveAs(router, user, http.MethodPost, "/api/workouts/generate", `{"start_date": "2025-03-03", "duration_weeks": 52}`)
	expectStatus(t, recorder, http.StatusCreated)
	if plan := decodeBody[models.WorkoutPlan](t, recorder); plan.EndDate != "2026-03-01" {
		t.Errorf("expected a 52 week cycle to end 2026-03-01, got %s", plan.EndDate)
	}
}
