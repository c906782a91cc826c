package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/bensuskins/gymthon/internal/models"
	"github.com/go-chi/chi/v5"
)

func profileRouter(env *testEnv) *chi.Mux {
	handler := NewProfileHandler(env.profiles)
	router := chi.NewRouter()
	router.Get("/api/profile", handler.Get)
	router.Put("/api/profile", handler.Update)
	return router
}

func TestProfileHandler_GetWithoutProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "Nina", models.RoleMember, false)

	recorder := serveAs(profileRouter(env), user, http.MethodGet, "/api/profile", "")
	expectStatus(t, recorder, http.StatusOK)

	profile := decodeBody[models.UserProfile](t, recorder)
	if profile.UserID != user.ID || profile.SubscriptionStatus != models.SubscriptionNone {
		t.Errorf("expected an empty profile for %s, got %+v", user.ID, profile)
	}
}

func TestProfileHandler_Update(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "Omar", models.RoleMember, false)
	ends := time.Now().Add(24 * time.Hour).UTC()
	env.profiles.UpdateSubscription(t.Context(), user.ID, models.SubscriptionActive, &ends)
	router := profileRouter(env)

	body := `{"age": 41, "weight_kg": 92.5, "height_cm": 185, "gender": "male",
		"activity_level": "active", "goals": ["endurance"], "restrictions": ["gluten"],
		"timezone": "Europe/London"}`
	recorder := serveAs(router, user, http.MethodPut, "/api/profile", body)
	expectStatus(t, recorder, http.StatusOK)

	profile := decodeBody[models.UserProfile](t, recorder)
	if profile.Age == nil || *profile.Age != 41 || profile.WeightKg == nil || *profile.WeightKg != 92.5 {
		t.Errorf("unexpected biometrics %+v", profile)
	}
	if profile.PrimaryGoal() != models.GoalEndurance || profile.Timezone != "Europe/London" {
		t.Errorf("unexpected preferences %+v", profile)
	}
	if profile.SubscriptionStatus != models.SubscriptionActive {
		t.Errorf("expected subscription to survive a profile update, got '%s'", profile.SubscriptionStatus)
	}
}

func TestProfileHandler_UpdateRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "Pia", models.RoleMember, false)
	router := profileRouter(env)

	tests := []struct {
		name string
		body string
	}{
		{"negative age", `{"age": -3}`},
		{"zero weight", `{"weight_kg": 0}`},
		{"unknown activity", `{"activity_level": "extreme"}`},
		{"unknown goal", `{"goals": ["bulk"]}`},
		{"unknown timezone", `{"timezone": "Mars/Olympus"}`},
		{"subscription field", `{"subscription_status": "active"}`},
		{"malformed", `{"age": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := serveAs(router, user, http.MethodPut, "/api/profile", tt.body)
			expectReason(t, recorder, http.StatusBadRequest, "invalid_request")
		})
	}
}
