package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bensuskins/gymthon/internal/completion"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/repository"
)

const (
	workoutSystemPrompt = "You are an experienced certified personal trainer who writes safe, progressive training programs. " +
		"Respond with a single JSON object only, with no commentary or markdown."
	workoutTemperature = 0.6
	workoutMaxTokens   = 3000

	DefaultCycleWeeks  = 4
	MaxCycleWeeks      = 52
	DefaultDaysPerWeek = 4
	minDaysPerWeek     = 3
	maxDaysPerWeek     = 6

	defaultExerciseName = "Exercise"
	defaultSets         = 3
	defaultReps         = "8-12"
	defaultRestSeconds  = 60
)

type WorkoutOptions struct {
	DaysPerWeek     int
	GoalOverride    string
	ExperienceLevel string
	Preferences     string
}

type GeneratedWorkoutCycle struct {
	Name          string              `json:"name"`
	DurationWeeks int                 `json:"duration_weeks"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date"`
	Days          []models.WorkoutDay `json:"days"`
}

type WorkoutService struct {
	profileRepo repository.ProfileRepository
	planRepo    repository.WorkoutPlanRepository
	completer   Completer
}

func NewWorkoutService(
	profileRepo repository.ProfileRepository,
	planRepo repository.WorkoutPlanRepository,
	completer Completer,
) *WorkoutService {
	return &WorkoutService{
		profileRepo: profileRepo,
		planRepo:    planRepo,
		completer:   completer,
	}
}

// CycleEndDate returns the last day of a cycle of the given length.
func CycleEndDate(startDate string, durationWeeks int) (string, error) {
	if durationWeeks < 1 || durationWeeks > MaxCycleWeeks {
		return "", fmt.Errorf("cycle length %d weeks is outside 1-%d", durationWeeks, MaxCycleWeeks)
	}
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return "", fmt.Errorf("parsing start date %q: %w", startDate, err)
	}
	return start.AddDate(0, 0, durationWeeks*7-1).Format(models.DateLayout), nil
}

func normalizeCycleWeeks(weeks int) int {
	switch {
	case weeks < 1:
		return DefaultCycleWeeks
	case weeks > MaxCycleWeeks:
		return MaxCycleWeeks
	}
	return weeks
}

func normalizeDaysPerWeek(days int) int {
	switch {
	case days == 0:
		return DefaultDaysPerWeek
	case days < minDaysPerWeek:
		return minDaysPerWeek
	case days > maxDaysPerWeek:
		return maxDaysPerWeek
	}
	return days
}

func (service *WorkoutService) Generate(ctx context.Context, userID string, startDate string, durationWeeks int, opts WorkoutOptions) (GeneratedWorkoutCycle, error) {
	profile, err := loadCompleteProfile(ctx, service.profileRepo, userID)
	if err != nil {
		return GeneratedWorkoutCycle{}, err
	}

	durationWeeks = normalizeCycleWeeks(durationWeeks)
	opts.DaysPerWeek = normalizeDaysPerWeek(opts.DaysPerWeek)

	endDate, err := CycleEndDate(startDate, durationWeeks)
	if err != nil {
		return GeneratedWorkoutCycle{}, err
	}

	prompt := buildWorkoutPrompt(profile, durationWeeks, opts)
	text, err := service.completer.Complete(ctx, workoutSystemPrompt, prompt, completion.Options{
		Temperature: workoutTemperature,
		MaxTokens:   workoutMaxTokens,
	})
	if err != nil {
		return GeneratedWorkoutCycle{}, fmt.Errorf("requesting workout plan: %w", err)
	}

	name, days, err := parseWorkoutResponse(text)
	if err != nil {
		return GeneratedWorkoutCycle{}, err
	}
	if name == "" {
		name = fmt.Sprintf("%d-Week %s Program", durationWeeks, goalTitle(goalFor(profile, opts)))
	}

	slog.Info("generated workout cycle",
		"user_id", userID,
		"start_date", startDate,
		"weeks", durationWeeks,
		"days", len(days),
	)

	return GeneratedWorkoutCycle{
		Name:          name,
		DurationWeeks: durationWeeks,
		StartDate:     startDate,
		EndDate:       endDate,
		Days:          days,
	}, nil
}

// CreateCycle generates and stores an active cycle. A visible overlap is
// reported as repository.ErrConflict before the model is called; the store
// re-checks inside its transaction.
func (service *WorkoutService) CreateCycle(ctx context.Context, userID string, startDate string, durationWeeks int, opts WorkoutOptions) (models.WorkoutPlan, error) {
	durationWeeks = normalizeCycleWeeks(durationWeeks)
	endDate, err := CycleEndDate(startDate, durationWeeks)
	if err != nil {
		return models.WorkoutPlan{}, err
	}

	overlapping, err := service.planRepo.FindOverlapping(ctx, userID, startDate, endDate)
	if err != nil {
		return models.WorkoutPlan{}, fmt.Errorf("checking overlapping cycles: %w", err)
	}
	if len(overlapping) > 0 {
		return models.WorkoutPlan{}, fmt.Errorf("cycle %s to %s overlaps plan %s: %w",
			startDate, endDate, overlapping[0].ID, repository.ErrConflict)
	}

	cycle, err := service.Generate(ctx, userID, startDate, durationWeeks, opts)
	if err != nil {
		return models.WorkoutPlan{}, err
	}

	return service.planRepo.Create(ctx, models.WorkoutPlan{
		UserID:        userID,
		Name:          cycle.Name,
		DurationWeeks: cycle.DurationWeeks,
		StartDate:     cycle.StartDate,
		EndDate:       cycle.EndDate,
		Status:        models.WorkoutStatusActive,
		Days:          cycle.Days,
	})
}

func goalFor(profile models.UserProfile, opts WorkoutOptions) string {
	if opts.GoalOverride != "" {
		return opts.GoalOverride
	}
	return profile.PrimaryGoal()
}

func goalTitle(goal string) string {
	words := strings.Fields(strings.ReplaceAll(goal, "_", " "))
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

func buildWorkoutPrompt(profile models.UserProfile, durationWeeks int, opts WorkoutOptions) string {
	var prompt strings.Builder

	fmt.Fprintf(&prompt, "Design a %d-week training cycle with %d training days per week for the following client.\n\n",
		durationWeeks, opts.DaysPerWeek)

	prompt.WriteString("CLIENT PROFILE:\n")
	fmt.Fprintf(&prompt, "- Age: %d years\n", *profile.Age)
	fmt.Fprintf(&prompt, "- Weight: %.1f kg\n", *profile.WeightKg)
	fmt.Fprintf(&prompt, "- Height: %.1f cm\n", *profile.HeightCm)
	if profile.Gender != "" {
		fmt.Fprintf(&prompt, "- Gender: %s\n", profile.Gender)
	}
	if profile.ActivityLevel != "" {
		fmt.Fprintf(&prompt, "- Activity level: %s\n", profile.ActivityLevel)
	}
	fmt.Fprintf(&prompt, "- Goal: %s\n", goalFor(profile, opts))
	if opts.ExperienceLevel != "" {
		fmt.Fprintf(&prompt, "- Experience level: %s\n", opts.ExperienceLevel)
	}
	if len(profile.Preferences) > 0 {
		fmt.Fprintf(&prompt, "- Preferences: %s\n", strings.Join(profile.Preferences, ", "))
	}
	if opts.Preferences != "" {
		fmt.Fprintf(&prompt, "- Notes from the client: %s\n", opts.Preferences)
	}
	if len(profile.Restrictions) > 0 {
		fmt.Fprintf(&prompt, "- Injuries and restrictions: %s\n", strings.Join(profile.Restrictions, ", "))
	}
	prompt.WriteString("\n")

	prompt.WriteString("REQUIREMENTS:\n")
	fmt.Fprintf(&prompt, "- Return between %d and %d training days; aim for %d.\n", minDaysPerWeek, maxDaysPerWeek, opts.DaysPerWeek)
	prompt.WriteString("- Start every day with a short warm-up and avoid movements that conflict with the restrictions.\n")
	prompt.WriteString("- Give sets as a number, reps as a string (ranges like \"8-12\" are fine) and rest in seconds.\n\n")

	prompt.WriteString("Return JSON with exactly this structure:\n")
	prompt.WriteString(`{
  "name": "Program name",
  "days": [
    {
      "label": "Day 1 - Upper Body",
      "exercises": [
        {"name": "Bench Press", "sets": 4, "reps": "8-10", "rest_seconds": 90, "notes": "Control the descent"}
      ]
    }
  ]
}`)
	prompt.WriteString("\n")

	return prompt.String()
}

type workoutResponse struct {
	Name flexString      `json:"name"`
	Days json.RawMessage `json:"days"`
}

type workoutDayResponse struct {
	Label     flexString                `json:"label"`
	Day       flexString                `json:"day"`
	Exercises []workoutExerciseResponse `json:"exercises"`
}

type workoutExerciseResponse struct {
	Name        flexString `json:"name"`
	Sets        flexInt    `json:"sets"`
	Reps        flexString `json:"reps"`
	Rest        flexInt    `json:"rest"`
	RestSeconds flexInt    `json:"rest_seconds"`
	Notes       flexString `json:"notes"`
}

// UnmarshalJSON also accepts a bare string as an exercise name.
func (e *workoutExerciseResponse) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		return e.Name.UnmarshalJSON(data)
	}
	type plain workoutExerciseResponse
	return json.Unmarshal(data, (*plain)(e))
}

func parseWorkoutResponse(text string) (string, []models.WorkoutDay, error) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return "", nil, &ParseError{Reason: "no JSON object found"}
	}

	var response workoutResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return "", nil, &ParseError{Reason: fmt.Sprintf("decoding response: %v", err)}
	}
	days := bytes.TrimSpace(response.Days)
	if len(days) == 0 || days[0] != '[' {
		return "", nil, &InvalidStructureError{Reason: "days must be an array"}
	}

	var rawDays []workoutDayResponse
	if err := json.Unmarshal(days, &rawDays); err != nil {
		return "", nil, &InvalidStructureError{Reason: fmt.Sprintf("decoding days: %v", err)}
	}

	result := make([]models.WorkoutDay, 0, len(rawDays))
	for index, rawDay := range rawDays {
		day := models.WorkoutDay{
			Label:     rawDay.Label.Or(rawDay.Day.Or(fmt.Sprintf("Day %d", index+1))),
			Exercises: make([]models.Exercise, 0, len(rawDay.Exercises)),
		}
		for _, rawExercise := range rawDay.Exercises {
			rest := rawExercise.RestSeconds
			if !rest.Set {
				rest = rawExercise.Rest
			}
			day.Exercises = append(day.Exercises, models.Exercise{
				Name:        rawExercise.Name.Or(defaultExerciseName),
				Sets:        rawExercise.Sets.Or(defaultSets),
				Reps:        rawExercise.Reps.Or(defaultReps),
				RestSeconds: rest.Or(defaultRestSeconds),
				Notes:       rawExercise.Notes.Value,
			})
		}
		result = append(result, day)
	}

	return response.Name.Value, result, nil
}
