package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/bensuskins/gymthon/internal/completion"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/nutrition"
	"github.com/bensuskins/gymthon/internal/repository"
)

// Completer is the part of the completion client the pipelines use.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, userPrompt string, opts completion.Options) (string, error)
}

const (
	dietSystemPrompt = "You are a certified nutritionist who designs practical daily meal plans. " +
		"Respond with a single JSON object only, with no commentary or markdown."
	dietTemperature   = 0.7
	dietMaxTokens     = 2500
	lowAdherenceLimit = 70
)

type Adherence struct {
	Percent        int `json:"percent"`
	LoggedCalories int `json:"logged_calories"`
	MealsLogged    int `json:"meals_logged"`
}

type GeneratedDietPlan struct {
	TargetCalories int           `json:"target_calories"`
	TargetMacros   models.Macros `json:"target_macros"`
	Meals          []models.Meal `json:"meals"`
	TotalCalories  int           `json:"total_calories"`
	TotalMacros    models.Macros `json:"total_macros"`
	ProgressLogID  *string       `json:"progress_log_id,omitempty"`
	Adherence      *Adherence    `json:"adherence,omitempty"`
}

type DietPlanRequest struct {
	UserID        string
	Date          string
	PreviousLogID string
	Source        models.DietPlanSource
	Notes         string
}

type DietService struct {
	profileRepo repository.ProfileRepository
	logRepo     repository.ProgressLogRepository
	planRepo    repository.DietPlanRepository
	completer   Completer
}

func NewDietService(
	profileRepo repository.ProfileRepository,
	logRepo repository.ProgressLogRepository,
	planRepo repository.DietPlanRepository,
	completer Completer,
) *DietService {
	return &DietService{
		profileRepo: profileRepo,
		logRepo:     logRepo,
		planRepo:    planRepo,
		completer:   completer,
	}
}

// Generate builds a plan for the date without persisting it. previousLogID
// may be empty; when set, that log's adherence shapes the prompt.
func (service *DietService) Generate(ctx context.Context, userID string, date string, previousLogID string) (GeneratedDietPlan, error) {
	profile, err := loadCompleteProfile(ctx, service.profileRepo, userID)
	if err != nil {
		return GeneratedDietPlan{}, err
	}

	targets, err := CalculateTargets(profile)
	if err != nil {
		return GeneratedDietPlan{}, err
	}

	plan := GeneratedDietPlan{
		TargetCalories: targets.Calories,
		TargetMacros:   targets.Macros,
	}

	if previousLogID != "" {
		log, err := service.logRepo.FindByID(ctx, previousLogID)
		if err != nil {
			return GeneratedDietPlan{}, fmt.Errorf("loading previous progress log: %w", err)
		}
		if log.UserID != userID {
			return GeneratedDietPlan{}, fmt.Errorf("progress log %s belongs to another user: %w", previousLogID, repository.ErrNotFound)
		}
		adherence := calculateAdherence(log, targets.Calories)
		plan.Adherence = &adherence
		plan.ProgressLogID = &log.ID
	}

	prompt := buildDietPrompt(profile, targets, date, plan.Adherence)
	text, err := service.completer.Complete(ctx, dietSystemPrompt, prompt, completion.Options{
		Temperature: dietTemperature,
		MaxTokens:   dietMaxTokens,
	})
	if err != nil {
		return GeneratedDietPlan{}, fmt.Errorf("requesting diet plan: %w", err)
	}

	meals, err := parseDietResponse(text)
	if err != nil {
		return GeneratedDietPlan{}, err
	}

	plan.Meals = meals
	for _, meal := range meals {
		plan.TotalCalories += meal.TotalCalories
		plan.TotalMacros = plan.TotalMacros.Add(meal.TotalMacros)
	}

	slog.Info("generated diet plan",
		"user_id", userID,
		"date", date,
		"target_calories", plan.TargetCalories,
		"planned_calories", plan.TotalCalories,
		"meals", len(plan.Meals),
	)
	return plan, nil
}

// CreatePlan generates and stores a plan. An existing plan for the same
// user and date is reported as repository.ErrConflict before any model call.
func (service *DietService) CreatePlan(ctx context.Context, request DietPlanRequest) (models.DietPlan, error) {
	if _, err := service.planRepo.FindByUserAndDate(ctx, request.UserID, request.Date); err == nil {
		return models.DietPlan{}, fmt.Errorf("diet plan for %s already exists: %w", request.Date, repository.ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return models.DietPlan{}, fmt.Errorf("checking existing diet plan: %w", err)
	}

	generated, err := service.Generate(ctx, request.UserID, request.Date, request.PreviousLogID)
	if err != nil {
		return models.DietPlan{}, err
	}

	source := request.Source
	if source == "" {
		source = models.DietPlanSourceAI
	}

	return service.planRepo.Create(ctx, models.DietPlan{
		UserID:         request.UserID,
		Date:           request.Date,
		TargetCalories: generated.TargetCalories,
		TargetMacros:   generated.TargetMacros,
		Meals:          generated.Meals,
		Source:         source,
		ProgressLogID:  generated.ProgressLogID,
		Notes:          request.Notes,
	})
}

func loadCompleteProfile(ctx context.Context, profileRepo repository.ProfileRepository, userID string) (models.UserProfile, error) {
	profile, err := profileRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.UserProfile{}, &IncompleteProfileError{UserID: userID, Missing: models.UserProfile{}.MissingFields()}
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("loading profile: %w", err)
	}
	if missing := profile.MissingFields(); len(missing) > 0 {
		return models.UserProfile{}, &IncompleteProfileError{UserID: userID, Missing: missing}
	}
	return profile, nil
}

func calculateAdherence(log models.ProgressLog, targetCalories int) Adherence {
	logged := log.LoggedCalories()
	adherence := Adherence{LoggedCalories: logged, MealsLogged: len(log.Meals)}
	if targetCalories > 0 {
		percent := math.Round(float64(logged) / float64(targetCalories) * 100)
		adherence.Percent = int(math.Min(percent, 100))
	}
	return adherence
}

func buildDietPrompt(profile models.UserProfile, targets Targets, date string, adherence *Adherence) string {
	var prompt strings.Builder

	prompt.WriteString("Create a one-day meal plan for the following client.\n\n")

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
	fmt.Fprintf(&prompt, "- Primary goal: %s\n", profile.PrimaryGoal())
	if len(profile.Goals) > 1 {
		fmt.Fprintf(&prompt, "- Other goals: %s\n", strings.Join(profile.Goals[1:], ", "))
	}
	prompt.WriteString("\n")

	prompt.WriteString("DAILY TARGETS:\n")
	fmt.Fprintf(&prompt, "- Date: %s\n", date)
	fmt.Fprintf(&prompt, "- Calories: %d kcal\n", targets.Calories)
	fmt.Fprintf(&prompt, "- Protein: %dg\n", targets.Macros.Protein)
	fmt.Fprintf(&prompt, "- Carbs: %dg\n", targets.Macros.Carbs)
	fmt.Fprintf(&prompt, "- Fats: %dg\n", targets.Macros.Fats)
	prompt.WriteString("\n")

	if len(profile.Preferences) > 0 {
		fmt.Fprintf(&prompt, "PREFERENCES: %s\n", strings.Join(profile.Preferences, ", "))
	}
	if len(profile.Restrictions) > 0 {
		fmt.Fprintf(&prompt, "RESTRICTIONS (never include): %s\n", strings.Join(profile.Restrictions, ", "))
	}

	if adherence != nil {
		prompt.WriteString("\nPREVIOUS DAY:\n")
		fmt.Fprintf(&prompt, "- Logged %d kcal across %d meals (%d%% of target)\n",
			adherence.LoggedCalories, adherence.MealsLogged, adherence.Percent)
		if adherence.Percent < lowAdherenceLimit {
			prompt.WriteString("- The client struggled to follow yesterday's plan. Favour simpler meals with fewer ingredients and little preparation.\n")
		} else {
			prompt.WriteString("- The client followed yesterday's plan well. Keep a similar structure with some variety.\n")
		}
	}

	prompt.WriteString("\nREQUIREMENTS:\n")
	prompt.WriteString("- Plan between 4 and 6 meals spread across the day.\n")
	prompt.WriteString("- Give every food a concrete portion in grams (e.g. \"150g\") or household measures (cup, tbsp, tsp).\n")
	prompt.WriteString("- Stay close to the calorie and macro targets.\n\n")

	prompt.WriteString("Return JSON with exactly this structure:\n")
	prompt.WriteString(`{
  "meals": [
    {
      "name": "Breakfast",
      "time": "08:00",
      "foods": [
        {"name": "Rolled oats", "portion": "80g", "calories": 300, "protein": 10, "carbs": 54, "fats": 5}
      ]
    }
  ]
}`)
	prompt.WriteString("\n")

	return prompt.String()
}

type dietResponse struct {
	Meals *[]dietMealResponse `json:"meals"`
}

type dietMealResponse struct {
	Name  flexString         `json:"name"`
	Time  flexString         `json:"time"`
	Foods []dietFoodResponse `json:"foods"`
}

type dietFoodResponse struct {
	Name    flexString `json:"name"`
	Portion flexString `json:"portion"`
}

// parseDietResponse keeps only names and portions from the reply; every
// number is recomputed by the nutrition estimator.
func parseDietResponse(text string) ([]models.Meal, error) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return nil, &ParseError{Reason: "no JSON object found"}
	}

	var response dietResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("decoding meals: %v", err)}
	}
	if response.Meals == nil {
		return nil, &ParseError{Reason: "missing meals"}
	}

	var meals []models.Meal
	for index, rawMeal := range *response.Meals {
		var foods []models.FoodItem
		for _, rawFood := range rawMeal.Foods {
			if !rawFood.Name.Set {
				continue
			}
			portion := rawFood.Portion.Or("100g")
			estimate := nutrition.Estimate(rawFood.Name.Value, portion)
			foods = append(foods, models.FoodItem{
				Name:     rawFood.Name.Value,
				Portion:  portion,
				Calories: estimate.Calories,
				Protein:  estimate.Protein,
				Carbs:    estimate.Carbs,
				Fats:     estimate.Fats,
			})
		}
		if len(foods) == 0 {
			continue
		}
		meals = append(meals, models.NewMeal(
			rawMeal.Name.Or(fmt.Sprintf("Meal %d", index+1)),
			rawMeal.Time.Value,
			foods,
		))
	}

	if len(meals) == 0 {
		return nil, &ParseError{Reason: "no meals with named foods"}
	}
	return meals, nil
}
