package services

import (
	"math"
	"strings"

	"github.com/bensuskins/gymthon/internal/models"
)

var activityMultipliers = map[models.ActivityLevel]float64{
	models.ActivitySedentary:  1.2,
	models.ActivityLight:      1.375,
	models.ActivityModerate:   1.55,
	models.ActivityActive:     1.725,
	models.ActivityVeryActive: 1.9,
}

const defaultActivityMultiplier = 1.55

var goalAdjustments = map[string]int{
	models.GoalWeightLoss:  -500,
	models.GoalMuscleGain:  300,
	models.GoalEndurance:   200,
	models.GoalMaintenance: 0,
}

// MacroSplit is the share of target calories given to each macro.
type MacroSplit struct {
	Protein float64
	Carbs   float64
	Fats    float64
}

var goalMacroSplits = map[string]MacroSplit{
	models.GoalMuscleGain: {Protein: 0.30, Carbs: 0.45, Fats: 0.25},
	models.GoalWeightLoss: {Protein: 0.35, Carbs: 0.35, Fats: 0.30},
	models.GoalEndurance:  {Protein: 0.20, Carbs: 0.55, Fats: 0.25},
}

var defaultMacroSplit = MacroSplit{Protein: 0.25, Carbs: 0.45, Fats: 0.30}

const (
	caloriesPerGramProtein = 4
	caloriesPerGramCarbs   = 4
	caloriesPerGramFat     = 9
)

type Targets struct {
	BMR      float64       `json:"bmr"`
	TDEE     int           `json:"tdee"`
	Calories int           `json:"calories"`
	Macros   models.Macros `json:"macros"`
}

// BMR uses the Mifflin-St Jeor equation.
func BMR(weightKg float64, heightCm float64, age int, gender string) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if strings.EqualFold(strings.TrimSpace(gender), "male") {
		return base + 5
	}
	return base - 161
}

func ActivityMultiplier(level models.ActivityLevel) float64 {
	if multiplier, ok := activityMultipliers[level]; ok {
		return multiplier
	}
	return defaultActivityMultiplier
}

func GoalAdjustment(goal string) int {
	return goalAdjustments[goal]
}

func MacroSplitFor(goal string) MacroSplit {
	if split, ok := goalMacroSplits[goal]; ok {
		return split
	}
	return defaultMacroSplit
}

// MacrosFor converts target calories into rounded gram targets.
func MacrosFor(calories int, goal string) models.Macros {
	split := MacroSplitFor(goal)
	total := float64(calories)
	return models.Macros{
		Protein: int(math.Round(total * split.Protein / caloriesPerGramProtein)),
		Carbs:   int(math.Round(total * split.Carbs / caloriesPerGramCarbs)),
		Fats:    int(math.Round(total * split.Fats / caloriesPerGramFat)),
	}
}

// CalculateTargets derives daily targets from a complete profile.
func CalculateTargets(profile models.UserProfile) (Targets, error) {
	if missing := profile.MissingFields(); len(missing) > 0 {
		return Targets{}, &IncompleteProfileError{UserID: profile.UserID, Missing: missing}
	}

	bmr := BMR(*profile.WeightKg, *profile.HeightCm, *profile.Age, profile.Gender)
	tdee := int(math.Round(bmr * ActivityMultiplier(profile.ActivityLevel)))
	goal := profile.PrimaryGoal()
	calories := tdee + GoalAdjustment(goal)

	return Targets{
		BMR:      bmr,
		TDEE:     tdee,
		Calories: calories,
		Macros:   MacrosFor(calories, goal),
	}, nil
}
