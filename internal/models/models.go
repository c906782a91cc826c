package models

import "time"

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

const (
	GoalWeightLoss  = "weight_loss"
	GoalMuscleGain  = "muscle_gain"
	GoalMaintenance = "maintenance"
	GoalEndurance   = "endurance"
)

type DietPlanSource string

const (
	DietPlanSourceManual    DietPlanSource = "manual"
	DietPlanSourceAI        DietPlanSource = "ai"
	DietPlanSourceAutoDaily DietPlanSource = "auto-daily"
)

type WorkoutStatus string

const (
	WorkoutStatusActive    WorkoutStatus = "active"
	WorkoutStatusCompleted WorkoutStatus = "completed"
	WorkoutStatusCancelled WorkoutStatus = "cancelled"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserProfile struct {
	UserID             string             `json:"user_id"`
	Age                *int               `json:"age"`
	WeightKg           *float64           `json:"weight_kg"`
	HeightCm           *float64           `json:"height_cm"`
	Gender             string             `json:"gender"`
	ActivityLevel      ActivityLevel      `json:"activity_level"`
	Goals              []string           `json:"goals"`
	Preferences        []string           `json:"preferences"`
	Restrictions       []string           `json:"restrictions"`
	Timezone           string             `json:"timezone"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	SubscriptionEndsAt *time.Time         `json:"subscription_ends_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// MissingFields lists the biometric fields generation cannot run without.
func (profile UserProfile) MissingFields() []string {
	var missing []string
	if profile.Age == nil {
		missing = append(missing, "age")
	}
	if profile.WeightKg == nil {
		missing = append(missing, "weight")
	}
	if profile.HeightCm == nil {
		missing = append(missing, "height")
	}
	return missing
}

func (profile UserProfile) IsComplete() bool {
	return len(profile.MissingFields()) == 0
}

func (profile UserProfile) PrimaryGoal() string {
	if len(profile.Goals) == 0 || profile.Goals[0] == "" {
		return GoalMaintenance
	}
	return profile.Goals[0]
}

// HasActiveSubscription reports whether the profile may use paid features at now.
func (profile UserProfile) HasActiveSubscription(now time.Time) bool {
	if profile.SubscriptionStatus != SubscriptionActive && profile.SubscriptionStatus != SubscriptionTrial {
		return false
	}
	return profile.SubscriptionEndsAt == nil || profile.SubscriptionEndsAt.After(now)
}

type Macros struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fats    int `json:"fats"`
}

func (macros Macros) Add(other Macros) Macros {
	return Macros{
		Protein: macros.Protein + other.Protein,
		Carbs:   macros.Carbs + other.Carbs,
		Fats:    macros.Fats + other.Fats,
	}
}

type FoodItem struct {
	Name     string `json:"name"`
	Portion  string `json:"portion"`
	Calories int    `json:"calories"`
	Protein  int    `json:"protein"`
	Carbs    int    `json:"carbs"`
	Fats     int    `json:"fats"`
}

type Meal struct {
	Name          string     `json:"name"`
	Time          string     `json:"time"`
	Foods         []FoodItem `json:"foods"`
	TotalCalories int        `json:"total_calories"`
	TotalMacros   Macros     `json:"total_macros"`
}

// NewMeal builds a meal whose totals are derived from its food items.
func NewMeal(name string, timeOfDay string, foods []FoodItem) Meal {
	meal := Meal{Name: name, Time: timeOfDay, Foods: foods}
	for _, food := range foods {
		meal.TotalCalories += food.Calories
		meal.TotalMacros = meal.TotalMacros.Add(Macros{Protein: food.Protein, Carbs: food.Carbs, Fats: food.Fats})
	}
	return meal
}

type DietPlan struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Date           string         `json:"date"`
	TargetCalories int            `json:"target_calories"`
	TargetMacros   Macros         `json:"target_macros"`
	Meals          []Meal         `json:"meals"`
	Source         DietPlanSource `json:"source"`
	ProgressLogID  *string        `json:"progress_log_id,omitempty"`
	Notes          string         `json:"notes"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type Exercise struct {
	Name        string `json:"name"`
	Sets        int    `json:"sets"`
	Reps        string `json:"reps"`
	RestSeconds int    `json:"rest_seconds"`
	Notes       string `json:"notes,omitempty"`
}

type WorkoutDay struct {
	Label     string     `json:"label"`
	Exercises []Exercise `json:"exercises"`
}

type WorkoutPlan struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Name          string        `json:"name"`
	DurationWeeks int           `json:"duration_weeks"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	Status        WorkoutStatus `json:"status"`
	Days          []WorkoutDay  `json:"days"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type LoggedMeal struct {
	Name     string `json:"name"`
	Calories int    `json:"calories"`
}

type ProgressLog struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Date      string       `json:"date"`
	Meals     []LoggedMeal `json:"meals"`
	WeightKg  *float64     `json:"weight_kg,omitempty"`
	Notes     string       `json:"notes"`
	CreatedAt time.Time    `json:"created_at"`
}

func (log ProgressLog) LoggedCalories() int {
	total := 0
	for _, meal := range log.Meals {
		total += meal.Calories
	}
	return total
}

type APIToken struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	TokenHash string     `json:"-"`
	UserID    string     `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
