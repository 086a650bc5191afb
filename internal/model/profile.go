package model

import (
	"math"
	"time"
)

// HealthGoal drives the meal planner's calorie adjustment.
type HealthGoal string

const (
	GoalFatLoss     HealthGoal = "fat_loss"
	GoalMaintenance HealthGoal = "maintenance"
	GoalMuscleGain  HealthGoal = "muscle_gain"
)

// Valid reports whether g is a known goal.
func (g HealthGoal) Valid() bool {
	return g == GoalFatLoss || g == GoalMaintenance || g == GoalMuscleGain
}

// UserProfile holds per-user display and health data. Exactly one per user.
type UserProfile struct {
	ID         string      `json:"id"`
	UserID     string      `json:"userId"`
	FullName   string      `json:"fullName"`
	Height     *float64    `json:"height,omitempty"` // centimetres
	Weight     *float64    `json:"weight,omitempty"` // kilograms
	BMI        *float64    `json:"bmi,omitempty"`
	HealthGoal *HealthGoal `json:"healthGoal,omitempty"`
	Badges     []string    `json:"badges"`
	Credits    int64       `json:"credits"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// HasBadge reports whether the profile already holds badge id.
func (p *UserProfile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// SustainabilityStats holds cumulative per-user counters. Exactly one per user.
// Nothing derives these from pantry activity; they change only through
// explicit partial updates.
type SustainabilityStats struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	TotalItems   int64     `json:"totalItems"`
	ItemsUsed    int64     `json:"itemsUsed"`
	ItemsDonated int64     `json:"itemsDonated"`
	ItemsSold    int64     `json:"itemsSold"`
	CO2Saved     float64   `json:"co2Saved"`    // kilograms
	FoodSavedKg  float64   `json:"foodSavedKg"` // kilograms
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewProfile is the defaults table for a lazily created profile.
func NewProfile(userID, fullName string) *UserProfile {
	return &UserProfile{
		UserID:   userID,
		FullName: fullName,
		Badges:   []string{},
		Credits:  0,
	}
}

// NewStats is the defaults table for lazily created stats: all zero.
func NewStats(userID string) *SustainabilityStats {
	return &SustainabilityStats{UserID: userID}
}

// BMI returns weight / (height in metres)², rounded to one decimal.
func BMI(heightCm, weightKg float64) float64 {
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*10) / 10
}
