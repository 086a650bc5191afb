// Package planner computes a BMI reading, a daily calorie target and sample
// meal plans for the meal-planner page.
package planner

import (
	"fmt"
	"math"
	"time"

	"github.com/sakif/wastenot/internal/model"
)

// Sex selects the base calorie figure.
type Sex string

const (
	Female Sex = "female"
	Male   Sex = "male"
)

// Base daily calories for a moderately active adult.
const (
	BaseCaloriesFemale = 1800
	BaseCaloriesMale   = 2200
)

// Category is a BMI band.
type Category string

const (
	Underweight Category = "Underweight"
	Normal      Category = "Normal"
	Overweight  Category = "Overweight"
	Obese       Category = "Obese"
)

// CategoryOf classifies bmi: <18.5, <25, <30, else obese.
func CategoryOf(bmi float64) Category {
	switch {
	case bmi < 18.5:
		return Underweight
	case bmi < 25:
		return Normal
	case bmi < 30:
		return Overweight
	default:
		return Obese
	}
}

// DailyCalories returns the target for sex and goal: the base figure scaled
// by 0.85 for fat loss, 1.15 for muscle gain, unchanged otherwise.
func DailyCalories(sex Sex, goal model.HealthGoal) int {
	base := float64(BaseCaloriesFemale)
	if sex == Male {
		base = BaseCaloriesMale
	}
	switch goal {
	case model.GoalFatLoss:
		base *= 0.85
	case model.GoalMuscleGain:
		base *= 1.15
	}
	return int(math.Round(base))
}

// Input is what the planner form submits.
type Input struct {
	HeightCm float64          `json:"height" validate:"gt=0,lte=300"`
	WeightKg float64          `json:"weight" validate:"gt=0,lte=700"`
	Sex      Sex              `json:"sex"    validate:"omitempty,oneof=female male"`
	Goal     model.HealthGoal `json:"goal"   validate:"omitempty,oneof=fat_loss maintenance muscle_gain"`
}

// Meal is one dish of a day.
type Meal struct {
	Name       string `json:"name"`
	Calories   int    `json:"calories"`
	FromPantry bool   `json:"fromPantry"`
}

// DayPlan is one day's meals. Snack is optional.
type DayPlan struct {
	Day       string     `json:"day"`
	Date      model.Date `json:"date"`
	Breakfast Meal       `json:"breakfast"`
	Lunch     Meal       `json:"lunch"`
	Dinner    Meal       `json:"dinner"`
	Snack     *Meal      `json:"snack,omitempty"`
}

func (d DayPlan) meals() []Meal {
	m := []Meal{d.Breakfast, d.Lunch, d.Dinner}
	if d.Snack != nil {
		m = append(m, *d.Snack)
	}
	return m
}

// TotalCalories sums every meal of the day.
func (d DayPlan) TotalCalories() int {
	total := 0
	for _, m := range d.meals() {
		total += m.Calories
	}
	return total
}

// PantryPercentage is the rounded share of the day's meals cooked from the
// pantry.
func (d DayPlan) PantryPercentage() int {
	meals := d.meals()
	n := 0
	for _, m := range meals {
		if m.FromPantry {
			n++
		}
	}
	return int(math.Round(float64(n) / float64(len(meals)) * 100))
}

// Plan is the planner's full answer.
type Plan struct {
	BMI           float64   `json:"bmi"`
	Category      Category  `json:"category"`
	DailyCalories int       `json:"dailyCalories"`
	Goal          string    `json:"goal"`
	Days          []DayPlan `json:"days"`
}

// Build computes the plan for in, with sample days starting on the Monday
// of the week containing today.
func Build(in Input, today model.Date) (*Plan, error) {
	if in.HeightCm <= 0 || in.WeightKg <= 0 {
		return nil, fmt.Errorf("height and weight must be positive")
	}
	if in.Sex == "" {
		in.Sex = Female
	}
	if in.Goal == "" {
		in.Goal = model.GoalMaintenance
	}

	bmi := model.BMI(in.HeightCm, in.WeightKg)

	return &Plan{
		BMI:           bmi,
		Category:      CategoryOf(bmi),
		DailyCalories: DailyCalories(in.Sex, in.Goal),
		Goal:          GoalLabel(in.Goal),
		Days:          SampleWeek(today),
	}, nil
}

// GoalLabel renders a goal for display: "fat_loss" → "Fat Loss".
func GoalLabel(g model.HealthGoal) string {
	switch g {
	case model.GoalFatLoss:
		return "Fat Loss"
	case model.GoalMuscleGain:
		return "Muscle Gain"
	case model.GoalMaintenance:
		return "Maintenance"
	}
	return string(g)
}

// SampleWeek returns the canned plan dated from the Monday of today's week.
func SampleWeek(today model.Date) []DayPlan {
	t := time.Date(today.Year, today.Month, today.Day, 0, 0, 0, 0, time.UTC)
	offset := (int(t.Weekday()) + 6) % 7
	monday := today.AddDays(-offset)

	days := []DayPlan{
		{
			Breakfast: Meal{"Overnight Oats with Berries", 320, true},
			Lunch:     Meal{"Quinoa Salad Bowl", 450, true},
			Dinner:    Meal{"Grilled Chicken with Roasted Vegetables", 520, false},
			Snack:     &Meal{"Greek Yogurt with Nuts", 180, true},
		},
		{
			Breakfast: Meal{"Vegetable Scramble", 290, true},
			Lunch:     Meal{"Leftover Rice Stir-fry", 380, true},
			Dinner:    Meal{"Lentil Curry with Brown Rice", 480, true},
		},
		{
			Breakfast: Meal{"Smoothie Bowl", 340, false},
			Lunch:     Meal{"Pantry Pasta Salad", 420, true},
			Dinner:    Meal{"Stuffed Bell Peppers", 460, true},
		},
	}
	for i := range days {
		d := monday.AddDays(i)
		days[i].Date = d
		days[i].Day = time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday().String()
	}
	return days
}
