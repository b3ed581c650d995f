package healthlog

import "github.com/mediimate/gateway/internal/platform/backend"

// Vital log types.
const (
	TypeBP     = "bp"
	TypeWeight = "weight"
	TypeFood   = "food"
)

type CaloriePoint struct {
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
}

type BPPoint struct {
	Date      string  `json:"date"`
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

type WeightPoint struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// Series holds the three chart series shown on a dashboard.
type Series struct {
	Calories []CaloriePoint `json:"caloriesData"`
	BP       []BPPoint      `json:"bpData"`
	Weight   []WeightPoint  `json:"weightData"`
}

// DayGroup is one day of vital logs, newest entry first.
type DayGroup struct {
	Date string             `json:"date"`
	Logs []backend.VitalLog `json:"logs"`
}

type Dashboard struct {
	Series
	MealCount  int `json:"mealCount"`
	VitalCount int `json:"vitalCount"`
}
