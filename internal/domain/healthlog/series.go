package healthlog

import (
	"sort"

	"github.com/samber/lo"

	"github.com/mediimate/gateway/internal/platform/backend"
)

// BuildSeries turns raw logs into the patient dashboard series. Every meal
// with a calorie total and every vital with calories consumed is one point;
// entries missing their measurement are skipped. All series are ordered by
// date ascending.
func BuildSeries(logs *backend.HealthLogs) Series {
	var out Series

	for _, m := range logs.MealLogs {
		if m.TotalCalories != nil {
			out.Calories = append(out.Calories, CaloriePoint{Date: m.Date, Calories: *m.TotalCalories})
		}
	}
	for _, v := range logs.VitalLogs {
		if v.CaloriesConsumed != nil && *v.CaloriesConsumed != 0 {
			out.Calories = append(out.Calories, CaloriePoint{Date: v.Date, Calories: *v.CaloriesConsumed})
		}
	}
	out.BP = bpPoints(logs.VitalLogs, func(v backend.VitalLog) string { return v.Date })
	out.Weight = weightPoints(logs.VitalLogs, func(v backend.VitalLog) string { return v.Date })

	sortByDate(out.Calories, func(p CaloriePoint) string { return p.Date })
	return out.nonNil()
}

// BuildTrends is the doctor's view of a patient's vitals: food calories are
// summed per day, and every point is keyed by the day the log was created.
func BuildTrends(vitals []backend.VitalLog) Series {
	day := func(v backend.VitalLog) string {
		if v.CreatedAt != "" {
			return backend.DayOf(v.CreatedAt)
		}
		return backend.DayOf(v.Date)
	}

	food := lo.Filter(vitals, func(v backend.VitalLog, _ int) bool {
		return v.Type == TypeFood && v.CaloriesConsumed != nil
	})
	perDay := make(map[string]float64)
	for _, v := range food {
		perDay[day(v)] += *v.CaloriesConsumed
	}

	var out Series
	for _, d := range lo.Keys(perDay) {
		out.Calories = append(out.Calories, CaloriePoint{Date: d, Calories: perDay[d]})
	}
	sortByDate(out.Calories, func(p CaloriePoint) string { return p.Date })

	out.BP = bpPoints(vitals, day)
	out.Weight = weightPoints(vitals, day)
	return out.nonNil()
}

func bpPoints(vitals []backend.VitalLog, day func(backend.VitalLog) string) []BPPoint {
	var out []BPPoint
	for _, v := range vitals {
		if v.Type != TypeBP || v.Systolic == nil || v.Diastolic == nil {
			continue
		}
		out = append(out, BPPoint{Date: day(v), Systolic: *v.Systolic, Diastolic: *v.Diastolic})
	}
	sortByDate(out, func(p BPPoint) string { return p.Date })
	return out
}

func weightPoints(vitals []backend.VitalLog, day func(backend.VitalLog) string) []WeightPoint {
	var out []WeightPoint
	for _, v := range vitals {
		if v.Type != TypeWeight {
			continue
		}
		w, ok := v.Value.Float()
		if !ok {
			continue
		}
		out = append(out, WeightPoint{Date: day(v), Weight: w})
	}
	sortByDate(out, func(p WeightPoint) string { return p.Date })
	return out
}

// GroupByDate buckets vital logs by their date. Days are ordered newest
// first, and entries within a day newest first by time.
func GroupByDate(vitals []backend.VitalLog) []DayGroup {
	grouped := lo.GroupBy(vitals, func(v backend.VitalLog) string { return v.Date })

	days := lo.Keys(grouped)
	sort.SliceStable(days, func(i, j int) bool {
		if backend.Newer(days[i], days[j]) {
			return true
		}
		if backend.Newer(days[j], days[i]) {
			return false
		}
		return days[i] > days[j]
	})

	out := make([]DayGroup, 0, len(days))
	for _, d := range days {
		logs := grouped[d]
		sort.SliceStable(logs, func(i, j int) bool {
			return backend.Newer(logs[i].Date+" "+logs[i].Time, logs[j].Date+" "+logs[j].Time)
		})
		out = append(out, DayGroup{Date: d, Logs: logs})
	}
	return out
}

// SortMeals orders meal logs newest first.
func SortMeals(meals []backend.MealLog) []backend.MealLog {
	out := append([]backend.MealLog(nil), meals...)
	sort.SliceStable(out, func(i, j int) bool {
		return backend.Newer(mealStamp(out[i]), mealStamp(out[j]))
	})
	return out
}

func mealStamp(m backend.MealLog) string {
	if m.CreatedAt != "" {
		return m.CreatedAt
	}
	if m.Time != "" {
		return m.Date + " " + m.Time
	}
	return m.Date
}

// sortByDate orders ascending; unparsable dates go last, original order
// kept among equals.
func sortByDate[T any](items []T, date func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return backend.Older(date(items[i]), date(items[j]))
	})
}

func (s Series) nonNil() Series {
	if s.Calories == nil {
		s.Calories = []CaloriePoint{}
	}
	if s.BP == nil {
		s.BP = []BPPoint{}
	}
	if s.Weight == nil {
		s.Weight = []WeightPoint{}
	}
	return s
}
