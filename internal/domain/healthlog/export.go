package healthlog

import (
	"bytes"
	"fmt"

	"github.com/360EntSecGroup-Skylar/excelize"

	"github.com/mediimate/gateway/internal/platform/backend"
)

const (
	SheetMeals  = "Meals"
	SheetVitals = "Vitals"
)

var mealHeaders = map[string]string{
	"A1": "Date",
	"B1": "Time",
	"C1": "Meal",
	"D1": "Description",
	"E1": "Calories",
}

var vitalHeaders = map[string]string{
	"A1": "Date",
	"B1": "Time",
	"C1": "Type",
	"D1": "Systolic",
	"E1": "Diastolic",
	"F1": "Value",
	"G1": "Unit",
	"H1": "Calories",
	"I1": "Description",
}

// Workbook renders meal and vital logs as an xlsx file, one sheet each.
func Workbook(logs *backend.HealthLogs) ([]byte, error) {
	file := excelize.NewFile()
	file.NewSheet(SheetMeals)
	file.NewSheet(SheetVitals)
	file.DeleteSheet("Sheet1")
	file.SetActiveSheet(file.GetSheetIndex(SheetMeals))

	for k, v := range mealHeaders {
		file.SetCellValue(SheetMeals, k, v)
	}
	for i, m := range SortMeals(logs.MealLogs) {
		appendMealRow(file, i+2, m)
	}

	for k, v := range vitalHeaders {
		file.SetCellValue(SheetVitals, k, v)
	}
	row := 2
	for _, day := range GroupByDate(logs.VitalLogs) {
		for _, v := range day.Logs {
			appendVitalRow(file, row, v)
			row++
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func appendMealRow(file *excelize.File, row int, m backend.MealLog) {
	file.SetCellValue(SheetMeals, fmt.Sprintf("A%d", row), m.Date)
	file.SetCellValue(SheetMeals, fmt.Sprintf("B%d", row), m.Time)
	file.SetCellValue(SheetMeals, fmt.Sprintf("C%d", row), m.MealType)
	file.SetCellValue(SheetMeals, fmt.Sprintf("D%d", row), m.Description)
	if m.TotalCalories != nil {
		file.SetCellValue(SheetMeals, fmt.Sprintf("E%d", row), *m.TotalCalories)
	}
}

func appendVitalRow(file *excelize.File, row int, v backend.VitalLog) {
	file.SetCellValue(SheetVitals, fmt.Sprintf("A%d", row), v.Date)
	file.SetCellValue(SheetVitals, fmt.Sprintf("B%d", row), v.Time)
	file.SetCellValue(SheetVitals, fmt.Sprintf("C%d", row), v.Type)
	if v.Systolic != nil {
		file.SetCellValue(SheetVitals, fmt.Sprintf("D%d", row), *v.Systolic)
	}
	if v.Diastolic != nil {
		file.SetCellValue(SheetVitals, fmt.Sprintf("E%d", row), *v.Diastolic)
	}
	if f, ok := v.Value.Float(); ok {
		file.SetCellValue(SheetVitals, fmt.Sprintf("F%d", row), f)
	} else {
		file.SetCellValue(SheetVitals, fmt.Sprintf("F%d", row), string(v.Value))
	}
	file.SetCellValue(SheetVitals, fmt.Sprintf("G%d", row), v.Unit)
	if v.CaloriesConsumed != nil {
		file.SetCellValue(SheetVitals, fmt.Sprintf("H%d", row), *v.CaloriesConsumed)
	}
	file.SetCellValue(SheetVitals, fmt.Sprintf("I%d", row), v.Description)
}
