package records

import (
	"encoding/json"
	"testing"

	"github.com/mediimate/gateway/internal/platform/backend"
)

func decodeRaw(t *testing.T, doc string) backend.RawReport {
	t.Helper()
	var r backend.RawReport
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return r
}

func TestNormalizeReport_Defaults(t *testing.T) {
	rep := NormalizeReport(backend.RawReport{ID: "r1"})

	if rep.Title != "Untitled Report" || rep.ReportType != "Other" || rep.ProcessingStatus != StatusUploaded {
		t.Errorf("unexpected defaults %+v", rep)
	}
	if rep.AIAnalysis != nil {
		t.Error("expected no analysis")
	}
	if rep.TestResults == nil || rep.Tags == nil || rep.Trends == nil || rep.Files == nil {
		t.Error("expected empty slices, not nil")
	}
	if rep.FileInfo.OriginalName != "Unknown file" {
		t.Errorf("unexpected file name %q", rep.FileInfo.OriginalName)
	}
}

func TestNormalizeReport_TitleFallsBackToFileName(t *testing.T) {
	rep := NormalizeReport(backend.RawReport{OriginalFileName: "cbc.pdf"})
	if rep.Title != "cbc.pdf" || rep.FileInfo.OriginalName != "cbc.pdf" {
		t.Errorf("unexpected %q / %q", rep.Title, rep.FileInfo.OriginalName)
	}
}

func TestNormalizeReport_SnakeCaseTestResults(t *testing.T) {
	raw := decodeRaw(t, `{
		"_id": "r1",
		"created_at": "2025-11-01T10:00:00Z",
		"test_results": [
			{"name": "Hemoglobin", "value": 13.5, "unit": "g/dL", "reference_range": "13.0 - 17.0"},
			{"value": "Negative", "reference_range": "Negative"},
			{"parameter": "WBC", "name": "ignored", "status": "high", "category": "Blood Count"}
		]
	}`)
	rep := NormalizeReport(raw)

	if rep.CreatedAt != "2025-11-01T10:00:00Z" || rep.Date != rep.CreatedAt {
		t.Errorf("unexpected dates %q %q", rep.CreatedAt, rep.Date)
	}
	if len(rep.TestResults) != 3 {
		t.Fatalf("expected 3 results, got %d", len(rep.TestResults))
	}

	hb := rep.TestResults[0]
	if hb.Parameter != "Hemoglobin" || hb.Value != "13.5" || hb.NormalRange.Min != "13.0" || hb.NormalRange.Max != "17.0" {
		t.Errorf("unexpected hemoglobin %+v", hb)
	}
	if hb.Status != "normal" || hb.Category != "General" {
		t.Errorf("expected defaults, got %+v", hb)
	}

	urine := rep.TestResults[1]
	if urine.Parameter != "Unknown" || urine.NormalRange.Description != "Negative" || urine.NormalRange.Min != "" {
		t.Errorf("unexpected range handling %+v", urine)
	}

	wbc := rep.TestResults[2]
	if wbc.Parameter != "WBC" || wbc.Status != "high" || wbc.Category != "Blood Count" {
		t.Errorf("unexpected %+v", wbc)
	}
}

func TestNormalizeReport_CamelCaseWins(t *testing.T) {
	raw := decodeRaw(t, `{
		"testResults": [{"parameter": "A", "normalRange": {"min": "1", "max": "2", "description": ""}}],
		"test_results": [{"name": "B"}, {"name": "C"}]
	}`)
	rep := NormalizeReport(raw)
	if len(rep.TestResults) != 1 || rep.TestResults[0].Parameter != "A" || rep.TestResults[0].NormalRange.Max != "2" {
		t.Errorf("unexpected %+v", rep.TestResults)
	}
}

func TestNormalizeReport_FlatAnalysis(t *testing.T) {
	raw := decodeRaw(t, `{
		"ai_analysis_summary": "Mild anaemia",
		"key_findings": ["Low hemoglobin", "Low ferritin"],
		"recommendations": ["Iron supplements"],
		"potential_risk_factors": ["Fatigue"]
	}`)
	ai := NormalizeReport(raw).AIAnalysis
	if ai == nil {
		t.Fatal("expected analysis")
	}
	if ai.Summary != "Mild anaemia" || ai.UrgencyLevel != "medium" || ai.OverallAssessment != "AI-generated assessment available" {
		t.Errorf("unexpected analysis %+v", ai)
	}
	if len(ai.KeyFindings) != 2 || ai.KeyFindings[1].Parameter != "Finding 2" || ai.KeyFindings[1].Description != "Low ferritin" {
		t.Errorf("unexpected findings %+v", ai.KeyFindings)
	}
	if len(ai.RiskFactors) != 1 || len(ai.FollowUpActions) != 0 || ai.FollowUpActions == nil {
		t.Errorf("unexpected lists %+v", ai)
	}
}

func TestNormalizeReport_NestedAnalysis(t *testing.T) {
	raw := decodeRaw(t, `{
		"aiAnalysis": {
			"summary": "All clear",
			"keyFindings": [{"parameter": "TSH", "value": "2.1", "status": "normal", "description": "ok"}],
			"urgencyLevel": "low",
			"overallAssessment": "Healthy"
		}
	}`)
	rep := NormalizeReport(raw)
	ai := rep.AIAnalysis
	if ai == nil || ai.UrgencyLevel != "low" || ai.OverallAssessment != "Healthy" {
		t.Fatalf("unexpected analysis %+v", ai)
	}
	if len(ai.KeyFindings) != 1 || ai.KeyFindings[0].Parameter != "TSH" {
		t.Errorf("unexpected findings %+v", ai.KeyFindings)
	}
	if rep.Description != "All clear" {
		t.Errorf("expected description from summary, got %q", rep.Description)
	}
}

func TestSplitRange(t *testing.T) {
	tests := []struct {
		in            string
		min, max, des string
	}{
		{"3.5 - 5.0", "3.5", "5.0", ""},
		{"70-100", "70", "100", ""},
		{"< 200", "", "", "< 200"},
	}
	for _, tt := range tests {
		got := splitRange(tt.in)
		if got.Min != tt.min || got.Max != tt.max || got.Description != tt.des {
			t.Errorf("splitRange(%q) = %+v", tt.in, got)
		}
	}
}

func TestValidReportType(t *testing.T) {
	if !ValidReportType("CT Scan") || ValidReportType("ct scan") || ValidReportType("") {
		t.Error("unexpected report type validation")
	}
}

func TestSortPrescriptions(t *testing.T) {
	list := []backend.Prescription{
		{ID: "old", PrescriptionDate: "2025-01-01"},
		{ID: "undated"},
		{ID: "created", CreatedAt: "2025-06-01T00:00:00Z"},
		{ID: "new", PrescriptionDate: "2025-09-01", CreatedAt: "2024-01-01T00:00:00Z"},
	}
	SortPrescriptions(list)
	want := []string{"new", "created", "old", "undated"}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
}
