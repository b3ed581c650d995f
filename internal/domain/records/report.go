package records

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mediimate/gateway/internal/platform/backend"
)

// Report processing states.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusAnalyzed   = "analyzed"
	StatusFailed     = "failed"
)

// ReportTypes are the report kinds a patient may upload.
var ReportTypes = []string{"Blood Test", "Urine Test", "X-Ray", "MRI", "CT Scan", "Ultrasound", "Other"}

type TestResult struct {
	Parameter   string              `json:"parameter"`
	Value       string              `json:"value"`
	Unit        string              `json:"unit"`
	NormalRange backend.NormalRange `json:"normalRange"`
	Status      string              `json:"status"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
}

type AIAnalysis struct {
	Summary           string               `json:"summary"`
	KeyFindings       []backend.KeyFinding `json:"keyFindings"`
	Recommendations   []string             `json:"recommendations"`
	FollowUpActions   []string             `json:"followUpActions"`
	RiskFactors       []string             `json:"riskFactors"`
	OverallAssessment string               `json:"overallAssessment"`
	UrgencyLevel      string               `json:"urgencyLevel"`
}

// Report is a lab report in the one shape the UI renders, whichever field
// spellings the backend used.
type Report struct {
	ID               string           `json:"_id"`
	Title            string           `json:"title"`
	ReportType       string           `json:"reportType"`
	ProcessingStatus string           `json:"processingStatus"`
	Description      string           `json:"description"`
	Date             string           `json:"date,omitempty"`
	CreatedAt        string           `json:"createdAt,omitempty"`
	ReportDate       string           `json:"reportDate,omitempty"`
	Notes            string           `json:"notes"`
	Files            []backend.File   `json:"files"`
	TestResults      []TestResult     `json:"testResults"`
	AIAnalysis       *AIAnalysis      `json:"aiAnalysis,omitempty"`
	Trends           []backend.Trend  `json:"trends"`
	Tags             []string         `json:"tags"`
	LabName          string           `json:"labName,omitempty"`
	FileInfo         backend.FileInfo `json:"fileInfo"`
}

// NormalizeReport folds the backend's alternate spellings into a Report and
// fills the defaults the UI relies on.
func NormalizeReport(r backend.RawReport) Report {
	out := Report{
		ID:               r.ID,
		Title:            firstOf(r.Title, r.OriginalFileName, "Untitled Report"),
		ReportType:       firstOf(r.ReportType, "Other"),
		ProcessingStatus: firstOf(r.ProcessingStatus, StatusUploaded),
		CreatedAt:        firstOf(r.CreatedAt, r.CreatedAtSnake),
		ReportDate:       firstOf(r.ReportDate, r.ReportDateSnake),
		Notes:            r.Notes,
		Files:            nonNil(r.Files),
		Trends:           nonNil(r.Trends),
		Tags:             nonNil(r.Tags),
		LabName:          r.LabName,
		AIAnalysis:       normalizeAnalysis(r),
	}
	out.Date = firstOf(r.Date, out.ReportDate, out.CreatedAt)

	raw := r.TestResults
	if len(raw) == 0 {
		raw = r.TestResultsSnake
	}
	out.TestResults = lo.Map(raw, func(tr backend.RawTestResult, _ int) TestResult {
		return normalizeTestResult(tr)
	})
	if out.TestResults == nil {
		out.TestResults = []TestResult{}
	}

	out.Description = r.Description
	if out.Description == "" && out.AIAnalysis != nil {
		out.Description = out.AIAnalysis.Summary
	}

	if r.FileInfo != nil {
		out.FileInfo = *r.FileInfo
	}
	out.FileInfo.OriginalName = firstOf(out.FileInfo.OriginalName, r.OriginalFileName, "Unknown file")
	return out
}

func normalizeTestResult(tr backend.RawTestResult) TestResult {
	out := TestResult{
		Parameter:   firstOf(tr.Parameter, tr.Name, "Unknown"),
		Value:       string(tr.Value),
		Unit:        tr.Unit,
		Status:      firstOf(tr.Status, "normal"),
		Description: tr.Description,
		Category:    firstOf(tr.Category, "General"),
	}
	switch {
	case tr.NormalRange != nil:
		out.NormalRange = *tr.NormalRange
	case tr.ReferenceRange != "":
		out.NormalRange = splitRange(string(tr.ReferenceRange))
	}
	return out
}

// splitRange turns "3.5 - 5.0" into min and max. Anything without a dash is
// kept whole as the description.
func splitRange(ref string) backend.NormalRange {
	if !strings.Contains(ref, "-") {
		return backend.NormalRange{Description: ref}
	}
	parts := strings.SplitN(ref, "-", 3)
	return backend.NormalRange{
		Min: strings.TrimSpace(parts[0]),
		Max: strings.TrimSpace(parts[1]),
	}
}

// normalizeAnalysis builds the AI analysis from the nested aiAnalysis object
// or the flat snake_case fields. It returns nil when neither is present.
func normalizeAnalysis(r backend.RawReport) *AIAnalysis {
	nested := r.AIAnalysis
	if nested == nil && r.AIAnalysisSummary == "" && len(r.KeyFindings) == 0 &&
		len(r.Recommendations) == 0 && len(r.FollowUpActions) == 0 && len(r.PotentialRiskFactors) == 0 {
		return nil
	}
	if nested == nil {
		nested = &backend.RawAIAnalysis{}
	}

	assessment := "Assessment pending"
	if r.AIAnalysisSummary != "" {
		assessment = "AI-generated assessment available"
	}

	findings := nested.KeyFindings
	if len(findings) == 0 {
		findings = r.KeyFindings
	}

	return &AIAnalysis{
		Summary:           firstOf(nested.Summary, r.AIAnalysisSummary, r.Summary),
		KeyFindings:       keyFindings(findings),
		Recommendations:   nonNil(firstNonEmpty(nested.Recommendations, r.Recommendations)),
		FollowUpActions:   nonNil(firstNonEmpty(nested.FollowUpActions, r.FollowUpActions)),
		RiskFactors:       nonNil(firstNonEmpty(nested.RiskFactors, r.PotentialRiskFactors)),
		OverallAssessment: firstOf(nested.OverallAssessment, assessment),
		UrgencyLevel:      firstOf(nested.UrgencyLevel, "medium"),
	}
}

// keyFindings accepts findings either as objects or as bare strings. A
// string becomes "Finding N" with the text as its description.
func keyFindings(raw []json.RawMessage) []backend.KeyFinding {
	out := make([]backend.KeyFinding, 0, len(raw))
	for i, msg := range raw {
		var text string
		if err := json.Unmarshal(msg, &text); err == nil {
			out = append(out, backend.KeyFinding{
				Parameter:   fmt.Sprintf("Finding %d", i+1),
				Status:      "abnormal",
				Description: text,
			})
			continue
		}
		var kf backend.KeyFinding
		if err := json.Unmarshal(msg, &kf); err == nil {
			out = append(out, kf)
		}
	}
	return out
}

// ValidReportType reports whether t is one of ReportTypes.
func ValidReportType(t string) bool {
	return lo.Contains(ReportTypes, t)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty[T any](a, b []T) []T {
	if len(a) > 0 {
		return a
	}
	return b
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
