package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexString decodes a JSON string, number, or boolean into its textual
// form. The clinical backend is inconsistent about measurement values.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// Float parses the value as a float64.
func (f FlexString) Float() (float64, bool) {
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// -- Accounts --

type User struct {
	ID             string `json:"id,omitempty"`
	MongoID        string `json:"_id,omitempty"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Age            int    `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	BloodGroup     string `json:"bloodGroup,omitempty"`
	HasAcceptedTnC bool   `json:"hasAcceptedTnC"`
}

// Identifier returns whichever id form the backend populated.
func (u User) Identifier() string {
	if u.ID != "" {
		return u.ID
	}
	return u.MongoID
}

type Doctor struct {
	ID             string `json:"id,omitempty"`
	MongoID        string `json:"_id,omitempty"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	LicenseNumber  string `json:"licenseNumber,omitempty"`
	Hospital       string `json:"hospital,omitempty"`
	Experience     int    `json:"experience,omitempty"`
	HasAcceptedTnC bool   `json:"hasAcceptedTnC"`
}

func (d Doctor) Identifier() string {
	if d.ID != "" {
		return d.ID
	}
	return d.MongoID
}

type Location struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	Address     string     `json:"address"`
}

type RegisterRequest struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	PhoneNumber string    `json:"phoneNumber"`
	Age         *int      `json:"age,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	Location    *Location `json:"location,omitempty"`
}

type DoctorRegisterRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"licenseNumber"`
	Hospital       string `json:"hospital,omitempty"`
	Experience     *int   `json:"experience,omitempty"`
}

// AuthResult is the body returned by the login and OTP verification
// endpoints. Only one of User or Doctor is set.
type AuthResult struct {
	Token   string  `json:"token"`
	User    *User   `json:"user,omitempty"`
	Doctor  *Doctor `json:"doctor,omitempty"`
	Message string  `json:"message,omitempty"`
}

// -- Records --

type File struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Medication is one prescribed item. Fields the gateway does not know about
// are kept in Extra so a full-array save never drops them.
type Medication struct {
	Medicine      string     `json:"medicine"`
	Dosage        FlexString `json:"dosage"`
	Frequency     FlexString `json:"frequency,omitempty"`
	Duration      FlexString `json:"duration,omitempty"`
	Instructions  string     `json:"instructions,omitempty"`
	TimingDisplay string     `json:"timing_display,omitempty"`
	SuggestedTime string     `json:"suggested_time,omitempty"`
	FoodRelation  string     `json:"food_relation,omitempty"`

	// Legacy fields
	FrequencyPerDay *float64 `json:"frequency_per_day,omitempty"`
	DurationDays    *float64 `json:"duration_days,omitempty"`
	MealInstruction string   `json:"meal_instruction,omitempty"`
	Timings         []string `json:"timings,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type medicationAlias Medication

var medicationKnownFields = map[string]bool{
	"medicine": true, "dosage": true, "frequency": true, "duration": true,
	"instructions": true, "timing_display": true, "suggested_time": true,
	"food_relation": true, "frequency_per_day": true, "duration_days": true,
	"meal_instruction": true, "timings": true,
}

func (m *Medication) UnmarshalJSON(data []byte) error {
	var alias medicationAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range all {
		if medicationKnownFields[k] {
			delete(all, k)
		}
	}
	*m = Medication(alias)
	if len(all) > 0 {
		m.Extra = all
	}
	return nil
}

func (m Medication) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(medicationAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(m.Extra)+len(medicationKnownFields))
	for k, v := range m.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy.
func (m Medication) Clone() Medication {
	out := m
	if m.FrequencyPerDay != nil {
		v := *m.FrequencyPerDay
		out.FrequencyPerDay = &v
	}
	if m.DurationDays != nil {
		v := *m.DurationDays
		out.DurationDays = &v
	}
	if m.Timings != nil {
		out.Timings = append([]string(nil), m.Timings...)
	}
	if m.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

type Prescription struct {
	ID               string       `json:"_id"`
	Type             string       `json:"type,omitempty"`
	Title            string       `json:"title,omitempty"`
	Description      string       `json:"description,omitempty"`
	Summary          string       `json:"summary,omitempty"`
	Medications      []Medication `json:"medications,omitempty"`
	PrescriptionDate string       `json:"prescription_date,omitempty"`
	Date             string       `json:"date,omitempty"`
	CreatedAt        string       `json:"createdAt,omitempty"`
	Status           string       `json:"status,omitempty"`
	DoctorName       string       `json:"doctorName,omitempty"`
	OriginalFileName string       `json:"originalFileName,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	Files            []File       `json:"files,omitempty"`
}

type NormalRange struct {
	Min         string `json:"min"`
	Max         string `json:"max"`
	Description string `json:"description"`
}

type RawTestResult struct {
	Parameter      string       `json:"parameter,omitempty"`
	Name           string       `json:"name,omitempty"`
	Value          FlexString   `json:"value"`
	Unit           string       `json:"unit,omitempty"`
	NormalRange    *NormalRange `json:"normalRange,omitempty"`
	ReferenceRange FlexString   `json:"reference_range,omitempty"`
	Status         string       `json:"status,omitempty"`
	Description    string       `json:"description,omitempty"`
	Category       string       `json:"category,omitempty"`
}

type KeyFinding struct {
	Parameter   string `json:"parameter"`
	Value       string `json:"value"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

type RawAIAnalysis struct {
	Summary           string            `json:"summary,omitempty"`
	KeyFindings       []json.RawMessage `json:"keyFindings,omitempty"`
	Recommendations   []string          `json:"recommendations,omitempty"`
	FollowUpActions   []string          `json:"followUpActions,omitempty"`
	RiskFactors       []string          `json:"riskFactors,omitempty"`
	OverallAssessment string            `json:"overallAssessment,omitempty"`
	UrgencyLevel      string            `json:"urgencyLevel,omitempty"`
}

type Trend struct {
	Parameter   string `json:"parameter"`
	Trend       string `json:"trend"`
	Description string `json:"description"`
}

type FileInfo struct {
	OriginalName string `json:"originalName,omitempty"`
	Size         int64  `json:"size,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	UploadedAt   string `json:"uploadedAt,omitempty"`
}

// RawReport mirrors every field spelling the backend has been seen to use.
// Normalization into a single shape happens in the records domain.
type RawReport struct {
	ID                   string            `json:"_id"`
	Type                 string            `json:"type,omitempty"`
	Title                string            `json:"title,omitempty"`
	OriginalFileName     string            `json:"originalFileName,omitempty"`
	ReportType           string            `json:"reportType,omitempty"`
	ProcessingStatus     string            `json:"processingStatus,omitempty"`
	Description          string            `json:"description,omitempty"`
	Date                 string            `json:"date,omitempty"`
	ReportDate           string            `json:"reportDate,omitempty"`
	ReportDateSnake      string            `json:"report_date,omitempty"`
	CreatedAt            string            `json:"createdAt,omitempty"`
	CreatedAtSnake       string            `json:"created_at,omitempty"`
	Notes                string            `json:"notes,omitempty"`
	Files                []File            `json:"files,omitempty"`
	TestResults          []RawTestResult   `json:"testResults,omitempty"`
	TestResultsSnake     []RawTestResult   `json:"test_results,omitempty"`
	AIAnalysis           *RawAIAnalysis    `json:"aiAnalysis,omitempty"`
	AIAnalysisSummary    string            `json:"ai_analysis_summary,omitempty"`
	Summary              string            `json:"summary,omitempty"`
	KeyFindings          []json.RawMessage `json:"key_findings,omitempty"`
	Recommendations      []string          `json:"recommendations,omitempty"`
	FollowUpActions      []string          `json:"follow_up_actions,omitempty"`
	PotentialRiskFactors []string          `json:"potential_risk_factors,omitempty"`
	Trends               []Trend           `json:"trends,omitempty"`
	Tags                 []string          `json:"tags,omitempty"`
	LabName              string            `json:"labName,omitempty"`
	FileInfo             *FileInfo         `json:"fileInfo,omitempty"`
}

// -- Health logs --

type MealLog struct {
	ID            string   `json:"_id"`
	MealType      string   `json:"meal_type"`
	Description   string   `json:"description,omitempty"`
	Date          string   `json:"date"`
	Time          string   `json:"time,omitempty"`
	TotalCalories *float64 `json:"total_calories,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

type VitalLog struct {
	ID               string     `json:"_id"`
	Type             string     `json:"type"`
	Date             string     `json:"date"`
	Time             string     `json:"time,omitempty"`
	Systolic         *float64   `json:"systolic,omitempty"`
	Diastolic        *float64   `json:"diastolic,omitempty"`
	Value            FlexString `json:"value,omitempty"`
	Unit             string     `json:"unit,omitempty"`
	CaloriesConsumed *float64   `json:"calories_consumed,omitempty"`
	Description      string     `json:"description,omitempty"`
	CreatedAt        string     `json:"created_at,omitempty"`
}

type HealthLogs struct {
	MealLogs  []MealLog  `json:"mealLogs"`
	VitalLogs []VitalLog `json:"vitalLogs"`
}

// -- Doctor-facing --

type PatientMatch struct {
	ID         string     `json:"_id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Age        FlexString `json:"age,omitempty"`
	BloodGroup string     `json:"bloodGroup,omitempty"`
	Avatar     string     `json:"avatar,omitempty"`
}

type PatientInfo struct {
	Name              string            `json:"name"`
	Email             string            `json:"email,omitempty"`
	Phone             string            `json:"phone,omitempty"`
	BloodGroup        string            `json:"bloodGroup,omitempty"`
	Age               FlexString        `json:"age,omitempty"`
	Allergies         []string          `json:"allergies,omitempty"`
	ChronicConditions []json.RawMessage `json:"chronicConditions,omitempty"`
}

// VaultAccess is the record set returned for one selected patient. Records
// mix reports and prescriptions; the "type" field tells them apart.
type VaultAccess struct {
	PatientInfo  PatientInfo       `json:"patientInfo"`
	Records      []json.RawMessage `json:"records"`
	TotalRecords int               `json:"totalRecords"`
}

type MappedPatient struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	BloodGroup string `json:"blood_group,omitempty"`
	Status     string `json:"status,omitempty"`
	Condition  string `json:"condition,omitempty"`
	LastVisit  string `json:"lastVisit,omitempty"`
}
