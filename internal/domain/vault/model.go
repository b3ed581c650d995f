package vault

import (
	"encoding/json"
	"fmt"

	"github.com/mediimate/gateway/internal/domain/records"
	"github.com/mediimate/gateway/internal/platform/backend"
)

// Workspace states.
const (
	StatusIdle   = "idle"
	StatusSelect = "select"
	StatusLoaded = "loaded"
)

// Record kinds, also the tab names.
const (
	KindReport       = "report"
	KindPrescription = "prescription"

	TabReports       = "reports"
	TabPrescriptions = "prescriptions"
)

type SearchRequest struct {
	MPIN string `json:"mpin"`
}

type SelectRequest struct {
	PatientID string `json:"patientId"`
}

type EditRequest struct {
	Index int    `json:"index"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// Record is one entry of a patient's vault, tagged with its kind. Exactly
// one of Report or Prescription is set.
type Record struct {
	ID           string                `json:"id"`
	Kind         string                `json:"recordType"`
	Report       *records.Report       `json:"report,omitempty"`
	Prescription *backend.Prescription `json:"prescription,omitempty"`
}

// decodeRecord tags a raw vault record by its "type" field. Anything that
// is not a prescription is treated as a report and normalized.
func decodeRecord(raw json.RawMessage) (Record, error) {
	var head struct {
		ID   string `json:"_id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Record{}, fmt.Errorf("decode vault record: %w", err)
	}

	if head.Type == KindPrescription {
		var rx backend.Prescription
		if err := json.Unmarshal(raw, &rx); err != nil {
			return Record{}, fmt.Errorf("decode vault prescription %s: %w", head.ID, err)
		}
		return Record{ID: rx.ID, Kind: KindPrescription, Prescription: &rx}, nil
	}

	var rr backend.RawReport
	if err := json.Unmarshal(raw, &rr); err != nil {
		return Record{}, fmt.Errorf("decode vault report %s: %w", head.ID, err)
	}
	rep := records.NormalizeReport(rr)
	return Record{ID: rep.ID, Kind: KindReport, Report: &rep}, nil
}

type Counts struct {
	Reports       int `json:"reports"`
	Prescriptions int `json:"prescriptions"`
}

// EditBuffer is the working copy of a prescription's medications.
type EditBuffer struct {
	PrescriptionID string               `json:"prescriptionId"`
	Medications    []backend.Medication `json:"medications"`
}

// View is the doctor's vault screen.
type View struct {
	Status       string                 `json:"status"`
	Candidates   []backend.PatientMatch `json:"candidates,omitempty"`
	PatientID    string                 `json:"patientId,omitempty"`
	Patient      *backend.PatientInfo   `json:"patientInfo,omitempty"`
	TotalRecords int                    `json:"totalRecords"`
	Tab          string                 `json:"tab,omitempty"`
	Counts       Counts                 `json:"counts"`
	Records      []Record               `json:"records"`
	Selected     *Record                `json:"selected,omitempty"`
	Edit         *EditBuffer            `json:"edit,omitempty"`
}
