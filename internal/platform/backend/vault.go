package backend

import (
	"context"
	"net/http"
)

// SearchByMPIN returns every patient sharing the MPIN. MPINs are not unique,
// so any number of matches is possible.
func (c *Client) SearchByMPIN(ctx context.Context, token, mpin, doctorPhone string) ([]PatientMatch, error) {
	var out struct {
		Patients []PatientMatch `json:"patients"`
	}
	body := map[string]string{"mpin": mpin, "doctorPhone": doctorPhone}
	if err := c.do(ctx, http.MethodPost, "/doctor/vault/search-by-mpin", token, body, &out); err != nil {
		return nil, err
	}
	return out.Patients, nil
}

func (c *Client) AccessByPatient(ctx context.Context, token, patientID, doctorPhone string) (*VaultAccess, error) {
	var out VaultAccess
	body := map[string]string{"patientId": patientID, "doctorPhone": doctorPhone}
	if err := c.do(ctx, http.MethodPost, "/doctor/vault/access-by-patient", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateVaultPrescription replaces the prescription's medications with the
// full given array.
func (c *Client) UpdateVaultPrescription(ctx context.Context, token, prescriptionID string, meds []Medication) error {
	if meds == nil {
		meds = []Medication{}
	}
	body := map[string]any{"medications": meds}
	return c.do(ctx, http.MethodPut, pathf("/doctor/vault/prescription/%s", prescriptionID), token, body, nil)
}

func (c *Client) MappedPatients(ctx context.Context, token, doctorPhone string) ([]MappedPatient, error) {
	var out struct {
		Data []MappedPatient `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, pathf("/patients/mapped/%s", doctorPhone), token, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
