package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

func (c *Client) HealthLogs(ctx context.Context, token, phone string) (*HealthLogs, error) {
	var out HealthLogs
	if err := c.do(ctx, http.MethodGet, pathf("/health-logs/%s", phone), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListReports(ctx context.Context, token, userID string) ([]RawReport, error) {
	var out struct {
		Reports []RawReport `json:"reports"`
	}
	if err := c.do(ctx, http.MethodGet, pathf("/reports/%s", userID), token, nil, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

func (c *Client) GetReport(ctx context.Context, token, userID, reportID string) (*RawReport, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, pathf("/reports/%s/%s", userID, reportID), token, nil, &raw); err != nil {
		return nil, err
	}
	// Either {"report": {...}} or the bare document.
	var wrapped struct {
		Report *RawReport `json:"report"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Report != nil {
		return wrapped.Report, nil
	}
	var rep RawReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rep, nil
}

// UploadReport posts a lab report. Fields reportType, title and notes are
// sent alongside the reportFile part.
func (c *Client) UploadReport(ctx context.Context, token, userID string, u Upload) (*RawReport, error) {
	var out struct {
		Report *RawReport `json:"report"`
	}
	if err := c.upload(ctx, pathf("/reports/upload/%s", userID), token, "reportFile", u, &out); err != nil {
		return nil, err
	}
	return out.Report, nil
}

func (c *Client) DeleteReport(ctx context.Context, token, userID, reportID string) error {
	return c.do(ctx, http.MethodDelete, pathf("/reports/%s/%s", userID, reportID), token, nil, nil)
}

func (c *Client) ReprocessReport(ctx context.Context, token, userID, reportID string) error {
	return c.do(ctx, http.MethodPost, pathf("/reports/%s/%s/reprocess", userID, reportID), token, nil, nil)
}

// ReportAnalytics passes the backend's dashboard analytics through as-is.
func (c *Client) ReportAnalytics(ctx context.Context, token, userID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, pathf("/reports/%s/analytics/dashboard", userID), token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPrescriptions accepts both {"prescriptions": [...]} and a bare array.
func (c *Client) ListPrescriptions(ctx context.Context, token, userID string) ([]Prescription, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, pathf("/reports/prescriptions/%s", userID), token, nil, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []Prescription
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode prescriptions: %w", err)
		}
		return list, nil
	}
	var wrapped struct {
		Prescriptions []Prescription `json:"prescriptions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode prescriptions: %w", err)
	}
	return wrapped.Prescriptions, nil
}

// UploadPrescription posts a prescription file. Fields user_phone, title and
// notes are sent alongside the prescriptionFile part.
func (c *Client) UploadPrescription(ctx context.Context, token, userID string, u Upload) (*Prescription, error) {
	var out struct {
		Prescription *Prescription `json:"prescription"`
	}
	if err := c.upload(ctx, pathf("/reports/prescriptions/upload/%s", userID), token, "prescriptionFile", u, &out); err != nil {
		return nil, err
	}
	return out.Prescription, nil
}

func (c *Client) DeletePrescription(ctx context.Context, token, userID, prescriptionID string) error {
	return c.do(ctx, http.MethodDelete, pathf("/reports/prescriptions/%s/%s", userID, prescriptionID), token, nil, nil)
}
