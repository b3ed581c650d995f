package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/httperr"
	"github.com/mediimate/gateway/internal/platform/session"
	"github.com/mediimate/gateway/internal/platform/validate"
	"github.com/mediimate/gateway/internal/platform/websocket"
	"github.com/mediimate/gateway/pkg/pagination"
)

type Backend interface {
	ListPrescriptions(ctx context.Context, token, userID string) ([]backend.Prescription, error)
	UploadPrescription(ctx context.Context, token, userID string, u backend.Upload) (*backend.Prescription, error)
	DeletePrescription(ctx context.Context, token, userID, prescriptionID string) error
	ListReports(ctx context.Context, token, userID string) ([]backend.RawReport, error)
	GetReport(ctx context.Context, token, userID, reportID string) (*backend.RawReport, error)
	UploadReport(ctx context.Context, token, userID string, u backend.Upload) (*backend.RawReport, error)
	DeleteReport(ctx context.Context, token, userID, reportID string) error
	ReprocessReport(ctx context.Context, token, userID, reportID string) error
	ReportAnalytics(ctx context.Context, token, userID string) (json.RawMessage, error)
}

type Tokens interface {
	BackendToken(s *session.Session) (string, error)
}

var (
	prescriptionTypes = []string{"application/pdf", "image/jpeg", "image/png"}
	reportTypes       = []string{"application/pdf", "text/plain"}

	extensionTypes = map[string]string{
		".pdf":  "application/pdf",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".txt":  "text/plain",
	}

	errPrescriptionNotFound = httperr.New(http.StatusNotFound, "Prescription not found")
)

// FileUpload is a file received from the client, ready to be forwarded.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// mediaType resolves the upload's content type, falling back to the file
// extension when the client sent none or a generic one.
func (f FileUpload) mediaType() string {
	mt, _, err := mime.ParseMediaType(f.ContentType)
	if err == nil && mt != "" && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	return extensionTypes[strings.ToLower(filepath.Ext(f.Name))]
}

type PrescriptionList struct {
	*pagination.Response
	SelectedID string `json:"selectedId,omitempty"`
}

type ReportList struct {
	*pagination.Response
	SelectedID string `json:"selectedId,omitempty"`
}

type Service struct {
	backend     Backend
	tokens      Tokens
	publisher   websocket.EventPublisher
	views       *Views
	uploadLimit int64
	logger      zerolog.Logger
}

func NewService(b Backend, tokens Tokens, publisher websocket.EventPublisher, views *Views, uploadLimit int64, logger zerolog.Logger) *Service {
	return &Service{
		backend:     b,
		tokens:      tokens,
		publisher:   publisher,
		views:       views,
		uploadLimit: uploadLimit,
		logger:      logger.With().Str("component", "records").Logger(),
	}
}

// -- Prescriptions --

func (s *Service) prescriptions(ctx context.Context, token, userID string) ([]backend.Prescription, error) {
	list, err := s.backend.ListPrescriptions(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	SortPrescriptions(list)
	return list, nil
}

// ListPrescriptions returns the patient's prescriptions newest first. search
// matches summary, title or doctor name.
func (s *Service) ListPrescriptions(ctx context.Context, sess *session.Session, search string, p pagination.Params) (*PrescriptionList, error) {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	list, err := s.prescriptions(ctx, token, sess.SubjectID)
	if err != nil {
		return nil, err
	}

	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		list = lo.Filter(list, func(rx backend.Prescription, _ int) bool {
			return strings.Contains(strings.ToLower(rx.Summary), term) ||
				strings.Contains(strings.ToLower(rx.Title), term) ||
				strings.Contains(strings.ToLower(rx.DoctorName), term)
		})
	}
	return &PrescriptionList{
		Response:   pagination.Page(list, p),
		SelectedID: s.views.Selected(sess.ID, websocket.KindPrescriptions),
	}, nil
}

// Prescription opens one prescription in the detail pane.
func (s *Service) Prescription(ctx context.Context, sess *session.Session, id string) (*backend.Prescription, error) {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	list, err := s.backend.ListPrescriptions(ctx, token, sess.SubjectID)
	if err != nil {
		return nil, err
	}
	rx, ok := lo.Find(list, func(p backend.Prescription) bool { return p.ID == id })
	if !ok {
		return nil, errPrescriptionNotFound
	}
	s.views.Select(sess.ID, websocket.KindPrescriptions, id)
	return &rx, nil
}

// UploadPrescription forwards a prescription file. The patient's phone is
// taken from the session, never from the form.
func (s *Service) UploadPrescription(ctx context.Context, sess *session.Session, f FileUpload, title, notes string) (*backend.Prescription, error) {
	if err := s.checkFile(f, prescriptionTypes, "Only PDF, JPEG and PNG files are accepted"); err != nil {
		return nil, err
	}
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{"user_phone": sess.Phone}
	if title = strings.TrimSpace(title); title != "" {
		fields["title"] = title
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		fields["notes"] = notes
	}
	rx, err := s.backend.UploadPrescription(ctx, token, sess.SubjectID, backend.Upload{
		FileName:    f.Name,
		ContentType: f.mediaType(),
		File:        f.Body,
		Fields:      fields,
	})
	if err != nil {
		return nil, err
	}

	id := ""
	if rx != nil {
		id = rx.ID
	}
	s.publish(ctx, websocket.KindPrescriptions, "uploaded", sess.SubjectID, id)
	s.logger.Info().Str("session_id", sess.ID).Str("prescription_id", id).Int64("size", f.Size).Msg("prescription uploaded")
	return rx, nil
}

// DeletePrescription removes a prescription and reports whether it was the
// one open in the detail pane.
func (s *Service) DeletePrescription(ctx context.Context, sess *session.Session, id string) (bool, error) {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return false, err
	}
	if err := s.backend.DeletePrescription(ctx, token, sess.SubjectID, id); err != nil {
		return false, err
	}
	cleared := s.views.Removed(sess.ID, websocket.KindPrescriptions, id)
	s.publish(ctx, websocket.KindPrescriptions, "deleted", sess.SubjectID, id)
	return cleared, nil
}

// -- Reports --

func (s *Service) reports(ctx context.Context, token, userID string) ([]Report, error) {
	raw, err := s.backend.ListReports(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	list := lo.Map(raw, func(r backend.RawReport, _ int) Report { return NormalizeReport(r) })
	SortReports(list)
	return list, nil
}

// ListReports returns the patient's normalized reports newest first. search
// matches title or report type.
func (s *Service) ListReports(ctx context.Context, sess *session.Session, search string, p pagination.Params) (*ReportList, error) {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	list, err := s.reports(ctx, token, sess.SubjectID)
	if err != nil {
		return nil, err
	}

	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		list = lo.Filter(list, func(r Report, _ int) bool {
			return strings.Contains(strings.ToLower(r.Title), term) ||
				strings.Contains(strings.ToLower(r.ReportType), term)
		})
	}
	return &ReportList{
		Response:   pagination.Page(list, p),
		SelectedID: s.views.Selected(sess.ID, websocket.KindReports),
	}, nil
}

// Report opens one report in the detail pane.
func (s *Service) Report(ctx context.Context, sess *session.Session, id string) (*Report, error) {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	raw, err := s.backend.GetReport(ctx, token, sess.SubjectID, id)
	if err != nil {
		return nil, err
	}
	rep := NormalizeReport(*raw)
	s.views.Select(sess.ID, websocket.KindReports, id)
	return &rep, nil
}

// UploadReport forwards a lab report for analysis.
func (s *Service) UploadReport(ctx context.Context, sess *session.Session, f FileUpload, reportType, title, notes string) (*Report, error) {
	reportType = strings.TrimSpace(reportType)
	if f.Body == nil || reportType == "" {
		return nil, validate.Errorf("Please select a file and report type.")
	}
	if !ValidReportType(reportType) {
		return nil, validate.Errorf("reportType must be one of: %s", strings.Join(ReportTypes, ", "))
	}
	if err := s.checkFile(f, reportTypes, "Only PDF and TXT files are accepted"); err != nil {
		return nil, err
	}
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{"reportType": reportType}
	if title = strings.TrimSpace(title); title != "" {
		fields["title"] = title
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		fields["notes"] = notes
	}
	raw, err := s.backend.UploadReport(ctx, token, sess.SubjectID, backend.Upload{
		FileName:    f.Name,
		ContentType: f.mediaType(),
		File:        f.Body,
		Fields:      fields,
	})
	if err != nil {
		return nil, err
	}

	var rep *Report
	id := ""
	if raw != nil {
		n := NormalizeReport(*raw)
		rep = &n
		id = n.ID
		s.views.Select(sess.ID, websocket.KindReports, id)
	}
	s.publish(ctx, websocket.KindReports, "uploaded", sess.SubjectID, id)
	s.logger.Info().Str("session_id", sess.ID).Str("report_id", id).Str("report_type", reportType).Msg("report uploaded")
	return rep, nil
}

// DeleteReport removes a report and reports whether it was the one open in
// the detail pane.
func (s *Service) DeleteReport(ctx context.Context, sess *session.Session, id string) (bool, error) {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return false, err
	}
	if err := s.backend.DeleteReport(ctx, token, sess.SubjectID, id); err != nil {
		return false, err
	}
	cleared := s.views.Removed(sess.ID, websocket.KindReports, id)
	s.publish(ctx, websocket.KindReports, "deleted", sess.SubjectID, id)
	return cleared, nil
}

func (s *Service) ReprocessReport(ctx context.Context, sess *session.Session, id string) error {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return err
	}
	if err := s.backend.ReprocessReport(ctx, token, sess.SubjectID, id); err != nil {
		return err
	}
	s.publish(ctx, websocket.KindReports, "reprocessing", sess.SubjectID, id)
	return nil
}

func (s *Service) Analytics(ctx context.Context, sess *session.Session) (json.RawMessage, error) {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	return s.backend.ReportAnalytics(ctx, token, sess.SubjectID)
}

// Snapshot renders the current list of kind for subject. The refresh poller
// fingerprints it to detect changes.
func (s *Service) Snapshot(ctx context.Context, token, kind, subject string) ([]byte, error) {
	switch kind {
	case websocket.KindPrescriptions:
		list, err := s.prescriptions(ctx, token, subject)
		if err != nil {
			return nil, err
		}
		return json.Marshal(list)
	case websocket.KindReports:
		list, err := s.reports(ctx, token, subject)
		if err != nil {
			return nil, err
		}
		return json.Marshal(list)
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

func (s *Service) checkFile(f FileUpload, allowed []string, msg string) error {
	if f.Body == nil {
		return validate.Errorf("Please select a file.")
	}
	if !lo.Contains(allowed, f.mediaType()) {
		return validate.Errorf("%s", msg)
	}
	if s.uploadLimit > 0 && f.Size > s.uploadLimit {
		return httperr.New(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the %d MB upload limit", s.uploadLimit>>20))
	}
	return nil
}

func (s *Service) publish(ctx context.Context, kind, action, subject, id string) {
	if s.publisher == nil {
		return
	}
	data, _ := json.Marshal(map[string]string{"action": action})
	err := s.publisher.Publish(ctx, websocket.Event{
		Type:       kind + ".changed",
		Topic:      websocket.Topic(kind, subject),
		ResourceID: id,
		Data:       data,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", kind).Msg("publish change event failed")
	}
}

// SortPrescriptions orders by prescription date, falling back to creation
// time, newest first.
func SortPrescriptions(list []backend.Prescription) {
	sort.SliceStable(list, func(i, j int) bool {
		return backend.Newer(firstOf(list[i].PrescriptionDate, list[i].CreatedAt), firstOf(list[j].PrescriptionDate, list[j].CreatedAt))
	})
}

// SortReports orders by creation time, newest first.
func SortReports(list []Report) {
	sort.SliceStable(list, func(i, j int) bool {
		return backend.Newer(list[i].CreatedAt, list[j].CreatedAt)
	})
}
