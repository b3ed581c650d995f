package vault

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/hipaa"
	"github.com/mediimate/gateway/internal/platform/httperr"
	"github.com/mediimate/gateway/internal/platform/session"
	"github.com/mediimate/gateway/internal/platform/validate"
)

type Backend interface {
	SearchByMPIN(ctx context.Context, token, mpin, doctorPhone string) ([]backend.PatientMatch, error)
	AccessByPatient(ctx context.Context, token, patientID, doctorPhone string) (*backend.VaultAccess, error)
	UpdateVaultPrescription(ctx context.Context, token, prescriptionID string, meds []backend.Medication) error
}

type Tokens interface {
	BackendToken(s *session.Session) (string, error)
}

var (
	errNoMatches      = httperr.New(http.StatusNotFound, "No patients found with this MPIN")
	errNotCandidate   = httperr.New(http.StatusForbidden, "Patient was not returned by the last MPIN search")
	errNoPatient      = httperr.New(http.StatusConflict, "No patient records are open")
	errRecordNotFound = httperr.New(http.StatusNotFound, "Record not found")
	errNotEditing     = httperr.New(http.StatusConflict, "No prescription is being edited")
)

// Service runs the doctor's MPIN vault flow. Backend calls are made without
// holding the workspace lock.
type Service struct {
	backend    Backend
	tokens     Tokens
	audit      hipaa.AccessRecorder
	workspaces *Workspaces
	logger     zerolog.Logger
}

func NewService(b Backend, tokens Tokens, audit hipaa.AccessRecorder, workspaces *Workspaces, logger zerolog.Logger) *Service {
	return &Service{
		backend:    b,
		tokens:     tokens,
		audit:      audit,
		workspaces: workspaces,
		logger:     logger.With().Str("component", "vault").Logger(),
	}
}

// Search looks patients up by MPIN. One match loads that patient's records
// straight away; several matches wait for Select.
func (s *Service) Search(ctx context.Context, sess *session.Session, mpin, ip string) (*View, error) {
	if !validate.MPIN(mpin) {
		return nil, validate.ErrInvalidMPIN
	}
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}

	matches, err := s.backend.SearchByMPIN(ctx, token, mpin, sess.Phone)
	if err != nil {
		s.record(ctx, sess, ip, &hipaa.VaultAccessEntry{Action: hipaa.ActionSearch, Outcome: "error"})
		return nil, err
	}
	entry := &hipaa.VaultAccessEntry{Action: hipaa.ActionSearch, MatchCount: len(matches)}
	if len(matches) == 0 {
		entry.Outcome = "not_found"
	}
	s.record(ctx, sess, ip, entry)

	switch len(matches) {
	case 0:
		s.reset(sess)
		return nil, errNoMatches
	case 1:
		v, err := s.open(ctx, sess, token, matches[0].ID, ip)
		if err != nil {
			s.reset(sess)
			return nil, err
		}
		return v, nil
	}

	var v *View
	s.workspaces.with(sess.ID, func(w *workspace) error {
		w.offer(matches)
		v = w.view()
		return nil
	})
	return v, nil
}

// reset drops whatever the session had loaded, so a failed search never
// leaves the previous patient on screen.
func (s *Service) reset(sess *session.Session) {
	s.workspaces.with(sess.ID, func(w *workspace) error {
		*w = *newWorkspace()
		return nil
	})
}

// Select loads one of the candidates offered by the last search.
func (s *Service) Select(ctx context.Context, sess *session.Session, patientID, ip string) (*View, error) {
	err := s.workspaces.with(sess.ID, func(w *workspace) error {
		if w.status != StatusSelect || !w.hasCandidate(patientID) {
			return errNotCandidate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, sess, token, patientID, ip)
}

func (s *Service) open(ctx context.Context, sess *session.Session, token, patientID, ip string) (*View, error) {
	access, err := s.backend.AccessByPatient(ctx, token, patientID, sess.Phone)
	if err != nil {
		s.record(ctx, sess, ip, &hipaa.VaultAccessEntry{Action: hipaa.ActionAccess, PatientID: patientID, Outcome: "error"})
		return nil, err
	}

	recs := make([]Record, 0, len(access.Records))
	for _, raw := range access.Records {
		rec, err := decodeRecord(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID).Msg("skipping undecodable vault record")
			continue
		}
		recs = append(recs, rec)
	}
	total := access.TotalRecords
	if total == 0 {
		total = len(recs)
	}
	s.record(ctx, sess, ip, &hipaa.VaultAccessEntry{Action: hipaa.ActionAccess, PatientID: patientID, MatchCount: len(recs)})

	var v *View
	s.workspaces.with(sess.ID, func(w *workspace) error {
		w.load(patientID, access.PatientInfo, recs, total)
		v = w.view()
		return nil
	})
	s.logger.Info().Str("session_id", sess.ID).Str("patient_id", patientID).Int("records", len(recs)).Msg("vault opened")
	return v, nil
}

// View returns the workspace, switching tab first when tab is set.
func (s *Service) View(sess *session.Session, tab string) (*View, error) {
	var v *View
	err := s.workspaces.with(sess.ID, func(w *workspace) error {
		if tab != "" {
			if err := w.requireLoaded(); err != nil {
				return err
			}
			if err := w.setTab(tab); err != nil {
				return err
			}
		}
		v = w.view()
		return nil
	})
	return v, err
}

// Record opens one record in the detail pane.
func (s *Service) Record(sess *session.Session, id string) (*Record, error) {
	var rec *Record
	err := s.workspaces.with(sess.ID, func(w *workspace) error {
		var err error
		rec, err = w.selectRecord(id)
		return err
	})
	return rec, err
}

// mutate applies fn to the workspace and returns the resulting view.
func (s *Service) mutate(sess *session.Session, fn func(w *workspace) error) (*View, error) {
	var v *View
	err := s.workspaces.with(sess.ID, func(w *workspace) error {
		if err := fn(w); err != nil {
			return err
		}
		v = w.view()
		return nil
	})
	return v, err
}

func (s *Service) BeginEdit(sess *session.Session, prescriptionID string) (*View, error) {
	return s.mutate(sess, func(w *workspace) error { return w.beginEdit(prescriptionID) })
}

func (s *Service) EditMedication(sess *session.Session, req EditRequest) (*View, error) {
	return s.mutate(sess, func(w *workspace) error { return w.editMedication(req.Index, req.Field, req.Value) })
}

func (s *Service) AddMedication(sess *session.Session) (*View, error) {
	return s.mutate(sess, func(w *workspace) error { return w.addMedication() })
}

func (s *Service) RemoveMedication(sess *session.Session, index int) (*View, error) {
	return s.mutate(sess, func(w *workspace) error { return w.removeMedication(index) })
}

func (s *Service) CancelEdit(sess *session.Session) (*View, error) {
	return s.mutate(sess, func(w *workspace) error {
		w.edit = nil
		return nil
	})
}

// Save sends the whole edited medication list. On failure the edit buffer
// is kept so the doctor can retry.
func (s *Service) Save(ctx context.Context, sess *session.Session, ip string) (*View, error) {
	var (
		buf       EditBuffer
		patientID string
	)
	err := s.workspaces.with(sess.ID, func(w *workspace) error {
		e, err := w.editing()
		if err != nil {
			return err
		}
		buf = EditBuffer{PrescriptionID: e.PrescriptionID, Medications: cloneMeds(e.Medications)}
		patientID = w.patientID
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	if err := s.backend.UpdateVaultPrescription(ctx, token, buf.PrescriptionID, buf.Medications); err != nil {
		s.record(ctx, sess, ip, &hipaa.VaultAccessEntry{
			Action: hipaa.ActionUpdate, PatientID: patientID, ResourceID: buf.PrescriptionID, Outcome: "error",
		})
		return nil, err
	}
	s.record(ctx, sess, ip, &hipaa.VaultAccessEntry{
		Action: hipaa.ActionUpdate, PatientID: patientID, ResourceID: buf.PrescriptionID, MatchCount: len(buf.Medications),
	})

	return s.mutate(sess, func(w *workspace) error {
		if w.patientID == patientID {
			w.saved(buf.PrescriptionID, buf.Medications)
		}
		return nil
	})
}

// Close resets the workspace.
func (s *Service) Close(sess *session.Session) *View {
	v, _ := s.mutate(sess, func(w *workspace) error {
		*w = *newWorkspace()
		return nil
	})
	return v
}

func (s *Service) record(ctx context.Context, sess *session.Session, ip string, e *hipaa.VaultAccessEntry) {
	if s.audit == nil {
		return
	}
	e.DoctorID = sess.SubjectID
	e.DoctorPhone = sess.Phone
	e.SessionID = sess.ID
	e.IPAddress = ip
	if err := s.audit.RecordVaultAccess(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("action", e.Action).Msg("vault audit write failed")
	}
}
