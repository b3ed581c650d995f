package healthlog

import (
	"context"
	"fmt"
	"time"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/session"
)

// Backend fetches a patient's raw logs by phone.
type Backend interface {
	HealthLogs(ctx context.Context, token, phone string) (*backend.HealthLogs, error)
}

// Tokens unseals the backend token a session carries.
type Tokens interface {
	BackendToken(s *session.Session) (string, error)
}

type Service struct {
	backend Backend
	tokens  Tokens
	now     func() time.Time
}

func NewService(b Backend, tokens Tokens) *Service {
	return &Service{backend: b, tokens: tokens, now: time.Now}
}

// logs always reads the session's own phone; a phone from the request is
// never used.
func (s *Service) logs(ctx context.Context, sess *session.Session) (*backend.HealthLogs, error) {
	token, err := s.tokens.BackendToken(sess)
	if err != nil {
		return nil, err
	}
	logs, err := s.backend.HealthLogs(ctx, token, sess.Phone)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = &backend.HealthLogs{}
	}
	return logs, nil
}

func (s *Service) Dashboard(ctx context.Context, sess *session.Session) (*Dashboard, error) {
	logs, err := s.logs(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Series:     BuildSeries(logs),
		MealCount:  len(logs.MealLogs),
		VitalCount: len(logs.VitalLogs),
	}, nil
}

func (s *Service) MealLogs(ctx context.Context, sess *session.Session) ([]backend.MealLog, error) {
	logs, err := s.logs(ctx, sess)
	if err != nil {
		return nil, err
	}
	meals := SortMeals(logs.MealLogs)
	if meals == nil {
		meals = []backend.MealLog{}
	}
	return meals, nil
}

// Export returns the workbook bytes and a download file name.
func (s *Service) Export(ctx context.Context, sess *session.Session) ([]byte, string, error) {
	logs, err := s.logs(ctx, sess)
	if err != nil {
		return nil, "", err
	}
	data, err := Workbook(logs)
	if err != nil {
		return nil, "", err
	}
	name := fmt.Sprintf("health-logs-%s.xlsx", s.now().UTC().Format("2006-01-02"))
	return data, name, nil
}
