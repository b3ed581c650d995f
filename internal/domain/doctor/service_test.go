package doctor

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/httperr"
	"github.com/mediimate/gateway/internal/platform/validate"
)

func TestSendOTP_NotRegistered(t *testing.T) {
	svc, mb, _ := newTestService(t)
	mb.sendErr = &backend.APIError{Status: http.StatusNotFound, Message: "Doctor not found"}

	err := svc.SendOTP(context.Background(), "9000000001")
	var he *httperr.Error
	if !errors.As(err, &he) {
		t.Fatalf("expected httperr.Error, got %v", err)
	}
	if he.Status != http.StatusNotFound || he.Message != "Doctor not found. Please register first." {
		t.Errorf("unexpected error %+v", he)
	}
}

func TestSendOTP_InvalidPhone(t *testing.T) {
	svc, mb, _ := newTestService(t)
	if err := svc.SendOTP(context.Background(), "900000"); !errors.Is(err, validate.ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if len(mb.calls) != 0 {
		t.Errorf("backend called: %v", mb.calls)
	}
}

func TestVerifyOTP_InvalidOTP(t *testing.T) {
	svc, mb, _ := newTestService(t)
	_, err := svc.VerifyOTP(context.Background(), OTPRequest{Phone: "9000000001", OTP: "12345"})
	if !errors.Is(err, validate.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
	if len(mb.calls) != 0 {
		t.Errorf("backend called: %v", mb.calls)
	}
}

func TestVerifyOTP_PendingTnC(t *testing.T) {
	svc, mb, mgr := newTestService(t)
	sess := signIn(t, svc, mb, mgr, false)

	if sess.TnCAccepted {
		t.Error("expected session behind terms gate")
	}
	if sess.SubjectID != "d1" || sess.Phone != "+919000000001" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestAcceptTnC_BackendFailureStillActivates(t *testing.T) {
	svc, mb, mgr := newTestService(t)
	sess := signIn(t, svc, mb, mgr, false)
	mb.tncErr = &backend.APIError{Status: 500, Message: "db down"}

	if err := svc.AcceptTnC(context.Background(), sess); err != nil {
		t.Fatalf("expected acceptance despite backend failure, got %v", err)
	}
	if !sess.TnCAccepted {
		t.Error("expected session activated")
	}
}

func TestDeclineTnC(t *testing.T) {
	svc, mb, mgr := newTestService(t)
	mb.verifyResult = doctorResult(false)
	res, _ := svc.VerifyOTP(context.Background(), OTPRequest{Phone: "9000000001", OTP: "123456"})
	sess, _ := mgr.Resolve(context.Background(), res.Token)

	if err := svc.DeclineTnC(context.Background(), sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := mgr.Resolve(context.Background(), res.Token); err == nil {
		t.Error("expected session removed")
	}
}

func validRegistration() *RegisterRequest {
	return &RegisterRequest{
		Name:           "Dr. Rao",
		Email:          "rao@example.com",
		Phone:          "9000000001",
		Specialization: "Cardiology",
		LicenseNumber:  "MH-1234",
		Experience:     "12",
		OTP:            "654321",
	}
}

func TestRegister(t *testing.T) {
	svc, mb, _ := newTestService(t)

	if err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mb.calls) != 2 || mb.calls[0] != "verify-otp-registration" || mb.calls[1] != "register" {
		t.Fatalf("expected OTP verified before registration, got %v", mb.calls)
	}
	if mb.registered.Phone != "+919000000001" || mb.registered.Experience == nil || *mb.registered.Experience != 12 {
		t.Errorf("unexpected payload %+v", mb.registered)
	}
	if mb.registered.Hospital != "" {
		t.Error("expected optional hospital omitted")
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
	}{
		{"missing license", func(r *RegisterRequest) { r.LicenseNumber = "" }},
		{"missing specialization", func(r *RegisterRequest) { r.Specialization = "  " }},
		{"bad phone", func(r *RegisterRequest) { r.Phone = "12" }},
		{"bad otp", func(r *RegisterRequest) { r.OTP = "1" }},
		{"bad experience", func(r *RegisterRequest) { r.Experience = "ten" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mb, _ := newTestService(t)
			req := validRegistration()
			tt.mutate(req)
			if err := svc.Register(context.Background(), req); !validate.IsInvalid(err) {
				t.Fatalf("expected input error, got %v", err)
			}
			if len(mb.calls) != 0 {
				t.Errorf("backend called: %v", mb.calls)
			}
		})
	}
}

func TestRegister_OTPRejected(t *testing.T) {
	svc, mb, _ := newTestService(t)
	mb.regOTPErr = &backend.APIError{Status: 400, Message: "Invalid OTP"}

	if err := svc.Register(context.Background(), validRegistration()); err == nil {
		t.Fatal("expected error")
	}
	if mb.registered != nil {
		t.Error("doctor must not be registered when OTP fails")
	}
}

func samplePatients() []backend.MappedPatient {
	return []backend.MappedPatient{
		{ID: "p1", Name: "Asha Kulkarni", Phone: "+919876543210", BloodGroup: "B+"},
		{ID: "p2", Name: "Ravi Kumar", Phone: "+919876500000", Status: "critical"},
		{ID: "p3", Name: "Meera Shah", Phone: "+919811111111", Status: "Recovering"},
	}
}

func TestPatients(t *testing.T) {
	svc, mb, mgr := newTestService(t)
	sess := signIn(t, svc, mb, mgr, true)
	mb.mapped = samplePatients()

	list, err := svc.Patients(context.Background(), sess, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mb.mappedPhone != "+919000000001" {
		t.Errorf("expected doctor phone from session, got %q", mb.mappedPhone)
	}
	if len(list.Patients) != 3 {
		t.Fatalf("expected 3 patients, got %d", len(list.Patients))
	}
	if p := list.Patients[1]; p.BloodGroup != "Unknown" || p.Condition != "General Checkup" {
		t.Errorf("expected defaults applied, got %+v", p)
	}
	want := StatusCounts{Total: 3, Stable: 1, Critical: 1, Recovering: 1}
	if list.Counts != want {
		t.Errorf("expected counts %+v, got %+v", want, list.Counts)
	}
}

func TestPatients_Filters(t *testing.T) {
	tests := []struct {
		search, status string
		want           []string
	}{
		{"asha", "", []string{"p1"}},
		{"KUMAR", "all", []string{"p2"}},
		{"", "critical", []string{"p2"}},
		{"", "recovering", []string{"p3"}},
		{"9876", "stable", []string{"p1"}},
		{"nobody", "", nil},
	}
	for _, tt := range tests {
		svc, mb, mgr := newTestService(t)
		sess := signIn(t, svc, mb, mgr, true)
		mb.mapped = samplePatients()

		list, err := svc.Patients(context.Background(), sess, tt.search, tt.status)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list.Patients) != len(tt.want) {
			t.Errorf("search=%q status=%q: got %d patients, want %v", tt.search, tt.status, len(list.Patients), tt.want)
			continue
		}
		for i, id := range tt.want {
			if list.Patients[i].ID != id {
				t.Errorf("search=%q status=%q: got %s, want %s", tt.search, tt.status, list.Patients[i].ID, id)
			}
		}
		if list.Counts.Total != 3 {
			t.Error("counts must cover the unfiltered list")
		}
	}
}

func TestPatientLogs(t *testing.T) {
	svc, mb, mgr := newTestService(t)
	sess := signIn(t, svc, mb, mgr, true)
	mb.mapped = samplePatients()
	sys, dia := 118.0, 76.0
	mb.logs = &backend.HealthLogs{VitalLogs: []backend.VitalLog{
		{ID: "v1", Type: "bp", Date: "2025-11-09", Systolic: &sys, Diastolic: &dia, CreatedAt: "2025-11-09T08:00:00Z"},
		{ID: "v2", Type: "weight", Date: "2025-11-10", Value: "70", CreatedAt: "2025-11-10T08:00:00Z"},
	}}

	logs, err := svc.PatientLogs(context.Background(), sess, "p2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mb.logsPhone != "+919876500000" {
		t.Errorf("expected mapped patient's phone, got %q", mb.logsPhone)
	}
	if len(logs.GroupedLogs) != 2 || logs.GroupedLogs[0].Date != "2025-11-10" {
		t.Errorf("expected newest day first, got %+v", logs.GroupedLogs)
	}
	if len(logs.Trends.BP) != 1 || len(logs.Trends.Weight) != 1 {
		t.Errorf("unexpected trends %+v", logs.Trends)
	}
}

func TestPatientLogs_UnmappedPatient(t *testing.T) {
	svc, mb, mgr := newTestService(t)
	sess := signIn(t, svc, mb, mgr, true)
	mb.mapped = samplePatients()

	_, err := svc.PatientLogs(context.Background(), sess, "someone-else")
	var he *httperr.Error
	if !errors.As(err, &he) || he.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	for _, c := range mb.calls {
		if c == "health-logs" {
			t.Error("logs must not be fetched for an unmapped patient")
		}
	}
}
