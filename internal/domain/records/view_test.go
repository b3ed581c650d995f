package records

import (
	"testing"
	"time"
)

func TestViews_SelectAndRemove(t *testing.T) {
	v := NewViews()
	v.Select("s1", "reports", "r1")

	if got := v.Selected("s1", "reports"); got != "r1" {
		t.Fatalf("expected r1, got %q", got)
	}
	if v.Removed("s1", "reports", "r2") {
		t.Error("deleting another report must not clear the selection")
	}
	if !v.Removed("s1", "reports", "r1") {
		t.Error("expected selection cleared")
	}
	if got := v.Selected("s1", "reports"); got != "" {
		t.Errorf("expected empty selection, got %q", got)
	}
}

func TestViews_KindsAndSessionsAreIndependent(t *testing.T) {
	v := NewViews()
	v.Select("s1", "reports", "x")
	v.Select("s1", "prescriptions", "x")
	v.Select("s2", "reports", "y")

	v.Removed("s1", "reports", "x")
	if v.Selected("s1", "prescriptions") != "x" || v.Selected("s2", "reports") != "y" {
		t.Error("removal leaked across kinds or sessions")
	}

	v.Drop("s2")
	if v.Selected("s2", "reports") != "" {
		t.Error("expected dropped session to be empty")
	}
}

func TestViews_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := NewViews()
	v.now = func() time.Time { return now }
	v.Select("old", "reports", "r1")

	now = now.Add(time.Hour)
	v.Select("fresh", "reports", "r2")

	if n := v.Sweep(now.Add(-30 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if v.Selected("old", "reports") != "" || v.Selected("fresh", "reports") != "r2" {
		t.Error("swept the wrong session")
	}
}
