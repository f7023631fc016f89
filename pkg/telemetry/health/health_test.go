package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestChecker_NoChecksIsReady(t *testing.T) {
	report := New(0).Check(context.Background())
	if !report.Ready() {
		t.Errorf("Status = %q, want %q", report.Status, StatusReady)
	}
	if len(report.Checks) != 0 {
		t.Errorf("Checks = %v, want empty", report.Checks)
	}
}

func TestChecker_Check(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"storage":  func(context.Context) error { return nil },
				"snapshot": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"storage":  func(context.Context) error { return errors.New("database is locked") },
				"snapshot": func(context.Context) error { return nil },
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"storage"},
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"slow": func(ctx context.Context) error {
					<-ctx.Done()
					time.Sleep(50 * time.Millisecond)
					return nil
				},
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"slow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(20 * time.Millisecond)
			for name, check := range tt.checks {
				c.Register(name, check)
			}

			report := c.Check(context.Background())
			if report.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", report.Status, tt.wantStatus)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Fatalf("got %d results, want %d", len(report.Checks), len(tt.checks))
			}
			for _, name := range tt.wantFailed {
				if got := report.Checks[name].Status; got != StatusUnhealthy {
					t.Errorf("%s status = %q, want %q", name, got, StatusUnhealthy)
				}
				if report.Checks[name].Message == "" {
					t.Errorf("%s has no message", name)
				}
			}
		})
	}
}

func TestChecker_RegisterReplacesAndSorts(t *testing.T) {
	c := New(0)
	c.Register("storage", func(context.Context) error { return errors.New("down") })
	c.Register("snapshot", func(context.Context) error { return nil })
	c.Register("storage", func(context.Context) error { return nil })

	if got, want := c.Names(), []string{"snapshot", "storage"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if !c.Check(context.Background()).Ready() {
		t.Error("replaced check should be healthy")
	}
}

func TestReadinessHandler(t *testing.T) {
	c := New(0)
	c.Register("storage", func(context.Context) error { return errors.New("closed") })

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Checks["storage"].Message != "closed" {
		t.Errorf("message = %q", report.Checks["storage"].Message)
	}

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodHead, "/readyz", nil))
	if rec.Body.Len() != 0 {
		t.Error("HEAD response should have no body")
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc123", "2026-10-18")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
