package alert_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazz-dev/avcheck/internal/alert"
	"github.com/hazz-dev/avcheck/internal/checker"
	"github.com/hazz-dev/avcheck/internal/runner"
)

func boolPtr(b bool) *bool {
	return &b
}

func makeSummary(team string, failed int) runner.Summary {
	s := runner.Summary{
		RunID:      "run-1",
		BaseURL:    "http://localhost:3000",
		TeamCode:   team,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Total:      7,
		Passed:     7 - failed,
		Failed:     failed,
	}
	for i := 0; i < 7; i++ {
		status := checker.StatusPass
		if i < failed {
			status = checker.StatusFail
		}
		s.Results = append(s.Results, checker.Result{Name: string(rune('A' + i)), Status: status})
	}
	return s
}

func countingServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var callCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&callCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &callCount
}

func TestAlerter_PassToFail(t *testing.T) {
	srv, calls := countingServer(t)

	a := alert.New(srv.URL, time.Hour, nil)
	a.Notify(makeSummary("TEAM123", 1), boolPtr(true))
	a.Wait()

	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected 1 webhook call for pass→fail, got %d", atomic.LoadInt32(calls))
	}
}

func TestAlerter_FailToPass(t *testing.T) {
	srv, calls := countingServer(t)

	a := alert.New(srv.URL, time.Hour, nil)
	a.Notify(makeSummary("TEAM123", 0), boolPtr(false))
	a.Wait()

	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected 1 webhook call for fail→pass, got %d", atomic.LoadInt32(calls))
	}
}

func TestAlerter_SameOutcome_NoWebhook(t *testing.T) {
	srv, calls := countingServer(t)

	a := alert.New(srv.URL, time.Hour, nil)
	a.Notify(makeSummary("TEAM123", 0), boolPtr(true))
	a.Notify(makeSummary("TEAM123", 2), boolPtr(false))
	a.Wait()

	if atomic.LoadInt32(calls) != 0 {
		t.Errorf("expected 0 webhook calls for unchanged outcome, got %d", atomic.LoadInt32(calls))
	}
}

func TestAlerter_FirstRun_NoWebhook(t *testing.T) {
	srv, calls := countingServer(t)

	a := alert.New(srv.URL, time.Hour, nil)
	a.Notify(makeSummary("TEAM123", 3), nil) // nil = first run
	a.Wait()

	if atomic.LoadInt32(calls) != 0 {
		t.Errorf("expected 0 webhook calls for first run, got %d", atomic.LoadInt32(calls))
	}
}

func TestAlerter_Cooldown_SuppressesAlerts(t *testing.T) {
	srv, calls := countingServer(t)

	a := alert.New(srv.URL, time.Hour, nil)
	a.Notify(makeSummary("TEAM123", 1), boolPtr(true))
	a.Wait()

	// Second flip within cooldown, should suppress.
	a.Notify(makeSummary("TEAM123", 0), boolPtr(false))
	a.Wait()

	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected 1 webhook call (cooldown suppressed second), got %d", atomic.LoadInt32(calls))
	}
}

func TestAlerter_Cooldown_PerTeam(t *testing.T) {
	srv, calls := countingServer(t)

	a := alert.New(srv.URL, time.Hour, nil)
	a.Notify(makeSummary("ALPHA", 1), boolPtr(true))
	a.Notify(makeSummary("BETA", 1), boolPtr(true))
	a.Wait()

	if atomic.LoadInt32(calls) != 2 {
		t.Errorf("expected 2 webhook calls (one per team), got %d", atomic.LoadInt32(calls))
	}
}

func TestAlerter_WebhookPayload(t *testing.T) {
	var (
		mu      sync.Mutex
		payload map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		json.Unmarshal(body, &payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := alert.New(srv.URL, time.Hour, nil)
	a.Notify(makeSummary("TEAM123", 2), boolPtr(true))
	a.Wait()

	mu.Lock()
	defer mu.Unlock()
	if payload["team"] != "TEAM123" {
		t.Errorf("expected team 'TEAM123', got %v", payload["team"])
	}
	if payload["status"] != "fail" {
		t.Errorf("expected status 'fail', got %v", payload["status"])
	}
	if payload["previous_status"] != "pass" {
		t.Errorf("expected previous_status 'pass', got %v", payload["previous_status"])
	}
	if payload["failed"] != float64(2) {
		t.Errorf("expected failed 2, got %v", payload["failed"])
	}
	checks, ok := payload["failed_checks"].([]interface{})
	if !ok || len(checks) != 2 || checks[0] != "A" {
		t.Errorf("unexpected failed_checks %v", payload["failed_checks"])
	}
	if payload["source"] != "avcheck" {
		t.Errorf("expected source 'avcheck', got %v", payload["source"])
	}
}

func TestAlerter_HTTPError_DoesNotCrash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := alert.New(srv.URL, time.Hour, nil)
	// Should not panic even on HTTP error
	a.Notify(makeSummary("TEAM123", 1), boolPtr(true))
	a.Wait()
}
