package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazz-dev/avcheck/internal/runner"
)

// Alerter sends webhook notifications when a team's run outcome flips.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	lastAlert  map[string]time.Time
	mu         sync.Mutex
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// New creates a new Alerter. Pass nil logger to use the default logger.
func New(webhookURL string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		lastAlert:  make(map[string]time.Time),
		logger:     logger,
	}
}

type webhookPayload struct {
	Team           string   `json:"team"`
	Status         string   `json:"status"`
	PreviousStatus string   `json:"previous_status"`
	Total          int      `json:"total"`
	Passed         int      `json:"passed"`
	Failed         int      `json:"failed"`
	FailedChecks   []string `json:"failed_checks"`
	BaseURL        string   `json:"base_url"`
	RunID          string   `json:"run_id"`
	FinishedAt     string   `json:"finished_at"`
	Source         string   `json:"source"`
}

func outcome(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

// Notify sends a webhook if the run outcome changed and the cooldown has elapsed.
// previousOK is nil when there is no earlier run for the team.
func (a *Alerter) Notify(s runner.Summary, previousOK *bool) {
	if previousOK == nil {
		return
	}
	if s.OK() == *previousOK {
		return
	}

	a.mu.Lock()
	last, exists := a.lastAlert[s.TeamCode]
	if exists && time.Since(last) < a.cooldown {
		a.mu.Unlock()
		a.logger.Info("alert suppressed by cooldown", "team", s.TeamCode)
		return
	}
	a.lastAlert[s.TeamCode] = time.Now()
	a.mu.Unlock()

	// Send asynchronously so Notify doesn't block the next run.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.send(s, outcome(*previousOK))
	}()
}

// Wait blocks until every pending webhook has been sent or has failed.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

func (a *Alerter) send(s runner.Summary, prevStatus string) {
	failed := s.FailedNames()
	if failed == nil {
		failed = []string{}
	}
	payload := webhookPayload{
		Team:           s.TeamCode,
		Status:         outcome(s.OK()),
		PreviousStatus: prevStatus,
		Total:          s.Total,
		Passed:         s.Passed,
		Failed:         s.Failed,
		FailedChecks:   failed,
		BaseURL:        s.BaseURL,
		RunID:          s.RunID,
		FinishedAt:     s.FinishedAt.UTC().Format(time.RFC3339),
		Source:         "avcheck",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling webhook payload", "team", s.TeamCode, "error", err)
		return
	}

	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("sending webhook", "team", s.TeamCode, "url", a.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("webhook returned non-2xx status",
			"team", s.TeamCode,
			"status", resp.StatusCode,
		)
	}
}
