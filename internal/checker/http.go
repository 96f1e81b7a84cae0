package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hazz-dev/avcheck/internal/suite"
)

// maxBodyBytes bounds how much of a response body is decoded.
const maxBodyBytes = 10 << 20

// HTTP executes test cases as plain GET requests.
type HTTP struct {
	client  *http.Client
	headers map[string]string
}

// NewHTTP returns a checker whose client uses timeout (zero means no
// client timeout) and sends headers with every request.
func NewHTTP(timeout time.Duration, headers map[string]string) *HTTP {
	return &HTTP{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// Execute issues one GET for tc and classifies the response by status code.
// The body is decoded as JSON before classification, so an unparseable body
// fails the check even when the status matches.
func (c *HTTP) Execute(ctx context.Context, tc suite.Case) Result {
	start := time.Now()
	expected := tc.ExpectedStatus
	if expected == 0 {
		expected = http.StatusOK
	}
	result := Result{
		Name:           tc.Name,
		URL:            tc.URL,
		ExpectedStatus: expected,
		Status:         StatusFail,
		CheckedAt:      start,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.URL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("creating request: %v", err)
		result.ResponseTime = time.Since(start)
		return result
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		result.ResponseTime = time.Since(start)
		return result
	}
	defer resp.Body.Close()
	result.StatusCode = resp.StatusCode

	var data any
	err = json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&data)
	result.ResponseTime = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("decoding response body (status %d): %v", resp.StatusCode, err)
		return result
	}
	result.Data = data
	result.Decoded = true

	if resp.StatusCode != expected {
		result.Error = fmt.Sprintf("expected status %d, got %d", expected, resp.StatusCode)
		return result
	}

	result.Status = StatusPass
	result.Highlights = highlights(data)
	return result
}

// highlights extracts the display fields an availability response may carry.
func highlights(data any) []Highlight {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	var out []Highlight
	if team, ok := obj["team"].(map[string]any); ok {
		if name, ok := team["name"].(string); ok {
			out = append(out, Highlight{Label: "Team", Value: name})
		}
	}
	if members, ok := obj["members"].([]any); ok {
		out = append(out, Highlight{Label: "Members", Value: strconv.Itoa(len(members))})
	}
	if entries, ok := obj["availability"].([]any); ok {
		out = append(out, Highlight{Label: "Availability entries", Value: strconv.Itoa(len(entries))})
	}
	if stats, ok := obj["statistics"].(map[string]any); ok {
		if avail, ok := stats["availability"]; ok {
			b, err := json.Marshal(avail)
			if err == nil {
				out = append(out, Highlight{Label: "Stats", Value: string(b)})
			}
		}
	}
	return out
}
