package checker

import "time"

// Status represents the outcome of a single check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Highlight is an optional summary field pulled out of a response body
// for display.
type Highlight struct {
	Label string
	Value string
}

// Result is the outcome of executing a single test case.
type Result struct {
	Name           string
	URL            string
	ExpectedStatus int
	StatusCode     int
	Status         Status
	// Data is the decoded response body. It is nil when decoding failed
	// and also when the body was JSON null; Decoded tells the two apart.
	Data         any
	Decoded      bool
	Highlights   []Highlight
	Error        string
	ResponseTime time.Duration
	CheckedAt    time.Time
}

// OK reports whether the check passed.
func (r Result) OK() bool {
	return r.Status == StatusPass
}
