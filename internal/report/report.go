// Package report renders run progress as colored console lines.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hazz-dev/avcheck/internal/checker"
	"github.com/hazz-dev/avcheck/internal/suite"
)

// Color is a terminal foreground color.
type Color int

const (
	Reset Color = iota
	Green
	Red
	Yellow
	Blue
	Cyan
)

// Code returns the ANSI escape sequence for c.
func (c Color) Code() string {
	switch c {
	case Green:
		return "\x1b[32m"
	case Red:
		return "\x1b[31m"
	case Yellow:
		return "\x1b[33m"
	case Blue:
		return "\x1b[34m"
	case Cyan:
		return "\x1b[36m"
	default:
		return "\x1b[0m"
	}
}

const rule = "═══════════════════════════════════════"

// Printer writes report lines to w.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a Printer. With color false no escape sequences are written.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// Line writes one line in color c.
func (p *Printer) Line(c Color, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s\n", c.Code(), msg, Reset.Code())
		return
	}
	fmt.Fprintln(p.w, msg)
}

// Banner prints the run header. The password value is never printed.
func (p *Printer) Banner(target suite.Target) {
	p.Line(Cyan, rule)
	p.Line(Cyan, "  AvPlanner API Test Suite")
	p.Line(Cyan, rule)
	p.Line(Blue, "Base URL: %s", target.BaseURL)
	p.Line(Blue, "Team Code: %s", target.TeamCode)
	if target.Password != "" {
		p.Line(Blue, "Password: ***")
	} else {
		p.Line(Blue, "Password: (none)")
	}
}

// CaseStart announces a case before it is executed.
func (p *Printer) CaseStart(tc suite.Case) {
	p.Line(Cyan, "\nTesting: %s", tc.Name)
	p.Line(Blue, "URL: %s", tc.URL)
}

// CaseResult prints the outcome of a single case.
func (p *Printer) CaseResult(r checker.Result) {
	switch {
	case r.OK():
		p.Line(Green, "✓ Status: %d (Expected: %d)", r.StatusCode, r.ExpectedStatus)
		p.Line(Green, "✓ Response received")
		for _, h := range r.Highlights {
			p.Line(Yellow, "  %s: %s", h.Label, h.Value)
		}
	case r.Decoded && r.StatusCode != r.ExpectedStatus:
		p.Line(Red, "✗ Unexpected status: %d (Expected: %d)", r.StatusCode, r.ExpectedStatus)
		p.Line(Red, "  Response: %s", compact(r.Data))
	default:
		p.Line(Red, "✗ Error: %s", r.Error)
	}
}

// Summary prints the totals and the final verdict line.
func (p *Printer) Summary(total, passed, failed int) {
	p.Line(Cyan, "\n"+rule)
	p.Line(Cyan, "  Test Summary")
	p.Line(Cyan, rule)
	p.Line(Blue, "Total: %d", total)
	p.Line(Green, "Passed: %d", passed)
	failColor := Green
	if failed > 0 {
		failColor = Red
	}
	p.Line(failColor, "Failed: %d", failed)

	if failed == 0 {
		p.Line(Green, "\n✓ All tests passed!")
	} else {
		p.Line(Red, "\n✗ Some tests failed")
	}
}

// Fatal prints an error that aborted the run.
func (p *Printer) Fatal(err error) {
	p.Line(Red, "\nFatal error: %v", err)
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
