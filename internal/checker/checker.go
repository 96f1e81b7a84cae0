package checker

import (
	"context"

	"github.com/hazz-dev/avcheck/internal/suite"
)

// Checker executes a single test case. Failures are reported in the
// Result, never as a panic or error.
type Checker interface {
	Execute(ctx context.Context, tc suite.Case) Result
}
