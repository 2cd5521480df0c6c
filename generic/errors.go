/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Data quality - upstream records that must be fixed before a run
  2. Unsupported period - no tax table for the requested fiscal month
  3. Partial write - some workers failed to publish, the rest succeeded
  4. Configuration - caller misconfiguration (zero business days, ...)

AGGREGATION:
  DataQualityError carries EVERY issue found in a pass, so a human can fix
  all upstream records at once instead of iterating one error at a time.
  PartialWriteError does the same for publish failures.

USAGE:
  if errors.Is(err, generic.ErrDataQuality) {
      var dq *generic.DataQualityError
      errors.As(err, &dq)
      for _, issue := range dq.Issues { ... }
  }

SEE ALSO:
  - allocation/engine.go: Produces data-quality and configuration errors
  - tax/progressive.go: Produces unsupported-period errors
  - payroll/runner.go: Produces partial-write errors
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDataQuality is returned when upstream records are inconsistent.
	// Not retryable: the source data must be fixed.
	ErrDataQuality = errors.New("data quality error")

	// ErrUnsupportedPeriod is returned when no tax table covers a fiscal month.
	ErrUnsupportedPeriod = errors.New("unsupported period")

	// ErrPartialWrite is returned when some results failed to publish.
	ErrPartialWrite = errors.New("partial write failure")

	// ErrConfiguration is returned for caller misconfiguration.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IssueCode classifies a data-quality problem.
type IssueCode string

const (
	IssueInvalidCustomerReference IssueCode = "invalid_customer_reference"
	IssueUnknownClient            IssueCode = "unknown_client"
	IssueUnknownCategory          IssueCode = "unknown_category"
	IssueUnclassifiableCategory   IssueCode = "unclassifiable_category"
	IssueRevenueWithoutTime       IssueCode = "revenue_without_logged_time"
	IssueTimeWithoutRevenue       IssueCode = "time_without_revenue"
	IssueMissingWorker            IssueCode = "missing_worker_reference"
	IssueMixedRevenueMode         IssueCode = "mixed_revenue_mode"
)

// Issue is one offending record.
type Issue struct {
	Code    IssueCode
	Message string
	Record  any // the offending fact, client or worker reference
}

// DataQualityError aggregates every issue found in one pass.
type DataQualityError struct {
	Issues []Issue
}

func (e *DataQualityError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("%s: %s", i.Code, i.Message))
	}
	return fmt.Sprintf("data quality: %d issue(s): %s", len(e.Issues), strings.Join(msgs, "; "))
}

func (e *DataQualityError) Unwrap() error { return ErrDataQuality }

// Add records an issue.
func (e *DataQualityError) Add(code IssueCode, record any, format string, args ...any) {
	e.Issues = append(e.Issues, Issue{Code: code, Message: fmt.Sprintf(format, args...), Record: record})
}

// OrNil returns nil when no issue was recorded.
func (e *DataQualityError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// UnsupportedPeriodError names the fiscal month no table covers.
type UnsupportedPeriodError struct {
	Year  int
	Month time.Month
	Table string // which table family was looked up, e.g. "irpf"
}

func (e *UnsupportedPeriodError) Error() string {
	return fmt.Sprintf("unsupported period: no %s table for %04d-%02d", e.Table, e.Year, int(e.Month))
}

func (e *UnsupportedPeriodError) Unwrap() error { return ErrUnsupportedPeriod }

// ConfigurationError describes a caller misconfiguration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// WriteFailure is one worker result that could not be published.
type WriteFailure struct {
	WorkerID WorkerID
	Kind     string
	Err      error
}

// PartialWriteError aggregates publish failures of a run.
type PartialWriteError struct {
	Failures []WriteFailure
}

func (e *PartialWriteError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("%s/%s: %v", f.WorkerID, f.Kind, f.Err))
	}
	return fmt.Sprintf("partial write: %d failure(s): %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *PartialWriteError) Unwrap() error { return ErrPartialWrite }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
// Only publish failures are transient; everything else needs a fix upstream.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPartialWrite)
}

// IsDataQuality returns true for errors caused by upstream records.
func IsDataQuality(err error) bool {
	return errors.Is(err, ErrDataQuality)
}

// IsConfiguration returns true for caller misconfiguration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrUnsupportedPeriod) ||
		errors.Is(err, ErrInvalidPeriod)
}
