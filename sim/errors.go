package sim

import (
	"fmt"
	"strings"
)

// ConfigError reports configuration problems found before a run starts.
type ConfigError struct {
	Component string
	Problems  []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s config: %s", e.Component, strings.Join(e.Problems, "; "))
}

// DataDefectError reports missing or non-numeric input data. Always fatal.
type DataDefectError struct {
	Sector string
	Region string
	Tech   string
	Year   int
	Field  string
	Reason string
	Err    error
}

func (e *DataDefectError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s data defect in year %d", e.Sector, e.Year)
	if e.Region != "" {
		fmt.Fprintf(&b, ", region %s", e.Region)
	}
	if e.Tech != "" {
		fmt.Fprintf(&b, ", technology %s", e.Tech)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ", field %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DataDefectError) Unwrap() error { return e.Err }

// ViolationKind classifies a broken state invariant.
type ViolationKind string

const (
	ViolationShareSum          ViolationKind = "share-sum"
	ViolationNegativeShare     ViolationKind = "negative-share"
	ViolationNonFinite         ViolationKind = "non-finite"
	ViolationExperienceDecline ViolationKind = "experience-decline"
)

// InvariantViolation is one broken invariant. Violations are logic defects in the
// engine, not recoverable input problems.
type InvariantViolation struct {
	Sector  string
	Region  string
	Tech    string // empty for region-level checks
	Year    int
	SubStep int
	Kind    ViolationKind
	Value   float64
}

func (v InvariantViolation) String() string {
	where := v.Region
	if v.Tech != "" {
		where += "/" + v.Tech
	}
	return fmt.Sprintf("%s at %s year %d sub-step %d (value %g)", v.Kind, where, v.Year, v.SubStep, v.Value)
}

// InvariantError carries the violations of one step when running in strict mode.
type InvariantError struct {
	Violations []InvariantViolation
}

func (e *InvariantError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%d invariant violation(s): %s", len(e.Violations), strings.Join(parts, "; "))
}
