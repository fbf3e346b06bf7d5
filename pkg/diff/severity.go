package diff

import "math"

// Severity indicates the magnitude of a change in share.
type Severity string

const (
	SeverityNone        Severity = "none"
	SeverityMinor       Severity = "minor"
	SeverityModerate    Severity = "moderate"
	SeverityRegress     Severity = "regression"
	SeverityImprovement Severity = "improvement"
)

// Classify buckets a percentage-point delta. Growth in share beyond the
// moderate band is a regression, shrinkage an improvement.
func Classify(delta float64) Severity {
	abs := math.Abs(delta)
	if abs < 0.5 {
		return SeverityNone
	}
	if abs < 2 {
		return SeverityMinor
	}
	if abs < 5 {
		return SeverityModerate
	}
	if delta > 0 {
		return SeverityRegress
	}
	return SeverityImprovement
}
