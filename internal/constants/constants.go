// Package constants provides named constants used throughout layerbench.
// This centralizes the statistical thresholds so the comparator, the config
// defaults and the CLI all agree on them.
package constants

// Verdict thresholds
const (
	// DefaultTieThresholdPct is the relative difference, in percent, below
	// which two protocol means are reported as a tie.
	DefaultTieThresholdPct = 1.0

	// DefaultAlpha is the significance level for the Welch t-test.
	DefaultAlpha = 0.05

	// DefaultConfidenceZ is the z-score for the 95% confidence interval of
	// the mean difference.
	DefaultConfidenceZ = 1.96

	// MinSamplesForTest is the minimum per-run sample count needed to
	// estimate variance. Below it significance is inconclusive.
	MinSamplesForTest = 2
)

// Cohen's d magnitude bands. |d| below SmallEffect is negligible.
const (
	SmallEffect  = 0.2
	MediumEffect = 0.5
	LargeEffect  = 0.8
)

// Storage locations
const (
	// DirName is the per-project and per-user state directory name.
	DirName = ".layerbench"

	// ResultsDBName is the SQLite file holding comparison history.
	ResultsDBName = "results.db"

	// DecisionLogName is the JSONL decision trace written at debug level.
	DecisionLogName = "decisions.jsonl"
)

// EnvPrefix prefixes every environment override, e.g. LAYERBENCH_LOG_LEVEL.
const EnvPrefix = "LAYERBENCH_"
