// Package config provides YAML-based configuration for rollup.
package config

// Window default values, mirrored here as named constants so tests and
// callers can assert against them without hardcoding the defaults set in
// setDefaults.
const (
	DefaultRangeBefore    = defaultRangeBefore
	DefaultRangeAfter     = defaultRangeAfter
	DefaultAggregator     = defaultAggregator
	DefaultMaxBatchSize   = defaultMaxBatchSize
	DefaultSpillThreshold = defaultSpillThreshold
)
