package dedup

import "log/slog"

// Default escalation settings.
const (
	DefaultBatchSize            = 25
	DefaultMaxConcurrentBatches = 3
)

// Options configures a deduplication run. Zero values select the defaults.
type Options struct {
	Logger *slog.Logger

	// OnBatchDone is called after each verification batch settles, whether it
	// succeeded or not. It may be called from several goroutines.
	OnBatchDone func(done, total int)

	Match MatchOptions

	DateToleranceDays    int
	MaxCandidatesPerTx   int
	BatchSize            int
	MaxConcurrentBatches int

	// OneToOne stops an existing transaction from absorbing more than one
	// incoming transaction in the same run.
	OneToOne bool
}

// DefaultOptions returns Options populated with every default.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "dedup")
	}
	if o.Match.MatchThreshold <= 0 {
		o.Match.MatchThreshold = DefaultMatchThreshold
	}
	if o.Match.TokenOverlapThreshold <= 0 {
		o.Match.TokenOverlapThreshold = DefaultTokenOverlapThreshold
	}
	if o.DateToleranceDays <= 0 {
		o.DateToleranceDays = DefaultDateToleranceDays
	}
	if o.MaxCandidatesPerTx <= 0 {
		o.MaxCandidatesPerTx = DefaultMaxCandidatesPerTx
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxConcurrentBatches <= 0 {
		o.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	return o
}
