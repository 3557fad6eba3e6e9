// Package config loads deduplication settings and resolves local paths.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/dedup"
)

// Dedup holds the deduplication settings under the "dedup" key.
type Dedup struct {
	MatchThreshold        float64
	TokenOverlapThreshold float64
	DateToleranceDays     int
	MaxCandidatesPerTx    int
	BatchSize             int
	MaxConcurrentBatches  int
	// WindowDays widens the stored-transaction read around an import batch.
	WindowDays int
	Timeout    time.Duration
	OneToOne   bool
}

// SetDedupDefaults registers the dedup defaults on v.
func SetDedupDefaults(v *viper.Viper) {
	v.SetDefault("dedup.match_threshold", dedup.DefaultMatchThreshold)
	v.SetDefault("dedup.token_overlap_threshold", dedup.DefaultTokenOverlapThreshold)
	v.SetDefault("dedup.date_tolerance_days", dedup.DefaultDateToleranceDays)
	v.SetDefault("dedup.max_candidates_per_tx", dedup.DefaultMaxCandidatesPerTx)
	v.SetDefault("dedup.batch_size", dedup.DefaultBatchSize)
	v.SetDefault("dedup.max_concurrent_batches", dedup.DefaultMaxConcurrentBatches)
	v.SetDefault("dedup.window_days", 7)
	v.SetDefault("dedup.timeout", 2*time.Minute)
	v.SetDefault("dedup.one_to_one", false)
}

// LoadDedup reads and validates the dedup settings from v.
func LoadDedup(v *viper.Viper) (Dedup, error) {
	SetDedupDefaults(v)

	cfg := Dedup{
		MatchThreshold:        v.GetFloat64("dedup.match_threshold"),
		TokenOverlapThreshold: v.GetFloat64("dedup.token_overlap_threshold"),
		DateToleranceDays:     v.GetInt("dedup.date_tolerance_days"),
		MaxCandidatesPerTx:    v.GetInt("dedup.max_candidates_per_tx"),
		BatchSize:             v.GetInt("dedup.batch_size"),
		MaxConcurrentBatches:  v.GetInt("dedup.max_concurrent_batches"),
		WindowDays:            v.GetInt("dedup.window_days"),
		Timeout:               v.GetDuration("dedup.timeout"),
		OneToOne:              v.GetBool("dedup.one_to_one"),
	}

	if err := cfg.Validate(); err != nil {
		return Dedup{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot honor.
func (c Dedup) Validate() error {
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("%w: dedup.match_threshold must be in (0, 1], got %v", common.ErrInvalidConfig, c.MatchThreshold)
	}
	if c.TokenOverlapThreshold <= 0 || c.TokenOverlapThreshold > 1 {
		return fmt.Errorf("%w: dedup.token_overlap_threshold must be in (0, 1], got %v", common.ErrInvalidConfig, c.TokenOverlapThreshold)
	}
	if c.DateToleranceDays < 1 {
		return fmt.Errorf("%w: dedup.date_tolerance_days must be at least 1", common.ErrInvalidConfig)
	}
	if c.MaxCandidatesPerTx < 1 {
		return fmt.Errorf("%w: dedup.max_candidates_per_tx must be at least 1", common.ErrInvalidConfig)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: dedup.batch_size must be at least 1", common.ErrInvalidConfig)
	}
	if c.MaxConcurrentBatches < 1 {
		return fmt.Errorf("%w: dedup.max_concurrent_batches must be at least 1", common.ErrInvalidConfig)
	}
	if c.WindowDays < c.DateToleranceDays {
		return fmt.Errorf("%w: dedup.window_days (%d) must cover date_tolerance_days (%d)",
			common.ErrInvalidConfig, c.WindowDays, c.DateToleranceDays)
	}
	return nil
}

// Options converts the settings into pipeline options.
func (c Dedup) Options() dedup.Options {
	return dedup.Options{
		Match: dedup.MatchOptions{
			MatchThreshold:        c.MatchThreshold,
			TokenOverlapThreshold: c.TokenOverlapThreshold,
		},
		DateToleranceDays:    c.DateToleranceDays,
		MaxCandidatesPerTx:   c.MaxCandidatesPerTx,
		BatchSize:            c.BatchSize,
		MaxConcurrentBatches: c.MaxConcurrentBatches,
		OneToOne:             c.OneToOne,
	}
}
