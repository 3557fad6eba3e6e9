package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Verifier asks a language model whether uncertain pairs name the same
// merchant. It satisfies dedup.Verifier.
type Verifier struct {
	client    Client
	cache     *verdictCache
	limiter   *rateLimiter
	logger    *slog.Logger
	retryOpts common.RetryOptions
}

// NewVerifier wraps client with caching, rate limiting and retries.
func NewVerifier(client Client, cfg Config, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default().With("component", "llm")
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Verifier{
		client:    client,
		cache:     newVerdictCache(cfg.CacheTTL),
		limiter:   newRateLimiter(cfg.RateLimit),
		logger:    logger,
		retryOpts: retryOpts,
	}
}

// VerifyBatch returns one verdict per request, in order. Cached pairs are
// answered locally; the rest go to the model in a single prompt.
func (v *Verifier) VerifyBatch(ctx context.Context, requests []model.VerificationRequest) ([]model.Verdict, error) {
	verdicts := make([]model.Verdict, len(requests))
	keys := make([]string, len(requests))

	var pending []int
	for i, req := range requests {
		keys[i] = requestKey(req)
		if cached, ok := v.cache.get(keys[i]); ok {
			verdicts[i] = cached
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		v.logger.Debug("verification batch served from cache", "pairs", len(requests))
		return verdicts, nil
	}

	batch := make([]model.VerificationRequest, len(pending))
	for j, i := range pending {
		batch[j] = requests[i]
	}
	completion := CompletionRequest{
		System: systemPrompt,
		Prompt: buildVerificationPrompt(batch),
	}

	var answered []model.Verdict
	err := common.WithRetry(ctx, func() error {
		if err := v.limiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}
		content, err := v.client.Complete(ctx, completion)
		if err != nil {
			return err
		}
		answered, err = parseVerdicts(content, len(batch))
		return err
	}, v.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("verify %d pairs: %w", len(batch), err)
	}

	for j, i := range pending {
		verdicts[i] = answered[j]
		v.cache.set(keys[i], answered[j])
	}

	v.logger.Debug("verification batch complete",
		"pairs", len(requests),
		"cached", len(requests)-len(pending),
		"sent", len(pending))

	return verdicts, nil
}
