package dedup

import (
	"context"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Verifier judges whether pairs of merchant descriptions name the same
// merchant. Implementations return exactly one verdict per request, in order.
type Verifier interface {
	VerifyBatch(ctx context.Context, requests []model.VerificationRequest) ([]model.Verdict, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, requests []model.VerificationRequest) ([]model.Verdict, error)

// VerifyBatch implements Verifier.
func (f VerifierFunc) VerifyBatch(ctx context.Context, requests []model.VerificationRequest) ([]model.Verdict, error) {
	return f(ctx, requests)
}
