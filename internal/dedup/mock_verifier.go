package dedup

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/spice-reconcile/internal/merchant"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

// MockVerifier is a deterministic Verifier for tests and offline runs. Two
// sides name the same merchant when any of their descriptions or merchant
// labels normalize to the same canonical name after alias expansion.
type MockVerifier struct {
	aliases map[string]string
	// Err, when set, is returned by every call.
	Err error
	// FailCalls lists 1-based call numbers that return Err or a generic
	// failure.
	FailCalls map[int]bool
	// Delay is slept before answering, honoring ctx.
	Delay time.Duration
	calls [][]model.VerificationRequest
	mu    sync.Mutex
}

// DefaultAliases are abbreviations the mock treats as the same merchant.
var DefaultAliases = map[string]string{
	"AWS":       "AMAZON WEB SERVICES",
	"AMZN MKTP": "AMAZON",
	"AMZN":      "AMAZON",
	"GSUITE":    "GOOGLE WORKSPACE",
	"MSFT":      "MICROSOFT",
	"PP":        "PAYPAL",
}

// NewMockVerifier creates a mock with DefaultAliases plus extra.
func NewMockVerifier(extra map[string]string) *MockVerifier {
	aliases := make(map[string]string, len(DefaultAliases)+len(extra))
	for k, v := range DefaultAliases {
		aliases[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	for k, v := range extra {
		aliases[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	return &MockVerifier{aliases: aliases}
}

// VerifyBatch implements Verifier.
func (m *MockVerifier) VerifyBatch(ctx context.Context, requests []model.VerificationRequest) ([]model.Verdict, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]model.VerificationRequest(nil), requests...))
	call := len(m.calls)
	err := m.Err
	fail := m.FailCalls[call]
	m.mu.Unlock()

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if err != nil {
		return nil, err
	}
	if fail {
		return nil, errMockFailure
	}

	verdicts := make([]model.Verdict, len(requests))
	for i, req := range requests {
		verdicts[i] = model.Verdict{IsSameMerchant: m.sameMerchant(req), Confidence: model.ConfidenceHigh}
	}
	return verdicts, nil
}

// Calls returns a copy of every batch received so far.
func (m *MockVerifier) Calls() [][]model.VerificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.VerificationRequest(nil), m.calls...)
}

// CallCount returns how many batches were received.
func (m *MockVerifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// sameMerchant compares every known name of side A with every known name of
// side B.
func (m *MockVerifier) sameMerchant(req model.VerificationRequest) bool {
	for _, a := range []string{req.ADescription, req.AMerchantName} {
		for _, b := range []string{req.BDescription, req.BMerchantName} {
			if a != "" && b != "" && m.canonical(a) == m.canonical(b) {
				return true
			}
		}
	}
	return false
}

func (m *MockVerifier) canonical(description string) string {
	name := strings.ToUpper(strings.TrimSpace(description))

	// Longest alias first so "AMZN MKTP" wins over "AMZN".
	keys := make([]string, 0, len(m.aliases))
	for k := range m.aliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if name == k || strings.HasPrefix(name, k+" ") {
			name = m.aliases[k] + strings.TrimPrefix(name, k)
			break
		}
	}

	return merchant.ExtractMerchantName(name)
}

var errMockFailure = errors.New("mock verifier failure")
