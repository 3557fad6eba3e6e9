package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

type rawVerdict struct {
	Pair         *int   `json:"pair"`
	SameMerchant *bool  `json:"same_merchant"`
	Confidence   string `json:"confidence"`
}

// parseVerdicts decodes a model response into exactly want verdicts. Objects
// carrying a 1-based "pair" number are placed by number, others by position.
// An unknown confidence label is read as low.
func parseVerdicts(content string, want int) ([]model.Verdict, error) {
	content = cleanMarkdownWrapper(content)

	var raw []rawVerdict
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		var wrapped struct {
			Results []rawVerdict `json:"results"`
		}
		if wrapErr := json.Unmarshal([]byte(content), &wrapped); wrapErr != nil || wrapped.Results == nil {
			return nil, fmt.Errorf("%w: %w", common.ErrMalformedVerdict, err)
		}
		raw = wrapped.Results
	}

	if len(raw) != want {
		return nil, fmt.Errorf("%w: expected %d verdicts, got %d", common.ErrMalformedVerdict, want, len(raw))
	}

	verdicts := make([]model.Verdict, want)
	filled := make([]bool, want)
	for i, r := range raw {
		pos := i
		if r.Pair != nil {
			pos = *r.Pair - 1
		}
		if pos < 0 || pos >= want || filled[pos] {
			return nil, fmt.Errorf("%w: bad or repeated pair number at entry %d", common.ErrMalformedVerdict, i+1)
		}
		if r.SameMerchant == nil {
			return nil, fmt.Errorf("%w: entry %d has no same_merchant", common.ErrMalformedVerdict, i+1)
		}

		confidence, err := model.ParseConfidenceLevel(r.Confidence)
		if err != nil {
			confidence = model.ConfidenceLow
		}
		verdicts[pos] = model.Verdict{IsSameMerchant: *r.SameMerchant, Confidence: confidence}
		filled[pos] = true
	}

	return verdicts, nil
}

// cleanMarkdownWrapper strips code fences and any prose around the JSON.
func cleanMarkdownWrapper(content string) string {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	closer := "]"
	if s[start] == '{' {
		closer = "}"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return s
}
