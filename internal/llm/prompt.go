package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

const systemPrompt = "You compare merchant descriptions from bank, card and aggregator statements. " +
	"You decide whether two descriptions name the same merchant. " +
	"You MUST respond with ONLY a valid JSON array. Do not wrap it in code fences or add commentary."

// buildVerificationPrompt renders the numbered pairs the model must judge.
func buildVerificationPrompt(requests []model.VerificationRequest) string {
	var b strings.Builder

	b.WriteString("Each pair below has the same amount and nearly the same date. ")
	b.WriteString("Decide for each pair whether both descriptions refer to the same merchant.\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("- Abbreviations and legal names can name the same merchant (\"AWS\" and \"Amazon Web Services\").\n")
	b.WriteString("- Payment processor prefixes, store numbers, locations and reference codes do not change the merchant.\n")
	b.WriteString("- Different businesses are different merchants even when the amount matches.\n")
	b.WriteString("- A merchant label, when given, comes from the bank feed and is usually more reliable than the raw description.\n")
	b.WriteString("- Use \"low\" confidence when you are guessing.\n\n")

	b.WriteString("Pairs:\n")
	for i, req := range requests {
		fmt.Fprintf(&b, "%d. A: %q%s | B: %q%s | amount: %s | date: %s\n",
			i+1, req.ADescription, merchantLabel(req.AMerchantName),
			req.BDescription, merchantLabel(req.BMerchantName),
			req.Amount, req.Date)
	}

	b.WriteString("\nRespond with one object per pair, in order:\n")
	b.WriteString(`[{"pair": 1, "same_merchant": true, "confidence": "high"}]`)
	b.WriteString("\nconfidence must be one of \"high\", \"medium\" or \"low\".")

	return b.String()
}

func merchantLabel(name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf(" (merchant %q)", name)
}
