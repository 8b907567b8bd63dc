package sessionizer

import (
	"math"
	"strings"
)

// EstimateTokens approximates the tokenizer at four characters per
// token. Close enough for budgeting; never used for billing.
func EstimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	runes := []rune(text)
	return int(math.Ceil(float64(len(runes)) / 4.0))
}
