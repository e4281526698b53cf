package chain

import (
	"strings"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// classifyTxError maps a failed transaction's error object and program logs
// to an analysis error kind. The log markers cover the swap programs this
// bot trades through; anything unrecognized stays unknown so the retry
// policy can take another look.
func classifyTxError(errJSON string, logs []string) domain.AnalysisErrorKind {
	haystack := strings.ToLower(errJSON + " " + strings.Join(logs, " "))

	switch {
	case strings.Contains(haystack, "slippage"),
		strings.Contains(haystack, "toomuchsolrequired"),
		strings.Contains(haystack, "toolittlesolreceived"):
		return domain.AnalysisErrSlippage

	case strings.Contains(haystack, "notenoughtokenstosell"),
		strings.Contains(haystack, "insufficient tokens"):
		return domain.AnalysisErrInsufficientTokens

	case strings.Contains(haystack, "insufficient lamports"):
		return domain.AnalysisErrInsufficientLamport

	case strings.Contains(haystack, "insufficient funds for rent"):
		return domain.AnalysisErrRentExemption

	default:
		return domain.AnalysisErrUnknown
	}
}

// summarizeTxError prefers the most informative program log line over the
// raw error object.
func summarizeTxError(errJSON string, logs []string) string {
	for i := len(logs) - 1; i >= 0; i-- {
		line := logs[i]
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") || strings.Contains(lower, "insufficient") {
			return line
		}
	}
	return errJSON
}
