package comparison

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
)

// markerRules list the primary numeric markers in priority order.  The
// first marker extractable from both texts drives the relative-change
// comparison; proteinuria leads because it dominates the urine exams this
// fallback most often sees.
var markerRules = []struct {
	name string
	re   *regexp.Regexp
}{
	{"Proteine", regexp.MustCompile(`(?i)PROTEINE\s*[:\s]\s*([0-9]+[.,]?[0-9]*)`)},
	{"Emoglobina", regexp.MustCompile(`(?i)EMOGLOBINA\s*[:\s]\s*([0-9]+[.,]?[0-9]*)`)},
	{"Glucosio", regexp.MustCompile(`(?i)GLUCOSIO\s*[:\s]\s*([0-9]+[.,]?[0-9]*)`)},
	{"Creatinina", regexp.MustCompile(`(?i)CREATININA\s*[:\s]\s*([0-9]+[.,]?[0-9]*)`)},
	{"Leucociti", regexp.MustCompile(`(?i)(?:LEUCOCITI|WBC)\s*[:\s]\s*([0-9]+[.,]?[0-9]*)`)},
}

// compareFallback is the deterministic verdict path: relative change on the
// first primary marker present in both texts, then the length heuristic as
// the explicitly low-confidence last resort.
func (c *Comparator) compareFallback(priorText, currentText string) *report.ComparisonResult {
	for _, marker := range markerRules {
		prev, okPrev := extractMarker(marker.re, priorText)
		curr, okCurr := extractMarker(marker.re, currentText)
		if !okPrev || !okCurr {
			continue
		}
		return c.compareMarker(marker.name, prev, curr)
	}

	c.logger.Debug("no comparable numeric marker, using length heuristic")
	return c.compareByLength(priorText, currentText)
}

func extractMarker(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// compareMarker applies the relative-change threshold to one marker pair.
func (c *Comparator) compareMarker(name string, prev, curr float64) *report.ComparisonResult {
	trail := fmt.Sprintf("%s: %s → %s", name, formatValue(prev), formatValue(curr))

	if prev == 0 {
		if curr == 0 {
			return &report.ComparisonResult{
				Status:      report.VerdictUnchanged,
				Explanation: trail + " (valore invariato)",
			}
		}
		return &report.ComparisonResult{
			Status:      report.VerdictWorsened,
			Explanation: trail + " (comparsa di un valore precedentemente assente)",
		}
	}

	change := (curr - prev) / prev
	switch {
	case change > c.cfg.TrendChangeRatio:
		return &report.ComparisonResult{
			Status:      report.VerdictWorsened,
			Explanation: fmt.Sprintf("%s (aumento del %.0f%%)", trail, change*100),
		}
	case change < -c.cfg.TrendChangeRatio:
		return &report.ComparisonResult{
			Status:      report.VerdictImproved,
			Explanation: fmt.Sprintf("%s (riduzione del %.0f%%)", trail, -change*100),
		}
	default:
		return &report.ComparisonResult{
			Status:      report.VerdictUnchanged,
			Explanation: trail + " (variazione entro la soglia)",
		}
	}
}

// compareByLength is the last-resort heuristic.  Its explanation flags the
// low confidence so downstream consumers can discount the verdict.
func (c *Comparator) compareByLength(priorText, currentText string) *report.ComparisonResult {
	const notice = "Confronto a bassa affidabilità basato solo sulla lunghezza del testo."

	prevLen := float64(len(strings.TrimSpace(priorText)))
	currLen := float64(len(strings.TrimSpace(currentText)))

	c.logger.Debug("length heuristic",
		logging.Float64("prev_len", prevLen),
		logging.Float64("curr_len", currLen),
	)

	switch {
	case currLen > prevLen*(1+c.cfg.LengthDeltaRatio):
		return &report.ComparisonResult{
			Status:      report.VerdictWorsened,
			Explanation: "Il referto attuale è sensibilmente più esteso del precedente. " + notice,
		}
	case currLen < prevLen*(1-c.cfg.LengthDeltaRatio):
		return &report.ComparisonResult{
			Status:      report.VerdictImproved,
			Explanation: "Il referto attuale è sensibilmente più breve del precedente. " + notice,
		}
	default:
		return &report.ComparisonResult{
			Status:      report.VerdictUnchanged,
			Explanation: "Lunghezza del referto sostanzialmente invariata. " + notice,
		}
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
