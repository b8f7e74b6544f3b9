package inference

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/pkg/errors"
)

// Diagnosis is the per-document AI assessment.
type Diagnosis struct {
	Diagnosis string
	Severity  report.Severity
}

// jsonObjectRe pulls the first brace-delimited object out of a payload that
// may carry surrounding prose.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// statusVerdicts maps the model's Italian status vocabulary onto the engine
// verdicts.
var statusVerdicts = map[string]report.Verdict{
	"peggiorata": report.VerdictWorsened,
	"peggiorato": report.VerdictWorsened,
	"migliorata": report.VerdictImproved,
	"migliorato": report.VerdictImproved,
	"invariata":  report.VerdictUnchanged,
	"invariato":  report.VerdictUnchanged,
}

type comparisonPayload struct {
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
}

type diagnosisPayload struct {
	Diagnosis      string `json:"diagnosis"`
	Classification string `json:"classification"`
}

// ParseComparison interprets the raw model payload as a trend verdict.
// Every malformed shape is an explicit error, never a panic: the comparator
// treats any error here as a signal to run its deterministic fallback.
func ParseComparison(raw string) (*report.ComparisonResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var payload comparisonPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAIResponseMalformed, "inference: comparison payload is not valid JSON")
	}

	verdict, ok := statusVerdicts[strings.ToLower(strings.TrimSpace(payload.Status))]
	if !ok {
		return nil, errors.New(errors.ErrCodeVerdictUnrecognized,
			"inference: unrecognized status "+strings.TrimSpace(payload.Status))
	}

	explanation := strings.TrimSpace(payload.Explanation)
	if explanation == "" {
		explanation = "Spiegazione non fornita dal modello."
	}

	return &report.ComparisonResult{Status: verdict, Explanation: explanation}, nil
}

// ParseDiagnosis interprets the raw model payload as a diagnosis plus
// severity grade.
func ParseDiagnosis(raw string) (*Diagnosis, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var payload diagnosisPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAIResponseMalformed, "inference: diagnosis payload is not valid JSON")
	}

	diagnosis := strings.TrimSpace(payload.Diagnosis)
	if diagnosis == "" {
		return nil, errors.New(errors.ErrCodeAIResponseMalformed, "inference: diagnosis text is empty")
	}

	severity := report.Severity(strings.ToLower(strings.TrimSpace(payload.Classification)))
	switch severity {
	case report.SeverityMild, report.SeverityModerate, report.SeveritySevere:
	default:
		return nil, errors.New(errors.ErrCodeAIResponseMalformed,
			"inference: unrecognized severity "+string(severity))
	}

	return &Diagnosis{Diagnosis: diagnosis, Severity: severity}, nil
}

// extractJSONObject strips fenced code blocks and returns the first brace
// delimited object in the payload.
func extractJSONObject(raw string) (string, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", errors.New(errors.ErrCodeAIResponseMalformed, "inference: empty payload")
	}

	obj := jsonObjectRe.FindString(cleaned)
	if obj == "" {
		return "", errors.New(errors.ErrCodeAIResponseMalformed, "inference: no JSON object in payload")
	}
	return obj, nil
}

// stripCodeFences removes markdown fences around the payload, with or
// without a language tag.
func stripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}

	parts := strings.Split(s, "```")
	// Fenced payloads put the object in the first fenced segment.
	if len(parts) >= 2 {
		inner := strings.TrimSpace(parts[1])
		inner = strings.TrimPrefix(inner, "json")
		return strings.TrimSpace(inner)
	}
	return strings.TrimSpace(strings.ReplaceAll(s, "```", ""))
}
