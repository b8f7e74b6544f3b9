package dedup

import (
	"regexp"
	"strings"

	"github.com/referta/referta/internal/domain/report"
)

// Key extraction is category aware: each family of rules captures the small
// set of values that identifies the underlying exam.  Every rule exposes
// exactly two capture groups, key and value.

// labKeyRule captures numeric or qualitative results of the common tests.
var labKeyRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(PROTEINE|GLUCOSIO|EMOGLOBINA|CREATININA|UREA|UROBILINOGENO|BILIRUBINA|PESO SPECIFICO|PH|NITRITI|ESTERASI LEUCOCITARIA)\s*[:=]?\s*([0-9]+[.,]?[0-9]*|ASSENTE|ASSENTI|PRESENTE|PRESENTI|NEGATIVO|POSITIVO)`),
	regexp.MustCompile(`(?i)\b(WBC|RBC|HGB|HCT|MCV|MCH|MCHC|RDW|PLT|MPV|INR|PTT|SODIO|POTASSIO|CALCIO|ALBUMINA)\s*[:=]?\s*([0-9]+[.,]?[0-9]*)`),
	regexp.MustCompile(`(?i)\b(COLORE|ASPETTO)\s*[:=]?\s*([A-ZÀ-ÿ]+(?:[ \t]+[A-ZÀ-ÿ]+)?)`),
}

// imagingKeyRules capture anatomical findings and measurements.
var imagingKeyRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(FEGATO|RENI|RENE|MILZA|PANCREAS|COLECISTI|VESCICA|PROSTATA|TIROIDE|UTERO|AORTA|CAROTIDE|VERSAMENTO)\s*[:.]?[ \t]+([a-zà-ÿ][a-zà-ÿ ,]{2,60})`),
	regexp.MustCompile(`(?i)\b(DIMENSIONI|DIAMETRO|SPESSORE)\s*[:=]?\s*([0-9]+[.,]?[0-9]*(?:\s*[x×]\s*[0-9]+[.,]?[0-9]*)?\s*(?:cm|mm))`),
	regexp.MustCompile(`(?i)\b(STENOSI|ECTASIA|DILATAZIONE)\s*[:=]?[ \t]*([a-zà-ÿ0-9][a-zà-ÿ0-9% ]{1,40})`),
}

// pathologyKeyRules capture diagnostic classifications and tumor markers.
var pathologyKeyRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(CARCINOMA|ADENOMA|DISPLASIA|METAPLASIA|NEOPLASIA|IPERPLASIA)[ \t]+([a-zà-ÿ][a-zà-ÿ ]{2,40})`),
	regexp.MustCompile(`(?i)\b(GRADO|GRADING)\s*[:=]?\s*([IVX]+|[0-9])`),
	regexp.MustCompile(`(?i)\b(KI-?67)\s*[:=]?\s*([0-9]+\s*%)`),
	regexp.MustCompile(`(?i)\b(MARGINI)(?:\s+di\s+resezione)?\s*[:=]?\s*([a-zà-ÿ]+)`),
	regexp.MustCompile(`(?i)\b(NECROSI|INVASIONE VASCOLARE)\s*[:=]?[ \t]*([a-zà-ÿ]+(?:[ \t]+[a-zà-ÿ]+)?)`),
}

// unclassifiedKeyRules are the generic fallback: any labelled numeric value.
var unclassifiedKeyRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b([A-Za-zÀ-ÿ]{3,20})\s*[:=]\s*([0-9]+[.,/]?[0-9]*)`),
}

func rulesFor(category report.Category) []*regexp.Regexp {
	switch category {
	case report.CategoryLaboratory:
		return labKeyRules
	case report.CategoryImaging:
		return imagingKeyRules
	case report.CategoryPathology:
		return pathologyKeyRules
	default:
		return unclassifiedKeyRules
	}
}

var keyWhitespaceRe = regexp.MustCompile(`\s+`)

// extractKeys pulls the category key set out of one raw text.  The first
// occurrence of each key wins so repeated table headers cannot overwrite a
// real value.
func extractKeys(text string, category report.Category) map[string]string {
	keys := make(map[string]string)
	for _, re := range rulesFor(category) {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			key := normalizeKeyPart(m[1])
			if _, exists := keys[key]; !exists {
				keys[key] = normalizeKeyPart(m[2])
			}
		}
	}
	return keys
}

// normalizeKeyPart uppercases, collapses whitespace, and unifies the decimal
// separator so "0,50" and "0.50" compare equal.
func normalizeKeyPart(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = keyWhitespaceRe.ReplaceAllString(s, " ")
	return strings.ReplaceAll(s, ",", ".")
}
