// Package classification assigns the coarse document category used to pick
// comparison and duplicate-detection thresholds.  Scoring is data driven:
// keyword families are counted against the text and title, a structured-data
// density bonus favours laboratory, and laboratory wins ties because it is
// the most conservative processing path.
package classification

import (
	"regexp"
	"strings"

	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
)

// Scoring constants.  A family must reach scoreThreshold to qualify; when
// the text contains at least densityTrigger structured "name number unit"
// rows the laboratory score gets densityBonus on top.
const (
	scoreThreshold = 2
	densityTrigger = 3
	densityBonus   = 5

	// fallbackDensity is the weaker structured-row count that still selects
	// laboratory when no family clears the threshold.
	fallbackDensity = 2
)

// keywordFamily is one scored category with its marker terms.  Terms are
// matched as uppercase substrings of the text or the title.
type keywordFamily struct {
	category report.Category
	keywords []string
}

var keywordFamilies = []keywordFamily{
	{report.CategoryLaboratory, []string{
		// Common test names.
		"GLUCOSIO", "CREATININA", "UREA", "SODIO", "POTASSIO", "CALCIO",
		"EMOGLOBINA", "EMATOCRITO", "GLOBULI", "LEUCOCITI", "PIASTRINE",
		"WBC", "RBC", "HGB", "HCT", "PLT", "MCV", "MCH", "MCHC",
		"GOT", "GPT", "AST", "ALT", "BILIRUBINA", "ALBUMINA",
		"PROTEINE URINE", "SEDIMENTO", "ESTERASI", "NITRITI",
		"INR", "PTT", "PROTROMBINICA", "COAGULAZIONE",
		// Panel headers.
		"ESAME EMOCROMOCITOMETRICO", "CHIMICA CLINICA", "BIOCHIMICA",
		"ESAME CHIMICO FISICO", "FORMULA LEUCOCITARIA",
		"SIEROLOGIA", "IMMUNOLOGIA", "ORMONI", "MARCATORI TUMORALI",
	}},
	{report.CategoryImaging, []string{
		// Modalities.
		"RADIOGRAFIA", "ECOGRAFIA", "ECOCOLORDOPPLERGRAFIA", "DOPPLER",
		"TAC", "TC", "RISONANZA MAGNETICA", "RM", "RMN",
		"MAMMOGRAFIA", "DENSITOMETRIA", "SCINTIGRAFIA",
		// Study-specific terms.
		"REFERTO RADIOLOGICO", "REFERTO DI RADIOLOGIA", "IMAGING",
		"CONTRASTO", "MDC", "MEZZO DI CONTRASTO",
		// Regions commonly imaged.
		"TORACE", "ADDOME", "PELVI", "CRANIO", "ENCEFALO",
		"ARTI INFERIORI", "ARTI SUPERIORI", "TRONCHI SOVRAORTICI",
		// Finding terminology.
		"OPACITÀ", "ADDENSAMENTO", "VERSAMENTO", "MASSA", "NODULO",
		"STENOSI", "DILATAZIONE", "ISPESSIMENTO", "CALCIFICAZIONE",
	}},
	{report.CategoryPathology, []string{
		// Procedures.
		"ESAME ISTOLOGICO", "ESAME CITOLOGICO", "ESAME ANATOMO",
		"BIOPSIA", "AGOBIOPSIA", "PAP TEST", "CITOLOGIA",
		// Staining and techniques.
		"EMATOSSILINA", "H&E", "IMMUNOISTOCHIMICA",
		"COLORAZIONE", "PREPARATO ISTOLOGICO", "SEZIONI ISTOLOGICHE",
		// Findings.
		"DISPLASIA", "METAPLASIA", "NEOPLASIA", "CARCINOMA", "ADENOMA",
		"IPERPLASIA", "ATROFIA", "INFIAMMAZIONE CRONICA", "FIBROSI",
		// Report headers.
		"ANATOMIA PATOLOGICA", "REFERTO ISTOLOGICO", "REFERTO CITOLOGICO",
		"DIAGNOSI ISTOLOGICA", "DIAGNOSI CITOLOGICA", "REFERTO ANATOMO",
	}},
}

// structuredDataRules detect tabular laboratory rows; the total match count
// across all rules is the density signal.
var structuredDataRules = []*regexp.Regexp{
	// TEST: 123 mg/dl
	regexp.MustCompile(`\b[A-Z][A-Z\s]+\s*[:=]\s*[0-9]+[.,]?[0-9]*\s*[a-zA-Z/%]*`),
	// HGB 12.5 g/dl
	regexp.MustCompile(`\b[A-Z]{2,}\s*[0-9]+[.,]?[0-9]*\s*[a-zA-Z/%]*`),
	// Reference ranges: 4.0 - 10.0
	regexp.MustCompile(`[0-9]+[.,]?[0-9]*\s*[-–]\s*[0-9]+[.,]?[0-9]*`),
}

// fallback term sets for the keyword-presence check when no family clears
// the threshold.
var (
	fallbackImagingTerms   = []string{"ECOGRAFIA", "RADIOGRAFIA", "TAC", "RISONANZA"}
	fallbackPathologyTerms = []string{"ISTOLOGICO", "CITOLOGICO", "BIOPSIA"}
)

// Classifier scores a document against the keyword families.  It is
// stateless and safe for concurrent use.
type Classifier struct {
	logger logging.Logger
}

// NewClassifier constructs a Classifier; a nil logger falls back to the
// no-op implementation.
func NewClassifier(logger logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Classifier{logger: logger.Named("classification")}
}

// Classify returns the category for one document.  It never fails: an
// unclassifiable text defaults to laboratory, which requires explicit
// numeric evidence before producing any downstream finding.
func (c *Classifier) Classify(text, examTitle string) report.Category {
	textUpper := strings.ToUpper(text)
	titleUpper := strings.ToUpper(examTitle)

	scores := make(map[report.Category]int, len(keywordFamilies))
	for _, family := range keywordFamilies {
		hits := 0
		for _, kw := range family.keywords {
			if strings.Contains(textUpper, kw) || strings.Contains(titleUpper, kw) {
				hits++
			}
		}
		scores[family.category] = hits
	}

	structuredRows := 0
	for _, re := range structuredDataRules {
		structuredRows += len(re.FindAllString(text, -1))
	}
	if structuredRows >= densityTrigger {
		scores[report.CategoryLaboratory] += densityBonus
	}

	lab := scores[report.CategoryLaboratory]
	imaging := scores[report.CategoryImaging]
	pathology := scores[report.CategoryPathology]

	c.logger.Debug("classification scores",
		logging.Int("laboratory", lab),
		logging.Int("imaging", imaging),
		logging.Int("pathology", pathology),
		logging.Int("structured_rows", structuredRows),
	)

	switch {
	case lab >= scoreThreshold && lab >= imaging && lab >= pathology:
		return report.CategoryLaboratory
	case imaging >= scoreThreshold && imaging >= pathology:
		return report.CategoryImaging
	case pathology >= scoreThreshold:
		return report.CategoryPathology
	}

	// No family qualified: weaker presence checks, then the safe default.
	switch {
	case structuredRows >= fallbackDensity:
		return report.CategoryLaboratory
	case containsAny(textUpper, fallbackImagingTerms):
		return report.CategoryImaging
	case containsAny(textUpper, fallbackPathologyTerms):
		return report.CategoryPathology
	}

	c.logger.Warn("unable to classify document, defaulting to laboratory")
	return report.CategoryLaboratory
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
