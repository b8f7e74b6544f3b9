package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/referta/referta/internal/domain/report"
)

// ---------------------------------------------------------------------------
// Known tests and denylists
// ---------------------------------------------------------------------------

// knownTests is the fixed list of test names the multi-line strategy matches
// against, exactly or as a line prefix.
var knownTests = []string{
	// Urinalysis.
	"Colore", "Aspetto", "Limpidezza", "Ph", "PH", "Glucosio", "Proteine",
	"Emoglobina", "Corpi Chetonici", "Bilirubina", "Urobilinogeno",
	"Peso Specifico", "Densità", "Nitriti", "Esterasi Leucocitaria",

	// Hematology.
	"WBC", "RBC", "HGB", "HCT", "MCV", "MCH", "MCHC", "RDW", "PLT", "MPV",
	"NEU", "LYN", "MON", "EOS", "BAS",

	// Chemistry and coagulation.
	"GLUCOSIO", "CREATININA", "UREA", "SODIO", "POTASSIO", "CALCIO", "ALBUMINA",
	"BILIRUBINA TOTALE", "GOT/AST", "GPT/ALT", "CPK", "INR", "PTT",
	"PROTEINA C REATTIVA", "AMILASI PANCREATICA", "COLINESTERASI",
	"ATTIVITA' PROTROMBINICA",
}

// labExcludeRules reject lines that are definitely not test results:
// letterheads, signatures, section headers, bare dates and numbers.
var labExcludeRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(A\.S\.L\.|OSPEDALE|PATOLOGIA|CLINICA|DIRETTORE|VIALE|NAPOLI|TEL\.|EMAIL)\b`),
	regexp.MustCompile(`(?i)(Cod\.|Sig\.|Provenienza|C\.F\.|Nosologico|D\.Nasc\.)`),
	regexp.MustCompile(`(?i)(Accettato il|Refertato il|ESAME|RISULTATO|UNITA)`),
	regexp.MustCompile(`(?i)(IL T\.S\.L\.B\.|IL SANITARIO RESPONSABILE|Pag\.)`),
	regexp.MustCompile(`(?i)(FORMULA LEUCOCITARIA)`),
	regexp.MustCompile(`(?i)(SEDIMENTO:|fine referto|\.\.\.)`),
	regexp.MustCompile(`^\s*[0-9]+/mm3\s*$`),
	regexp.MustCompile(`(?i)RIFERIMENTO\s*$`),
	regexp.MustCompile(`(?i)\b(Data:|Data\s+di\s+nascita|Nome:|Età:|ID PAZIENTE|Centro Medico|per la Diagnosi|Direttore)\b`),
	regexp.MustCompile(`(?i)\b(Via\s+\w+|Tel\.|www\.|\.it)\b`),
	regexp.MustCompile(`(?i)\b(Ecocolordopplergrafia|L'esame eseguito|ha evidenziato)\b`),
	regexp.MustCompile(`(?i)\b(Circolo venoso|profondo|superficiale)\b`),
	regexp.MustCompile(`^\s*\d{1,2}:\s*\d{1,2}\s*$`),
	regexp.MustCompile(`^\s*\d{1,2}/\d{1,2}/\d{4}\s*$`),
	regexp.MustCompile(`^\s*\d+\s*$`),
}

// qualitativeValues is the allow-list of clinically valid non-numeric values.
var qualitativeValues = []string{
	"ASSENTE", "ASSENTI", "NEGATIVO", "POSITIVO", "GIALLO", "PAGLIERINO",
	"VELATO", "LIMPIDO", "TORBIDO", "PRESENTE", "PRESENTI", "NORMALE",
	"ALTERATO", "ALTO", "BASSO",
}

// multilineQualitatives is the narrower set the multi-line strategy accepts
// as a value line.
var multilineQualitatives = []string{
	"ASSENTE", "ASSENTI", "NEGATIVO", "POSITIVO", "GIALLO", "PAGLIERINO",
	"VELATO", "LIMPIDO", "TORBIDO",
}

// unitTokens identify a short line as a measurement unit.
var unitTokens = []string{
	"mg/dl", "g/dl", "EU/dl", "Leu/ul", "mm3", "/mm3", "%", "ng/ml", "mU/ml",
}

// singleLineAdminFields are captured names that are demographics, not tests.
var singleLineAdminFields = map[string]bool{
	"DATA": true, "NOME": true, "ETA": true, "PAZIENTE": true, "CODICE": true,
	"ID": true, "VIA": true, "TEL": true, "TELEFONO": true, "EMAIL": true,
	"CENTRO": true, "AMBULATORIO": true, "MEDICO": true, "DOTTORE": true,
	"SPECIALISTA": true, "OSPEDALE": true, "CLINICA": true, "REPARTO": true,
	"SERVIZIO": true, "DIAGNOSI": true, "CONCLUSIONI": true,
}

// singleLineRules parse "name [:] value [marker] [unit] [reference]" lines.
// Group order: name, value, abnormal marker, unit, reference.
var singleLineRules = []*regexp.Regexp{
	// Labelled format: Proteine: 15 * mg/dl (0 - 10)
	regexp.MustCompile(`(?i)^([A-Za-z\s]+):\s+([0-9]+[.,]?[0-9]*|\w+)\s*(\*?)\s*([a-zA-Z%/]+)?\s*(?:\(([^)]+)\))?`),
	// Hematology panel format: HGB 12.5 g/dl
	regexp.MustCompile(`(?i)^(WBC|RBC|HGB|HCT|MCV|MCH|MCHC|RDW|PLT|MPV|NEU|LYN|MON|EOS|BAS)\s+([0-9]+[.,]?[0-9]*)\s*(\*?)\s*([^\s]+)?`),
	// Chemistry rows with a trailing reference range.
	regexp.MustCompile(`(?i)^([A-Z][A-Za-z\s/]{2,25}?)\s+([0-9]+[.,]?[0-9]*)\s*(\*?)\s*([a-zA-Z%/]+)?\s+([0-9]+[.,]?[0-9]*\s*[-–]\s*[0-9]+[.,]?[0-9]*)`),
	// Bare uppercase test and value.
	regexp.MustCompile(`(?i)^([A-Z]{3,})\s+([0-9]+[.,]?[0-9]*)\s*(\*?)`),
}

var (
	numericValueRe = regexp.MustCompile(`([0-9]+[.,]?[0-9]*)\s*(\*?)`)
	pureNumericRe  = regexp.MustCompile(`^[0-9]+[.,]?[0-9]*$`)
	rangeLikeRe    = regexp.MustCompile(`-`)
)

// ---------------------------------------------------------------------------
// Clinical-significance overrides
// ---------------------------------------------------------------------------

// clinicalOverride reinterprets the raw abnormal marker of one named test
// using medically meaningful thresholds.  Applies reports whether the rule
// matched; abnormal is the replacement flag.
type clinicalOverride struct {
	nameContains []string // every token must appear in the uppercase name
	unitContains string   // required unit substring, lowercase; "" matches any
	normalBelow  float64  // values strictly below are not abnormal
	inclusive    bool     // when true the cutoff itself is still normal
}

// clinicalOverrides carry the trace-value cutoffs for urine tests.  A value
// under the cutoff is forced to "not abnormal" even when the source text
// flagged it; anything at or above stays abnormal.
var clinicalOverrides = []clinicalOverride{
	// Hemoglobin in urine: traces up to 1 mg/dl inclusive are physiological.
	{nameContains: []string{"EMOGLOBINA"}, unitContains: "mg/dl", normalBelow: 1.0, inclusive: true},
	// Urine protein: up to 10 mg/dl inclusive is normal.
	{nameContains: []string{"PROTEINE"}, unitContains: "mg/dl", normalBelow: 10.0, inclusive: true},
	// Leukocyte esterase: under 25 Leu/ul is normal.
	{nameContains: []string{"ESTERASI", "LEUCOCIT"}, normalBelow: 25.0},
}

// applyClinicalSignificance returns the final abnormal flag for a test.
// The override only fires when the value parses as numeric; qualitative
// values keep the raw marker.
func applyClinicalSignificance(testName, value, unit string, rawAbnormal bool) bool {
	numeric, err := parseDecimal(value)
	if err != nil {
		return rawAbnormal
	}

	upperName := strings.ToUpper(testName)
	lowerUnit := strings.ToLower(unit)

	for _, ov := range clinicalOverrides {
		matched := true
		for _, token := range ov.nameContains {
			if !strings.Contains(upperName, token) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if ov.unitContains != "" && !strings.Contains(lowerUnit, ov.unitContains) {
			continue
		}

		if ov.inclusive {
			return numeric > ov.normalBelow
		}
		return numeric >= ov.normalBelow
	}

	return rawAbnormal
}

// parseDecimal parses a numeric value accepting the comma decimal separator.
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

// ---------------------------------------------------------------------------
// Test sub-category lookup
// ---------------------------------------------------------------------------

var labCategoryFamilies = []struct {
	category report.LabCategory
	terms    []string
}{
	{report.LabHematology, []string{
		"WBC", "RBC", "HGB", "HCT", "PLT", "NEU", "LYN", "MON", "EOS", "BAS",
		"MCV", "MCH", "MCHC", "RDW", "MPV",
		"NEUTROFILI", "LINFOCITI", "MONOCITI", "EOSINOFILI", "BASOFILI",
		"GLOBULI", "EMOGLOBINA", "EMATOCRITO", "PIASTRINE", "LEUCOCIT",
		"FORMULA LEUCOCITARIA", "EMOCROMOCITOMETRICO",
	}},
	{report.LabCoagulation, []string{
		"PROTROMBINICA", "INR", "PTT", "RATIO", "FIBRINOGENO", "COAGULAZIONE",
	}},
	{report.LabUrinalysis, []string{
		"COLORE", "ASPETTO", "PH", "PESO SPECIFICO", "LIMPIDEZZA", "DENSITA",
		"NITRITI", "ESTERASI", "CILINDRI", "CELLULE EPITELIALI",
		"CORPI CHETONICI", "UROBILINOGENO", "SEDIMENTO",
	}},
}

// determineTestCategory maps a test name to its coarse family; chemistry is
// the default for anything unrecognised.  Urine-qualified chemistry names
// (e.g. "PROTEINE URINE") count as urinalysis.
func determineTestCategory(testName string) report.LabCategory {
	upper := strings.ToUpper(strings.ReplaceAll(testName, "_", " "))

	for _, family := range labCategoryFamilies {
		for _, term := range family.terms {
			if strings.Contains(upper, term) {
				// EMOGLOBINA alone is hematology unless urine-qualified.
				if family.category == report.LabHematology && strings.Contains(upper, "URINE") {
					return report.LabUrinalysis
				}
				return family.category
			}
		}
	}

	if strings.Contains(upper, "URINE") {
		for _, t := range []string{"PROTEINE", "EMOGLOBINA", "GLUCOSIO", "SANGUE", "LEUCOCITI", "ERITROCITI", "BATTERI"} {
			if strings.Contains(upper, t) {
				return report.LabUrinalysis
			}
		}
	}

	return report.LabChemistry
}

// ---------------------------------------------------------------------------
// Extraction strategies
// ---------------------------------------------------------------------------

// extractLabValues runs the multi-line and single-line strategies over the
// text and merges their results.  The multi-line pass runs first; a test it
// discovered is never overwritten by the single-line pass.  Discovery order
// is preserved in the returned slice.
func extractLabValues(text string, lookahead int) []report.LabValue {
	lines := strings.Split(text, "\n")

	var values []report.LabValue
	seen := make(map[string]bool)

	appendValue := func(v report.LabValue) {
		key := strings.ToUpper(v.Name)
		if seen[key] {
			return
		}
		seen[key] = true
		values = append(values, v)
	}

	extractMultiline(lines, lookahead, appendValue)
	extractSingleLine(lines, seen, appendValue)

	return values
}

func lineExcluded(line string) bool {
	for _, re := range labExcludeRules {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// matchKnownTest reports whether line is exactly a known test name.  Rows
// carrying the value on the same line belong to the single-line strategy.
func matchKnownTest(line string) (string, bool) {
	upper := strings.ToUpper(line)
	for _, test := range knownTests {
		if upper == strings.ToUpper(test) {
			return test, true
		}
	}
	return "", false
}

func isKnownTestLine(line string) bool {
	_, ok := matchKnownTest(strings.TrimSpace(line))
	return ok
}

// extractMultiline handles reports where the test name occupies its own line
// and the value, unit, and reference follow on the next few lines.
func extractMultiline(lines []string, lookahead int, emit func(report.LabValue)) {
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if len(line) < 2 || lineExcluded(line) {
			continue
		}

		testName, ok := matchKnownTest(line)
		if !ok {
			continue
		}

		var value, unit, reference string
		abnormal := false

		for offset := 1; offset <= lookahead && i+offset < len(lines); offset++ {
			next := strings.TrimSpace(lines[i+offset])
			if next == "" {
				continue
			}
			// Another test name ends this test's block.
			if isKnownTestLine(next) {
				break
			}

			switch {
			case value == "":
				if m := numericValueRe.FindStringSubmatch(next); m != nil {
					value = m[1]
					abnormal = m[2] == "*"
				} else if containsAny(strings.ToUpper(next), multilineQualitatives) {
					value = next
					abnormal = strings.Contains(next, "*")
				}
			case unit == "" && len(next) < 15 && containsAny(next, unitTokens):
				unit = next
			case reference == "" && (rangeLikeRe.MatchString(next) || isAbsentMarker(next)):
				reference = next
			}
		}

		if value == "" {
			continue
		}

		emit(report.LabValue{
			Name:           testName,
			Value:          value,
			Unit:           unit,
			ReferenceRange: reference,
			Abnormal:       applyClinicalSignificance(testName, value, unit, abnormal),
			Category:       determineTestCategory(testName),
		})
	}
}

func isAbsentMarker(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	return upper == "ASSENTE" || upper == "ASSENTI"
}

// extractSingleLine handles compact "name value unit reference" rows.
func extractSingleLine(lines []string, seen map[string]bool, emit func(report.LabValue)) {
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if len(line) < 5 || lineExcluded(line) {
			continue
		}

		for _, re := range singleLineRules {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			testName := strings.TrimSpace(strings.ReplaceAll(m[1], ":", ""))
			value := strings.TrimSpace(m[2])
			marker := ""
			if len(m) > 3 {
				marker = m[3]
			}
			unit := ""
			if len(m) > 4 {
				unit = m[4]
			}
			reference := ""
			if len(m) > 5 {
				reference = m[5]
			}

			if seen[strings.ToUpper(testName)] || len(testName) < 2 || pureNumericRe.MatchString(testName) {
				continue
			}
			if singleLineAdminFields[strings.ToUpper(testName)] {
				continue
			}

			// Non-numeric values must come from the qualitative allow-list.
			if !pureNumericRe.MatchString(value) &&
				!containsAny(strings.ToUpper(value), qualitativeValues) {
				continue
			}

			abnormal := marker == "*" || strings.Contains(line, "*")

			emit(report.LabValue{
				Name:           testName,
				Value:          value,
				Unit:           unit,
				ReferenceRange: reference,
				Abnormal:       applyClinicalSignificance(testName, value, unit, abnormal),
				Category:       determineTestCategory(testName),
			})
			break
		}
	}
}
