package extraction

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ---------------------------------------------------------------------------
// Fiscal code
// ---------------------------------------------------------------------------

// fiscalCodeBody matches the 16-character identifier with optional embedded
// whitespace: 6 letters, 2 digits, letter, 2 digits, letter, 3 digits, letter.
const fiscalCodeBody = `([A-Za-z]{6}\s*[0-9]{2}\s*[A-Za-z]\s*[0-9]{2}\s*[A-Za-z]\s*[0-9]{3}\s*[A-Za-z])`

var (
	// labeledFiscalCodeRe requires a "Codice Fiscale" style label in front of
	// the candidate.  Tried first because a labelled hit is far less likely
	// to be a false positive.
	labeledFiscalCodeRe = regexp.MustCompile(`(?i)(?:C(?:ODICE)?\s*F(?:ISCALE)?|CF|C\.F\.)[:.\s\-]{0,5}` + fiscalCodeBody)

	// looseFiscalCodeRe is the label-less fallback scan.
	looseFiscalCodeRe = regexp.MustCompile(fiscalCodeBody)

	// validFiscalCodeRe validates a whitespace-stripped uppercase candidate.
	validFiscalCodeRe = regexp.MustCompile(`^[A-Z]{6}[0-9]{2}[A-Z][0-9]{2}[A-Z][0-9]{3}[A-Z]$`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// extractFiscalCode searches each source string for the patient identifier.
// Sources are the document text followed by any rendering-backend metadata,
// since the code sometimes lives outside the visible text.  Newlines are
// flattened before matching so codes broken across lines still match.
// Returns "" when no valid code is found; an invalid-looking candidate is
// skipped, never returned.
func extractFiscalCode(sources []string) string {
	for _, src := range sources {
		flat := strings.ReplaceAll(src, " ", " ")
		flat = strings.ReplaceAll(flat, "\n", " ")

		if m := labeledFiscalCodeRe.FindStringSubmatch(flat); m != nil {
			if code, ok := normalizeFiscalCode(m[1]); ok {
				return code
			}
		}
	}

	// Looser pass over the same sources, no label required.
	for _, src := range sources {
		flat := strings.ReplaceAll(src, "\n", " ")
		for _, m := range looseFiscalCodeRe.FindAllStringSubmatch(flat, -1) {
			if code, ok := normalizeFiscalCode(m[1]); ok {
				return code
			}
		}
	}

	return ""
}

// normalizeFiscalCode strips whitespace, uppercases, and validates against
// the 16-character template.
func normalizeFiscalCode(raw string) (string, bool) {
	code := strings.ToUpper(whitespaceRe.ReplaceAllString(raw, ""))
	if len(code) != 16 || !validFiscalCodeRe.MatchString(code) {
		return "", false
	}
	return code, true
}

// ---------------------------------------------------------------------------
// Patient name
// ---------------------------------------------------------------------------

// nameBoundary stops a captured name at the next label, digit run, or line
// break so unrelated trailing content is never swallowed.
const nameBoundary = `(?:\s*\n|$|D\.|C\.F\.|[0-9]|Età|Age)`

// nameRules are tried in order; each must expose exactly one capture group.
var nameRules = []*regexp.Regexp{
	// Direct label with mixed-case full name, common in radiology headers.
	regexp.MustCompile(`Nome:\s+([A-ZÀ-ÿ][a-zà-ÿ]+(?:\s+[A-ZÀ-ÿ][a-zà-ÿ]+)+?)` + nameBoundary),
	regexp.MustCompile(`(?i)(?:Nome|Paziente|Patient)[\s:.\-]+([A-ZÀ-ÿ][a-zà-ÿ]+(?:\s+[A-ZÀ-ÿ][a-zà-ÿ]+)+?)` + nameBoundary),
	// Medical-centre header followed by a name line.
	regexp.MustCompile(`(?is)(?:Centro|Ambulatorio|Clinica).*?\n.*?Nome:\s*([A-ZÀ-ÿ][a-zà-ÿ]+(?:\s+[A-ZÀ-ÿ][a-zà-ÿ]+)+?)(?:\s*\n|$|Età)`),
	// Salutation prefixes.
	regexp.MustCompile(`(?i)Sig\.?(?:ra)?\s+([A-ZÀ-ÿ]+(?:\s+[A-ZÀ-ÿ]+)*?)` + nameBoundary),
	regexp.MustCompile(`(?i)Signor[ae]?\s+([A-ZÀ-ÿ]+(?:\s+[A-ZÀ-ÿ]+)*?)` + nameBoundary),
	regexp.MustCompile(`(?i)(?:Intestato a|Per|Richiedente)[\s:.\-]+([A-ZÀ-ÿ]+(?:\s+[A-ZÀ-ÿ]+)*?)` + nameBoundary),
	regexp.MustCompile(`(?i)(?:Assistito|Soggetto|Nominativo|Cognome)[\s:.\-]+([A-ZÀ-ÿ]+(?:\s+[A-ZÀ-ÿ]+)*?)` + nameBoundary),
	regexp.MustCompile(`(?i)(?:Dott\.?|Dr\.?(?:ssa)?|Prof\.?)\s+([A-ZÀ-ÿ]+(?:\s+[A-ZÀ-ÿ]+)*?)` + nameBoundary),
	// Label with the name on the next line.
	regexp.MustCompile(`(?i)(?:Nome|Paziente)[\s:.\-]*\n\s*([A-ZÀ-ÿ]+(?:\s+[A-ZÀ-ÿ]+)?)(?:\s*\n|$)`),
	// Last resort: two or three consecutive uppercase words.
	regexp.MustCompile(`([A-ZÀ-ÿ]{2,}\s+[A-ZÀ-ÿ]{2,}(?:\s+[A-ZÀ-ÿ]{2,})?)\s*(?:[0-9]{2}|\n|Età|Age)`),
}

// nameDenylist lists administrative words a real patient name never equals.
var nameDenylist = map[string]bool{
	"data": true, "centro": true, "medico": true,
	"via": true, "tel": true, "dott": true,
}

var (
	nameInvalidCharRe = regexp.MustCompile(`[^\p{L}\s'\-]`)
	digitRe           = regexp.MustCompile(`[0-9]`)
	italianTitleCaser = cases.Title(language.Italian)
)

// extractPatientName tries the name rules in order and returns the first
// candidate that survives validation, title-cased.  "" means absent.
func extractPatientName(text string) string {
	for _, re := range nameRules {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name, ok := validateName(m[1]); ok {
			return name
		}
	}
	return ""
}

func validateName(raw string) (string, bool) {
	name := whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	name = italianTitleCaser.String(name)

	if len(name) < 3 || len(name) > 50 {
		return "", false
	}
	if digitRe.MatchString(name) || nameInvalidCharRe.MatchString(name) {
		return "", false
	}
	for _, word := range strings.Fields(name) {
		if nameDenylist[strings.ToLower(word)] {
			return "", false
		}
	}
	return name, true
}

// ---------------------------------------------------------------------------
// Exam title
// ---------------------------------------------------------------------------

// specificTitleRules are exact clinical-phrase templates, most specific
// first: laboratory panels, then imaging studies by modality and anatomical
// region, then pathology procedures.  The first match anywhere in the text
// wins and its matched span becomes the title.
var specificTitleRules = []*regexp.Regexp{
	// Laboratory panels.
	regexp.MustCompile(`(?i)ESAME\s+CHIMICO\s+FISICO\s+DELLE?\s+URINE?`),
	regexp.MustCompile(`(?i)ESAME\s+EMOCROMOCITOMETRICO`),
	regexp.MustCompile(`(?i)ESAME\s+BATTERIOLOGICO`),
	regexp.MustCompile(`(?i)ESAME\s+MICROSCOPICO`),
	regexp.MustCompile(`(?i)FORMULA\s+LEUCOCITARIA`),
	regexp.MustCompile(`(?i)CHIMICA\s+CLINICA`),
	regexp.MustCompile(`(?i)EMOCROMO\s+COMPLETO`),
	regexp.MustCompile(`(?i)PROFILO\s+LIPIDICO`),
	regexp.MustCompile(`(?i)FUNZIONALITÀ\s+EPATICA`),
	regexp.MustCompile(`(?i)FUNZIONALITÀ\s+RENALE`),
	regexp.MustCompile(`(?i)MARKERS?\s+TUMORALI`),
	regexp.MustCompile(`(?i)ORMONI\s+TIROIDEI`),
	regexp.MustCompile(`(?i)COAGULAZIONE`),

	// Vascular ultrasound, most anatomically specific first.
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+DEGLI\s+ARTI\s+INFERIORI\s+ARTERIOSO`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+DEGLI\s+ARTI\s+INFERIORI\s+VENOSO`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+DEGLI\s+ARTI\s+SUPERIORI\s+ARTERIOSO`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+DEGLI\s+ARTI\s+SUPERIORI\s+VENOSO`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+(?:DEI\s+)?TRONCHI\s+SOVRAORTICI`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+(?:DELL')?AORTA\s+ADDOMINALE`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+(?:DELLE\s+)?ARTERIE\s+RENALI`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+(?:DEL\s+)?SISTEMA\s+VENOSO\s+PROFONDO`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+(?:DELLE\s+)?CAROTIDI`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+(?:DELLE\s+)?ARTERIE\s+VERTEBRALI`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+CARDIACA`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA\s+(?:ARTI\s+)?(?:INFERIORI|SUPERIORI)`),
	regexp.MustCompile(`(?i)ECOCOLORDOPPLERGRAFIA`),

	// General ultrasound by region.
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELL')?ADDOME\s+COMPLETO`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELL')?ADDOME\s+SUPERIORE`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELL')?ADDOME\s+INFERIORE`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELLA\s+)?PELVI\s+TRANSVAGINALE`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELLA\s+)?PELVI\s+TRANSADDOMINALE`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELLA\s+)?TIROIDE`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DEL\s+)?COLLO`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELLE\s+)?MAMMELLE`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DEI\s+)?TESTICOLI`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELLA\s+)?PROSTATA`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DEI\s+)?RENI\s+E\s+VESCICA`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELLE\s+)?VIE\s+URINARIE`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DEL\s+)?FEGATO`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELLA\s+)?COLECISTI`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DEL\s+)?PANCREAS`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:DELLA\s+)?MILZA`),
	regexp.MustCompile(`(?i)ECOGRAFIA\s+(?:ADDOMINALE|PELVICA|TIROIDEA|EPATICA|RENALE)`),

	// Echocardiography.
	regexp.MustCompile(`(?i)ECOCARDIOGRAMMA\s+(?:COLOR\s+)?DOPPLER`),
	regexp.MustCompile(`(?i)ECOCARDIOGRAMMA\s+TRANSTORACICO`),
	regexp.MustCompile(`(?i)ECOCARDIOGRAMMA\s+TRANSESOFAGEO`),
	regexp.MustCompile(`(?i)ECOCARDIOGRAMMA`),

	// Plain radiography.
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DEL\s+)?TORACE\s+IN\s+DUE\s+PROIEZIONI`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DEL\s+)?TORACE\s+(?:IN\s+)?(?:PA|AP)`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DELLA\s+)?COLONNA\s+VERTEBRALE`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DEL\s+)?BACINO`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DELLE\s+)?ANCHE`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DEL\s+)?GINOCCHIO`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DELLA\s+)?SPALLA`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DEL\s+)?POLSO`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DELLA\s+)?CAVIGLIA`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DEL\s+)?PIEDE`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DELL')?ADDOME`),
	regexp.MustCompile(`(?i)RADIOGRAFIA\s+(?:DEL\s+)?TORACE`),

	// CT.
	regexp.MustCompile(`(?i)TAC\s+(?:DELL')?ADDOME\s+(?:CON\s+)?(?:E\s+SENZA\s+)?(?:MDC|CONTRASTO)`),
	regexp.MustCompile(`(?i)TAC\s+(?:DEL\s+)?TORACE\s+(?:CON\s+)?(?:E\s+SENZA\s+)?(?:MDC|CONTRASTO)`),
	regexp.MustCompile(`(?i)TAC\s+(?:DEL\s+)?CRANIO\s+(?:CON\s+)?(?:E\s+SENZA\s+)?(?:MDC|CONTRASTO)`),
	regexp.MustCompile(`(?i)TAC\s+(?:DELL')?ENCEFALO\s+(?:CON\s+)?(?:E\s+SENZA\s+)?(?:MDC|CONTRASTO)`),
	regexp.MustCompile(`(?i)TAC\s+(?:DELLA\s+)?COLONNA\s+VERTEBRALE`),
	regexp.MustCompile(`(?i)TAC\s+(?:DEL\s+)?RACHIDE`),
	regexp.MustCompile(`(?i)TAC\s+(?:ADDOME|TORACE|CRANIO|ENCEFALO)`),

	// MRI.
	regexp.MustCompile(`(?i)RISONANZA\s+MAGNETICA\s+(?:DELL')?ENCEFALO`),
	regexp.MustCompile(`(?i)RISONANZA\s+MAGNETICA\s+(?:DELLA\s+)?COLONNA\s+VERTEBRALE`),
	regexp.MustCompile(`(?i)RISONANZA\s+MAGNETICA\s+(?:DEL\s+)?RACHIDE`),
	regexp.MustCompile(`(?i)RISONANZA\s+MAGNETICA\s+(?:DEL\s+)?GINOCCHIO`),
	regexp.MustCompile(`(?i)RISONANZA\s+MAGNETICA\s+(?:DELLA\s+)?SPALLA`),
	regexp.MustCompile(`(?i)RISONANZA\s+MAGNETICA\s+(?:DELL')?ADDOME`),
	regexp.MustCompile(`(?i)RISONANZA\s+MAGNETICA\s+(?:DEL\s+)?BACINO`),
	regexp.MustCompile(`(?i)RISONANZA\s+MAGNETICA`),

	// Other imaging modalities.
	regexp.MustCompile(`(?i)MAMMOGRAFIA\s+BILATERALE`),
	regexp.MustCompile(`(?i)MAMMOGRAFIA`),
	regexp.MustCompile(`(?i)DENSITOMETRIA\s+OSSEA`),
	regexp.MustCompile(`(?i)SCINTIGRAFIA\s+OSSEA`),
	regexp.MustCompile(`(?i)SCINTIGRAFIA\s+TIROIDEA`),
	regexp.MustCompile(`(?i)SCINTIGRAFIA`),
	regexp.MustCompile(`(?i)ANGIO\s*TAC`),
	regexp.MustCompile(`(?i)ANGIO\s*RM`),

	// Generic imaging, least specific last.
	regexp.MustCompile(`(?i)REFERTO\s+DI\s+RADIOLOGIA`),
	regexp.MustCompile(`(?i)REFERTO\s+RADIOLOGICO`),
	regexp.MustCompile(`(?i)ECO\s+DOPPLER`),
	regexp.MustCompile(`(?i)ECO-DOPPLER`),
	regexp.MustCompile(`(?i)DOPPLER`),

	// Pathology and histology.
	regexp.MustCompile(`(?i)ESAME\s+ISTOLOGICO`),
	regexp.MustCompile(`(?i)ESAME\s+CITOLOGICO`),
	regexp.MustCompile(`(?i)ESAME\s+ANATOMO\s*PATOLOGICO`),
	regexp.MustCompile(`(?i)AGOBIOPSIA`),
	regexp.MustCompile(`(?i)BIOPSIA`),
	regexp.MustCompile(`(?i)REFERTO\s+(?:DI\s+)?(?:ANATOMIA\s+)?PATOLOGICA?`),
	regexp.MustCompile(`(?i)REFERTO\s+ISTOLOGICO`),
	regexp.MustCompile(`(?i)REFERTO\s+CITOLOGICO`),
	regexp.MustCompile(`(?i)DIAGNOSI\s+ISTOLOGICA`),
	regexp.MustCompile(`(?i)DIAGNOSI\s+CITOLOGICA`),
	regexp.MustCompile(`(?i)PAP\s*TEST`),
	regexp.MustCompile(`(?i)IMMUNOISTOCHIMICA`),
	regexp.MustCompile(`(?i)COLORAZIONE\s+(?:HE|H&E|EMATOSSILINA)`),
	regexp.MustCompile(`(?i)PREPARATO\s+ISTOLOGICO`),
	regexp.MustCompile(`(?i)SEZIONI\s+ISTOLOGICHE`),
}

// titleScanKeywords mark an all-caps line as a plausible exam heading.
var titleScanKeywords = []string{
	"ESAME", "REFERTO", "ANALISI", "DIAGNOSTICA", "INDAGINE",
	"CHIMICO", "FISICO", "BATTERIOLOGICO", "MICROSCOPICO",
	"URINE", "SANGUE", "EMOCROMO", "COAGULAZIONE",
	"RADIOLOG", "ECOGRAF", "CARDIOL", "NEUROLOG", "ORTOPED",
	"PATOLOG", "ISTOLOG", "CITOLOG", "BIOPSIA",
}

// titleScanDenylist excludes administrative boilerplate headings.
var titleScanDenylist = []string{
	"AZIENDA", "OSPEDALE", "DIRETTORE", "RESPONSABILE",
	"TELEFONO", "EMAIL", "INDIRIZZO", "VIA", "VIALE",
	"CODICE", "PAZIENTE", "RISULTATO", "UNITA", "RIFERIMENTO",
}

// titleLabelRules capture free text after an "exam type" style label.
var titleLabelRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Tipo(?:\s*di)?(?:\s*esame|referto|indagine)?)[\s:.\-]*([A-Za-zÀ-ÿ\s]+)`),
	regexp.MustCompile(`(?i)REFERTO(?:\s*di)?[\s:.\-]*([A-Za-zÀ-ÿ\s]+)`),
	regexp.MustCompile(`(?i)PRESTAZIONE[\s:.\-]*([A-Za-zÀ-ÿ\s]+)`),
	regexp.MustCompile(`(?i)SPECIALITÀ[\s:.\-]*([A-Za-zÀ-ÿ\s]+)`),
	regexp.MustCompile(`(?i)SETTORE[\s:.\-]*([A-Za-zÀ-ÿ\s]+)`),
}

// titleLabelDenylist rejects captures that are just table headers.
var titleLabelDenylist = map[string]bool{
	"RISULTATO": true, "UNITA": true, "VALORE": true, "DATO": true,
}

// titleKeywordFamilies back the last-resort keyword vote: when at least two
// keywords of one family appear in the leading lines, the family label is
// returned as a generic title.
var titleKeywordFamilies = []struct {
	label    string
	keywords []string
}{
	{"Esame Chimico Fisico Delle Urine", []string{"URINE", "PROTEINE", "GLUCOSIO", "SEDIMENTO", "ESTERASI"}},
	{"Esame Emocromocitometrico", []string{"WBC", "RBC", "HGB", "HCT", "PLT", "EMOCROMO"}},
	{"Chimica Clinica", []string{"GLUCOSIO", "CREATININA", "UREA", "SODIO", "POTASSIO", "TRANSAMINASI"}},
	{"Ecocolordopplergrafia", []string{"ECOCOLORDOPPLERGRAFIA", "DOPPLER", "CAROTIDE", "VASCOLARE", "STENOSI", "FLUSSO"}},
	{"Radiologia", []string{"RX", "TAC", "ECOGRAFIA", "RADIOLOGIA", "ECO", "RAGGI X", "RISONANZA"}},
	{"Cardiologia", []string{"ECG", "ECOCARDIOGRAMMA", "ELETTROCARDIOGRAMMA", "CARDIO", "CARDIOVASCOLARE"}},
	{"Anatomia Patologica", []string{"ISTOLOGICO", "CITOLOGICO", "BIOPSIA", "AGOBIOPSIA", "PATOLOGICA", "HE", "EMATOSSILINA", "IMMUNOISTOCHIMICA", "NEOPLASIA", "DISPLASIA", "METAPLASIA"}},
	{"Laboratorio", []string{"ANALISI", "LABORATORIO", "BIOCHIMICA", "SIEROLOGIA"}},
}

// titleScanOptions bound the all-caps line scan.
type titleScanOptions struct {
	firstLine int
	lastLine  int
	minLen    int
	maxLen    int
	voteLines int
}

// extractExamTitle runs the four-stage title cascade: exact clinical
// phrases, the all-caps heading scan, label capture, then the keyword vote.
// "" means no title could be determined.
func extractExamTitle(text string, opts titleScanOptions) string {
	// Stage 1: exact clinical phrases anywhere in the text.
	for _, re := range specificTitleRules {
		if m := re.FindString(text); m != "" {
			return italianTitleCaser.String(strings.TrimSpace(m))
		}
	}

	lines := strings.Split(text, "\n")

	// Stage 2: all-caps heading scan inside the configured window.
	type candidate struct {
		length int
		text   string
		line   int
	}
	var candidates []candidate
	for i, raw := range lines {
		if i < opts.firstLine || i > opts.lastLine {
			continue
		}
		line := strings.TrimSpace(raw)
		if len(line) <= opts.minLen || len(line) >= opts.maxLen {
			continue
		}
		if line != strings.ToUpper(line) || startsWithDigit(line) {
			continue
		}
		if !containsAny(line, titleScanKeywords) || containsAny(line, titleScanDenylist) {
			continue
		}
		candidates = append(candidates, candidate{length: len(line), text: line, line: i})
	}
	// Longer candidates are usually more specific; earlier position breaks ties.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].length != candidates[j].length {
			return candidates[i].length > candidates[j].length
		}
		return candidates[i].line < candidates[j].line
	})
	if len(candidates) > 0 {
		return italianTitleCaser.String(candidates[0].text)
	}

	// Stage 3: label capture.
	for _, re := range titleLabelRules {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		result := whitespaceRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
		if len(result) > 3 && len(result) < 100 && !titleLabelDenylist[strings.ToUpper(result)] {
			return italianTitleCaser.String(result)
		}
	}

	// Stage 4: keyword vote over the leading lines.  Note the result is a
	// generic category label, not a literal title from the document.
	window := lines
	if len(window) > opts.voteLines {
		window = window[:opts.voteLines]
	}
	searchText := strings.ToUpper(strings.Join(window, " "))
	for _, family := range titleKeywordFamilies {
		hits := 0
		for _, kw := range family.keywords {
			if strings.Contains(searchText, kw) {
				hits++
			}
		}
		if hits >= 2 {
			return family.label
		}
	}

	return ""
}

func startsWithDigit(line string) bool {
	limit := 5
	if len(line) < limit {
		limit = len(line)
	}
	for _, c := range line[:limit] {
		if c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

func containsAny(line string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(line, t) {
			return true
		}
	}
	return false
}
