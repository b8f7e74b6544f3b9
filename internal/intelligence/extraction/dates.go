package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Date rule tables
// ---------------------------------------------------------------------------

// dateToken matches a candidate date with any of the three accepted
// separators and a 2- or 4-digit year.
const dateToken = `([0-9]{1,2}[/.\-][0-9]{1,2}[/.\-][0-9]{2,4})`

// birthDateRules are tried in order; the first match that survives
// normalisation wins.
var birthDateRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:D\.?\s*Nasc\.?|Data di nascita|Nato il|Nata il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:DN|d\.n\.|D\.N\.)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Nascita|Birth|Born)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Data nasc\.?|D\.nasc\.?)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Nato/a il|Nato/a in data)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Luogo e data di nascita).*?` + dateToken),
	regexp.MustCompile(`(?i)(?:Nato a).*?(?:il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Nata a).*?(?:il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Data nascita|D\.nascita)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:D\.?\s*Nasc\.?|Data di nascita)[\s:.\-]*\n\s*` + dateToken),
}

// examDateRules are the generic exam/report date labels, most explicit first.
// The bare-date rule at the end only accepts 4-digit years.
var examDateRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Data|Data esame|Data referto|Data del referto)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Refertato il|Refertazione)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Eseguito il|Effettuato il|Eseguito in data)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:In data|Il giorno|Nella giornata del)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Del|dell'|della)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Prestazione del|Prestazione effettuata il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Visitato il|Visita del|Visita effettuata il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Controllo del|Controllo effettuato il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Appuntamento del|Appuntamento in data)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Prelievo del|Prelievo effettuato il|Campionamento)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Analisi del|Analisi effettuate il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Accettazione|Accettato il|Ricevuto il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Registrato il|Protocollato il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Emesso il|Stampato il|Rilasciato il)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Data e ora|Data e orario)[\s:.\-]*` + dateToken),
	regexp.MustCompile(`(?i)(?:Data|Data esame|Refertato il)[\s:.\-]*\n\s*` + dateToken),
	regexp.MustCompile(`([0-9]{1,2}[/.\-][0-9]{1,2}[/.\-][0-9]{4})`),
}

// typedDateRules distinguish the semantic role of a date.  When one of these
// matches, its date overrides the generic cascade in priority order:
// report date, then exam date, then acceptance date.
var typedDateRules = []struct {
	kind  string
	rules []*regexp.Regexp
}{
	{"report_date", []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Refertato il|Refertazione)[\s:.\-]*` + dateToken),
		regexp.MustCompile(`(?i)(?:Data referto|Data del referto)[\s:.\-]*` + dateToken),
	}},
	{"exam_date", []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Data esame|Data del esame)[\s:.\-]*` + dateToken),
		regexp.MustCompile(`(?i)(?:Eseguito il|Effettuato il)[\s:.\-]*` + dateToken),
		regexp.MustCompile(`(?i)(?:Prelievo|Prelievo del|Prelievo effettuato il)[\s:.\-]*` + dateToken),
	}},
	{"acceptance_date", []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Accettato il|Accettazione)[\s:.\-]*` + dateToken),
		regexp.MustCompile(`(?i)(?:Ricevuto il|Data accettazione)[\s:.\-]*` + dateToken),
	}},
}

// ---------------------------------------------------------------------------
// Normalisation
// ---------------------------------------------------------------------------

var dateSeparators = strings.NewReplacer(".", "/", "-", "/")

// normalizeDate converts a raw D/M/Y candidate with any supported separator
// into zero-padded DD/MM/YYYY.  Two-digit years pivot at 50: values above 50
// become 19xx, the rest 20xx.  Candidates whose day, month, or resolved year
// fall outside [1,31], [1,12], or [minYear,maxYear] are rejected.
// Normalisation is idempotent: a valid DD/MM/YYYY input is returned as is.
func normalizeDate(raw string, minYear, maxYear int) (string, bool) {
	parts := strings.Split(dateSeparators.Replace(strings.TrimSpace(raw)), "/")
	if len(parts) != 3 {
		return "", false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", false
	}

	yearStr := parts[2]
	if len(yearStr) == 2 {
		yy, convErr := strconv.Atoi(yearStr)
		if convErr != nil {
			return "", false
		}
		if yy > 50 {
			yearStr = "19" + yearStr
		} else {
			yearStr = "20" + yearStr
		}
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return "", false
	}

	if day < 1 || day > 31 || month < 1 || month > 12 || year < minYear || year > maxYear {
		return "", false
	}

	return fmt.Sprintf("%02d/%02d/%04d", day, month, year), true
}

// extractDate runs an ordered rule table over text and returns the first
// candidate that normalises successfully.  Empty string means absent.
func extractDate(text string, rules []*regexp.Regexp, minYear, maxYear int) string {
	for _, re := range rules {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if normalized, ok := normalizeDate(m[1], minYear, maxYear); ok {
				return normalized
			}
			// An out-of-range candidate does not consume the rule; later
			// matches of the same rule may still be valid.
		}
	}
	return ""
}

// extractExamDate resolves the exam date: the generic cascade provides the
// baseline, and a typed match overrides it so that an explicit report or
// exam date beats an administrative one.
func extractExamDate(text string, minYear, maxYear int) string {
	date := extractDate(text, examDateRules, minYear, maxYear)

	for _, td := range typedDateRules {
		if typed := extractDate(text, td.rules, minYear, maxYear); typed != "" {
			return typed
		}
	}
	return date
}
