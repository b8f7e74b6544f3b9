package extraction

import (
	"strings"
	"testing"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/pkg/errors"
)

// =========================================================================
// Helpers
// =========================================================================

type stubClassifier struct {
	category report.Category
}

func (s *stubClassifier) Classify(text, examTitle string) report.Category {
	return s.category
}

func testExtractionConfig() config.ExtractionConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg.Engine.Extraction
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(testExtractionConfig(), &stubClassifier{category: report.CategoryLaboratory}, nil)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return e
}

// =========================================================================
// Fiscal code
// =========================================================================

func TestExtractFiscalCode_Labeled(t *testing.T) {
	code := extractFiscalCode([]string{"Paziente: Mario Rossi\nCodice Fiscale: RSSMRA80A01H501U\n"})
	if code != "RSSMRA80A01H501U" {
		t.Errorf("got %q, want RSSMRA80A01H501U", code)
	}
}

func TestExtractFiscalCode_EmbeddedWhitespace(t *testing.T) {
	// Whitespace inside the candidate must normalise to the compact form.
	cases := []string{
		"C.F. RSSMRA 80A01 H501U",
		"CF: RSSMRA80 A01 H501 U",
		"Codice Fiscale RSSMRA 80 A01 H 501 U",
	}
	for _, src := range cases {
		if code := extractFiscalCode([]string{src}); code != "RSSMRA80A01H501U" {
			t.Errorf("source %q: got %q, want RSSMRA80A01H501U", src, code)
		}
	}
}

func TestExtractFiscalCode_LabelLessFallback(t *testing.T) {
	code := extractFiscalCode([]string{"Referto per RSSMRA80A01H501U in data odierna"})
	if code != "RSSMRA80A01H501U" {
		t.Errorf("got %q, want RSSMRA80A01H501U", code)
	}
}

func TestExtractFiscalCode_FromProperties(t *testing.T) {
	// The identifier may live only in the document metadata bag.
	code := extractFiscalCode([]string{"nessun codice nel testo", "Subject: CF RSSMRA80A01H501U"})
	if code != "RSSMRA80A01H501U" {
		t.Errorf("got %q, want RSSMRA80A01H501U", code)
	}
}

func TestExtractFiscalCode_LowercaseInputStoredUppercase(t *testing.T) {
	code := extractFiscalCode([]string{"c.f. rssmra80a01h501u"})
	if code != "RSSMRA80A01H501U" {
		t.Errorf("got %q, want RSSMRA80A01H501U", code)
	}
}

func TestExtractFiscalCode_InvalidTemplateSkipped(t *testing.T) {
	// Wrong letter/digit layout: 16 chars but not the template.
	if code := extractFiscalCode([]string{"C.F. AAAAAAAAAAAAAAAA"}); code != "" {
		t.Errorf("invalid candidate accepted: %q", code)
	}
	if code := extractFiscalCode([]string{"nothing here"}); code != "" {
		t.Errorf("absent code should be empty, got %q", code)
	}
}

// =========================================================================
// Dates
// =========================================================================

func TestNormalizeDate_Separators(t *testing.T) {
	for _, raw := range []string{"01/02/2024", "01-02-2024", "01.02.2024", "1/2/2024"} {
		got, ok := normalizeDate(raw, 1980, 2025)
		if !ok || got != "01/02/2024" {
			t.Errorf("normalizeDate(%q) = %q, %v; want 01/02/2024, true", raw, got, ok)
		}
	}
}

func TestNormalizeDate_Idempotent(t *testing.T) {
	first, ok := normalizeDate("3.4.99", 1980, 2025)
	if !ok {
		t.Fatal("first normalisation failed")
	}
	second, ok := normalizeDate(first, 1980, 2025)
	if !ok || second != first {
		t.Errorf("normalisation not idempotent: %q -> %q", first, second)
	}
}

func TestNormalizeDate_TwoDigitYearPivot(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"01/01/99", "01/01/1999"}, // >50 -> 1900s
		{"01/01/51", "01/01/1951"},
		{"01/01/24", "01/01/2024"}, // <=50 -> 2000s
		{"01/01/50", "01/01/2050"},
	}
	for _, tc := range cases {
		got, ok := normalizeDate(tc.raw, 1900, 2050)
		if !ok || got != tc.want {
			t.Errorf("normalizeDate(%q) = %q, %v; want %q", tc.raw, got, ok, tc.want)
		}
	}
}

func TestNormalizeDate_RejectsOutOfRange(t *testing.T) {
	for _, raw := range []string{"32/01/2024", "01/13/2024", "01/01/1979", "01/01/2026", "1/2", "abc"} {
		if _, ok := normalizeDate(raw, 1980, 2025); ok {
			t.Errorf("normalizeDate(%q) accepted, want rejection", raw)
		}
	}
}

func TestExtractDate_FirstValidRuleWins(t *testing.T) {
	text := "Data di nascita: 15/03/1962\nAltra data 01/01/2020"
	got := extractDate(text, birthDateRules, 1900, 2024)
	if got != "15/03/1962" {
		t.Errorf("got %q, want 15/03/1962", got)
	}
}

func TestExtractDate_SkipsOutOfRangeCandidate(t *testing.T) {
	// The first matching candidate is out of range; the scan must continue.
	text := "Eseguito il 01/01/1900\nRefertato il 05/06/2023"
	got := extractExamDate(text, 1980, 2025)
	if got != "05/06/2023" {
		t.Errorf("got %q, want 05/06/2023", got)
	}
}

func TestExtractExamDate_TypedOverridesGeneric(t *testing.T) {
	// An administrative date appears first; the explicit report date wins.
	text := "Accettato il 01/06/2023\nRefertato il 10/06/2023"
	got := extractExamDate(text, 1980, 2025)
	if got != "10/06/2023" {
		t.Errorf("got %q, want 10/06/2023", got)
	}
}

func TestExtractExamDate_Absent(t *testing.T) {
	if got := extractExamDate("nessuna data presente", 1980, 2025); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

// =========================================================================
// Patient name
// =========================================================================

func TestExtractPatientName_Salutation(t *testing.T) {
	got := extractPatientName("Sig. ROSSI MARIO\nC.F. RSSMRA80A01H501U")
	if got != "Rossi Mario" {
		t.Errorf("got %q, want Rossi Mario", got)
	}
}

func TestExtractPatientName_NomeLabel(t *testing.T) {
	got := extractPatientName("Nome: Palumbo Maria Grazia\nEtà: 58")
	if got != "Palumbo Maria Grazia" {
		t.Errorf("got %q, want Palumbo Maria Grazia", got)
	}
}

func TestExtractPatientName_RejectsDigitsAndDenylist(t *testing.T) {
	if got := extractPatientName("Paziente: Via Roma 10"); got != "" {
		t.Errorf("administrative term accepted as name: %q", got)
	}
	if got := extractPatientName("Nome: X1 Y2"); got != "" {
		t.Errorf("digit-bearing candidate accepted as name: %q", got)
	}
}

func TestExtractPatientName_Absent(t *testing.T) {
	if got := extractPatientName("referto privo di dati anagrafici"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

// =========================================================================
// Exam title
// =========================================================================

func defaultScanOptions() titleScanOptions {
	return titleScanOptions{firstLine: 5, lastLine: 50, minLen: 10, maxLen: 100, voteLines: 30}
}

func TestExtractExamTitle_SpecificPhraseWins(t *testing.T) {
	text := "Laboratorio Analisi\nESAME CHIMICO FISICO DELLE URINE\nColore\nGiallo"
	got := extractExamTitle(text, defaultScanOptions())
	if got != "Esame Chimico Fisico Delle Urine" {
		t.Errorf("got %q", got)
	}
}

func TestExtractExamTitle_MostSpecificImagingPhrase(t *testing.T) {
	text := "REFERTO\nECOCOLORDOPPLERGRAFIA DEI TRONCHI SOVRAORTICI\n"
	got := extractExamTitle(text, defaultScanOptions())
	if !strings.Contains(got, "Tronchi Sovraortici") {
		t.Errorf("expected the anatomically qualified study name, got %q", got)
	}
}

func TestExtractExamTitle_UppercaseLineScan(t *testing.T) {
	// No specific phrase; an all-caps heading with a medical keyword inside
	// the scan window must be picked, preferring the longer candidate.
	lines := make([]string, 0, 20)
	for i := 0; i < 6; i++ {
		lines = append(lines, "intestazione generica")
	}
	lines = append(lines, "INDAGINE DIAGNOSTICA SPECIALISTICA DEL SANGUE")
	lines = append(lines, "INDAGINE DEL SANGUE")
	text := strings.Join(lines, "\n")

	got := extractExamTitle(text, defaultScanOptions())
	if got != "Indagine Diagnostica Specialistica Del Sangue" {
		t.Errorf("got %q", got)
	}
}

func TestExtractExamTitle_ScanExcludesAdminLines(t *testing.T) {
	lines := make([]string, 0, 12)
	for i := 0; i < 6; i++ {
		lines = append(lines, "riga")
	}
	lines = append(lines, "AZIENDA OSPEDALIERA ANALISI CLINICHE")
	text := strings.Join(lines, "\n")

	if got := extractExamTitle(text, defaultScanOptions()); got == "Azienda Ospedaliera Analisi Cliniche" {
		t.Errorf("administrative heading accepted as title: %q", got)
	}
}

func TestExtractExamTitle_KeywordVote(t *testing.T) {
	// No phrase, no heading, no label: two hematology keywords trigger the
	// generic family label.
	text := "valori WBC nella norma\nRBC lievemente ridotti\n"
	got := extractExamTitle(text, defaultScanOptions())
	if got != "Esame Emocromocitometrico" {
		t.Errorf("got %q, want Esame Emocromocitometrico", got)
	}
}

func TestExtractExamTitle_NoMatch(t *testing.T) {
	if got := extractExamTitle("testo generico senza indizi", defaultScanOptions()); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

// =========================================================================
// Laboratory values
// =========================================================================

func TestExtractLabValues_Multiline(t *testing.T) {
	text := strings.Join([]string{
		"Proteine",
		"15 *",
		"mg/dl",
		"0 - 10",
		"Glucosio",
		"ASSENTE",
		"ASSENTE",
	}, "\n")

	values := extractLabValues(text, 4)

	proteins := findValue(t, values, "Proteine")
	if proteins.Value != "15" || proteins.Unit != "mg/dl" || proteins.ReferenceRange != "0 - 10" {
		t.Errorf("unexpected protein fields: %+v", proteins)
	}
	if !proteins.Abnormal {
		t.Error("15 mg/dl urine protein should stay abnormal")
	}

	glucose := findValue(t, values, "Glucosio")
	if glucose.Value != "ASSENTE" || glucose.Abnormal {
		t.Errorf("unexpected glucose fields: %+v", glucose)
	}
}

func TestExtractLabValues_MultilineStopsAtNextTest(t *testing.T) {
	text := strings.Join([]string{
		"Colore",
		"GIALLO PAGLIERINO",
		"Aspetto",
		"LIMPIDO",
	}, "\n")

	values := extractLabValues(text, 4)
	colour := findValue(t, values, "Colore")
	if colour.Value != "GIALLO PAGLIERINO" {
		t.Errorf("colour = %+v", colour)
	}
	aspect := findValue(t, values, "Aspetto")
	if aspect.Value != "LIMPIDO" {
		t.Errorf("aspect = %+v", aspect)
	}
}

func TestExtractLabValues_SingleLine(t *testing.T) {
	text := "HGB 12.5 g/dl\nWBC 7.2 * /mm3\n"
	values := extractLabValues(text, 4)

	hgb := findValue(t, values, "HGB")
	if hgb.Value != "12.5" || hgb.Abnormal {
		t.Errorf("hgb = %+v", hgb)
	}
	wbc := findValue(t, values, "WBC")
	if !wbc.Abnormal {
		t.Errorf("wbc marked with * should be abnormal: %+v", wbc)
	}
}

func TestExtractLabValues_MultilineNotOverwrittenBySingleLine(t *testing.T) {
	// The same test name in both formats keeps the multi-line result.
	text := strings.Join([]string{
		"Proteine",
		"22",
		"mg/dl",
		"Proteine: 99 mg/dl",
	}, "\n")

	values := extractLabValues(text, 4)
	proteins := findValue(t, values, "Proteine")
	if proteins.Value != "22" {
		t.Errorf("multi-line value overwritten: %+v", proteins)
	}
}

func TestExtractLabValues_RejectsUnlistedQualitative(t *testing.T) {
	values := extractLabValues("Conclusioni: buone\nEsito: discreto\n", 4)
	if len(values) != 0 {
		t.Errorf("unexpected values: %+v", values)
	}
}

func TestExtractLabValues_DiscoveryOrderPreserved(t *testing.T) {
	text := "HGB 12.5 g/dl\nHCT 39 %\nPLT 250 /mm3\n"
	values := extractLabValues(text, 4)
	if len(values) != 3 {
		t.Fatalf("want 3 values, got %d", len(values))
	}
	want := []string{"HGB", "HCT", "PLT"}
	for i, name := range want {
		if values[i].Name != name {
			t.Errorf("position %d: got %s, want %s", i, values[i].Name, name)
		}
	}
}

func findValue(t *testing.T, values []report.LabValue, name string) report.LabValue {
	t.Helper()
	for _, v := range values {
		if strings.EqualFold(v.Name, name) {
			return v
		}
	}
	t.Fatalf("value %q not extracted; got %+v", name, values)
	return report.LabValue{}
}

// =========================================================================
// Clinical-significance overrides
// =========================================================================

func TestApplyClinicalSignificance_UrineHemoglobinCutoff(t *testing.T) {
	// At the trace cutoff: normal. One unit above: abnormal.
	if applyClinicalSignificance("Emoglobina", "1.0", "mg/dl", true) {
		t.Error("1.0 mg/dl should not be abnormal")
	}
	if !applyClinicalSignificance("Emoglobina", "2.0", "mg/dl", false) {
		t.Error("2.0 mg/dl should be abnormal even without the raw marker")
	}
	if applyClinicalSignificance("Emoglobina", "0,5", "mg/dl", true) {
		t.Error("comma-decimal 0,5 should parse and be normal")
	}
}

func TestApplyClinicalSignificance_UrineProtein(t *testing.T) {
	if applyClinicalSignificance("Proteine", "10", "mg/dl", true) {
		t.Error("10 mg/dl protein should be normal")
	}
	if !applyClinicalSignificance("Proteine", "15", "mg/dl", false) {
		t.Error("15 mg/dl protein should be abnormal")
	}
}

func TestApplyClinicalSignificance_LeukocyteEsterase(t *testing.T) {
	if applyClinicalSignificance("Esterasi Leucocitaria", "24", "Leu/ul", true) {
		t.Error("24 Leu/ul should be normal")
	}
	if !applyClinicalSignificance("Esterasi Leucocitaria", "25", "Leu/ul", false) {
		t.Error("25 Leu/ul should be abnormal")
	}
}

func TestApplyClinicalSignificance_QualitativeKeepsRawFlag(t *testing.T) {
	if !applyClinicalSignificance("Emoglobina", "PRESENTE", "mg/dl", true) {
		t.Error("non-numeric value must keep the raw marker")
	}
	if applyClinicalSignificance("Emoglobina", "ASSENTE", "mg/dl", false) {
		t.Error("non-numeric value must keep the raw marker")
	}
}

// =========================================================================
// Test category lookup
// =========================================================================

func TestDetermineTestCategory(t *testing.T) {
	cases := []struct {
		name string
		want report.LabCategory
	}{
		{"WBC", report.LabHematology},
		{"EMOGLOBINA", report.LabHematology},
		{"EMOGLOBINA URINE", report.LabUrinalysis},
		{"INR", report.LabCoagulation},
		{"ATTIVITA' PROTROMBINICA", report.LabCoagulation},
		{"Colore", report.LabUrinalysis},
		{"Esterasi Leucocitaria", report.LabUrinalysis},
		{"CREATININA", report.LabChemistry},
		{"qualcosa di ignoto", report.LabChemistry},
	}
	for _, tc := range cases {
		if got := determineTestCategory(tc.name); got != tc.want {
			t.Errorf("determineTestCategory(%q) = %s, want %s", tc.name, got, tc.want)
		}
	}
}

// =========================================================================
// Extractor integration
// =========================================================================

func TestExtract_EmptyDocument(t *testing.T) {
	e := newTestExtractor(t)
	_, err := e.Extract(Document{Text: "   \n  "})
	if err == nil {
		t.Fatal("expected error on empty document")
	}
	if !errors.IsCode(err, errors.ErrCodeDocumentEmpty) {
		t.Errorf("unexpected error code: %v", err)
	}
}

func TestExtract_FullDocument(t *testing.T) {
	e := newTestExtractor(t)

	text := strings.Join([]string{
		"Laboratorio Analisi Cliniche",
		"Sig. ROSSI MARIO",
		"C.F. RSSMRA 80A01 H501U",
		"Data di nascita: 01/01/1980",
		"ESAME CHIMICO FISICO DELLE URINE",
		"Refertato il 05-06-2023",
		"Proteine",
		"15 *",
		"mg/dl",
		"0 - 10",
	}, "\n")

	meta, err := e.Extract(Document{Text: text})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if meta.FiscalCode != "RSSMRA80A01H501U" {
		t.Errorf("fiscal code = %q", meta.FiscalCode)
	}
	if meta.PatientName != "Rossi Mario" {
		t.Errorf("patient name = %q", meta.PatientName)
	}
	if meta.BirthDate != "01/01/1980" {
		t.Errorf("birth date = %q", meta.BirthDate)
	}
	if meta.ExamDate != "05/06/2023" {
		t.Errorf("exam date = %q", meta.ExamDate)
	}
	if meta.ExamTitle != "Esame Chimico Fisico Delle Urine" {
		t.Errorf("exam title = %q", meta.ExamTitle)
	}
	if meta.Category != report.CategoryLaboratory {
		t.Errorf("category = %s", meta.Category)
	}
	if _, ok := meta.LabValue("Proteine"); !ok {
		t.Error("protein value missing")
	}
}

func TestExtract_TitleDefaultsToUnknown(t *testing.T) {
	e := newTestExtractor(t)
	meta, err := e.Extract(Document{Text: "documento privo di qualunque indizio utile"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.ExamTitle != report.UnknownTitle {
		t.Errorf("exam title = %q, want %q", meta.ExamTitle, report.UnknownTitle)
	}
	if meta.FiscalCode != "" || meta.ExamDate != "" {
		t.Errorf("expected absent fields, got %+v", meta)
	}
}

func TestExtract_IdentifierFromProperties(t *testing.T) {
	e := newTestExtractor(t)
	meta, err := e.Extract(Document{
		Text:       "referto senza codice nel corpo del testo",
		Properties: map[string]string{"subject": "CF RSSMRA80A01H501U"},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.FiscalCode != "RSSMRA80A01H501U" {
		t.Errorf("fiscal code = %q", meta.FiscalCode)
	}
}
