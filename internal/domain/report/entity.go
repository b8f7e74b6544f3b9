// Package report implements the clinical-report bounded context: the
// extracted-metadata value objects, the stored aggregate, trend verdicts, and
// the persistence contract.  All business rules about what a report *is* live
// here; how reports are extracted, compared, or persisted is handled by the
// intelligence and infrastructure layers.
package report

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

// Category is the coarse classification of a clinical document.  It selects
// comparison and duplicate-detection thresholds and extraction key families.
type Category string

const (
	CategoryLaboratory   Category = "laboratory"
	CategoryImaging      Category = "imaging"
	CategoryPathology    Category = "pathology"
	CategoryUnclassified Category = "unclassified"
)

// Valid reports whether c is one of the recognised categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLaboratory, CategoryImaging, CategoryPathology, CategoryUnclassified:
		return true
	}
	return false
}

// LabCategory is the sub-category of a single laboratory test, derived from a
// keyword lookup on the test name.
type LabCategory string

const (
	LabHematology  LabCategory = "hematology"
	LabChemistry   LabCategory = "chemistry"
	LabUrinalysis  LabCategory = "urinalysis"
	LabCoagulation LabCategory = "coagulation"
)

// Verdict is the outcome of comparing a document against the most recent
// prior document of the same exam title for the same patient.
type Verdict string

const (
	VerdictWorsened  Verdict = "worsened"
	VerdictImproved  Verdict = "improved"
	VerdictUnchanged Verdict = "unchanged"
	VerdictNoPrior   Verdict = "no_prior"
	VerdictError     Verdict = "error"
)

// Valid reports whether v is one of the recognised verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictWorsened, VerdictImproved, VerdictUnchanged, VerdictNoPrior, VerdictError:
		return true
	}
	return false
}

// Severity is the AI-assessed gravity of a single document's findings.  The
// values are the Italian clinical terms emitted by the inference backend.
type Severity string

const (
	SeverityMild     Severity = "lieve"
	SeverityModerate Severity = "moderato"
	SeveritySevere   Severity = "grave"
)

// UnknownTitle is the sentinel exam title used when no extraction rule
// produced a usable title.
const UnknownTitle = "unknown"

// DateLayout is the date format used at every external boundary.
const DateLayout = "02/01/2006"

// ─────────────────────────────────────────────────────────────────────────────
// Extracted metadata
// ─────────────────────────────────────────────────────────────────────────────

// LabValue is one named test result discovered in the document text.
type LabValue struct {
	// Name is the canonical test name, uppercase as listed in the known-test
	// table of the extractor.
	Name string `json:"name"`

	// Value is the raw value string, numeric or qualitative.
	Value string `json:"value"`

	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`

	// Abnormal is the final flag after any clinical-significance override has
	// been applied; it may disagree with the source document's own marker.
	Abnormal bool `json:"abnormal"`

	// Category is the coarse test family used by the duplicate detector.
	Category LabCategory `json:"category"`
}

// ExtractedMetadata is the immutable result of running the field and
// laboratory-value extractors over one document.  It is created once per
// document and never mutated afterwards.
type ExtractedMetadata struct {
	// RawText is the full character stream the extractors ran over.
	RawText string `json:"-"`

	// PatientName is empty when no name pattern matched.
	PatientName string `json:"patient_name,omitempty"`

	// BirthDate is normalised DD/MM/YYYY, empty when absent.
	BirthDate string `json:"birth_date,omitempty"`

	// FiscalCode is the normalised 16-character patient identifier, uppercase,
	// empty when the document carries none.  Absence is a valid state and is
	// never conflated with an invalid code.
	FiscalCode string `json:"fiscal_code,omitempty"`

	// ExamDate is normalised DD/MM/YYYY, empty when absent.
	ExamDate string `json:"exam_date,omitempty"`

	// ExamTitle is UnknownTitle when nothing matched.
	ExamTitle string `json:"exam_title"`

	Category Category `json:"category"`

	// LabValues preserves discovery order; names are unique per document.
	LabValues []LabValue `json:"lab_values,omitempty"`
}

// LabValue returns the value recorded under name and whether it exists.
// Lookups are case-insensitive.
func (m *ExtractedMetadata) LabValue(name string) (LabValue, bool) {
	for _, v := range m.LabValues {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return LabValue{}, false
}

// HasIdentifier reports whether the document carries a patient identifier.
func (m *ExtractedMetadata) HasIdentifier() bool {
	return m.FiscalCode != ""
}

// ExamDateTime parses the normalised exam date.  The zero time is returned
// when the date is absent or malformed.
func (m *ExtractedMetadata) ExamDateTime() time.Time {
	if m.ExamDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, m.ExamDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ─────────────────────────────────────────────────────────────────────────────
// Stored aggregate
// ─────────────────────────────────────────────────────────────────────────────

// StoredReport is a persisted clinical document together with the analysis
// results computed at save time.
type StoredReport struct {
	ID uuid.UUID `json:"id"`

	FiscalCode  string    `json:"fiscal_code,omitempty"`
	PatientName string    `json:"patient_name,omitempty"`
	ExamTitle   string    `json:"exam_title"`
	ExamDate    time.Time `json:"exam_date"`
	Category    Category  `json:"category"`

	RawText string `json:"-"`

	// Verdict and Explanation are the trend outcome recorded when this
	// report was analysed against its prior.
	Verdict     Verdict `json:"verdict"`
	Explanation string  `json:"explanation,omitempty"`

	// Diagnosis and Severity are the per-document AI assessment; both are
	// opaque to the engine and stored verbatim.
	Diagnosis string   `json:"diagnosis,omitempty"`
	Severity  Severity `json:"severity,omitempty"`

	// StorageKey is the object-storage location of the raw uploaded document,
	// empty when archiving is disabled.
	StorageKey string `json:"storage_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ComparisonResult is the ephemeral outcome of one comparator call.  The
// caller persists it as part of the StoredReport.
type ComparisonResult struct {
	Status      Verdict `json:"status"`
	Explanation string  `json:"explanation"`
}

// DuplicateVerdict is the ephemeral outcome of one duplicate check.
type DuplicateVerdict struct {
	IsDuplicate bool          `json:"is_duplicate"`
	Matched     *StoredReport `json:"matched,omitempty"`
}

// Feedback is a doctor's correction or confirmation of an analysis outcome.
// Corrected fields are empty when the doctor agrees with the stored values;
// labeled rows feed the dataset export.
type Feedback struct {
	ID       uuid.UUID `json:"id"`
	ReportID uuid.UUID `json:"report_id"`
	Doctor   string    `json:"doctor"`
	Agrees   bool      `json:"agrees"`

	CorrectedDiagnosis string   `json:"corrected_diagnosis,omitempty"`
	CorrectedSeverity  Severity `json:"corrected_severity,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
