package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/pkg/errors"
)

// =========================================================================
// Mocks and helpers
// =========================================================================

type mockRepo struct {
	findSameKeyFn func(ctx context.Context, fiscalCode, examTitle string, examDate time.Time) ([]*report.StoredReport, error)
	calls         int
	lastDate      time.Time
}

func (m *mockRepo) Save(ctx context.Context, r *report.StoredReport) (*report.StoredReport, error) {
	return r, nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*report.StoredReport, error) {
	return nil, errors.NotFound("report not found")
}

func (m *mockRepo) FindLatest(ctx context.Context, fiscalCode, examTitle string) (*report.StoredReport, error) {
	return nil, nil
}

func (m *mockRepo) FindLatestByTitle(ctx context.Context, examTitle string) (*report.StoredReport, error) {
	return nil, nil
}

func (m *mockRepo) FindSameKey(ctx context.Context, fiscalCode, examTitle string, examDate time.Time) ([]*report.StoredReport, error) {
	m.calls++
	m.lastDate = examDate
	if m.findSameKeyFn != nil {
		return m.findSameKeyFn(ctx, fiscalCode, examTitle, examDate)
	}
	return nil, nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, fiscalCode, examTitle string, limit, offset int) ([]*report.StoredReport, error) {
	return nil, nil
}

func testDedupConfig() config.DedupConfig {
	return config.DedupConfig{
		Laboratory:   config.DedupThreshold{MinKeys: 3, MinMatchRatio: 0.80},
		Imaging:      config.DedupThreshold{MinKeys: 2, MinMatchRatio: 0.70},
		Pathology:    config.DedupThreshold{MinKeys: 2, MinMatchRatio: 0.75},
		Unclassified: config.DedupThreshold{MinKeys: 2, MinMatchRatio: 0.60},
	}
}

func newTestDetector(t *testing.T, repo report.Repository) *Detector {
	t.Helper()
	d, err := NewDetector(testDedupConfig(), repo, nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

const testCF = "RSSMRA80A01H501U"

const urineText = `ESAME CHIMICO FISICO DELLE URINE
Colore: GIALLO PAGLIERINO
Aspetto: VELATO
Ph: 5,5
Glucosio: ASSENTE
Proteine: 15.0
Emoglobina: 0,50`

func labMeta(text string) *report.ExtractedMetadata {
	return &report.ExtractedMetadata{
		RawText:    text,
		FiscalCode: testCF,
		ExamTitle:  "Esame Chimico Fisico Delle Urine",
		ExamDate:   "01/02/2024",
		Category:   report.CategoryLaboratory,
	}
}

func storedWithText(text string) *report.StoredReport {
	return &report.StoredReport{ID: uuid.New(), RawText: text}
}

// =========================================================================
// Key extraction
// =========================================================================

func TestExtractKeys_Laboratory(t *testing.T) {
	keys := extractKeys(urineText, report.CategoryLaboratory)

	want := map[string]string{
		"PROTEINE":   "15.0",
		"GLUCOSIO":   "ASSENTE",
		"EMOGLOBINA": "0.50",
		"PH":         "5.5",
		"COLORE":     "GIALLO PAGLIERINO",
		"ASPETTO":    "VELATO",
	}
	for k, v := range want {
		if keys[k] != v {
			t.Errorf("key %s = %q, want %q (all: %v)", k, keys[k], v, keys)
		}
	}
}

func TestExtractKeys_CommaAndDotCompareEqual(t *testing.T) {
	a := extractKeys("Emoglobina: 0,50", report.CategoryLaboratory)
	b := extractKeys("Emoglobina: 0.50", report.CategoryLaboratory)
	if a["EMOGLOBINA"] != b["EMOGLOBINA"] {
		t.Errorf("decimal separators not unified: %q vs %q", a["EMOGLOBINA"], b["EMOGLOBINA"])
	}
}

func TestExtractKeys_Pathology(t *testing.T) {
	text := `ESAME ISTOLOGICO
Carcinoma epatocellulare ben differenziato
Grado: II
Ki-67: 15 %
Margini di resezione: liberi`

	keys := extractKeys(text, report.CategoryPathology)
	if keys["CARCINOMA"] == "" {
		t.Errorf("carcinoma finding missing: %v", keys)
	}
	if keys["GRADO"] != "II" {
		t.Errorf("grado = %q", keys["GRADO"])
	}
	if keys["MARGINI"] != "LIBERI" {
		t.Errorf("margini = %q", keys["MARGINI"])
	}
}

// =========================================================================
// Duplicate decisions
// =========================================================================

func TestIsDuplicate_IdenticalLabReport(t *testing.T) {
	stored := storedWithText(urineText)
	repo := &mockRepo{findSameKeyFn: func(ctx context.Context, cf, title string, date time.Time) ([]*report.StoredReport, error) {
		return []*report.StoredReport{stored}, nil
	}}
	d := newTestDetector(t, repo)

	verdict := d.IsDuplicate(context.Background(), labMeta(urineText))
	if !verdict.IsDuplicate {
		t.Fatal("identical laboratory report not flagged as duplicate")
	}
	if verdict.Matched == nil || verdict.Matched.ID != stored.ID {
		t.Errorf("matched report not reported: %+v", verdict.Matched)
	}
}

func TestIsDuplicate_ChangedValuesNotDuplicate(t *testing.T) {
	changed := `ESAME CHIMICO FISICO DELLE URINE
Colore: GIALLO PAGLIERINO
Aspetto: VELATO
Ph: 6,5
Glucosio: PRESENTE
Proteine: 45.0
Emoglobina: 2,0`

	repo := &mockRepo{findSameKeyFn: func(ctx context.Context, cf, title string, date time.Time) ([]*report.StoredReport, error) {
		return []*report.StoredReport{storedWithText(urineText)}, nil
	}}
	d := newTestDetector(t, repo)

	if verdict := d.IsDuplicate(context.Background(), labMeta(changed)); verdict.IsDuplicate {
		t.Error("report with four changed values flagged as duplicate")
	}
}

func TestIsDuplicate_QueriesExactExamDate(t *testing.T) {
	repo := &mockRepo{}
	d := newTestDetector(t, repo)

	d.IsDuplicate(context.Background(), labMeta(urineText))

	if repo.calls != 1 {
		t.Fatalf("FindSameKey called %d times", repo.calls)
	}
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !repo.lastDate.Equal(want) {
		t.Errorf("queried date %v, want %v", repo.lastDate, want)
	}
}

func TestIsDuplicate_NoIdentifierSkipsCheck(t *testing.T) {
	repo := &mockRepo{}
	d := newTestDetector(t, repo)

	meta := labMeta(urineText)
	meta.FiscalCode = ""
	if verdict := d.IsDuplicate(context.Background(), meta); verdict.IsDuplicate {
		t.Error("identifier-less document flagged as duplicate")
	}
	if repo.calls != 0 {
		t.Errorf("repository queried without a full key: %d calls", repo.calls)
	}
}

func TestIsDuplicate_MissingDateSkipsCheck(t *testing.T) {
	repo := &mockRepo{}
	d := newTestDetector(t, repo)

	meta := labMeta(urineText)
	meta.ExamDate = ""
	d.IsDuplicate(context.Background(), meta)
	if repo.calls != 0 {
		t.Errorf("repository queried without an exam date: %d calls", repo.calls)
	}
}

func TestIsDuplicate_LookupFailureTreatedAsNew(t *testing.T) {
	repo := &mockRepo{findSameKeyFn: func(ctx context.Context, cf, title string, date time.Time) ([]*report.StoredReport, error) {
		return nil, errors.New(errors.ErrCodeDatabaseError, "connection reset")
	}}
	d := newTestDetector(t, repo)

	if verdict := d.IsDuplicate(context.Background(), labMeta(urineText)); verdict.IsDuplicate {
		t.Error("lookup failure must favor saving, not dropping")
	}
}

func TestIsDuplicate_FallsThroughCandidates(t *testing.T) {
	different := `ESAME CHIMICO FISICO DELLE URINE
Colore: ROSSO
Aspetto: TORBIDO
Ph: 8,0
Glucosio: PRESENTE
Proteine: 120
Emoglobina: 9,0`

	stored := storedWithText(urineText)
	repo := &mockRepo{findSameKeyFn: func(ctx context.Context, cf, title string, date time.Time) ([]*report.StoredReport, error) {
		return []*report.StoredReport{storedWithText(different), stored}, nil
	}}
	d := newTestDetector(t, repo)

	verdict := d.IsDuplicate(context.Background(), labMeta(urineText))
	if !verdict.IsDuplicate {
		t.Fatal("second candidate should have matched")
	}
	if verdict.Matched.ID != stored.ID {
		t.Error("wrong candidate reported as the match")
	}
}

func TestIsDuplicate_TooFewOverlappingKeys(t *testing.T) {
	// Only two keys in common: below the laboratory minimum of three.
	sparse := "Proteine: 15.0\nGlucosio: ASSENTE"
	repo := &mockRepo{findSameKeyFn: func(ctx context.Context, cf, title string, date time.Time) ([]*report.StoredReport, error) {
		return []*report.StoredReport{storedWithText(sparse)}, nil
	}}
	d := newTestDetector(t, repo)

	if verdict := d.IsDuplicate(context.Background(), labMeta(sparse)); verdict.IsDuplicate {
		t.Error("two overlapping keys cleared the laboratory threshold")
	}
}
