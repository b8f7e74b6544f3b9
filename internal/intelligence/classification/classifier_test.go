package classification

import (
	"strings"
	"testing"

	"github.com/referta/referta/internal/domain/report"
)

func TestClassify_LaboratoryKeywords(t *testing.T) {
	c := NewClassifier(nil)
	got := c.Classify("GLUCOSIO 95 mg/dl\nCREATININA 1.0 mg/dl\nUREA 30 mg/dl", "")
	if got != report.CategoryLaboratory {
		t.Errorf("got %s, want laboratory", got)
	}
}

func TestClassify_KeywordOrderIrrelevant(t *testing.T) {
	c := NewClassifier(nil)
	keywords := []string{"GLUCOSIO", "CREATININA", "POTASSIO"}

	forward := c.Classify(strings.Join(keywords, "\n"), "")
	reverse := c.Classify(keywords[2]+"\n"+keywords[1]+"\n"+keywords[0], "")

	if forward != report.CategoryLaboratory || reverse != forward {
		t.Errorf("order changed the verdict: %s vs %s", forward, reverse)
	}
}

func TestClassify_Imaging(t *testing.T) {
	c := NewClassifier(nil)
	got := c.Classify("ECOGRAFIA DELL'ADDOME COMPLETO\nFegato di dimensioni regolari", "")
	if got != report.CategoryImaging {
		t.Errorf("got %s, want imaging", got)
	}
}

func TestClassify_Pathology(t *testing.T) {
	c := NewClassifier(nil)
	got := c.Classify("ESAME ISTOLOGICO\nFrammenti con displasia lieve", "")
	if got != report.CategoryPathology {
		t.Errorf("got %s, want pathology", got)
	}
}

func TestClassify_LaboratoryWinsTies(t *testing.T) {
	c := NewClassifier(nil)
	// Two imaging hits and two laboratory hits, no structured rows.
	got := c.Classify("TORACE ADDOME GLUCOSIO CREATININA", "")
	if got != report.CategoryLaboratory {
		t.Errorf("got %s, want laboratory on tie", got)
	}
}

func TestClassify_DensityBonus(t *testing.T) {
	c := NewClassifier(nil)
	// No family keywords; three tabular rows push laboratory past the
	// threshold on the density bonus alone.
	got := c.Classify("XYZAB 12.5 mg/dl\nQWRTZ 3.4 g/dl\nPQRST 7.7 %", "")
	if got != report.CategoryLaboratory {
		t.Errorf("got %s, want laboratory", got)
	}
}

func TestClassify_TitleContributes(t *testing.T) {
	c := NewClassifier(nil)
	got := c.Classify("esito in allegato", "ECOGRAFIA ADDOME")
	if got != report.CategoryImaging {
		t.Errorf("got %s, want imaging from title keywords", got)
	}
}

func TestClassify_FallbackPresenceChecks(t *testing.T) {
	c := NewClassifier(nil)

	if got := c.Classify("ecografia di controllo", ""); got != report.CategoryImaging {
		t.Errorf("single imaging term: got %s, want imaging", got)
	}
	if got := c.Classify("biopsia programmata", ""); got != report.CategoryPathology {
		t.Errorf("single pathology term: got %s, want pathology", got)
	}
}

func TestClassify_DefaultLaboratory(t *testing.T) {
	c := NewClassifier(nil)
	if got := c.Classify("testo breve qualunque", ""); got != report.CategoryLaboratory {
		t.Errorf("got %s, want laboratory default", got)
	}
}
