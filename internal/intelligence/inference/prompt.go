package inference

import "fmt"

// ComparisonPrompt builds the two-document trend instruction.  The model is
// asked for a strict JSON payload; ParseComparison maps the Italian status
// vocabulary back onto the engine verdicts.
func ComparisonPrompt(previousText, currentText string) string {
	return fmt.Sprintf(`Sei un assistente clinico esperto. Hai due referti medici in italiano dello stesso paziente:

• Referto precedente:
"""%s"""

• Referto attuale:
"""%s"""

Confrontali e indica se la situazione clinica è:
- "peggiorata"
- "migliorata"
- "invariata"

Rispondi ESCLUSIVAMENTE in JSON nel seguente formato:
{
  "status": "peggiorata | migliorata | invariata",
  "explanation": "Breve spiegazione delle principali differenze cliniche"
}`, previousText, currentText)
}

// DiagnosisPrompt asks for the principal diagnosis and a severity grade.
func DiagnosisPrompt(reportText string) string {
	return fmt.Sprintf(`Referto medico:
"""
%s
"""

Fornisci la diagnosi principale e la classificazione del livello di gravità (lieve, moderato, grave). Rispondi solo in questo formato JSON:
{
    "diagnosis": "...",
    "classification": "lieve | moderato | grave"
}`, reportText)
}
