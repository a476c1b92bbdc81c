package fuzzy

// TermSet lists one trapezoid per term in low-to-high order
// (poor, fair, good, very_good, excellent).
type TermSet [NumTerms]Trapezoid

func (s TermSet) sets() map[Term]Trapezoid {
	m := make(map[Term]Trapezoid, NumTerms)
	for i, t := range orderedTerms {
		m[t] = s[i]
	}
	return m
}

// Table is the static calibration of one criterion.
type Table struct {
	Input  TermSet `json:"input"`
	Output TermSet `json:"output"`
}

// Criterion names covered by DefaultCalibrations.
const (
	CriterionGrammar      = "grammar"
	CriterionIdeas        = "ideas"
	CriterionOrganization = "organization"
	CriterionEvidence     = "evidence"
	CriterionLanguageTone = "language_tone"
	CriterionVocabulary   = "vocabulary"
	CriterionMechanics    = "mechanics"
)

func tr(a, b, c, d float64) Trapezoid { return MustTrapezoid(a, b, c, d) }

// standardOutput is the evenly banded output axis shared by grammar and mechanics.
var standardOutput = TermSet{
	tr(0.00, 0.05, 0.13, 0.20),
	tr(0.20, 0.25, 0.33, 0.40),
	tr(0.40, 0.45, 0.53, 0.60),
	tr(0.60, 0.65, 0.73, 0.80),
	tr(0.80, 0.85, 0.93, 1.00),
}

// DefaultCalibrations returns the breakpoint tables for the seven rubric
// criteria. Each call returns a fresh map.
func DefaultCalibrations() map[string]Table {
	return map[string]Table{
		CriterionGrammar: {
			Input: TermSet{
				tr(0.00, 0.40, 0.43, 0.45),
				tr(0.45, 0.48, 0.50, 0.53),
				tr(0.53, 0.55, 0.58, 0.63),
				tr(0.63, 0.73, 0.78, 0.83),
				tr(0.83, 0.88, 0.93, 1.00),
			},
			Output: standardOutput,
		},
		CriterionIdeas: {
			Input: TermSet{
				tr(0.00, 0.20, 0.35, 0.45),
				tr(0.45, 0.50, 0.60, 0.65),
				tr(0.65, 0.70, 0.75, 0.80),
				tr(0.80, 0.85, 0.90, 0.95),
				tr(0.90, 0.95, 0.98, 1.00),
			},
			Output: TermSet{
				tr(0.00, 0.25, 0.33, 0.40),
				tr(0.40, 0.45, 0.53, 0.60),
				// good reaches 0.83 so it meets very_good without a gap.
				tr(0.60, 0.65, 0.73, 0.83),
				tr(0.83, 0.87, 0.89, 0.91),
				tr(0.89, 0.95, 0.98, 1.00),
			},
		},
		CriterionOrganization: {
			Input: TermSet{
				tr(0.00, 0.10, 0.20, 0.25),
				tr(0.20, 0.30, 0.35, 0.45),
				tr(0.40, 0.50, 0.55, 0.65),
				tr(0.65, 0.70, 0.75, 0.80),
				tr(0.80, 0.85, 0.90, 1.00),
			},
			Output: TermSet{
				tr(0.00, 0.20, 0.30, 0.40),
				tr(0.40, 0.45, 0.50, 0.60),
				tr(0.60, 0.65, 0.70, 0.80),
				tr(0.80, 0.85, 0.90, 0.95),
				tr(0.95, 0.97, 0.98, 1.00),
			},
		},
		CriterionEvidence: {
			Input: TermSet{
				tr(0.00, 0.25, 0.30, 0.35),
				tr(0.30, 0.32, 0.33, 0.35),
				tr(0.35, 0.45, 0.50, 0.60),
				tr(0.60, 0.65, 0.70, 0.75),
				tr(0.75, 0.80, 0.90, 1.00),
			},
			Output: TermSet{
				tr(0.00, 0.13, 0.23, 0.30),
				tr(0.25, 0.30, 0.33, 0.40),
				tr(0.40, 0.45, 0.53, 0.60),
				tr(0.60, 0.65, 0.73, 0.85),
				tr(0.85, 0.95, 0.98, 1.00),
			},
		},
		CriterionLanguageTone: {
			Input: TermSet{
				tr(0.00, 0.50, 0.52, 0.55),
				tr(0.55, 0.58, 0.60, 0.62),
				tr(0.60, 0.65, 0.67, 0.69),
				tr(0.65, 0.67, 0.68, 0.70),
				tr(0.70, 0.80, 0.90, 1.00),
			},
			Output: TermSet{
				tr(0.00, 0.05, 0.13, 0.20),
				tr(0.20, 0.25, 0.33, 0.40),
				tr(0.40, 0.45, 0.53, 0.60),
				tr(0.60, 0.65, 0.73, 0.80),
				tr(0.80, 0.85, 0.93, 1.00),
			},
		},
		CriterionVocabulary: {
			Input: TermSet{
				tr(0.00, 0.10, 0.15, 0.20),
				tr(0.20, 0.22, 0.24, 0.25),
				tr(0.25, 0.30, 0.40, 0.45),
				tr(0.45, 0.50, 0.55, 0.60),
				tr(0.60, 0.75, 0.85, 1.00),
			},
			Output: TermSet{
				tr(0.00, 0.15, 0.23, 0.30),
				tr(0.30, 0.35, 0.43, 0.50),
				tr(0.50, 0.60, 0.65, 0.75),
				tr(0.73, 0.75, 0.78, 0.80),
				tr(0.80, 0.85, 0.93, 1.00),
			},
		},
		CriterionMechanics: {
			Input: TermSet{
				tr(0.00, 0.05, 0.13, 0.20),
				tr(0.20, 0.25, 0.28, 0.30),
				tr(0.30, 0.35, 0.43, 0.50),
				tr(0.50, 0.55, 0.63, 0.70),
				tr(0.70, 0.75, 0.93, 1.00),
			},
			Output: standardOutput,
		},
	}
}
