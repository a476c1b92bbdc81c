package domain

import (
	"fmt"
	"strings"
)

// Criterion identifies one rubric dimension an essay is graded on.
// Using a closed set of typed constants lets parsing reject unknown names at
// the boundary instead of deep inside the scoring pipeline.
type Criterion string

const (
	// CriterionIdeas measures relevance and development of ideas against the prompt.
	CriterionIdeas Criterion = "ideas"

	// CriterionEvidence measures use of supporting evidence.
	CriterionEvidence Criterion = "evidence"

	// CriterionOrganization measures structure and paragraph flow.
	CriterionOrganization Criterion = "organization"

	// CriterionLanguageTone measures register and tone.
	CriterionLanguageTone Criterion = "language_tone"

	// CriterionGrammar measures grammatical correctness.
	CriterionGrammar Criterion = "grammar"

	// CriterionMechanics measures spelling and punctuation.
	CriterionMechanics Criterion = "mechanics"

	// CriterionVocabulary measures lexical range and precision.
	CriterionVocabulary Criterion = "vocabulary"
)

var allCriteria = []Criterion{
	CriterionIdeas,
	CriterionEvidence,
	CriterionOrganization,
	CriterionLanguageTone,
	CriterionGrammar,
	CriterionMechanics,
	CriterionVocabulary,
}

var criterionAliases = map[string]Criterion{
	"structure":   CriterionOrganization,
	"tone":        CriterionLanguageTone,
	"language":    CriterionLanguageTone,
	"vocab":       CriterionVocabulary,
	"mp":          CriterionMechanics,
	"punctuation": CriterionMechanics,
}

// AllCriteria returns every criterion in canonical order.
func AllCriteria() []Criterion {
	out := make([]Criterion, len(allCriteria))
	copy(out, allCriteria)
	return out
}

// ParseCriterion resolves a criterion name. Matching ignores case and treats
// spaces and hyphens as underscores; a few legacy short names are accepted.
func ParseCriterion(s string) (Criterion, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, c := range allCriteria {
		if string(c) == norm {
			return c, nil
		}
	}
	if c, ok := criterionAliases[norm]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCriterion, s)
}

// Valid reports whether c is one of the known criteria.
func (c Criterion) Valid() bool {
	for _, k := range allCriteria {
		if k == c {
			return true
		}
	}
	return false
}

// String returns the criterion name.
func (c Criterion) String() string { return string(c) }

// DisplayName returns a human-readable label.
func (c Criterion) DisplayName() string {
	switch c {
	case CriterionLanguageTone:
		return "Language Tone"
	case "":
		return ""
	default:
		s := string(c)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// FuzzyColumn returns the CSV column holding this criterion's fuzzy score.
func (c Criterion) FuzzyColumn() string { return "fuzzy_" + string(c) }
