package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RubricChoice selects one of the fixed criterion subsets.
type RubricChoice uint8

const (
	// RubricCore grades ideas, evidence, organization and language tone.
	RubricCore RubricChoice = iota + 1

	// RubricStandard grades ideas, evidence, language tone and grammar.
	RubricStandard

	// RubricFull grades all seven criteria.
	RubricFull
)

// DefaultRubric is used when a request does not name a rubric.
const DefaultRubric = RubricStandard

var rubricCriteria = map[RubricChoice][]Criterion{
	RubricCore: {
		CriterionIdeas,
		CriterionEvidence,
		CriterionOrganization,
		CriterionLanguageTone,
	},
	RubricStandard: {
		CriterionIdeas,
		CriterionEvidence,
		CriterionLanguageTone,
		CriterionGrammar,
	},
	RubricFull: {
		CriterionIdeas,
		CriterionEvidence,
		CriterionOrganization,
		CriterionLanguageTone,
		CriterionGrammar,
		CriterionMechanics,
		CriterionVocabulary,
	},
}

// ParseRubricChoice accepts "1", "2" or "3". An empty string selects
// DefaultRubric.
func ParseRubricChoice(s string) (RubricChoice, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultRubric, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(RubricCore) || n > int(RubricFull) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRubric, s)
	}
	return RubricChoice(n), nil
}

// Valid reports whether r is a known rubric.
func (r RubricChoice) Valid() bool { return r >= RubricCore && r <= RubricFull }

// Criteria returns the rubric's active criteria in rubric order.
// Unknown rubrics have no criteria.
func (r RubricChoice) Criteria() []Criterion {
	src := rubricCriteria[r]
	out := make([]Criterion, len(src))
	copy(out, src)
	return out
}

// String returns the choice identifier ("1", "2" or "3").
func (r RubricChoice) String() string { return strconv.Itoa(int(r)) }
