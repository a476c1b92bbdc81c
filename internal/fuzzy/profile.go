package fuzzy

import (
	"errors"
	"fmt"
)

// Variable names used by every criterion profile.
const (
	InputVariable  = "score"
	OutputVariable = "category_score"
)

// ErrInvalidProfile indicates a profile with missing variables or a rule that
// references an unknown term.
var ErrInvalidProfile = errors.New("invalid criterion profile")

// Rule is a single-antecedent Mamdani rule: IF score is If THEN category_score is Then.
type Rule struct {
	If   Term `json:"if"`
	Then Term `json:"then"`
}

// String renders the rule in its linguistic form.
func (r Rule) String() string {
	return fmt.Sprintf("IF %s is %s THEN %s is %s", InputVariable, r.If, OutputVariable, r.Then)
}

// IdentityRules maps every input term to the identically named output term.
func IdentityRules() []Rule {
	rules := make([]Rule, 0, NumTerms)
	for _, t := range orderedTerms {
		rules = append(rules, Rule{If: t, Then: t})
	}
	return rules
}

// compiledRule holds term indices so inference avoids name lookups.
type compiledRule struct {
	in, out int
}

// Profile is the calibration of one rubric criterion: an input variable over
// raw scores, an output variable over calibrated scores, and the rule table
// connecting them. A Profile is immutable once built.
type Profile struct {
	criterion string
	input     *Variable
	output    *Variable
	rules     []Rule
	compiled  []compiledRule
}

// NewProfile assembles a profile and resolves its rule table.
func NewProfile(criterion string, input, output *Variable, rules []Rule) (*Profile, error) {
	if criterion == "" {
		return nil, fmt.Errorf("%w: empty criterion name", ErrInvalidProfile)
	}
	if input == nil || output == nil {
		return nil, fmt.Errorf("%w: %s: input and output variables are required", ErrInvalidProfile, criterion)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: %s: empty rule table", ErrInvalidProfile, criterion)
	}

	p := &Profile{
		criterion: criterion,
		input:     input,
		output:    output,
		rules:     make([]Rule, len(rules)),
		compiled:  make([]compiledRule, len(rules)),
	}
	copy(p.rules, rules)
	for i, r := range rules {
		in, out := termIndex(r.If), termIndex(r.Then)
		if in < 0 || out < 0 {
			return nil, fmt.Errorf("%w: %s: rule %d (%s): %w", ErrInvalidProfile, criterion, i, r, ErrUnknownTerm)
		}
		p.compiled[i] = compiledRule{in: in, out: out}
	}
	return p, nil
}

// NewProfileFromTable builds both variables from a calibration table over the
// default universe and wires the identity rule table.
func NewProfileFromTable(criterion string, table Table) (*Profile, error) {
	input, err := NewVariable(InputVariable, DefaultUniverse, table.Input.sets())
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", criterion, err)
	}
	output, err := NewVariable(OutputVariable, DefaultUniverse, table.Output.sets())
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", criterion, err)
	}
	return NewProfile(criterion, input, output, IdentityRules())
}

// Criterion returns the rubric criterion this profile calibrates.
func (p *Profile) Criterion() string { return p.criterion }

// Input returns the raw-score variable.
func (p *Profile) Input() *Variable { return p.input }

// Output returns the calibrated-score variable.
func (p *Profile) Output() *Variable { return p.output }

// Rules returns a copy of the rule table.
func (p *Profile) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}
