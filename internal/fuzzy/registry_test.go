package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfiles(t *testing.T) {
	a, err := DefaultProfiles()
	require.NoError(t, err)
	b, err := DefaultProfiles()
	require.NoError(t, err)
	assert.Same(t, a, b, "default set is built once")

	assert.Equal(t, []string{
		CriterionEvidence,
		CriterionGrammar,
		CriterionIdeas,
		CriterionLanguageTone,
		CriterionMechanics,
		CriterionOrganization,
		CriterionVocabulary,
	}, a.Criteria())
}

func TestProfileSet_Lookup(t *testing.T) {
	ps := defaultSet(t)

	p, err := ps.Profile(CriterionOrganization)
	require.NoError(t, err)
	assert.Equal(t, CriterionOrganization, p.Criterion())

	_, err = ps.Profile("creativity")
	require.ErrorIs(t, err, ErrProfileNotFound)

	_, err = ps.Infer("creativity", 0.5)
	require.ErrorIs(t, err, ErrProfileNotFound)

	_, err = ps.Explain("creativity", 0.5)
	require.ErrorIs(t, err, ErrProfileNotFound)

	got, err := ps.Infer(CriterionOrganization, 2)
	require.NoError(t, err, "invalid raw scores are not errors")
	assert.Equal(t, NeutralScore, got)
}

func TestProfileSet_CriteriaIsCopy(t *testing.T) {
	ps := defaultSet(t)
	names := ps.Criteria()
	names[0] = "mutated"
	assert.NotEqual(t, "mutated", ps.Criteria()[0])
}

func TestNewProfileSet_PropagatesErrors(t *testing.T) {
	bad := DefaultCalibrations()
	g := bad[CriterionGrammar]
	g.Input[0] = MustTrapezoid(0.1, 0.4, 0.43, 0.45)
	bad[CriterionGrammar] = g

	_, err := NewProfileSet(bad)
	require.ErrorIs(t, err, ErrCoverageGap)
}
