package csvio

import (
	"bytes"
	"encoding/csv"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

func TestRead(t *testing.T) {
	in := "\ufeffEssay_Text,prompt,grammar,Ideas,notes\n" +
		"\"First, essay\",P1,0.95,0.9,x\n" +
		"Second,P2,,abc,y\n"

	essays, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, essays, 2)

	assert.Equal(t, "essay_0", essays[0].ID)
	assert.Equal(t, "First, essay", essays[0].Text)
	assert.Equal(t, "P1", essays[0].Prompt)
	assert.Equal(t, domain.RawScoreSet{
		domain.CriterionGrammar: 0.95,
		domain.CriterionIdeas:   0.9,
	}, essays[0].Raw)

	assert.Equal(t, "essay_1", essays[1].ID)
	assert.Nil(t, essays[1].Raw, "blank and unparsable cells are absent")
}

func TestRead_EssayIDColumn(t *testing.T) {
	in := "essay_id,essay_text,prompt\n" +
		"a-1,Text,P\n" +
		" ,Other,P\n"

	essays, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "a-1", essays[0].ID)
	assert.Equal(t, "essay_1", essays[1].ID, "blank id is generated")
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"empty", "", ErrMissingColumn},
		{"no prompt", "essay_text\nx\n", ErrMissingColumn},
		{"no text", "prompt,essay_id\nx,1\n", ErrMissingColumn},
		{"header only", "essay_text,prompt\n", ErrNoRows},
		{"ragged row", "essay_text,prompt\na,b,c\n", csv.ErrFieldCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWriteAll(t *testing.T) {
	active := domain.RubricStandard.Criteria()
	essays := []domain.EssayRecord{
		{ID: "e1", Text: "Line one\nline two", Prompt: "P"},
		{ID: "e2", Text: "Failed", Prompt: "P"},
	}
	results := []*domain.ScoredEssay{{
		EssayID: "e1",
		Fuzzy: map[domain.Criterion]float64{
			domain.CriterionIdeas:        0.874,
			domain.CriterionEvidence:     0.1605,
			domain.CriterionLanguageTone: 0.5,
			domain.CriterionGrammar:      0.89694,
		},
		Scaled: map[string]string{
			"5_point_score":   "3.4/5",
			"20_point_score":  "12.5/20",
			"letter_grade":    "C",
			"letter_grade_pm": "D-",
			"100_point_score": "60.8/100",
			"50_point_score":  "30.4/50",
		},
	}, nil}

	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, active, essays, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"essay_id", "essay_text", "prompt",
		"fuzzy_ideas", "fuzzy_evidence", "fuzzy_language_tone", "fuzzy_grammar",
		"5_point_score", "20_point_score", "letter_grade", "letter_grade_pm", "100_point_score", "50_point_score",
	}, rows[0])
	assert.Equal(t, []string{
		"e1", "Line one\nline two", "P",
		"0.8740", "0.1605", "0.5000", "0.8969",
		"3.4/5", "12.5/20", "C", "D-", "60.8/100", "30.4/50",
	}, rows[1])
	assert.Equal(t, []string{"e2", "Failed", "P", "", "", "", "", "", "", "", "", "", ""}, rows[2])
}

func TestWriteAll_DuplicateIDsKeepOwnScores(t *testing.T) {
	in := "essay_id,essay_text,prompt,grammar\nx,low,p,0.05\nx,high,p,0.95\n"
	essays, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, essays, 2)

	score := func(grade string, fz float64) *domain.ScoredEssay {
		return &domain.ScoredEssay{
			EssayID: "x",
			Fuzzy:   map[domain.Criterion]float64{domain.CriterionGrammar: fz},
			Scaled:  map[string]string{"100_point_score": grade},
		}
	}
	results := []*domain.ScoredEssay{score("14.1/100", 0.1), score("92.0/100", 0.95)}

	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, domain.RubricStandard.Criteria(), essays, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	col := slices.Index(rows[0], "100_point_score")
	require.GreaterOrEqual(t, col, 0)
	assert.Equal(t, "low", rows[1][1])
	assert.Equal(t, "14.1/100", rows[1][col])
	assert.Equal(t, "high", rows[2][1])
	assert.Equal(t, "92.0/100", rows[2][col])
}

func TestReadWriteRoundTripPreservesOrder(t *testing.T) {
	in := "essay_id,essay_text,prompt\nz,1,P\na,2,P\nm,3,P\n"
	essays, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, domain.RubricCore.Criteria(), essays, nil))

	back, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, back, 3)
	for i, id := range []string{"z", "a", "m"} {
		assert.Equal(t, id, back[i].ID)
	}
}

func FuzzRead(f *testing.F) {
	f.Add("essay_text,prompt,grammar\na,b,0.5\n")
	f.Add("essay_id,essay_text,prompt\n,,\n")
	f.Add("prompt,essay_text,ideas,ideas\nx,y,NaN,1e309\n")
	f.Fuzz(func(t *testing.T, in string) {
		essays, err := Read(strings.NewReader(in))
		if err != nil {
			return
		}
		for _, e := range essays {
			if e.ID == "" {
				t.Fatalf("empty essay id from %q", in)
			}
			for c := range e.Raw {
				if !c.Valid() {
					t.Fatalf("unknown criterion %q", c)
				}
			}
		}
	})
}
