// Package csvio reads essay batches from CSV and writes scored results back
// out in the same row order.
//
// Input files need essay_text and prompt columns. An essay_id column is
// optional; rows without one are named essay_<row>, counting from zero.
// Any column whose header names a criterion is read as a precomputed raw
// score. Output files carry the essay columns, one fuzzy_<criterion> column
// per active criterion and one column per output scale.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

// Column names shared by input and output files.
const (
	ColumnEssayID   = "essay_id"
	ColumnEssayText = "essay_text"
	ColumnPrompt    = "prompt"
)

var (
	// ErrMissingColumn is returned when a required input column is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrNoRows is returned for a file with a header but no essays.
	ErrNoRows = errors.New("csv contains no essays")
)

// Read parses every essay in r. Blank or unparsable raw score cells are
// left absent so the engine treats them as missing.
func Read(r io.Reader) ([]domain.EssayRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var essays []domain.EssayRecord
	for i := 0; ; i++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", i+1, err)
		}
		essays = append(essays, cols.record(i, rec))
	}
	if len(essays) == 0 {
		return nil, ErrNoRows
	}
	return essays, nil
}

type columns struct {
	id, text, prompt int
	raw              map[domain.Criterion]int
}

func mapHeader(header []string) (columns, error) {
	cols := columns{id: -1, text: -1, prompt: -1, raw: make(map[domain.Criterion]int)}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch name {
		case ColumnEssayID:
			cols.id = i
		case ColumnEssayText:
			cols.text = i
		case ColumnPrompt:
			cols.prompt = i
		default:
			if c, err := domain.ParseCriterion(name); err == nil {
				if _, dup := cols.raw[c]; !dup {
					cols.raw[c] = i
				}
			}
		}
	}

	var missing []string
	if cols.text < 0 {
		missing = append(missing, ColumnEssayText)
	}
	if cols.prompt < 0 {
		missing = append(missing, ColumnPrompt)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

func (c columns) record(i int, rec []string) domain.EssayRecord {
	e := domain.EssayRecord{
		Text:   rec[c.text],
		Prompt: rec[c.prompt],
	}
	if c.id >= 0 {
		e.ID = strings.TrimSpace(rec[c.id])
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("essay_%d", i)
	}
	for crit, idx := range c.raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		if e.Raw == nil {
			e.Raw = make(domain.RawScoreSet, len(c.raw))
		}
		e.Raw[crit] = v
	}
	return e
}

// Writer writes scored essays as CSV rows.
type Writer struct {
	cw     *csv.Writer
	active []domain.Criterion
	scales []domain.Scale
}

// NewWriter writes the header for the given active criteria.
func NewWriter(w io.Writer, active []domain.Criterion) (*Writer, error) {
	sw := &Writer{
		cw:     csv.NewWriter(w),
		active: active,
		scales: domain.AllScales(),
	}
	header := make([]string, 0, 3+len(active)+len(sw.scales))
	header = append(header, ColumnEssayID, ColumnEssayText, ColumnPrompt)
	for _, c := range active {
		header = append(header, c.FuzzyColumn())
	}
	for _, s := range sw.scales {
		header = append(header, s.Column())
	}
	if err := sw.cw.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return sw, nil
}

// Write appends one row. A nil result writes the essay with empty score
// columns, which is how failed essays appear in the output.
func (w *Writer) Write(e domain.EssayRecord, s *domain.ScoredEssay) error {
	row := make([]string, 0, 3+len(w.active)+len(w.scales))
	row = append(row, e.ID, e.Text, e.Prompt)
	for _, c := range w.active {
		cell := ""
		if s != nil {
			if v, ok := s.Fuzzy[c]; ok {
				cell = strconv.FormatFloat(v, 'f', 4, 64)
			}
		}
		row = append(row, cell)
	}
	for _, sc := range w.scales {
		cell := ""
		if s != nil {
			cell = s.Scaled[sc.Column()]
		}
		row = append(row, cell)
	}
	if err := w.cw.Write(row); err != nil {
		return fmt.Errorf("write row %s: %w", e.ID, err)
	}
	return nil
}

// Flush flushes buffered rows and reports any write error.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

// WriteAll writes essays in order, pairing essays[i] with results[i]. Rows
// past the end of results or with a nil result get empty score columns.
// Pairing is positional so rows sharing an essay_id keep their own scores.
func WriteAll(out io.Writer, active []domain.Criterion, essays []domain.EssayRecord, results []*domain.ScoredEssay) error {
	w, err := NewWriter(out, active)
	if err != nil {
		return err
	}
	for i, e := range essays {
		var res *domain.ScoredEssay
		if i < len(results) {
			res = results[i]
		}
		if err := w.Write(e, res); err != nil {
			return err
		}
	}
	return w.Flush()
}
