package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/fuzzy"
)

type curveSet struct {
	Variable string                   `json:"variable"`
	Terms    map[fuzzy.Term][]float64 `json:"terms"`
}

type fuzzyGraphResponse struct {
	Criterion string           `json:"criterion"`
	Display   string           `json:"display_name"`
	Universe  []float64        `json:"universe"`
	Input     curveSet         `json:"input"`
	Output    curveSet         `json:"output"`
	Rules     []string         `json:"rules"`
	Inference *fuzzy.Inference `json:"inference,omitempty"`
}

func curves(v *fuzzy.Variable) (curveSet, error) {
	out := curveSet{Variable: v.Name(), Terms: make(map[fuzzy.Term][]float64, fuzzy.NumTerms)}
	for _, t := range v.Terms() {
		c, err := v.Curve(t)
		if err != nil {
			return curveSet{}, err
		}
		out.Terms[t] = c
	}
	return out, nil
}

// fuzzyGraph returns the sampled membership curves of a criterion profile.
// With ?raw=x it also returns the inference trace for that raw score.
func (s *Server) fuzzyGraph(w http.ResponseWriter, r *http.Request) {
	c, err := domain.ParseCriterion(chi.URLParam(r, "criterion"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid criterion")
		return
	}
	p, err := s.deps.Scorer.Profiles().Profile(string(c))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	in, err := curves(p.Input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := curves(p.Output())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := fuzzyGraphResponse{
		Criterion: string(c),
		Display:   c.DisplayName(),
		Universe:  p.Input().Samples(),
		Input:     in,
		Output:    out,
	}
	for _, rule := range p.Rules() {
		resp.Rules = append(resp.Rules, rule.String())
	}

	if v := r.URL.Query().Get("raw"); v != "" {
		raw, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(raw) || math.IsInf(raw, 0) {
			s.fail(w, r, fmt.Errorf("%w: raw must be a finite number", domain.ErrInvalidRequest))
			return
		}
		inf := fuzzy.Explain(p, raw)
		resp.Inference = &inf
	}
	writeJSON(w, http.StatusOK, resp)
}
