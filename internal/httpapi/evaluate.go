package httpapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ahrav/go-essaygrade/internal/cache"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/scale"
)

// evaluateTextRequest mirrors the single-essay form: prompt must be present
// but may be empty.
type evaluateTextRequest struct {
	EssayID      string               `json:"essay_id"`
	EssayText    string               `json:"essay_text" validate:"required"`
	Prompt       *string              `json:"prompt" validate:"required"`
	RubricChoice *domain.RubricChoice `json:"rubric_choice"`
	Weights      map[string]float64   `json:"weights"`
	ScaleChoice  *domain.Scale        `json:"scale_choice"`
	RawScores    map[string]float64   `json:"raw_scores"`
}

type evaluateTextResponse struct {
	EssayID        string                       `json:"essay_id"`
	ResultID       string                       `json:"result_id,omitempty"`
	OverallScore   float64                      `json:"overall_score"`
	CriteriaScores map[domain.Criterion]float64 `json:"criteria_scores"`
	Weights        domain.WeightMap             `json:"weights"`
	ScaleType      string                       `json:"scale_type"`
	ScaleName      string                       `json:"scale_name"`
	FinalScore     string                       `json:"final_score"`
	ScaledScores   map[string]string            `json:"scaled_scores"`
	Band           string                       `json:"band"`
	IgnoredWeights []string                     `json:"ignored_weights,omitempty"`
	Cached         bool                         `json:"cached"`
}

// evalConfig resolves request choices against the server defaults and
// normalizes weights over the rubric's criteria. Weight names that are not
// criteria are returned rather than rejected.
func (s *Server) evalConfig(
	rubric *domain.RubricChoice,
	weights map[string]float64,
	sc *domain.Scale,
) (domain.EvaluationConfig, []string, error) {
	r := s.deps.DefaultRubric
	if rubric != nil {
		r = *rubric
	}
	out := s.deps.DefaultScale
	if sc != nil {
		out = *sc
	}
	w, ignored := domain.ParseWeights(weights)
	cfg, err := domain.NewEvaluationConfig(r, w, out)
	return cfg, ignored, err
}

func parseRawScores(in map[string]float64) (domain.RawScoreSet, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(domain.RawScoreSet, len(in))
	for name, v := range in {
		c, err := domain.ParseCriterion(name)
		if err != nil {
			return nil, fmt.Errorf("%w: raw_scores: %w", domain.ErrInvalidRequest, err)
		}
		out[c] = v
	}
	return out, nil
}

func (s *Server) evaluateText(w http.ResponseWriter, r *http.Request) {
	var req evaluateTextRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	cfg, ignored, err := s.evalConfig(req.RubricChoice, req.Weights, req.ScaleChoice)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raw, err := parseRawScores(req.RawScores)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	essay := domain.EssayRecord{
		ID:     req.EssayID,
		Text:   req.EssayText,
		Prompt: *req.Prompt,
		Raw:    raw,
	}
	if essay.ID == "" {
		essay.ID = uuid.NewString()
	}

	ctx := r.Context()
	key := cache.Key(essay, cfg)
	result, cached := s.deps.Cache.Get(ctx, key)
	if cached {
		result.EssayID = essay.ID
	} else {
		result, err = s.deps.Scorer.Score(ctx, essay, cfg)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.deps.Cache.Set(ctx, key, result)
	}

	resp := evaluateTextResponse{
		EssayID:        result.EssayID,
		OverallScore:   result.Overall,
		CriteriaScores: result.Fuzzy,
		Weights:        result.Weights,
		ScaleType:      cfg.Scale.String(),
		ScaleName:      cfg.Scale.Name(),
		FinalScore:     result.Final,
		ScaledScores:   result.Scaled,
		Band:           result.Band,
		IgnoredWeights: ignored,
		Cached:         cached,
	}
	if s.deps.Results != nil {
		id, err := s.deps.Results.Save(ctx, "", result)
		if err != nil {
			s.logger.WarnContext(ctx, "result not stored", "essay_id", result.EssayID, "error", err)
		} else {
			resp.ResultID = id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type convertScoreRequest struct {
	Score *float64 `json:"score" validate:"required"`
	Scale any      `json:"scale"`
}

type convertScoreResponse struct {
	Original  float64 `json:"original"`
	Converted string  `json:"converted"`
	ScaleType string  `json:"scale_type"`
}

// convertScore renders a score on a scale. An unrecognized scale is not an
// error: the score is rendered with two decimals under "Unknown scale".
func (s *Server) convertScore(w http.ResponseWriter, r *http.Request) {
	var req convertScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	choice := ""
	if req.Scale != nil {
		choice = fmt.Sprint(req.Scale)
	}
	sc, err := domain.ParseScale(choice)
	if err != nil {
		sc = 0
	}
	if choice == "" {
		sc = s.deps.DefaultScale
	}
	writeJSON(w, http.StatusOK, convertScoreResponse{
		Original:  *req.Score,
		Converted: scale.Convert(*req.Score, sc),
		ScaleType: sc.Name(),
	})
}
