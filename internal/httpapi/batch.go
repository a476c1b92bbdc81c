package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ahrav/go-essaygrade/internal/csvio"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/storage"
	"github.com/ahrav/go-essaygrade/internal/store"
	"github.com/ahrav/go-essaygrade/internal/workflow"
)

// upload scores a multipart CSV upload and returns the scored CSV as an
// attachment. Unparsable weights JSON is treated as no weights.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.deps.BodyLimit); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "no file part")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeErr(w, http.StatusBadRequest, "no file selected")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeErr(w, http.StatusBadRequest, "file type not allowed, upload a CSV file")
		return
	}

	var weights map[string]float64
	if raw := r.FormValue("weights"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &weights); err != nil {
			s.logger.WarnContext(r.Context(), "ignoring malformed weights", "error", err)
			weights = nil
		}
	}
	rubric := s.deps.DefaultRubric
	if v := r.FormValue("rubric_choice"); v != "" {
		if rubric, err = domain.ParseRubricChoice(v); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	sc := s.deps.DefaultScale
	if v := r.FormValue("scale_choice"); v != "" {
		if sc, err = domain.ParseScale(v); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	cfg, _, err := s.evalConfig(&rubric, weights, &sc)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	essays, err := csvio.Read(file)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}

	ctx := r.Context()
	results, failures, err := s.deps.Scorer.ScoreBatch(ctx, essays, cfg)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := csvio.WriteAll(&buf, cfg.Active(), essays, results); err != nil {
		s.fail(w, r, err)
		return
	}

	batchID := uuid.NewString()
	w.Header().Set("X-Batch-ID", batchID)
	if s.deps.Results != nil {
		if _, err := s.deps.Results.SaveBatch(ctx, batchID, domain.Scored(results)); err != nil {
			s.logger.WarnContext(ctx, "batch results not stored", "batch_id", batchID, "error", err)
		}
	}
	if s.deps.Blobs != nil {
		key := storage.ResultKey(s.now(), header.Filename)
		ref, err := s.deps.Blobs.Put(ctx, key, storage.ContentTypeCSV, bytes.NewReader(buf.Bytes()))
		if err != nil {
			s.logger.WarnContext(ctx, "scored csv not stored", "key", key, "error", err)
		} else {
			w.Header().Set("X-Result-Ref", ref)
		}
	}

	s.logger.InfoContext(ctx, "csv scored",
		"batch_id", batchID,
		"file", header.Filename,
		"essays", len(essays),
		"failed", len(failures))

	base := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	w.Header().Set("Content-Type", storage.ContentTypeCSV)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"_scored.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type startBatchRequest struct {
	BatchID      string               `json:"batch_id"`
	Essays       []domain.EssayRecord `json:"essays" validate:"required,min=1"`
	RubricChoice *domain.RubricChoice `json:"rubric_choice"`
	Weights      map[string]float64   `json:"weights"`
	ScaleChoice  *domain.Scale        `json:"scale_choice"`
}

type startBatchResponse struct {
	BatchID    string `json:"batch_id"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

func (s *Server) startBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Batches == nil {
		unavailable(w, "batch orchestration")
		return
	}
	var req startBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	cfg, _, err := s.evalConfig(req.RubricChoice, req.Weights, req.ScaleChoice)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}
	for i := range req.Essays {
		if req.Essays[i].ID == "" {
			req.Essays[i].ID = fmt.Sprintf("essay_%d", i)
		}
	}

	exec, err := s.deps.Batches.StartBatch(r.Context(), domain.BatchRequest{
		BatchID: req.BatchID,
		Essays:  req.Essays,
		Config:  cfg,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startBatchResponse{
		BatchID:    req.BatchID,
		WorkflowID: exec.WorkflowID,
		RunID:      exec.RunID,
	})
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	if s.deps.Results == nil {
		unavailable(w, "result store")
		return
	}
	res, err := s.deps.Results.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	if s.deps.Results == nil {
		unavailable(w, "result store")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.fail(w, r, fmt.Errorf("%w: limit must be 1..1000", domain.ErrInvalidRequest))
			return
		}
		limit = n
	}
	res, err := s.deps.Results.ListRecent(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res == nil {
		res = []store.StoredResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": res})
}

type batchResponse struct {
	BatchID string               `json:"batch_id"`
	Status  string               `json:"status"`
	Result  *domain.BatchResult  `json:"result,omitempty"`
	Stored  []store.StoredResult `json:"stored,omitempty"`
}

const (
	batchRunning   = "running"
	batchCompleted = "completed"
)

// getBatch answers with the batch workflow's result when orchestration is
// configured, falling back to rows stored by an upload. A workflow still
// running after BatchWait answers 202.
func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Batches == nil && s.deps.Results == nil {
		unavailable(w, "batch lookup")
		return
	}
	ctx := r.Context()
	batchID := chi.URLParam(r, "id")

	if s.deps.Batches != nil {
		wctx, cancel := context.WithTimeout(ctx, s.deps.BatchWait)
		res, err := s.deps.Batches.BatchResult(wctx, batchID, r.URL.Query().Get("run_id"))
		cancel()
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, batchResponse{BatchID: batchID, Status: batchCompleted, Result: res})
			return
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			writeJSON(w, http.StatusAccepted, batchResponse{BatchID: batchID, Status: batchRunning})
			return
		case errors.Is(err, workflow.ErrBatchNotFound) && s.deps.Results != nil:
			// uploads store rows without a workflow
		default:
			s.fail(w, r, err)
			return
		}
	}

	rows, err := s.deps.Results.ListBatch(ctx, batchID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(rows) == 0 {
		s.fail(w, r, fmt.Errorf("%w: %s", workflow.ErrBatchNotFound, batchID))
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{BatchID: batchID, Status: batchCompleted, Stored: rows})
}
