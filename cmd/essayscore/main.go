// Command essayscore scores a CSV of essays offline and writes the scored CSV.
//
//	essayscore -in essays.csv -out scored.csv -rubric 2 -scale 5 -weights '{"ideas":40,"grammar":20}'
//
// Criteria missing from an essay's raw score columns are sent to the remote
// evaluator when EVALUATOR_URL is set; otherwise they score neutrally.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ahrav/go-essaygrade/internal/config"
	"github.com/ahrav/go-essaygrade/internal/csvio"
	"github.com/ahrav/go-essaygrade/internal/domain"
	"github.com/ahrav/go-essaygrade/internal/worker"
)

func main() {
	in := flag.String("in", "", "input CSV path (default stdin)")
	out := flag.String("out", "", "output CSV path (default stdout)")
	rubric := flag.String("rubric", "", "rubric choice 1, 2 or 3")
	scale := flag.String("scale", "", "scale id 1-6 or key such as letter_ae")
	weights := flag.String("weights", "", "criterion weights as a JSON object")
	flag.Parse()

	if err := run(*in, *out, *rubric, *scale, *weights); err != nil {
		fmt.Fprintln(os.Stderr, "essayscore:", err)
		os.Exit(1)
	}
}

func run(inPath, outPath, rubricFlag, scaleFlag, weightsFlag string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	logger := cfg.Observability.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	evalCfg, err := evaluationConfig(cfg, rubricFlag, scaleFlag, weightsFlag)
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if inPath != "" {
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	essays, err := csvio.Read(r)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, err := worker.NewEngine(cfg, nil)
	if err != nil {
		return err
	}
	results, failures, err := engine.ScoreBatch(ctx, essays, evalCfg)
	if err != nil {
		return err
	}
	for _, f := range failures {
		logger.Warn("essay not scored", "essay_id", f.EssayID, "error", f.Error)
	}

	if err := writeOutput(outPath, func(w io.Writer) error {
		return csvio.WriteAll(w, evalCfg.Active(), essays, results)
	}); err != nil {
		return err
	}
	logger.Info("scored", "essays", len(essays), "failed", len(failures))
	return nil
}

// writeOutput runs write against the file at path, or stdout when path is
// empty. The file's close error is returned when write succeeds.
func writeOutput(path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}

func evaluationConfig(cfg *config.Config, rubricFlag, scaleFlag, weightsFlag string) (domain.EvaluationConfig, error) {
	rubric := cfg.Scoring.DefaultRubric
	if rubricFlag != "" {
		r, err := domain.ParseRubricChoice(rubricFlag)
		if err != nil {
			return domain.EvaluationConfig{}, err
		}
		rubric = r
	}
	sc := cfg.Scoring.DefaultScale
	if scaleFlag != "" {
		s, err := domain.ParseScale(scaleFlag)
		if err != nil {
			return domain.EvaluationConfig{}, err
		}
		sc = s
	}
	var raw map[string]float64
	if weightsFlag != "" {
		if err := json.Unmarshal([]byte(weightsFlag), &raw); err != nil {
			return domain.EvaluationConfig{}, fmt.Errorf("%w: weights: %w", domain.ErrInvalidWeights, err)
		}
	}
	weights, ignored := domain.ParseWeights(raw)
	for _, name := range ignored {
		slog.Warn("ignoring weight for unknown criterion", "name", name)
	}
	return domain.NewEvaluationConfig(rubric, weights, sc)
}
