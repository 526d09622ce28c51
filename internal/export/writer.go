// Package export writes evaluation results to disk so they outlive the
// terminal session.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/evalmate-go-client/internal/models"
)

// Writer saves results under a single directory with timestamped filenames.
type Writer struct {
	dir    string
	logger zerolog.Logger
	now    func() time.Time
}

// NewWriter constructs a result writer rooted at dir. An empty dir falls
// back to "results".
func NewWriter(dir string, logger zerolog.Logger) *Writer {
	if dir == "" {
		dir = "results"
	}
	return &Writer{
		dir:    dir,
		logger: logger.With().Str("component", "export").Logger(),
		now:    time.Now,
	}
}

// Save writes the result as JSON and as CSV (one row per rubric item plus a
// TOTAL row) and returns both paths. The directory is created on demand.
func (w *Writer) Save(result models.EvaluationResult) (string, string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create results dir: %w", err)
	}

	stamp := w.now().Format("20060102_150405")
	jsonPath := filepath.Join(w.dir, "eval_"+stamp+".json")
	csvPath := filepath.Join(w.dir, "eval_"+stamp+".csv")

	if err := w.writeJSON(jsonPath, result); err != nil {
		return "", "", err
	}
	if err := w.writeCSV(csvPath, result); err != nil {
		return "", "", err
	}

	w.logger.Info().
		Str("json", jsonPath).
		Str("csv", csvPath).
		Str("submission_id", result.SubmissionID).
		Msg("result exported")
	return jsonPath, csvPath, nil
}

func (w *Writer) writeJSON(path string, result models.EvaluationResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json export: %w", err)
	}
	return nil
}

func (w *Writer) writeCSV(path string, result models.EvaluationResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write csv export: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	rows := [][]string{{"rubric_item_id", "score", "justification", "evidence_block_ids"}}
	for _, item := range result.Items {
		rows = append(rows, []string{
			item.RubricItemID,
			formatScore(item.Score),
			item.Justification,
			strings.Join(item.EvidenceBlockIDs, ", "),
		})
	}
	rows = append(rows, []string{"TOTAL", formatScore(result.Total), result.OverallFeedback, ""})

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv export: %w", err)
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
