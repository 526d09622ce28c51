package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/evalmate-go-client/internal/models"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()

	w := NewWriter(filepath.Join(t.TempDir(), "results"), zerolog.Nop())
	w.now = func() time.Time { return time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC) }
	return w
}

func sampleResult() models.EvaluationResult {
	return models.EvaluationResult{
		SubmissionID:    "sub_1",
		RubricID:        "rub_1",
		Total:           78.5,
		OverallFeedback: "Solid analysis, weak citations.",
		Items: []models.ScoreItem{
			{RubricItemID: "item_1", Score: 90, Justification: "Correct complexity bound.", EvidenceBlockIDs: []string{"blk_1", "blk_2"}},
			{RubricItemID: "item_2", Score: 67, Justification: "Missing worst-case argument."},
		},
		Metadata: map[string]interface{}{"eval_id": "eval_20241105_run7"},
	}
}

func TestSaveWritesTimestampedPair(t *testing.T) {
	w := newTestWriter(t)

	jsonPath, csvPath, err := w.Save(sampleResult())
	require.NoError(t, err)
	require.Equal(t, "eval_20241105_093000.json", filepath.Base(jsonPath))
	require.Equal(t, "eval_20241105_093000.csv", filepath.Base(csvPath))
	require.FileExists(t, jsonPath)
	require.FileExists(t, csvPath)
}

func TestSaveJSONRoundTrips(t *testing.T) {
	w := newTestWriter(t)
	result := sampleResult()

	jsonPath, _, err := w.Save(result)
	require.NoError(t, err)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var restored models.EvaluationResult
	require.NoError(t, json.Unmarshal(data, &restored))
	require.Equal(t, result.SubmissionID, restored.SubmissionID)
	require.Equal(t, result.Total, restored.Total)
	require.Len(t, restored.Items, 2)
	require.Equal(t, result.Items[0].EvidenceBlockIDs, restored.Items[0].EvidenceBlockIDs)
}

func TestSaveCSVHasItemRowsAndTotal(t *testing.T) {
	w := newTestWriter(t)

	_, csvPath, err := w.Save(sampleResult())
	require.NoError(t, err)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	require.Equal(t, []string{"rubric_item_id", "score", "justification", "evidence_block_ids"}, rows[0])
	require.Equal(t, []string{"item_1", "90.00", "Correct complexity bound.", "blk_1, blk_2"}, rows[1])
	require.Equal(t, []string{"item_2", "67.00", "Missing worst-case argument.", ""}, rows[2])
	require.Equal(t, []string{"TOTAL", "78.50", "Solid analysis, weak citations.", ""}, rows[3])
}

func TestSaveNarrativeResultWithoutItems(t *testing.T) {
	w := newTestWriter(t)

	_, csvPath, err := w.Save(models.EvaluationResult{
		SubmissionID:        "sub_1",
		Total:               82,
		NarrativeEvaluation: "The submission demonstrates a clear grasp of the material.",
		OverallFeedback:     "Well structured.",
	})
	require.NoError(t, err)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "TOTAL", rows[1][0])
}

func TestSaveCreatesNestedDir(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(filepath.Join(base, "deep", "nested", "results"), zerolog.Nop())

	_, _, err := w.Save(sampleResult())
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(base, "deep", "nested", "results"))
}

func TestNewWriterDefaultsDir(t *testing.T) {
	w := NewWriter("", zerolog.Nop())
	require.Equal(t, "results", w.dir)
}
