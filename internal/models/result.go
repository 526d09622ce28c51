package models

// ScoreItem is the per-rubric-item outcome of an evaluation pass.
type ScoreItem struct {
	RubricItemID           string   `json:"rubric_item_id"`
	Score                  float64  `json:"score"`
	Justification          string   `json:"justification,omitempty"`
	Evidence               string   `json:"evidence,omitempty"`
	Evaluation             string   `json:"evaluation,omitempty"`
	CompletenessPercentage float64  `json:"completeness_percentage,omitempty"`
	Strengths              []string `json:"strengths,omitempty"`
	Gaps                   []string `json:"gaps,omitempty"`
	Guidance               string   `json:"guidance,omitempty"`
	Significance           string   `json:"significance,omitempty"`
	EvidenceBlockIDs       []string `json:"evidence_block_ids,omitempty"`
}

// EvaluationResult holds one grading outcome: per-item scores plus the
// weighted total and overall feedback. The narrative variant carries four
// free-text sections instead of relying on the item table alone.
type EvaluationResult struct {
	SubmissionID        string                 `json:"submission_id"`
	RubricID            string                 `json:"rubric_id"`
	Total               float64                `json:"total"`
	Items               []ScoreItem            `json:"items"`
	OverallFeedback     string                 `json:"overall_feedback,omitempty"`
	NarrativeEvaluation string                 `json:"narrative_evaluation,omitempty"`
	Strengths           []string               `json:"strengths,omitempty"`
	Gaps                []string               `json:"gaps,omitempty"`
	Guidance            string                 `json:"guidance,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// IsNarrative reports whether the result carries the four-section narrative
// variant.
func (r EvaluationResult) IsNarrative() bool {
	return r.NarrativeEvaluation != ""
}

// EvalReference returns the identifier chat sessions are scoped to. The
// backend does not return a top-level eval id, so the reference comes from
// result metadata when present and falls back to the submission id.
func (r EvaluationResult) EvalReference() string {
	if v, ok := r.Metadata["eval_id"]; ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return r.SubmissionID
}
