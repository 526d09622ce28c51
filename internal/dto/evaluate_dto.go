package dto

// EvaluationStatusResponse is returned by GET /evaluate/status/{submission_id}.
type EvaluationStatusResponse struct {
	Evaluated   bool     `json:"evaluated"`
	TotalScore  *float64 `json:"total_score,omitempty"`
	EvaluatedAt string   `json:"evaluated_at,omitempty"`
	Model       string   `json:"model,omitempty"`
	Error       string   `json:"error,omitempty"`
}
