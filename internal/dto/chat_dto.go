package dto

import "github.com/noah-isme/evalmate-go-client/internal/models"

// ChatSessionCreateRequest is the body of POST /chat/sessions. Every id is
// required; the backend scopes the session to one evaluation outcome.
type ChatSessionCreateRequest struct {
	EvalID       string `json:"eval_id" validate:"required"`
	QuestionID   string `json:"question_id" validate:"required"`
	RubricID     string `json:"rubric_id" validate:"required"`
	SubmissionID string `json:"submission_id" validate:"required"`
}

// ChatSessionResponse is returned when a session is created.
type ChatSessionResponse struct {
	SessionID    string    `json:"session_id"`
	EvalID       string    `json:"eval_id"`
	QuestionID   string    `json:"question_id"`
	RubricID     string    `json:"rubric_id"`
	SubmissionID string    `json:"submission_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    Timestamp `json:"created_at"`
}

// ChatMessageRequest is the body of POST /chat/sessions/{id}/messages.
// Temperature and max tokens follow the backend's accepted ranges.
type ChatMessageRequest struct {
	Message     string  `json:"message" validate:"required"`
	Temperature float64 `json:"temperature" validate:"gte=0,lte=1"`
	MaxTokens   int     `json:"max_tokens" validate:"gte=100,lte=4000"`
}

// ChatMessageResponse is one message returned by the send and history calls.
type ChatMessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// ChatHistoryResponse is returned by GET /chat/sessions/{id}/history.
type ChatHistoryResponse struct {
	Messages   []ChatMessageResponse `json:"messages"`
	TotalCount int                   `json:"total_count"`
}

// ChatDeleteResponse acknowledges session deletion.
type ChatDeleteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewChatMessage converts a wire message into the local history model.
func NewChatMessage(m ChatMessageResponse) models.ChatMessage {
	return models.ChatMessage{
		Role:      models.ChatRole(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.Time,
	}
}

// NewChatHistory converts a history response into local history models.
func NewChatHistory(h ChatHistoryResponse) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(h.Messages))
	for _, m := range h.Messages {
		messages = append(messages, NewChatMessage(m))
	}
	return messages
}
