package evalmate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
)

// CreateChatSession opens a new server-held session scoped to one evaluation
// outcome. Sessions are never deduplicated; each call yields an independent
// one.
func (c *Client) CreateChatSession(ctx context.Context, req dto.ChatSessionCreateRequest) (dto.ChatSessionResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.chat.create", trace.WithAttributes(
		attribute.String("eval.id", req.EvalID),
		attribute.String("submission.id", req.SubmissionID),
	))
	defer span.End()

	var out dto.ChatSessionResponse
	if err := c.doJSON(ctx, "chat.create", http.MethodPost, "/chat/sessions", nil, req, &out); err != nil {
		return dto.ChatSessionResponse{}, err
	}
	return out, nil
}

// SendChatMessage forwards one user message and returns the assistant reply.
// A vanished session surfaces as ErrSessionExpired.
func (c *Client) SendChatMessage(ctx context.Context, sessionID string, req dto.ChatMessageRequest) (dto.ChatMessageResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.chat.send", trace.WithAttributes(
		attribute.String("chat.session_id", sessionID),
	))
	defer span.End()

	var out dto.ChatMessageResponse
	err := c.doJSON(ctx, "chat.send", http.MethodPost, "/chat/sessions/"+sessionID+"/messages", nil, req, &out)
	if err != nil {
		return dto.ChatMessageResponse{}, sessionScoped(err)
	}
	return out, nil
}

// GetChatHistory returns up to maxMessages of the session transcript.
func (c *Client) GetChatHistory(ctx context.Context, sessionID string, maxMessages int) (dto.ChatHistoryResponse, error) {
	ctx, span := c.tracer.Start(ctx, "evalmate.chat.history", trace.WithAttributes(
		attribute.String("chat.session_id", sessionID),
	))
	defer span.End()

	query := url.Values{}
	if maxMessages > 0 {
		query.Set("max_messages", strconv.Itoa(maxMessages))
	}

	var out dto.ChatHistoryResponse
	if err := c.doJSON(ctx, "chat.history", http.MethodGet, "/chat/sessions/"+sessionID+"/history", query, nil, &out); err != nil {
		return dto.ChatHistoryResponse{}, sessionScoped(err)
	}
	return out, nil
}

// DeleteChatSession tears down the server-held session.
func (c *Client) DeleteChatSession(ctx context.Context, sessionID string) error {
	ctx, span := c.tracer.Start(ctx, "evalmate.chat.delete", trace.WithAttributes(
		attribute.String("chat.session_id", sessionID),
	))
	defer span.End()

	var out dto.ChatDeleteResponse
	if err := c.doJSON(ctx, "chat.delete", http.MethodDelete, "/chat/sessions/"+sessionID, nil, nil, &out); err != nil {
		return sessionScoped(err)
	}
	return nil
}

// sessionScoped maps a 404 on a session-scoped call to ErrSessionExpired so
// callers can distinguish "start a new chat" from "retry".
func sessionScoped(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrSessionExpired, apiErr.Detail)
	}
	return err
}
