package evalmate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.ErrorContains(t, err, "base url")
}

func TestUploadRubricSendsMultipart(t *testing.T) {
	var gotParams dto.RubricUploadParams
	var gotFilename, gotContent, gotCorrelation string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rubrics/upload", r.URL.Path)
		gotCorrelation = r.Header.Get("X-Correlation-ID")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		gotContent = string(data)

		require.NoError(t, json.Unmarshal([]byte(r.FormValue("params")), &gotParams))

		writeJSON(t, w, http.StatusOK, dto.RubricUploadResponse{
			Meta:      dto.RubricMeta{ID: "rub_1", Course: "CS101", Assignment: "HW3", Version: "2"},
			ItemCount: 4,
		})
	}))

	resp, err := client.UploadRubric(context.Background(),
		UploadFile{Name: "rubric.pdf", Data: []byte("%PDF-1.4 fake")},
		dto.RubricUploadParams{Course: "CS101", Assignment: "HW3", Version: "2"},
		nil,
	)
	require.NoError(t, err)
	require.Equal(t, "rub_1", resp.Meta.ID)
	require.Equal(t, 4, resp.ItemCount)

	require.Equal(t, "rubric.pdf", gotFilename)
	require.Equal(t, "%PDF-1.4 fake", gotContent)
	require.Equal(t, dto.RubricUploadParams{Course: "CS101", Assignment: "HW3", Version: "2"}, gotParams)
	require.NotEmpty(t, gotCorrelation)
}

func TestUploadReportsCumulativeProgress(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(t, w, http.StatusOK, dto.QuestionUploadResponse{Meta: dto.QuestionMeta{ID: "q_1"}})
	}))

	var mu sync.Mutex
	var sents []int64
	var total int64
	_, err := client.UploadQuestion(context.Background(),
		UploadFile{Name: "question.pdf", Data: make([]byte, 64<<10)},
		dto.QuestionUploadParams{RubricID: "rub_1"},
		func(sent, t int64) {
			mu.Lock()
			defer mu.Unlock()
			sents = append(sents, sent)
			total = t
		},
	)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, sents)
	for i := 1; i < len(sents); i++ {
		require.GreaterOrEqual(t, sents[i], sents[i-1])
	}
	require.Equal(t, total, sents[len(sents)-1])
	require.Greater(t, total, int64(64<<10))
}

func TestWithCorrelationPinsHeader(t *testing.T) {
	var got string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-ID")
		writeJSON(t, w, http.StatusOK, dto.HealthResponse{Status: "healthy"})
	}))

	ctx := WithCorrelation(context.Background(), "corr-123")
	_, err := client.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, "corr-123", got)
}

func TestEvaluateSendsThreeIDQuery(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/evaluate/", r.URL.Path)
		require.Equal(t, "rub_1", r.URL.Query().Get("rubric_id"))
		require.Equal(t, "q_1", r.URL.Query().Get("question_id"))
		require.Equal(t, "sub_1", r.URL.Query().Get("submission_id"))

		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"submission_id": "sub_1",
			"rubric_id":     "rub_1",
			"total":         87.5,
			"items": []map[string]interface{}{
				{"rubric_item_id": "item_1", "score": 90.0},
			},
			"metadata": map[string]interface{}{"eval_id": "eval_20241105_run7"},
		})
	}))

	result, err := client.Evaluate(context.Background(), "rub_1", "q_1", "sub_1")
	require.NoError(t, err)
	require.Equal(t, 87.5, result.Total)
	require.Len(t, result.Items, 1)
	require.Equal(t, "eval_20241105_run7", result.EvalReference())
}

func TestAPIErrorCarriesDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]string{"detail": "rubric file is empty"})
	}))

	_, err := client.GetRubric(context.Background(), "rub_1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "rubric file is empty", apiErr.Detail)
	require.Contains(t, err.Error(), "rubric file is empty")
}

func TestAPIErrorFallsBackToRawBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	}))

	_, err := client.Health(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "upstream exploded", apiErr.Detail)
}

func TestGetResultMapsNullToNotAvailable(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/evaluate/result/sub_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("null"))
	}))

	_, err := client.GetResult(context.Background(), "sub_1")
	require.ErrorIs(t, err, ErrResultNotAvailable)
}

func TestGetResultDecodesStoredResult(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"submission_id": "sub_1",
			"total":         64.0,
		})
	}))

	result, err := client.GetResult(context.Background(), "sub_1")
	require.NoError(t, err)
	require.Equal(t, 64.0, result.Total)
}

func TestGetEvaluationStatusDecodesScore(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/evaluate/status/sub_1", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"evaluated":    true,
			"total_score":  87.5,
			"evaluated_at": "2024-11-05T09:30:00",
			"model":        "gpt-4o",
		})
	}))

	status, err := client.GetEvaluationStatus(context.Background(), "sub_1")
	require.NoError(t, err)
	require.True(t, status.Evaluated)
	require.NotNil(t, status.TotalScore)
	require.Equal(t, 87.5, *status.TotalScore)
	require.Equal(t, "gpt-4o", status.Model)
}

func TestChatNotFoundMapsToSessionExpired(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]string{"detail": "Chat session not found"})
	}))

	_, err := client.SendChatMessage(context.Background(), "chat_1", dto.ChatMessageRequest{Message: "hi"})
	require.ErrorIs(t, err, ErrSessionExpired)

	_, err = client.GetChatHistory(context.Background(), "chat_1", 20)
	require.ErrorIs(t, err, ErrSessionExpired)

	err = client.DeleteChatSession(context.Background(), "chat_1")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestChatCreateNotFoundStaysAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]string{"detail": "no such evaluation"})
	}))

	_, err := client.CreateChatSession(context.Background(), dto.ChatSessionCreateRequest{
		EvalID: "eval_1", QuestionID: "q_1", RubricID: "rub_1", SubmissionID: "sub_1",
	})
	require.NotErrorIs(t, err, ErrSessionExpired)
	require.True(t, IsNotFound(err))
}

func TestHealthDecodesNaiveTimestamp(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","timestamp":"2024-11-05T09:30:00"}`))
	}))

	resp, err := client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, 2024, resp.Timestamp.Year())
	require.Equal(t, 9, resp.Timestamp.Hour())
}

func TestListSubmissionsAppliesFilter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/submissions", r.URL.Path)
		require.Equal(t, "rub_1", r.URL.Query().Get("rubric_id"))
		require.Equal(t, "q_1", r.URL.Query().Get("question_id"))
		require.False(t, r.URL.Query().Has("student_handle"))

		writeJSON(t, w, http.StatusOK, dto.SubmissionListResponse{
			Items: []dto.SubmissionMeta{{ID: "sub_1", StudentHandle: "alice"}},
		})
	}))

	items, err := client.ListSubmissions(context.Background(), dto.SubmissionFilter{RubricID: "rub_1", QuestionID: "q_1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "alice", items[0].StudentHandle)
}

func TestTransportFailureWrapsOperation(t *testing.T) {
	client, err := New(Config{BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = client.Health(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "health")

	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
}
