// Package evalmate implements the HTTP/JSON client for the EvalMate grading
// backend: rubric, question, and submission uploads, context building,
// evaluation, and the ephemeral chat session endpoints.
package evalmate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evalmate",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Duration of EvalMate API requests",
	}, []string{"operation"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalmate",
		Subsystem: "client",
		Name:      "request_failures_total",
		Help:      "Number of failed EvalMate API requests",
	}, []string{"operation"})
)

// DefaultTimeout bounds every request when the configuration does not
// override it. Grading calls sit on an LLM round trip, so the bound is
// generous.
const DefaultTimeout = 300 * time.Second

// Config defines configuration options for the API client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the EvalMate backend. All methods honour the context and
// share one request timeout.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New builds a client from the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("evalmate base url is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		tracer:  otel.Tracer("github.com/noah-isme/evalmate-go-client/pkg/evalmate"),
		logger:  cfg.Logger.With().Str("component", "evalmate_client").Logger(),
	}, nil
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// doJSON issues a JSON request and decodes the response into out when out is
// non-nil.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, query url.Values, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, operation, out)
}

// doMultipart issues a multipart upload carrying the file under "file" and
// the JSON-encoded params under "params". Transport progress is reported to
// onProgress as the body is drained.
func (c *Client) doMultipart(ctx context.Context, operation, path string, file UploadFile, params interface{}, onProgress ProgressFunc, out interface{}) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%s: encode params: %w", operation, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return fmt.Errorf("%s: build form: %w", operation, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("%s: build form: %w", operation, err)
	}
	if err := writer.WriteField("params", string(paramsJSON)); err != nil {
		return fmt.Errorf("%s: build form: %w", operation, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%s: build form: %w", operation, err)
	}

	total := int64(buf.Len())
	var body io.Reader = &buf
	if onProgress != nil {
		body = &progressReader{r: &buf, total: total, report: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, nil), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = total

	return c.do(req, operation, out)
}

func (c *Client) do(req *http.Request, operation string, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID(req.Context()))

	span := trace.SpanFromContext(req.Context())

	start := time.Now()
	resp, err := c.http.Do(req)
	requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		requestFailures.WithLabelValues(operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failed")
		c.logger.Error().Err(err).Str("operation", operation).Msg("request failed")
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		requestFailures.WithLabelValues(operation).Inc()
		apiErr := decodeAPIError(resp)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "api error")
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("operation", operation).
			Msg("request rejected")
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		span.SetStatus(codes.Ok, "")
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		requestFailures.WithLabelValues(operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
