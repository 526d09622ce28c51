// Package uploads runs the upload task queue: a single worker drains tasks
// strictly in order, re-checks each task's prerequisites against the live
// workflow state right before dispatch, and performs exactly one upload call
// plus one fetch-by-id call per task. Queuing lets a user trigger an upload
// whose prerequisite is still in flight; by the time the worker reaches the
// task, the prerequisite id is either in the store or the task is dropped
// with a local warning.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
	"github.com/noah-isme/evalmate-go-client/internal/models"
	"github.com/noah-isme/evalmate-go-client/internal/observability"
	"github.com/noah-isme/evalmate-go-client/internal/progress"
	"github.com/noah-isme/evalmate-go-client/internal/state"
	"github.com/noah-isme/evalmate-go-client/pkg/evalmate"
)

var (
	// ErrMissingRubric indicates a question upload reached the worker with
	// no rubric selected.
	ErrMissingRubric = errors.New("no rubric selected")
	// ErrMissingQuestion indicates a submission upload reached the worker
	// with no question selected.
	ErrMissingQuestion = errors.New("no question selected")
	// ErrFileTooLarge indicates the file exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUnsupportedFileType indicates the content is not a document type
	// the backend can ingest.
	ErrUnsupportedFileType = errors.New("file type not supported")
	// ErrQueueClosed indicates an enqueue after shutdown began.
	ErrQueueClosed = errors.New("upload queue is closed")
	// ErrQueueFull indicates the task buffer is saturated.
	ErrQueueFull = errors.New("upload queue is full")
	// ErrMalformedID indicates an upload response carried a resource id
	// that does not match the backend's id format. The id would go straight
	// into the follow-up fetch path, so the task fails instead.
	ErrMalformedID = errors.New("malformed resource id in upload response")
)

// Kind names the resource a task uploads.
type Kind string

const (
	KindRubric     Kind = "rubric"
	KindQuestion   Kind = "question"
	KindSubmission Kind = "submission"
)

// Task describes one queued upload. Prerequisite ids are deliberately not
// part of the task; the worker resolves them from the live snapshot when the
// task is dispatched.
type Task struct {
	Kind     Kind
	FilePath string

	// rubric params
	Course     string
	Assignment string
	Version    string

	// question params
	Title string

	// submission params
	StudentHandle string
}

// Client is the slice of the EvalMate API the queue needs.
type Client interface {
	UploadRubric(ctx context.Context, file evalmate.UploadFile, params dto.RubricUploadParams, onProgress evalmate.ProgressFunc) (dto.RubricUploadResponse, error)
	GetRubric(ctx context.Context, id string) (dto.Rubric, error)
	UploadQuestion(ctx context.Context, file evalmate.UploadFile, params dto.QuestionUploadParams, onProgress evalmate.ProgressFunc) (dto.QuestionUploadResponse, error)
	GetQuestion(ctx context.Context, id string) (dto.Question, error)
	UploadSubmission(ctx context.Context, file evalmate.UploadFile, params dto.SubmissionUploadParams, onProgress evalmate.ProgressFunc) (dto.SubmissionUploadResponse, error)
	GetSubmission(ctx context.Context, id string) (dto.Submission, error)
}

type queuedTask struct {
	Task
	done chan error
}

// Queue owns the single upload worker.
type Queue struct {
	client   Client
	store    state.Store
	est      *progress.Estimator
	validate *validator.Validate
	logger   zerolog.Logger
	tracer   trace.Tracer
	maxBytes int64

	tasks   chan queuedTask
	mu      sync.Mutex
	closed  bool
	started bool
	once    sync.Once
	stopped chan struct{}
}

// New constructs the queue. maxUploadMB caps individual files; values below
// one fall back to 25 MB.
func New(client Client, store state.Store, est *progress.Estimator, validate *validator.Validate, maxUploadMB int, logger zerolog.Logger) *Queue {
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	return &Queue{
		client:   client,
		store:    store,
		est:      est,
		validate: validate,
		logger:   logger.With().Str("component", "upload_queue").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/evalmate-go-client/internal/uploads"),
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
		tasks:    make(chan queuedTask, 32),
		stopped:  make(chan struct{}),
	}
}

// Start launches the worker. Tasks enqueued before Start wait in order.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go func() {
		defer close(q.stopped)
		q.run(ctx)
	}()
}

// Enqueue appends a task and returns a channel that settles exactly once
// with the task's outcome (nil on success). The send is non-blocking; the
// mutex must never be held across a blocking channel operation.
func (q *Queue) Enqueue(t Task) (<-chan error, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	item := queuedTask{Task: t, done: make(chan error, 1)}
	select {
	case q.tasks <- item:
	default:
		return nil, ErrQueueFull
	}
	observability.QueueDepth().Inc()
	q.logger.Debug().Str("kind", string(t.Kind)).Str("file", t.FilePath).Msg("upload task enqueued")
	return item.done, nil
}

// Close stops accepting tasks, lets the worker finish what is already
// queued, and waits for it to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	started := q.started
	q.mu.Unlock()

	q.once.Do(func() { close(q.tasks) })
	if started {
		<-q.stopped
	}
}

func (q *Queue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.abort(ctx.Err())
			return
		case item, ok := <-q.tasks:
			if !ok {
				return
			}
			q.process(ctx, item)
		}
	}
}

// abort settles everything still buffered so no caller blocks forever on a
// done channel after shutdown.
func (q *Queue) abort(cause error) {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	for {
		select {
		case item, ok := <-q.tasks:
			if !ok {
				return
			}
			q.settle(item, cause)
		default:
			return
		}
	}
}

func (q *Queue) settle(item queuedTask, err error) {
	observability.QueueDepth().Dec()
	item.done <- err
	close(item.done)
}

func (q *Queue) process(ctx context.Context, item queuedTask) {
	ctx, span := q.tracer.Start(ctx, "uploads.process", trace.WithAttributes(
		attribute.String("task.kind", string(item.Kind)),
		attribute.String("task.file", item.FilePath),
	))
	defer span.End()

	err := q.dispatch(ctx, item.Task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed")
	} else {
		span.SetStatus(codes.Ok, "task settled")
	}
	q.settle(item, err)
}

func (q *Queue) dispatch(ctx context.Context, t Task) error {
	switch t.Kind {
	case KindRubric:
		return q.dispatchRubric(ctx, t)
	case KindQuestion:
		return q.dispatchQuestion(ctx, t)
	case KindSubmission:
		return q.dispatchSubmission(ctx, t)
	default:
		return fmt.Errorf("unknown upload kind %q", t.Kind)
	}
}

func (q *Queue) dispatchRubric(ctx context.Context, t Task) error {
	params := dto.RubricUploadParams{Course: t.Course, Assignment: t.Assignment, Version: t.Version}
	file, docKind, err := q.prepare(ctx, t, params)
	if err != nil {
		return err
	}

	q.est.Start(progress.KindUpload, "Uploading rubric", file.Name)
	resp, err := q.client.UploadRubric(ctx, file, params, q.est.Observe)
	if err != nil {
		return q.failTask(ctx, t, err)
	}
	if !models.ValidID(resp.Meta.ID) {
		return q.failTask(ctx, t, fmt.Errorf("%w: %q", ErrMalformedID, resp.Meta.ID))
	}

	rubric, err := q.client.GetRubric(ctx, resp.Meta.ID)
	if err != nil {
		return q.failTask(ctx, t, err)
	}

	ref := dto.NewRubricRef(rubric)
	q.store.Apply(state.SelectRubric(ref))
	q.finishTask(ctx, t, docKind, len(file.Data), "Uploaded rubric "+ref.Label())
	return nil
}

func (q *Queue) dispatchQuestion(ctx context.Context, t Task) error {
	snap := q.store.Snapshot()
	if snap.Rubric == nil {
		return q.dropTask(ctx, t, "missing_rubric", ErrMissingRubric)
	}

	params := dto.QuestionUploadParams{RubricID: snap.Rubric.ID, Title: t.Title}
	file, docKind, err := q.prepare(ctx, t, params)
	if err != nil {
		return err
	}

	q.est.Start(progress.KindUpload, "Uploading question", file.Name)
	resp, err := q.client.UploadQuestion(ctx, file, params, q.est.Observe)
	if err != nil {
		return q.failTask(ctx, t, err)
	}
	if !models.ValidID(resp.Meta.ID) {
		return q.failTask(ctx, t, fmt.Errorf("%w: %q", ErrMalformedID, resp.Meta.ID))
	}

	question, err := q.client.GetQuestion(ctx, resp.Meta.ID)
	if err != nil {
		return q.failTask(ctx, t, err)
	}

	ref := dto.NewQuestionRef(question)
	q.store.Apply(state.SelectQuestion(ref))
	q.finishTask(ctx, t, docKind, len(file.Data), "Uploaded question "+ref.Label())
	return nil
}

func (q *Queue) dispatchSubmission(ctx context.Context, t Task) error {
	snap := q.store.Snapshot()
	if snap.Rubric == nil {
		return q.dropTask(ctx, t, "missing_rubric", ErrMissingRubric)
	}
	if snap.Question == nil {
		return q.dropTask(ctx, t, "missing_question", ErrMissingQuestion)
	}

	params := dto.SubmissionUploadParams{
		RubricID:      snap.Rubric.ID,
		QuestionID:    snap.Question.ID,
		StudentHandle: t.StudentHandle,
	}
	file, docKind, err := q.prepare(ctx, t, params)
	if err != nil {
		return err
	}

	q.est.Start(progress.KindUpload, "Uploading submission", file.Name)
	resp, err := q.client.UploadSubmission(ctx, file, params, q.est.Observe)
	if err != nil {
		return q.failTask(ctx, t, err)
	}
	if !models.ValidID(resp.Meta.ID) {
		return q.failTask(ctx, t, fmt.Errorf("%w: %q", ErrMalformedID, resp.Meta.ID))
	}

	submission, err := q.client.GetSubmission(ctx, resp.Meta.ID)
	if err != nil {
		return q.failTask(ctx, t, err)
	}

	ref := dto.NewSubmissionRef(submission)
	q.store.Apply(state.SelectSubmission(ref))
	q.finishTask(ctx, t, docKind, len(file.Data), "Uploaded submission "+ref.Label())
	return nil
}

// prepare validates params and the file before any network call. Violations
// drop the task locally.
func (q *Queue) prepare(ctx context.Context, t Task, params interface{}) (evalmate.UploadFile, string, error) {
	if err := q.validate.Struct(params); err != nil {
		return evalmate.UploadFile{}, "", q.dropTask(ctx, t, "params", err)
	}

	file, docKind, err := q.loadFile(t.FilePath)
	if err != nil {
		reason := "read"
		switch {
		case errors.Is(err, ErrFileTooLarge):
			reason = "size"
		case errors.Is(err, ErrUnsupportedFileType):
			reason = "type"
		}
		return evalmate.UploadFile{}, "", q.dropTask(ctx, t, reason, err)
	}
	return file, docKind, nil
}

// dropTask surfaces a pre-dispatch violation: one warning log, one activity
// entry, one drop metric, zero network calls.
func (q *Queue) dropTask(ctx context.Context, t Task, reason string, err error) error {
	observability.QueueDrops().WithLabelValues(reason).Inc()
	q.logger.Warn().Err(err).Str("kind", string(t.Kind)).Str("reason", reason).Msg("upload task dropped")
	q.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem,
		fmt.Sprintf("Skipped %s upload: %v", t.Kind, err))))
	return err
}

func (q *Queue) failTask(ctx context.Context, t Task, err error) error {
	q.est.Fail()
	q.logger.Error().Err(err).Str("kind", string(t.Kind)).Msg("upload task failed")
	q.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem,
		fmt.Sprintf("%s upload failed: %v", titleKind(t.Kind), err))))
	return err
}

func (q *Queue) finishTask(ctx context.Context, t Task, docKind string, size int, activity string) {
	q.est.Complete()
	observability.UploadBytes().WithLabelValues(docKind).Add(float64(size))
	q.logger.Info().Str("kind", string(t.Kind)).Int("size_bytes", size).Msg("upload task completed")
	q.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem, activity)))
}

func titleKind(k Kind) string {
	switch k {
	case KindRubric:
		return "Rubric"
	case KindQuestion:
		return "Question"
	case KindSubmission:
		return "Submission"
	default:
		return string(k)
	}
}
