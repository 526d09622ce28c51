package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
	"github.com/noah-isme/evalmate-go-client/internal/progress"
	"github.com/noah-isme/evalmate-go-client/internal/state"
	"github.com/noah-isme/evalmate-go-client/pkg/evalmate"
)

type fakeAPI struct {
	mu             sync.Mutex
	calls          []string
	nextID         int
	questionParams []dto.QuestionUploadParams
	lastRubricID   string
	lastQuestion   dto.QuestionUploadParams
	lastSubmission dto.SubmissionUploadParams

	rubricUploadErr   error
	questionUploadErr error

	// returned verbatim as the rubric upload id when set
	rawRubricID string
}

// mintID builds an id in the backend's wire format.
func mintID(prefix string, n int) string {
	return fmt.Sprintf("%s_1700000000000_%06d", prefix, n)
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPI) UploadRubric(ctx context.Context, file evalmate.UploadFile, params dto.RubricUploadParams, onProgress evalmate.ProgressFunc) (dto.RubricUploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upload:rubric")
	if f.rubricUploadErr != nil {
		return dto.RubricUploadResponse{}, f.rubricUploadErr
	}
	f.nextID++
	f.lastRubricID = mintID("rubric", f.nextID)
	if f.rawRubricID != "" {
		f.lastRubricID = f.rawRubricID
	}
	return dto.RubricUploadResponse{
		Meta:      dto.RubricMeta{ID: f.lastRubricID, Course: params.Course, Assignment: params.Assignment, Version: params.Version},
		ItemCount: 3,
	}, nil
}

func (f *fakeAPI) GetRubric(ctx context.Context, id string) (dto.Rubric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get:rubric")
	return dto.Rubric{ID: id, Course: "CS101", Assignment: "essay-1", Version: "v1", Items: make([]dto.RubricItem, 3)}, nil
}

func (f *fakeAPI) UploadQuestion(ctx context.Context, file evalmate.UploadFile, params dto.QuestionUploadParams, onProgress evalmate.ProgressFunc) (dto.QuestionUploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upload:question")
	if f.questionUploadErr != nil {
		return dto.QuestionUploadResponse{}, f.questionUploadErr
	}
	f.nextID++
	f.lastQuestion = params
	f.questionParams = append(f.questionParams, params)
	return dto.QuestionUploadResponse{
		Meta: dto.QuestionMeta{ID: mintID("question", f.nextID), Title: params.Title, RubricID: params.RubricID},
	}, nil
}

func (f *fakeAPI) GetQuestion(ctx context.Context, id string) (dto.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get:question")
	return dto.Question{ID: id, Title: f.lastQuestion.Title, RubricID: f.lastQuestion.RubricID}, nil
}

func (f *fakeAPI) UploadSubmission(ctx context.Context, file evalmate.UploadFile, params dto.SubmissionUploadParams, onProgress evalmate.ProgressFunc) (dto.SubmissionUploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upload:submission")
	f.nextID++
	f.lastSubmission = params
	return dto.SubmissionUploadResponse{
		Meta: dto.SubmissionMeta{ID: mintID("submission", f.nextID), RubricID: params.RubricID, QuestionID: params.QuestionID, StudentHandle: params.StudentHandle},
	}, nil
}

func (f *fakeAPI) GetSubmission(ctx context.Context, id string) (dto.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get:submission")
	return dto.Submission{ID: id, StudentHandle: f.lastSubmission.StudentHandle, RubricID: f.lastSubmission.RubricID, QuestionID: f.lastSubmission.QuestionID}, nil
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeTempPDF(t *testing.T) string {
	return writeTempFile(t, "doc.pdf", []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n"))
}

func newTestQueue(t *testing.T, api Client) (*Queue, state.Store) {
	t.Helper()
	st := state.NewStore(zerolog.Nop())
	est := progress.New(progress.Config{
		TickInterval: time.Hour,
		IncrementMin: 1,
		IncrementMax: 2,
		CeilingMin:   90,
		CeilingMax:   90,
		GraceDelay:   time.Millisecond,
		Rand:         rand.New(rand.NewSource(1)),
	}, nil, zerolog.Nop())

	q := New(api, st, est, validator.New(validator.WithRequiredStructEnabled()), 1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		q.Close()
		cancel()
	})
	return q, st
}

func TestQueueResolvesPrerequisiteFromEarlierTask(t *testing.T) {
	api := &fakeAPI{}
	q, st := newTestQueue(t, api)
	pdf := writeTempPDF(t)

	// the question is enqueued while no rubric exists yet; by the time the
	// worker reaches it, the rubric task ahead of it has settled
	rubricDone, err := q.Enqueue(Task{Kind: KindRubric, FilePath: pdf, Course: "CS101"})
	require.NoError(t, err)
	questionDone, err := q.Enqueue(Task{Kind: KindQuestion, FilePath: pdf, Title: "Q1"})
	require.NoError(t, err)

	require.NoError(t, <-rubricDone)
	require.NoError(t, <-questionDone)

	api.mu.Lock()
	params := api.questionParams[0]
	api.mu.Unlock()
	require.Equal(t, mintID("rubric", 1), params.RubricID)

	snap := st.Snapshot()
	require.NotNil(t, snap.Rubric)
	require.NotNil(t, snap.Question)
	require.Equal(t, snap.Rubric.ID, snap.Question.RubricID)
}

func TestQueueDispatchesStrictlyInOrder(t *testing.T) {
	api := &fakeAPI{}
	q, st := newTestQueue(t, api)
	pdf := writeTempPDF(t)

	var settled []<-chan error
	for _, task := range []Task{
		{Kind: KindRubric, FilePath: pdf},
		{Kind: KindQuestion, FilePath: pdf, Title: "Q1"},
		{Kind: KindSubmission, FilePath: pdf, StudentHandle: "alice"},
	} {
		done, err := q.Enqueue(task)
		require.NoError(t, err)
		settled = append(settled, done)
	}
	for _, done := range settled {
		require.NoError(t, <-done)
	}

	require.Equal(t, []string{
		"upload:rubric", "get:rubric",
		"upload:question", "get:question",
		"upload:submission", "get:submission",
	}, api.recorded(), "one upload and one fetch per task, never interleaved")

	snap := st.Snapshot()
	require.NotNil(t, snap.Submission)
	require.Equal(t, "alice", snap.Submission.StudentHandle)
}

func TestQueueDropsTaskWithoutPrerequisite(t *testing.T) {
	api := &fakeAPI{}
	q, st := newTestQueue(t, api)
	pdf := writeTempPDF(t)

	done, err := q.Enqueue(Task{Kind: KindQuestion, FilePath: pdf, Title: "orphan"})
	require.NoError(t, err)
	require.ErrorIs(t, <-done, ErrMissingRubric)

	require.Empty(t, api.recorded(), "dropped tasks make zero network calls")

	snap := st.Snapshot()
	require.Len(t, snap.Activity, 1, "exactly one local warning")
	require.Contains(t, snap.Activity[0].Text, "Skipped question upload")
}

func TestQueueSubmissionRequiresQuestion(t *testing.T) {
	api := &fakeAPI{}
	q, _ := newTestQueue(t, api)
	pdf := writeTempPDF(t)

	done, err := q.Enqueue(Task{Kind: KindRubric, FilePath: pdf})
	require.NoError(t, err)
	require.NoError(t, <-done)

	done, err = q.Enqueue(Task{Kind: KindSubmission, FilePath: pdf})
	require.NoError(t, err)
	require.ErrorIs(t, <-done, ErrMissingQuestion)

	require.Equal(t, []string{"upload:rubric", "get:rubric"}, api.recorded())
}

func TestQueueContinuesAfterTaskFailure(t *testing.T) {
	api := &fakeAPI{rubricUploadErr: errors.New("backend unavailable")}
	q, st := newTestQueue(t, api)
	pdf := writeTempPDF(t)

	done, err := q.Enqueue(Task{Kind: KindRubric, FilePath: pdf})
	require.NoError(t, err)
	require.ErrorContains(t, <-done, "backend unavailable")

	api.mu.Lock()
	api.rubricUploadErr = nil
	api.mu.Unlock()

	done, err = q.Enqueue(Task{Kind: KindRubric, FilePath: pdf})
	require.NoError(t, err)
	require.NoError(t, <-done)

	snap := st.Snapshot()
	require.NotNil(t, snap.Rubric, "the worker keeps draining after a failed task")

	var failures int
	for _, entry := range snap.Activity {
		if strings.Contains(entry.Text, "Rubric upload failed") {
			failures++
		}
	}
	require.Equal(t, 1, failures)
}

func TestQueueRejectsMalformedResponseID(t *testing.T) {
	api := &fakeAPI{rawRubricID: "rub-1"}
	q, st := newTestQueue(t, api)
	pdf := writeTempPDF(t)

	done, err := q.Enqueue(Task{Kind: KindRubric, FilePath: pdf})
	require.NoError(t, err)
	require.ErrorIs(t, <-done, ErrMalformedID)

	require.Equal(t, []string{"upload:rubric"}, api.recorded(), "no fetch after a bad id")

	snap := st.Snapshot()
	require.Nil(t, snap.Rubric)
	require.Len(t, snap.Activity, 1)
	require.Contains(t, snap.Activity[0].Text, "Rubric upload failed")
}

func TestQueueRejectsOversizedFile(t *testing.T) {
	api := &fakeAPI{}
	q, _ := newTestQueue(t, api) // 1 MB ceiling
	big := writeTempFile(t, "big.pdf", bytes.Repeat([]byte("a"), 1<<20+1))

	done, err := q.Enqueue(Task{Kind: KindRubric, FilePath: big})
	require.NoError(t, err)
	require.ErrorIs(t, <-done, ErrFileTooLarge)
	require.Empty(t, api.recorded())
}

func TestQueueRejectsUnsupportedContent(t *testing.T) {
	api := &fakeAPI{}
	q, _ := newTestQueue(t, api)
	notes := writeTempFile(t, "notes.txt", []byte("plain text submission notes\n"))

	done, err := q.Enqueue(Task{Kind: KindRubric, FilePath: notes})
	require.NoError(t, err)
	require.ErrorIs(t, <-done, ErrUnsupportedFileType)
	require.Empty(t, api.recorded())
}

func TestQueueRefusesEnqueueAfterClose(t *testing.T) {
	api := &fakeAPI{}
	q, _ := newTestQueue(t, api)
	q.Close()

	_, err := q.Enqueue(Task{Kind: KindRubric, FilePath: "ignored.pdf"})
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestAcceptedKind(t *testing.T) {
	cases := []struct {
		mime string
		kind string
		ok   bool
	}{
		{"application/pdf", "pdf", true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "docx", true},
		{"application/msword", "docx", true},
		{"image/png", "image", true},
		{"image/jpeg", "image", true},
		{"text/plain; charset=utf-8", "", false},
		{"application/zip", "", false},
	}
	for _, tc := range cases {
		kind, ok := acceptedKind(tc.mime)
		require.Equal(t, tc.ok, ok, tc.mime)
		if tc.ok {
			require.Equal(t, tc.kind, kind, tc.mime)
		}
	}
}
