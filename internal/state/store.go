// Package state holds the single source of truth for the grading workflow:
// the current rubric, question, and submission selection, the fused
// evaluation context, the evaluation result, and the activity log. All
// mutation flows through one serialized transition operation so cascades
// are atomic and readers never observe torn state.
package state

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/evalmate-go-client/internal/models"
)

// Snapshot is an immutable view of the workflow state. Pointer fields are
// replaced wholesale by transitions; callers must not mutate the pointees.
type Snapshot struct {
	Rubric     *models.RubricRef
	Question   *models.QuestionRef
	Submission *models.SubmissionRef
	Context    *models.EvaluationContext
	Result     *models.EvaluationResult
	Activity   []models.ActivityMessage
}

// SelectionComplete reports whether rubric, question, and submission are all
// selected.
func (s Snapshot) SelectionComplete() bool {
	return s.Rubric != nil && s.Question != nil && s.Submission != nil
}

// SelectionIDs returns the three selected ids. ok is false while the
// selection is incomplete.
func (s Snapshot) SelectionIDs() (rubricID, questionID, submissionID string, ok bool) {
	if !s.SelectionComplete() {
		return "", "", "", false
	}
	return s.Rubric.ID, s.Question.ID, s.Submission.ID, true
}

func (s Snapshot) selectionIs(rubricID, questionID, submissionID string) bool {
	r, q, sub, ok := s.SelectionIDs()
	return ok && r == rubricID && q == questionID && sub == submissionID
}

// clone copies the snapshot. The activity slice is reallocated with
// len == cap so appends inside transitions never alias the stored log.
func (s Snapshot) clone() Snapshot {
	out := s
	if len(s.Activity) > 0 {
		out.Activity = make([]models.ActivityMessage, len(s.Activity))
		copy(out.Activity, s.Activity)
	}
	return out
}

// Transition maps one snapshot to the next. Transitions must be pure;
// returning the input unchanged discards the attempted write.
type Transition func(Snapshot) Snapshot

// Store serializes workflow state transitions.
type Store interface {
	// Snapshot returns a consistent copy of the current state.
	Snapshot() Snapshot
	// Apply runs one transition atomically and returns the resulting state.
	Apply(Transition) Snapshot
}

type store struct {
	mu      sync.RWMutex
	current Snapshot
	logger  zerolog.Logger
}

// NewStore creates an empty workflow state store.
func NewStore(logger zerolog.Logger) Store {
	return &store{
		logger: logger.With().Str("component", "state_store").Logger(),
	}
}

func (st *store) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.clone()
}

func (st *store) Apply(t Transition) Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := t(st.current.clone())
	st.current = next

	st.logger.Debug().
		Bool("has_rubric", next.Rubric != nil).
		Bool("has_question", next.Question != nil).
		Bool("has_submission", next.Submission != nil).
		Bool("has_context", next.Context != nil).
		Bool("has_result", next.Result != nil).
		Int("activity_len", len(next.Activity)).
		Msg("state transition applied")

	return next.clone()
}

// SelectRubric makes r the current rubric and clears everything downstream
// of it: question, submission, context, and result.
func SelectRubric(r models.RubricRef) Transition {
	return func(s Snapshot) Snapshot {
		s.Rubric = &r
		s.Question = nil
		s.Submission = nil
		s.Context = nil
		s.Result = nil
		return s
	}
}

// SelectQuestion makes q the current question and clears submission,
// context, and result. A question that does not belong to the selected
// rubric is discarded (stale upload or fetch).
func SelectQuestion(q models.QuestionRef) Transition {
	return func(s Snapshot) Snapshot {
		if s.Rubric == nil || s.Rubric.ID != q.RubricID {
			return s
		}
		s.Question = &q
		s.Submission = nil
		s.Context = nil
		s.Result = nil
		return s
	}
}

// SelectSubmission makes sub the current submission and clears context and
// result. A submission that does not belong to the selected rubric and
// question is discarded.
func SelectSubmission(sub models.SubmissionRef) Transition {
	return func(s Snapshot) Snapshot {
		if s.Rubric == nil || s.Question == nil {
			return s
		}
		if sub.RubricID != s.Rubric.ID || sub.QuestionID != s.Question.ID {
			return s
		}
		s.Submission = &sub
		s.Context = nil
		s.Result = nil
		return s
	}
}

// SetContext stores a freshly built evaluation context. The write only
// lands while the context still references the live selection; a response
// for an abandoned selection is an identity transition.
func SetContext(evalCtx models.EvaluationContext) Transition {
	return func(s Snapshot) Snapshot {
		r, q, sub, ok := s.SelectionIDs()
		if !ok || !evalCtx.Matches(r, q, sub) {
			return s
		}
		s.Context = &evalCtx
		s.Result = nil
		return s
	}
}

// SetResult stores an evaluation result. rubricID, questionID, and
// submissionID are the ids the evaluate call was issued for; the write is
// discarded when the selection moved on or the context is gone.
func SetResult(res models.EvaluationResult, rubricID, questionID, submissionID string) Transition {
	return func(s Snapshot) Snapshot {
		if s.Context == nil || !s.selectionIs(rubricID, questionID, submissionID) {
			return s
		}
		s.Result = &res
		return s
	}
}

// AppendActivity adds one entry to the activity log.
func AppendActivity(msg models.ActivityMessage) Transition {
	return func(s Snapshot) Snapshot {
		s.Activity = append(s.Activity, msg)
		return s
	}
}

// Reset returns the store to its zero state.
func Reset() Transition {
	return func(Snapshot) Snapshot {
		return Snapshot{}
	}
}
