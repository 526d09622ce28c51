// Package evaluation drives the two-phase grading pipeline: build the fused
// evaluation context, then evaluate the submission against the rubric. The
// orchestrator is a small state machine; re-triggering while a phase is
// active is a no-op, and stale responses for an abandoned selection are
// discarded by the state store's guards.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

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
)

// ErrSelectionIncomplete indicates Run was called before a rubric, question,
// and submission were all selected. No network call is made.
var ErrSelectionIncomplete = errors.New("select a rubric, question, and submission first")

// DefaultMinStageDuration is the visual floor for the context-build stage so
// a fast backend response does not flash past the user.
const DefaultMinStageDuration = 3 * time.Second

// Phase is the orchestrator's current state.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseBuildingContext Phase = "building_context"
	PhaseContextReady    Phase = "context_ready"
	PhaseEvaluating      Phase = "evaluating"
	PhaseResultReady     Phase = "result_ready"
	PhaseFailed          Phase = "failed"
)

// Client is the slice of the EvalMate API the orchestrator needs.
type Client interface {
	BuildContext(ctx context.Context, req dto.FusionBuildRequest) (dto.FusionContextResponse, error)
	Evaluate(ctx context.Context, rubricID, questionID, submissionID string) (models.EvaluationResult, error)
}

// Orchestrator runs evaluations against the current selection.
type Orchestrator interface {
	// Run executes the pipeline for the current selection. Calling it while
	// a phase is active is a no-op. A local validation error is returned
	// when the selection is incomplete.
	Run(ctx context.Context) error
	// Adopt installs a previously stored result for the current selection,
	// building the fusion context first when none is present. The evaluate
	// call is skipped.
	Adopt(ctx context.Context, result models.EvaluationResult) error
	// Phase reports the current state.
	Phase() Phase
	// Acknowledge returns a Failed orchestrator to Idle.
	Acknowledge()
}

type orchestrator struct {
	client Client
	store  state.Store
	est    *progress.Estimator
	logger zerolog.Logger
	tracer trace.Tracer

	minStage time.Duration
	sleep    func(ctx context.Context, d time.Duration)
	now      func() time.Time

	mu    sync.Mutex
	phase Phase
}

// New constructs the orchestrator. minStage values of zero or below fall
// back to DefaultMinStageDuration.
func New(client Client, store state.Store, est *progress.Estimator, minStage time.Duration, logger zerolog.Logger) Orchestrator {
	if minStage <= 0 {
		minStage = DefaultMinStageDuration
	}
	return &orchestrator{
		client:   client,
		store:    store,
		est:      est,
		logger:   logger.With().Str("component", "evaluation").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/evalmate-go-client/internal/evaluation"),
		minStage: minStage,
		sleep:    sleepContext,
		now:      time.Now,
		phase:    PhaseIdle,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (o *orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *orchestrator) Acknowledge() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == PhaseFailed {
		o.phase = PhaseIdle
	}
}

func (o *orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	o.logger.Debug().Str("phase", string(p)).Msg("phase changed")
}

func (o *orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if p := o.phase; p == PhaseBuildingContext || p == PhaseEvaluating {
		o.mu.Unlock()
		o.logger.Debug().Str("phase", string(p)).Msg("run ignored, already in flight")
		return nil
	}

	snap := o.store.Snapshot()
	rubricID, questionID, submissionID, ok := snap.SelectionIDs()
	if !ok {
		o.mu.Unlock()
		return ErrSelectionIncomplete
	}

	reuse := snap.Context != nil && snap.Context.Matches(rubricID, questionID, submissionID)
	if reuse {
		o.phase = PhaseContextReady
	} else {
		o.phase = PhaseBuildingContext
	}
	o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, "evaluation.run", trace.WithAttributes(
		attribute.String("rubric.id", rubricID),
		attribute.String("question.id", questionID),
		attribute.String("submission.id", submissionID),
		attribute.Bool("context.reused", reuse),
	))
	defer span.End()

	if !reuse {
		if err := o.buildContext(ctx, rubricID, questionID, submissionID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context build failed")
			return err
		}
		if o.Phase() != PhaseContextReady {
			// selection changed mid-flight; the response was discarded
			span.SetStatus(codes.Ok, "discarded")
			return nil
		}
	} else {
		o.logger.Debug().Str("context_id", snap.Context.ID).Msg("reusing existing context")
	}

	if err := o.evaluate(ctx, rubricID, questionID, submissionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		return err
	}
	span.SetStatus(codes.Ok, string(o.Phase()))
	return nil
}

func (o *orchestrator) Adopt(ctx context.Context, result models.EvaluationResult) error {
	o.mu.Lock()
	if p := o.phase; p == PhaseBuildingContext || p == PhaseEvaluating {
		o.mu.Unlock()
		o.logger.Debug().Str("phase", string(p)).Msg("adopt ignored, already in flight")
		return nil
	}

	snap := o.store.Snapshot()
	rubricID, questionID, submissionID, ok := snap.SelectionIDs()
	if !ok {
		o.mu.Unlock()
		return ErrSelectionIncomplete
	}

	reuse := snap.Context != nil && snap.Context.Matches(rubricID, questionID, submissionID)
	if reuse {
		o.phase = PhaseContextReady
	} else {
		o.phase = PhaseBuildingContext
	}
	o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, "evaluation.adopt", trace.WithAttributes(
		attribute.String("submission.id", submissionID),
		attribute.Bool("context.reused", reuse),
	))
	defer span.End()

	if !reuse {
		if err := o.buildContext(ctx, rubricID, questionID, submissionID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context build failed")
			return err
		}
		if o.Phase() != PhaseContextReady {
			span.SetStatus(codes.Ok, "discarded")
			return nil
		}
	}

	applied := o.store.Apply(state.SetResult(result, rubricID, questionID, submissionID))
	if applied.Result == nil {
		o.discard("result")
		span.SetStatus(codes.Ok, "discarded")
		return nil
	}

	o.est.Complete()
	observability.Evaluations().WithLabelValues("reused").Inc()
	o.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem,
		"Reused stored result for "+submissionID)))
	o.logger.Info().Str("submission_id", submissionID).Str("eval_ref", result.EvalReference()).Msg("stored result adopted")
	o.setPhase(PhaseResultReady)
	return nil
}

// buildContext issues exactly one build call, holding the visual stage on
// screen for at least minStage even when the backend answers faster.
func (o *orchestrator) buildContext(ctx context.Context, rubricID, questionID, submissionID string) error {
	o.est.Start(progress.KindBuildContext, "Building evaluation context", submissionID)
	started := o.now()

	resp, err := o.client.BuildContext(ctx, dto.FusionBuildRequest{
		RubricID:     rubricID,
		QuestionID:   questionID,
		SubmissionID: submissionID,
	})
	if err != nil {
		return o.fail(fmt.Errorf("build context: %w", err))
	}

	if elapsed := o.now().Sub(started); elapsed < o.minStage {
		o.sleep(ctx, o.minStage-elapsed)
	}

	evalCtx := dto.NewEvaluationContext(resp)
	applied := o.store.Apply(state.SetContext(evalCtx))
	if applied.Context == nil || applied.Context.ID != evalCtx.ID {
		o.discard("context")
		return nil
	}

	o.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem,
		fmt.Sprintf("Context ready: %d text blocks, %d visuals, ~%d tokens",
			evalCtx.TextBlockCount, evalCtx.VisualCount, evalCtx.TokenEstimate))))
	o.setPhase(PhaseContextReady)
	return nil
}

// evaluate issues exactly one evaluate call carrying the three raw ids; the
// server re-derives or reuses the context from the same triple.
func (o *orchestrator) evaluate(ctx context.Context, rubricID, questionID, submissionID string) error {
	o.setPhase(PhaseEvaluating)
	o.est.Start(progress.KindEvaluate, "Evaluating submission", submissionID)

	result, err := o.client.Evaluate(ctx, rubricID, questionID, submissionID)
	if err != nil {
		return o.fail(fmt.Errorf("evaluate: %w", err))
	}

	applied := o.store.Apply(state.SetResult(result, rubricID, questionID, submissionID))
	if applied.Result == nil {
		o.discard("result")
		return nil
	}

	o.est.Complete()
	observability.Evaluations().WithLabelValues("completed").Inc()
	o.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem,
		fmt.Sprintf("Evaluation complete for %s (total %.2f)", submissionID, result.Total))))
	o.logger.Info().Str("submission_id", submissionID).Str("eval_ref", result.EvalReference()).Msg("evaluation complete")
	o.setPhase(PhaseResultReady)
	return nil
}

// fail records one failure: phase Failed, progress cleared, one activity
// entry. There is no automatic retry.
func (o *orchestrator) fail(err error) error {
	o.est.Fail()
	observability.Evaluations().WithLabelValues("failed").Inc()
	o.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem,
		"Evaluation failed: "+err.Error())))
	o.logger.Error().Err(err).Msg("evaluation failed")
	o.setPhase(PhaseFailed)
	return err
}

// discard handles a response that arrived for a selection the user has
// already abandoned.
func (o *orchestrator) discard(what string) {
	o.est.Fail()
	observability.Evaluations().WithLabelValues("discarded").Inc()
	o.logger.Debug().Str("stage", what).Msg("stale response discarded")
	o.setPhase(PhaseIdle)
}
