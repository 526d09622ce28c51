package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/evalmate-go-client/internal/chat"
	"github.com/noah-isme/evalmate-go-client/internal/dto"
	"github.com/noah-isme/evalmate-go-client/internal/evaluation"
	"github.com/noah-isme/evalmate-go-client/internal/export"
	"github.com/noah-isme/evalmate-go-client/internal/models"
	"github.com/noah-isme/evalmate-go-client/internal/state"
	"github.com/noah-isme/evalmate-go-client/internal/uploads"
	"github.com/noah-isme/evalmate-go-client/pkg/evalmate"
)

var errInputClosed = errors.New("input closed")

// promptIndex returns uploadChoice when the user asks to upload a new
// resource, and idChoice when they paste a backend id instead of picking a
// listed one.
const (
	uploadChoice = -1
	idChoice     = -2
)

// Backend is the slice of the EvalMate API the terminal client calls
// directly. Uploads, evaluation, and chat go through their own components.
type Backend interface {
	Health(ctx context.Context) (dto.HealthResponse, error)
	ListRubrics(ctx context.Context) ([]dto.RubricMeta, error)
	GetRubric(ctx context.Context, id string) (dto.Rubric, error)
	ListQuestions(ctx context.Context, rubricID string) ([]dto.QuestionMeta, error)
	GetQuestion(ctx context.Context, id string) (dto.Question, error)
	ListSubmissions(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionMeta, error)
	GetSubmission(ctx context.Context, id string) (dto.Submission, error)
	GetEvaluationStatus(ctx context.Context, submissionID string) (dto.EvaluationStatusResponse, error)
	GetResult(ctx context.Context, submissionID string) (models.EvaluationResult, error)
}

// Dependencies carries everything the app needs wired in.
type Dependencies struct {
	Backend      Backend
	Store        state.Store
	Queue        *uploads.Queue
	Orchestrator evaluation.Orchestrator
	Chat         chat.Manager
	Export       *export.Writer
	Input        io.Reader
	Output       io.Writer
	Logger       zerolog.Logger
}

// App drives the interactive grading workflow.
type App struct {
	backend Backend
	store   state.Store
	queue   *uploads.Queue
	orch    evaluation.Orchestrator
	chat    chat.Manager
	export  *export.Writer
	logger  zerolog.Logger
	in      *bufio.Scanner
	out     io.Writer
}

// NewApp constructs the terminal client.
func NewApp(deps Dependencies) *App {
	return &App{
		backend: deps.Backend,
		store:   deps.Store,
		queue:   deps.Queue,
		orch:    deps.Orchestrator,
		chat:    deps.Chat,
		export:  deps.Export,
		logger:  deps.Logger.With().Str("component", "cli").Logger(),
		in:      bufio.NewScanner(deps.Input),
		out:     deps.Output,
	}
}

// Run walks the grading workflow until the user declines another round or
// input closes.
func (a *App) Run(ctx context.Context) error {
	a.banner()
	if _, err := a.backend.Health(ctx); err != nil {
		a.warnf("The backend is not reachable right now: %v", err)
	}

	for {
		if err := a.runOnce(ctx); err != nil {
			if errors.Is(err, errInputClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			a.errorf("%v", err)
		}

		fmt.Fprintln(a.out)
		again, err := a.promptYesNo("Run another evaluation?", "n")
		if err != nil || again != "y" {
			fmt.Fprintln(a.out, "Happy grading!")
			return nil
		}
		fmt.Fprintln(a.out)
	}
}

func (a *App) runOnce(ctx context.Context) error {
	a.orch.Acknowledge()

	a.stepf(1, "Select a rubric")
	if err := a.chooseRubric(ctx); err != nil {
		return err
	}

	a.stepf(2, "Select a question")
	if err := a.chooseQuestion(ctx); err != nil {
		return err
	}

	a.stepf(3, "Select a submission")
	if err := a.chooseSubmission(ctx); err != nil {
		return err
	}

	a.stepf(4, "Evaluate")
	reused, err := a.reuseStoredResult(ctx)
	if err != nil {
		return err
	}
	if !reused {
		if err := a.orch.Run(ctx); err != nil {
			return err
		}
	}

	snap := a.store.Snapshot()
	if snap.Context != nil {
		a.successf("Context: %d text blocks, %d visuals, ~%d tokens",
			snap.Context.TextBlockCount, snap.Context.VisualCount, snap.Context.TokenEstimate)
	}
	if snap.Result == nil {
		return errors.New("evaluation finished without a result; selection changed mid-flight")
	}

	a.stepf(5, "Results")
	a.renderResult(*snap.Result)

	if err := a.offerExport(*snap.Result); err != nil {
		return err
	}

	discuss, err := a.promptYesNo("Discuss this result in a chat?", "n")
	if err != nil {
		return err
	}
	if discuss == "y" {
		return a.chatLoop(ctx)
	}
	return nil
}

func (a *App) chooseRubric(ctx context.Context) error {
	metas, err := a.backend.ListRubrics(ctx)
	if err != nil {
		return fmt.Errorf("list rubrics: %w", err)
	}

	choice := uploadChoice
	pasted := ""
	if len(metas) == 0 {
		fmt.Fprintln(a.out, "No rubrics on the backend yet; upload one.")
	} else {
		for i, m := range metas {
			fmt.Fprintf(a.out, "  %d. %s / %s (v%s)\n", i+1, m.Course, m.Assignment, m.Version)
		}
		choice, pasted, err = a.promptIndex(`Pick a rubric, "u" to upload a new one, or paste an id`, len(metas))
		if err != nil {
			return err
		}
	}

	if choice == uploadChoice {
		if err := a.uploadRubric(ctx); err != nil {
			return err
		}
	} else {
		id := pasted
		if choice != idChoice {
			id = metas[choice].ID
		}
		rubric, err := a.backend.GetRubric(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch rubric: %w", err)
		}
		a.store.Apply(state.SelectRubric(dto.NewRubricRef(rubric)))
	}

	snap := a.store.Snapshot()
	if snap.Rubric == nil {
		return errors.New("no rubric selected")
	}
	a.successf("Rubric: %s", snap.Rubric.Label())
	return nil
}

func (a *App) chooseQuestion(ctx context.Context) error {
	rubric := a.store.Snapshot().Rubric
	metas, err := a.backend.ListQuestions(ctx, rubric.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	choice := uploadChoice
	pasted := ""
	if len(metas) == 0 {
		fmt.Fprintln(a.out, "No questions for this rubric yet; upload one.")
	} else {
		for i, m := range metas {
			label := m.Title
			if label == "" {
				label = m.ID
			}
			fmt.Fprintf(a.out, "  %d. %s\n", i+1, label)
		}
		choice, pasted, err = a.promptIndex(`Pick a question, "u" to upload a new one, or paste an id`, len(metas))
		if err != nil {
			return err
		}
	}

	if choice == uploadChoice {
		if err := a.uploadQuestion(ctx); err != nil {
			return err
		}
	} else {
		id := pasted
		if choice != idChoice {
			id = metas[choice].ID
		}
		question, err := a.backend.GetQuestion(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch question: %w", err)
		}
		a.store.Apply(state.SelectQuestion(dto.NewQuestionRef(question)))
	}

	snap := a.store.Snapshot()
	if snap.Question == nil {
		return errors.New("no question selected")
	}
	a.successf("Question: %s", snap.Question.Label())
	return nil
}

func (a *App) chooseSubmission(ctx context.Context) error {
	snap := a.store.Snapshot()
	filter := dto.SubmissionFilter{RubricID: snap.Rubric.ID, QuestionID: snap.Question.ID}
	metas, err := a.backend.ListSubmissions(ctx, filter)
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}

	choice := uploadChoice
	pasted := ""
	if len(metas) == 0 {
		fmt.Fprintln(a.out, "No submissions for this question yet; upload one.")
	} else {
		for i, m := range metas {
			label := m.StudentHandle
			if label == "" {
				label = m.ID
			}
			fmt.Fprintf(a.out, "  %d. %s\n", i+1, label)
		}
		choice, pasted, err = a.promptIndex(`Pick a submission, "u" to upload a new one, or paste an id`, len(metas))
		if err != nil {
			return err
		}
	}

	if choice == uploadChoice {
		if err := a.uploadSubmission(ctx); err != nil {
			return err
		}
	} else {
		id := pasted
		if choice != idChoice {
			id = metas[choice].ID
		}
		submission, err := a.backend.GetSubmission(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch submission: %w", err)
		}
		a.store.Apply(state.SelectSubmission(dto.NewSubmissionRef(submission)))
	}

	snap = a.store.Snapshot()
	if snap.Submission == nil {
		return errors.New("no submission selected")
	}
	a.successf("Submission: %s", snap.Submission.Label())
	return nil
}

func (a *App) uploadRubric(ctx context.Context) error {
	path, err := a.prompt("File path", "")
	if err != nil {
		return err
	}
	course, err := a.prompt("Course (optional)", "")
	if err != nil {
		return err
	}
	assignment, err := a.prompt("Assignment (optional)", "")
	if err != nil {
		return err
	}
	version, err := a.prompt("Version (optional)", "")
	if err != nil {
		return err
	}
	return a.awaitUpload(ctx, uploads.Task{
		Kind:       uploads.KindRubric,
		FilePath:   path,
		Course:     course,
		Assignment: assignment,
		Version:    version,
	})
}

func (a *App) uploadQuestion(ctx context.Context) error {
	path, err := a.prompt("File path", "")
	if err != nil {
		return err
	}
	title, err := a.prompt("Title (optional)", "")
	if err != nil {
		return err
	}
	return a.awaitUpload(ctx, uploads.Task{
		Kind:     uploads.KindQuestion,
		FilePath: path,
		Title:    title,
	})
}

func (a *App) uploadSubmission(ctx context.Context) error {
	path, err := a.prompt("File path", "")
	if err != nil {
		return err
	}
	handle, err := a.prompt("Student handle (optional)", "")
	if err != nil {
		return err
	}
	return a.awaitUpload(ctx, uploads.Task{
		Kind:          uploads.KindSubmission,
		FilePath:      path,
		StudentHandle: handle,
	})
}

// reuseStoredResult offers the stored evaluation when the backend reports
// the selected submission as already graded. Returns true once a stored
// result has been adopted; any fall-through means a fresh run is needed.
func (a *App) reuseStoredResult(ctx context.Context) (bool, error) {
	snap := a.store.Snapshot()
	_, _, sid, ok := snap.SelectionIDs()
	if !ok {
		return false, nil
	}

	status, err := a.backend.GetEvaluationStatus(ctx, sid)
	if err != nil {
		a.logger.Debug().Err(err).Str("submission_id", sid).Msg("evaluation status check failed")
		return false, nil
	}
	if !status.Evaluated {
		return false, nil
	}

	if status.TotalScore != nil {
		fmt.Fprintf(a.out, "Already graded: %.1f/100\n", *status.TotalScore)
	}
	reuse, err := a.promptYesNo("Reuse the stored result?", "y")
	if err != nil {
		return false, err
	}
	if reuse != "y" {
		return false, nil
	}

	result, err := a.backend.GetResult(ctx, sid)
	if err != nil {
		a.warnf("Stored result unavailable (%v); running a fresh evaluation.", err)
		return false, nil
	}
	if err := a.orch.Adopt(ctx, result); err != nil {
		return false, err
	}
	return true, nil
}

func (a *App) awaitUpload(ctx context.Context, t uploads.Task) error {
	done, err := a.queue.Enqueue(t)
	if err != nil {
		return fmt.Errorf("enqueue upload: %w", err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) offerExport(result models.EvaluationResult) error {
	save, err := a.promptYesNo("Save results to files?", "y")
	if err != nil {
		return err
	}
	if save != "y" {
		return nil
	}

	jsonPath, csvPath, err := a.export.Save(result)
	if err != nil {
		a.errorf("export failed: %v", err)
		return nil
	}
	a.successf("Results saved:")
	fmt.Fprintf(a.out, "  JSON: %s\n  CSV:  %s\n", jsonPath, csvPath)
	return nil
}

func (a *App) chatLoop(ctx context.Context) error {
	if _, err := a.chat.Open(ctx); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	defer a.chat.Close(ctx)

	fmt.Fprintln(a.out, `Ask about the evaluation. "/history" reprints the transcript, "/quit" leaves.`)
	for {
		text, err := a.prompt("you", "")
		if err != nil {
			return nil
		}
		switch {
		case text == "":
			continue
		case strings.EqualFold(text, "/quit"):
			return nil
		case strings.EqualFold(text, "/history"):
			if err := a.chat.Refresh(ctx); err != nil {
				a.warnf("Could not refresh the transcript: %v", err)
			}
			for _, msg := range a.chat.History() {
				fmt.Fprintf(a.out, "  %s: %s\n", msg.Role, msg.Content)
			}
		default:
			reply, err := a.chat.Send(ctx, text)
			if err != nil {
				if errors.Is(err, evalmate.ErrSessionExpired) {
					a.warnf("The chat session expired. Start a new chat to continue.")
					return nil
				}
				a.errorf("send failed: %v", err)
				continue
			}
			assistantColor.Fprintf(a.out, "assistant: %s\n", reply.Content)
		}
	}
}

// Status fetches the three resource lists concurrently and prints counts.
func (a *App) Status(ctx context.Context) error {
	var (
		rubrics     []dto.RubricMeta
		questions   []dto.QuestionMeta
		submissions []dto.SubmissionMeta
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rubrics, err = a.backend.ListRubrics(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		questions, err = a.backend.ListQuestions(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		submissions, err = a.backend.ListSubmissions(gctx, dto.SubmissionFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}

	a.titlef("EvalMate backend status")
	fmt.Fprintf(a.out, "Rubrics:     %d\n", len(rubrics))
	fmt.Fprintf(a.out, "Questions:   %d\n", len(questions))
	fmt.Fprintf(a.out, "Submissions: %d\n", len(submissions))
	if len(rubrics) > 0 && len(questions) > 0 && len(submissions) > 0 {
		a.successf("Ready to run evaluations.")
	} else {
		a.warnf(`Some resources are missing; upload them with "evalmate run".`)
	}
	return nil
}

// Health pings the backend and prints the outcome.
func (a *App) Health(ctx context.Context) error {
	resp, err := a.backend.Health(ctx)
	if err != nil {
		a.errorf("Backend unreachable: %v", err)
		return err
	}
	a.successf("Backend is %s.", resp.Status)
	return nil
}

func (a *App) prompt(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(a.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(a.out, "%s: ", label)
	}
	if !a.in.Scan() {
		return "", errInputClosed
	}
	text := strings.TrimSpace(a.in.Text())
	if text == "" {
		return def, nil
	}
	return text, nil
}

func (a *App) promptYesNo(label, def string) (string, error) {
	for {
		text, err := a.prompt(label+" (y/n)", def)
		if err != nil {
			return "", err
		}
		text = strings.ToLower(text)
		if text == "y" || text == "n" {
			return text, nil
		}
		a.warnf(`Answer "y" or "n".`)
	}
}

// promptIndex reads a selection: a 1-based list number, "u" to upload, or a
// pasted backend id. Anything else, malformed ids included, re-prompts
// without touching the network.
func (a *App) promptIndex(label string, n int) (int, string, error) {
	for {
		text, err := a.prompt(label, "")
		if err != nil {
			return 0, "", err
		}
		if strings.EqualFold(text, "u") {
			return uploadChoice, "", nil
		}
		if idx, convErr := strconv.Atoi(text); convErr == nil && idx >= 1 && idx <= n {
			return idx - 1, "", nil
		}
		if models.ValidID(text) {
			return idChoice, text, nil
		}
		a.warnf(`Enter a number between 1 and %d, "u", or a resource id.`, n)
	}
}
