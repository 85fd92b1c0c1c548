package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hiredeck/hiredeck/internal/domain"
)

// InterviewService drives the per-application interview lifecycle:
// lazy question generation, answer collection with interim scoring, and
// completion detection.
type InterviewService struct {
	Jobs          domain.JobRepository
	Apps          domain.ApplicationRepository
	AI            domain.InterviewAI
	Reports       ReportService
	QuestionCount int

	// now is swappable for tests.
	now func() time.Time
}

// NewInterviewService constructs an InterviewService with its dependencies.
// questionCount is clamped to [1,10].
func NewInterviewService(j domain.JobRepository, a domain.ApplicationRepository, g domain.InterviewAI, r ReportService, questionCount int) InterviewService {
	if questionCount < 1 {
		questionCount = 1
	}
	if questionCount > 10 {
		questionCount = 10
	}
	return InterviewService{Jobs: j, Apps: a, AI: g, Reports: r, QuestionCount: questionCount, now: func() time.Time { return time.Now().UTC() }}
}

// SubmitAnswerResult is the outcome of one answer submission.
type SubmitAnswerResult struct {
	Response           domain.InterviewResponse
	InterviewCompleted bool
	QuestionsRemaining int
	Score              int
}

// EnsureQuestions returns the job's interview questions, generating and
// persisting them on first access. Idempotent: an existing set is returned
// untouched. Generation failures propagate with no partial write.
func (s InterviewService) EnsureQuestions(ctx domain.Context, jobID string) ([]domain.Question, error) {
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(job.InterviewQuestions) > 0 {
		return job.InterviewQuestions, nil
	}

	qs, err := s.generateQuestions(ctx, job)
	if err != nil {
		return nil, err
	}
	ok, err := s.Jobs.SetQuestionsIfEmpty(ctx, job.ID, qs)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another caller generated concurrently; their set won. Equivalent
		// in substance, so hand it back instead of fighting over it.
		job, err = s.Jobs.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		return job.InterviewQuestions, nil
	}
	slog.Info("interview questions generated", slog.String("job_id", job.ID), slog.Int("count", len(qs)))
	return qs, nil
}

// RegenerateQuestions overwrites the job's question set. Administrative:
// answers already recorded keep their snapshotted question text.
func (s InterviewService) RegenerateQuestions(ctx domain.Context, jobID string) ([]domain.Question, error) {
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	qs, err := s.generateQuestions(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := s.Jobs.ReplaceQuestions(ctx, job.ID, qs); err != nil {
		return nil, err
	}
	slog.Info("interview questions regenerated", slog.String("job_id", job.ID), slog.Int("count", len(qs)))
	return qs, nil
}

func (s InterviewService) generateQuestions(ctx domain.Context, job domain.JobPosting) ([]domain.Question, error) {
	if strings.TrimSpace(job.Description) == "" {
		return nil, fmt.Errorf("%w: job has no description", domain.ErrInvalidArgument)
	}
	drafts, degraded, err := s.AI.GenerateQuestions(ctx, BuildQuestionPrompt(job.Description, s.QuestionCount), s.QuestionCount)
	if err != nil {
		return nil, err
	}
	if degraded {
		slog.Warn("question generation degraded to fallback extraction",
			slog.String("job_id", job.ID), slog.Int("count", len(drafts)))
	}
	qs := make([]domain.Question, len(drafts))
	for i, d := range drafts {
		qs[i] = domain.Question{
			ID:                 ulid.Make().String(),
			Text:               d.Text,
			Category:           d.Category,
			ExpectedAnswerHint: d.ExpectedAnswerHint,
		}
	}
	return qs, nil
}

// SubmitAnswer validates, scores, and records one answer, then checks for
// completion. Scoring failures are swallowed into a degraded record: losing
// a candidate's answer is unacceptable, a provisional score is not. A
// report failure at the completion boundary likewise leaves the answer
// durable and the completed flag down for the administrative retry path.
func (s InterviewService) SubmitAnswer(ctx domain.Context, applicationID, questionID, answerText string) (SubmitAnswerResult, error) {
	answerText = strings.TrimSpace(answerText)
	if answerText == "" {
		return SubmitAnswerResult{}, fmt.Errorf("%w: answer text required", domain.ErrInvalidArgument)
	}

	app, err := s.Apps.Get(ctx, applicationID)
	if err != nil {
		return SubmitAnswerResult{}, err
	}
	if app.InterviewCompleted {
		return SubmitAnswerResult{}, fmt.Errorf("%w: application %s", domain.ErrAlreadyCompleted, applicationID)
	}
	job, err := s.Jobs.Get(ctx, app.JobID)
	if err != nil {
		return SubmitAnswerResult{}, err
	}
	var question *domain.Question
	for i := range job.InterviewQuestions {
		if job.InterviewQuestions[i].ID == questionID {
			question = &job.InterviewQuestions[i]
			break
		}
	}
	if question == nil {
		return SubmitAnswerResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownQuestion, questionID)
	}
	if app.HasResponse(questionID) {
		return SubmitAnswerResult{}, fmt.Errorf("%w: question %s", domain.ErrDuplicateAnswer, questionID)
	}

	analysis := s.scoreAnswer(ctx, *question, answerText, job.Description)

	resp := domain.InterviewResponse{
		QuestionID:   question.ID,
		QuestionText: question.Text,
		AnswerText:   answerText,
		AnalysisText: analysis.Analysis,
		Strengths:    analysis.Strengths,
		Concerns:     analysis.Concerns,
		Score:        analysis.Score,
		AnsweredAt:   s.now(),
	}
	if err := s.Apps.AppendResponse(ctx, app.ID, resp); err != nil {
		return SubmitAnswerResult{}, err
	}

	// Remaining is counted against the current question set by id, not by
	// response count: responses to questions that have since been
	// regenerated away must not stand in for current ones.
	app.InterviewResponses = append(app.InterviewResponses, resp)
	remaining := 0
	for _, q := range job.InterviewQuestions {
		if !app.HasResponse(q.ID) {
			remaining++
		}
	}
	result := SubmitAnswerResult{
		Response:           resp,
		QuestionsRemaining: remaining,
		Score:              analysis.Score,
	}

	if remaining == 0 {
		_, completed, err := s.Reports.generateAndSave(ctx, app, job)
		if err != nil {
			// The answer is real and stays. Completion remains false until
			// the administrative report path succeeds.
			slog.Warn("report generation failed at completion; interview left incomplete",
				slog.String("application_id", app.ID), slog.Any("error", err))
			return result, nil
		}
		result.InterviewCompleted = completed
		if completed {
			slog.Info("interview completed", slog.String("application_id", app.ID))
		}
	}
	return result, nil
}

func (s InterviewService) scoreAnswer(ctx domain.Context, q domain.Question, answer, jobDescription string) domain.AnswerAnalysis {
	analysis, err := s.AI.ScoreAnswer(ctx, BuildAnswerAnalysisPrompt(q.Text, answer, jobDescription))
	if err != nil {
		slog.Error("answer scoring failed; recording degraded response",
			slog.String("question_id", q.ID), slog.Any("error", err))
		return domain.DegradedAnswerAnalysis(domain.AnalysisPendingMarker)
	}
	return analysis
}
