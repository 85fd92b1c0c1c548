package usecase

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/hiredeck/hiredeck/internal/domain"
)

// ReportService produces and serves candidate evaluation reports.
//
// Report coercion fails loud: a fabricated hiring recommendation is worse
// than a retryable error, so unparseable model output never becomes a
// report.
type ReportService struct {
	Jobs        domain.JobRepository
	Apps        domain.ApplicationRepository
	AI          domain.InterviewAI
	TokenBudget int
}

// NewReportService constructs a ReportService with its dependencies.
func NewReportService(j domain.JobRepository, a domain.ApplicationRepository, g domain.InterviewAI, tokenBudget int) ReportService {
	return ReportService{Jobs: j, Apps: a, AI: g, TokenBudget: tokenBudget}
}

// Generate is the administrative force path: it regenerates the report from
// whatever responses exist, overwriting any previous one. At least one
// recorded response is required.
func (s ReportService) Generate(ctx domain.Context, applicationID string) (domain.EvaluationReport, error) {
	app, err := s.Apps.Get(ctx, applicationID)
	if err != nil {
		return domain.EvaluationReport{}, err
	}
	if len(app.InterviewResponses) == 0 {
		return domain.EvaluationReport{}, fmt.Errorf("%w: application %s", domain.ErrNoResponses, applicationID)
	}
	job, err := s.Jobs.Get(ctx, app.JobID)
	if err != nil {
		return domain.EvaluationReport{}, err
	}
	report, _, err := s.generateAndSave(ctx, app, job)
	return report, err
}

// Get returns the stored report, or ErrNotFound when none has been
// generated yet.
func (s ReportService) Get(ctx domain.Context, applicationID string) (domain.EvaluationReport, error) {
	app, err := s.Apps.Get(ctx, applicationID)
	if err != nil {
		return domain.EvaluationReport{}, err
	}
	if app.EvaluationReport == nil {
		return domain.EvaluationReport{}, fmt.Errorf("%w: no report for application %s", domain.ErrNotFound, applicationID)
	}
	return *app.EvaluationReport, nil
}

// generateAndSave runs the evaluation prompt over the application's full
// transcript and persists the coerced report. The returned flag reports
// whether the interview was marked completed: that happens only when every
// current question has an answer, so a force-generated partial report never
// marks the interview finished.
func (s ReportService) generateAndSave(ctx domain.Context, app domain.Application, job domain.JobPosting) (domain.EvaluationReport, bool, error) {
	report, err := s.AI.EvaluateInterview(ctx, BuildEvaluationPrompt(job.Description, app.InterviewResponses, app.CandidateProfile, s.TokenBudget))
	if err != nil {
		return domain.EvaluationReport{}, false, err
	}

	completed := allQuestionsAnswered(app, job)
	if err := s.Apps.SaveReport(ctx, app.ID, report, report.OverallScore, completed); err != nil {
		return domain.EvaluationReport{}, false, err
	}
	slog.Info("evaluation report saved",
		slog.String("application_id", app.ID),
		slog.Int("overall_score", report.OverallScore),
		slog.Bool("completed", completed))
	return report, completed, nil
}

func allQuestionsAnswered(app domain.Application, job domain.JobPosting) bool {
	if len(job.InterviewQuestions) == 0 {
		return false
	}
	for _, q := range job.InterviewQuestions {
		if !app.HasResponse(q.ID) {
			return false
		}
	}
	return true
}

// FallbackOverallScore derives an overall score from recorded per-answer
// scores when the evaluation model is unavailable: the mean 0..10 answer
// score scaled to 0..100 and rounded.
func FallbackOverallScore(responses []domain.InterviewResponse) (int, error) {
	if len(responses) == 0 {
		return 0, domain.ErrNoResponses
	}
	var sum int
	for _, r := range responses {
		sum += r.Score
	}
	mean := float64(sum) / float64(len(responses))
	score := int(math.Round(mean * 10))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}
