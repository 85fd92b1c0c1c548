package ai

import (
	"fmt"

	"github.com/hiredeck/hiredeck/internal/adapter/observability"
	"github.com/hiredeck/hiredeck/internal/domain"
)

// System preambles per operation. Scoring and evaluation run near
// deterministic; question generation stays varied.
const (
	questionSystemPreamble = "You are an experienced technical recruiter designing interview questions. Respond with ONLY valid JSON. No explanations, markdown, or prose outside the JSON."
	analysisSystemPreamble = "You are an experienced interviewer scoring a candidate's answer. Respond with ONLY valid JSON. No explanations, markdown, or prose outside the JSON."
	reportSystemPreamble   = "You are a senior hiring panel member writing a final interview evaluation. Respond with ONLY valid JSON. No explanations, markdown, or prose outside the JSON."
)

const (
	questionTemperature = 0.7
	scoringTemperature  = 0.1
)

// InterviewGateway adapts a raw chat completer into the typed interview
// operations the services consume. It owns everything model-shaped: system
// preambles, sampling temperatures, token limits, and the coercion of raw
// output into domain records. Each method performs exactly one upstream
// attempt; upstream errors pass through unwrapped for errors.Is matching.
type InterviewGateway struct {
	Client domain.ChatCompleter
}

// NewInterviewGateway wraps a chat completer.
func NewInterviewGateway(c domain.ChatCompleter) InterviewGateway {
	return InterviewGateway{Client: c}
}

// GenerateQuestions requests a question list for the prompt. The second
// return value reports that coercion fell back to line extraction and the
// drafts are degraded.
func (g InterviewGateway) GenerateQuestions(ctx domain.Context, prompt string, requested int) ([]domain.QuestionDraft, bool, error) {
	raw, err := g.Client.Complete(ctx, domain.CompletionRequest{
		Op:          "generate_questions",
		System:      questionSystemPreamble,
		Prompt:      prompt,
		Temperature: questionTemperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, false, fmt.Errorf("generate questions: %w", err)
	}
	drafts, degraded := CoerceQuestionList(raw, requested)
	observability.QuestionsGeneratedHistogram.Observe(float64(len(drafts)))
	return drafts, degraded, nil
}

// ScoreAnswer requests a per-answer analysis. Parse trouble is absorbed into
// a degraded record; only upstream failures surface as errors, leaving the
// caller to decide whether losing the score should lose the answer.
func (g InterviewGateway) ScoreAnswer(ctx domain.Context, prompt string) (domain.AnswerAnalysis, error) {
	raw, err := g.Client.Complete(ctx, domain.CompletionRequest{
		Op:          "score_answer",
		System:      analysisSystemPreamble,
		Prompt:      prompt,
		Temperature: scoringTemperature,
		MaxTokens:   1000,
	})
	if err != nil {
		return domain.AnswerAnalysis{}, fmt.Errorf("score answer: %w", err)
	}
	analysis := CoerceAnswerAnalysis(raw)
	observability.AnswerScoreHistogram.Observe(float64(analysis.Score))
	return analysis, nil
}

// EvaluateInterview requests the final report. Coercion fails loud here:
// unparseable output returns ErrCoercion rather than a placeholder report.
func (g InterviewGateway) EvaluateInterview(ctx domain.Context, prompt string) (domain.EvaluationReport, error) {
	raw, err := g.Client.Complete(ctx, domain.CompletionRequest{
		Op:          "evaluate",
		System:      reportSystemPreamble,
		Prompt:      prompt,
		Temperature: scoringTemperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return domain.EvaluationReport{}, fmt.Errorf("generate report: %w", err)
	}
	report, err := CoerceEvaluationReport(raw)
	if err != nil {
		return domain.EvaluationReport{}, err
	}
	observability.ReportScoreHistogram.Observe(float64(report.OverallScore))
	return report, nil
}

var _ domain.InterviewAI = InterviewGateway{}
