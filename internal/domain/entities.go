package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrDuplicateAnswer  = errors.New("duplicate answer")
	ErrAlreadyCompleted = errors.New("interview already completed")
	ErrNoResponses      = errors.New("no interview responses")
	ErrUpstreamConfig   = errors.New("upstream not configured")
	ErrUpstreamAuth     = errors.New("upstream auth failed")
	ErrUpstreamRequest  = errors.New("upstream request failed")
	ErrCoercion         = errors.New("response coercion failed")
	ErrInternal         = errors.New("internal error")
)

// Question categories
const (
	CategoryTechnical   = "technical"
	CategoryBehavioral  = "behavioral"
	CategorySituational = "situational"
	CategoryGeneral     = "general"
)

// ValidCategory reports whether c is one of the four question categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryTechnical, CategoryBehavioral, CategorySituational, CategoryGeneral:
		return true
	}
	return false
}

// Suitability ratings for evaluation reports
const (
	RatingExcellent    = "excellent"
	RatingGood         = "good"
	RatingAverage      = "average"
	RatingBelowAverage = "below-average"
	RatingPoor         = "poor"
)

// ValidRating reports whether r is one of the five suitability ratings.
func ValidRating(r string) bool {
	switch r {
	case RatingExcellent, RatingGood, RatingAverage, RatingBelowAverage, RatingPoor:
		return true
	}
	return false
}

// Question is one interview prompt. Immutable once persisted on a job;
// its id correlates answers recorded on applications.
type Question struct {
	ID                 string `json:"id"`
	Text               string `json:"text"`
	Category           string `json:"category"`
	ExpectedAnswerHint string `json:"expected_answer_hint"`
}

// JobPosting carries the interview-relevant slice of a hiring requisition.
// Description is the sole semantic input driving question generation.
type JobPosting struct {
	ID                 string
	Title              string
	Description        string
	InterviewQuestions []Question
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InterviewResponse is one answered question on an application.
// Score is the interim per-answer score in [0,10]; the final score of
// record comes from the evaluation report.
type InterviewResponse struct {
	QuestionID   string    `json:"question_id"`
	QuestionText string    `json:"question_text"`
	AnswerText   string    `json:"answer_text"`
	AnalysisText string    `json:"analysis_text"`
	Strengths    []string  `json:"strengths,omitempty"`
	Concerns     []string  `json:"concerns,omitempty"`
	Score        int       `json:"score"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// EvaluationReport is the structured final assessment of an interview.
// All numeric fields are in [0,100] and SuitabilityRating is one of the
// five enumerated values; the coercion layer guarantees both.
type EvaluationReport struct {
	OverallAssessment    string   `json:"overall_assessment"`
	Strengths            []string `json:"strengths"`
	Weaknesses           []string `json:"weaknesses"`
	Recommendations      string   `json:"recommendations"`
	TechnicalSkillsScore int      `json:"technical_skills_score"`
	CommunicationScore   int      `json:"communication_score"`
	CulturalFitScore     int      `json:"cultural_fit_score"`
	SuitabilityRating    string   `json:"suitability_rating"`
	OverallScore         int      `json:"overall_score"`
}

// Application carries the interview-relevant slice of a candidate's
// submission against a job.
// Invariants: InterviewCompleted flips false->true exactly when every
// question on the job has a response; InterviewScore equals
// EvaluationReport.OverallScore whenever a report exists.
type Application struct {
	ID                 string
	JobID              string
	CandidateName      string
	CandidateProfile   string
	InterviewResponses []InterviewResponse
	InterviewCompleted bool
	InterviewScore     *int
	EvaluationReport   *EvaluationReport
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasResponse reports whether the application already answered questionID.
func (a Application) HasResponse(questionID string) bool {
	for _, r := range a.InterviewResponses {
		if r.QuestionID == questionID {
			return true
		}
	}
	return false
}

// AISettings is the mutable upstream configuration record. It is fetched
// fresh on every gateway call; the model name may be corrected in place
// when it looks like a pasted credential.
type AISettings struct {
	APIKey     string
	ModelName  string
	RefererURL string
	SiteName   string
}

// Repositories (ports)

type JobRepository interface {
	Create(ctx Context, j JobPosting) (string, error)
	Get(ctx Context, id string) (JobPosting, error)
	// SetQuestionsIfEmpty persists qs only when the job still has no
	// questions. Returns false when another writer got there first.
	SetQuestionsIfEmpty(ctx Context, jobID string, qs []Question) (bool, error)
	// ReplaceQuestions overwrites the question set unconditionally
	// (administrative regeneration).
	ReplaceQuestions(ctx Context, jobID string, qs []Question) error
}

type ApplicationRepository interface {
	Create(ctx Context, a Application) (string, error)
	Get(ctx Context, id string) (Application, error)
	// AppendResponse appends resp unless a response for the same
	// question id already exists; the loser of that race gets
	// ErrDuplicateAnswer.
	AppendResponse(ctx Context, applicationID string, resp InterviewResponse) error
	// SaveReport atomically replaces the evaluation report, sets the
	// interview score, and (monotonically) raises the completed flag.
	SaveReport(ctx Context, applicationID string, report EvaluationReport, score int, completed bool) error
}

type SettingsRepository interface {
	Get(ctx Context) (AISettings, error)
	SetModelName(ctx Context, name string) error
}

// AI gateway (ports)

// QuestionDraft is a generated question before an id is assigned.
type QuestionDraft struct {
	Text               string
	Category           string
	ExpectedAnswerHint string
}

// AnswerAnalysis is the per-answer scoring record. Degraded marks records
// synthesized because the model output was unusable or the upstream call
// failed; the candidate's answer is preserved either way.
type AnswerAnalysis struct {
	Score           int
	Strengths       []string
	Concerns        []string
	Analysis        string
	RelevanceToRole string
	Degraded        bool
}

// AnalysisPendingMarker is stored as the analysis text when the upstream
// model call failed outright; the final evaluation report remains the score
// of record.
const AnalysisPendingMarker = "analysis pending: upstream model unavailable"

// DegradedAnswerAnalysis builds the default record used when scoring could
// not be performed. analysisText carries either the unparsed model output
// or AnalysisPendingMarker when the upstream call itself failed.
func DegradedAnswerAnalysis(analysisText string) AnswerAnalysis {
	return AnswerAnalysis{
		Score:     5,
		Strengths: []string{"Answer recorded"},
		Concerns:  []string{"Automated analysis was not available for this answer"},
		Analysis:  analysisText,
		Degraded:  true,
	}
}

// InterviewAI is the typed model gateway the interview services depend on.
// Implementations own prompting discipline (system preambles, temperature,
// token limits) and response coercion; callers hand over the rendered user
// prompt only. Each method performs exactly one upstream attempt.
type InterviewAI interface {
	// GenerateQuestions returns at least one draft on success; the bool
	// reports whether a degraded fallback extraction produced the set.
	GenerateQuestions(ctx Context, prompt string, requested int) ([]QuestionDraft, bool, error)
	// ScoreAnswer returns an error only when the upstream call itself
	// failed; unusable output degrades into a default record instead.
	ScoreAnswer(ctx Context, prompt string) (AnswerAnalysis, error)
	// EvaluateInterview fails on unusable output rather than fabricating
	// a report.
	EvaluateInterview(ctx Context, prompt string) (EvaluationReport, error)
}

// CompletionRequest is one chat-completion call. Op labels the call site
// for metrics/logging only.
type CompletionRequest struct {
	Op          string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// ChatCompleter wraps the remote chat-completion API. Implementations
// perform exactly one upstream attempt per call; retries are a caller
// concern.
type ChatCompleter interface {
	Complete(ctx Context, req CompletionRequest) (string, error)
}

// Context aliases context.Context so the domain package stays decoupled
// from transport concerns; adapters pass context.Context through.
type Context = context.Context
