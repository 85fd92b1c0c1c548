package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredeck/hiredeck/internal/adapter/ai"
	"github.com/hiredeck/hiredeck/internal/domain"
	"github.com/hiredeck/hiredeck/internal/usecase"
)

// In-memory fakes implementing the repository and gateway ports.

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]domain.JobPosting

	setIfEmptyResult *bool // forces the CAS outcome when non-nil
}

func newFakeJobRepo(jobs ...domain.JobPosting) *fakeJobRepo {
	r := &fakeJobRepo{jobs: map[string]domain.JobPosting{}}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRepo) Create(_ domain.Context, j domain.JobPosting) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	return j.ID, nil
}

func (r *fakeJobRepo) Get(_ domain.Context, id string) (domain.JobPosting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.JobPosting{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
	}
	return j, nil
}

func (r *fakeJobRepo) SetQuestionsIfEmpty(_ domain.Context, jobID string, qs []domain.Question) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setIfEmptyResult != nil {
		if *r.setIfEmptyResult {
			j := r.jobs[jobID]
			j.InterviewQuestions = qs
			r.jobs[jobID] = j
		}
		return *r.setIfEmptyResult, nil
	}
	j, ok := r.jobs[jobID]
	if !ok || len(j.InterviewQuestions) > 0 {
		return false, nil
	}
	j.InterviewQuestions = qs
	r.jobs[jobID] = j
	return true, nil
}

func (r *fakeJobRepo) ReplaceQuestions(_ domain.Context, jobID string, qs []domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.InterviewQuestions = qs
	r.jobs[jobID] = j
	return nil
}

type fakeAppRepo struct {
	mu   sync.Mutex
	apps map[string]domain.Application

	saveReportErr error
}

func newFakeAppRepo(apps ...domain.Application) *fakeAppRepo {
	r := &fakeAppRepo{apps: map[string]domain.Application{}}
	for _, a := range apps {
		r.apps[a.ID] = a
	}
	return r
}

func (r *fakeAppRepo) Create(_ domain.Context, a domain.Application) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[a.ID] = a
	return a.ID, nil
}

func (r *fakeAppRepo) Get(_ domain.Context, id string) (domain.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return domain.Application{}, fmt.Errorf("op=application.get: %w", domain.ErrNotFound)
	}
	return a, nil
}

func (r *fakeAppRepo) AppendResponse(_ domain.Context, applicationID string, resp domain.InterviewResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[applicationID]
	if !ok {
		return domain.ErrNotFound
	}
	if a.HasResponse(resp.QuestionID) {
		return fmt.Errorf("question %s: %w", resp.QuestionID, domain.ErrDuplicateAnswer)
	}
	a.InterviewResponses = append(a.InterviewResponses, resp)
	r.apps[applicationID] = a
	return nil
}

func (r *fakeAppRepo) SaveReport(_ domain.Context, applicationID string, report domain.EvaluationReport, score int, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveReportErr != nil {
		return r.saveReportErr
	}
	a, ok := r.apps[applicationID]
	if !ok {
		return domain.ErrNotFound
	}
	a.EvaluationReport = &report
	a.InterviewScore = &score
	a.InterviewCompleted = a.InterviewCompleted || completed
	r.apps[applicationID] = a
	return nil
}

// fakeAI returns canned output per op and records calls.
type fakeAI struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []domain.CompletionRequest
}

func newFakeAI() *fakeAI {
	return &fakeAI{replies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeAI) Complete(_ domain.Context, req domain.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.Op]; err != nil {
		return "", err
	}
	return f.replies[req.Op], nil
}

func (f *fakeAI) callsFor(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

const goodQuestionsJSON = `[
	{"question": "Describe a system you scaled.", "type": "technical", "expected_answer": "Concrete scaling story."},
	{"question": "Tell me about a disagreement with a teammate.", "type": "behavioral"}
]`

const goodAnalysisJSON = `{"score": 7, "strengths": ["specific"], "concerns": ["short"], "analysis": "Decent depth."}`

const goodReportJSON = `{
	"overall_assessment": "Capable candidate.",
	"strengths": ["delivery"],
	"weaknesses": ["breadth"],
	"recommendations": "Hire.",
	"technical_skills_score": 70,
	"communication_score": 75,
	"cultural_fit_score": 65,
	"suitability_rating": "good",
	"overall_score": 72
}`

func newServices(jobs *fakeJobRepo, apps *fakeAppRepo, client *fakeAI) usecase.InterviewService {
	gateway := ai.NewInterviewGateway(client)
	reports := usecase.NewReportService(jobs, apps, gateway, 6000)
	return usecase.NewInterviewService(jobs, apps, gateway, reports, 5)
}

func TestEnsureQuestions_GeneratesOnce(t *testing.T) {
	t.Parallel()
	jobs := newFakeJobRepo(domain.JobPosting{ID: "job-1", Description: "Backend engineer role."})
	client := newFakeAI()
	client.replies["generate_questions"] = goodQuestionsJSON
	svc := newServices(jobs, newFakeAppRepo(), client)

	qs, err := svc.EnsureQuestions(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.NotEmpty(t, qs[0].ID)
	assert.NotEqual(t, qs[0].ID, qs[1].ID)

	// Second call must serve the stored set without another model call.
	again, err := svc.EnsureQuestions(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, qs, again)
	assert.Equal(t, 1, client.callsFor("generate_questions"))
}

func TestEnsureQuestions_LostRaceReturnsWinners(t *testing.T) {
	t.Parallel()
	winners := []domain.Question{{ID: "q-w", Text: "Winner question?", Category: domain.CategoryGeneral}}
	jobs := newFakeJobRepo(domain.JobPosting{ID: "job-1", Description: "Role."})
	lost := false
	jobs.setIfEmptyResult = &lost
	client := newFakeAI()
	client.replies["generate_questions"] = goodQuestionsJSON
	svc := newServices(jobs, newFakeAppRepo(), client)

	// Simulate the concurrent winner's set landing before our CAS re-read.
	jobs.mu.Lock()
	j := jobs.jobs["job-1"]
	j.InterviewQuestions = winners
	jobs.jobs["job-1"] = j
	jobs.mu.Unlock()

	qs, err := svc.EnsureQuestions(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, winners, qs)
}

func TestEnsureQuestions_GenerationFailurePersistsNothing(t *testing.T) {
	t.Parallel()
	jobs := newFakeJobRepo(domain.JobPosting{ID: "job-1", Description: "Role."})
	client := newFakeAI()
	client.errs["generate_questions"] = domain.ErrUpstreamRequest
	svc := newServices(jobs, newFakeAppRepo(), client)

	_, err := svc.EnsureQuestions(context.Background(), "job-1")
	require.ErrorIs(t, err, domain.ErrUpstreamRequest)

	j, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Empty(t, j.InterviewQuestions)
}

func TestRegenerateQuestions_Overwrites(t *testing.T) {
	t.Parallel()
	jobs := newFakeJobRepo(domain.JobPosting{
		ID:                 "job-1",
		Description:        "Role.",
		InterviewQuestions: []domain.Question{{ID: "old", Text: "Old question?"}},
	})
	client := newFakeAI()
	client.replies["generate_questions"] = goodQuestionsJSON
	svc := newServices(jobs, newFakeAppRepo(), client)

	qs, err := svc.RegenerateQuestions(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, qs, 2)
	j, _ := jobs.Get(context.Background(), "job-1")
	assert.Equal(t, qs, j.InterviewQuestions)
}

func twoQuestionFixture() (*fakeJobRepo, *fakeAppRepo) {
	jobs := newFakeJobRepo(domain.JobPosting{
		ID:          "job-1",
		Description: "Role.",
		InterviewQuestions: []domain.Question{
			{ID: "q-1", Text: "First?", Category: domain.CategoryTechnical},
			{ID: "q-2", Text: "Second?", Category: domain.CategoryBehavioral},
		},
	})
	apps := newFakeAppRepo(domain.Application{ID: "app-1", JobID: "job-1", CandidateProfile: "profile"})
	return jobs, apps
}

func TestSubmitAnswer_FullInterviewFlow(t *testing.T) {
	t.Parallel()
	jobs, apps := twoQuestionFixture()
	client := newFakeAI()
	client.replies["score_answer"] = goodAnalysisJSON
	client.replies["evaluate"] = goodReportJSON
	svc := newServices(jobs, apps, client)

	res, err := svc.SubmitAnswer(context.Background(), "app-1", "q-1", "I built things.")
	require.NoError(t, err)
	assert.False(t, res.InterviewCompleted)
	assert.Equal(t, 1, res.QuestionsRemaining)
	assert.Equal(t, 7, res.Score)

	res, err = svc.SubmitAnswer(context.Background(), "app-1", "q-2", "I handled conflict.")
	require.NoError(t, err)
	assert.True(t, res.InterviewCompleted)
	assert.Equal(t, 0, res.QuestionsRemaining)

	a, _ := apps.Get(context.Background(), "app-1")
	assert.True(t, a.InterviewCompleted)
	require.NotNil(t, a.EvaluationReport)
	require.NotNil(t, a.InterviewScore)
	assert.Equal(t, a.EvaluationReport.OverallScore, *a.InterviewScore)
	assert.Len(t, a.InterviewResponses, 2)
}

func TestSubmitAnswer_StaleResponseDoesNotComplete(t *testing.T) {
	t.Parallel()
	// The application answered a question that was later regenerated away.
	// That stale response must not count toward the current set: one answer
	// to a two-question set leaves one remaining, not zero.
	jobs := newFakeJobRepo(domain.JobPosting{
		ID:          "job-1",
		Description: "Role.",
		InterviewQuestions: []domain.Question{
			{ID: "q-new-1", Text: "New first?"},
			{ID: "q-new-2", Text: "New second?"},
		},
	})
	apps := newFakeAppRepo(domain.Application{
		ID:    "app-1",
		JobID: "job-1",
		InterviewResponses: []domain.InterviewResponse{
			{QuestionID: "q-old", QuestionText: "Retired question?", AnswerText: "old answer", Score: 6},
		},
	})
	client := newFakeAI()
	client.replies["score_answer"] = goodAnalysisJSON
	client.replies["evaluate"] = goodReportJSON
	svc := newServices(jobs, apps, client)

	res, err := svc.SubmitAnswer(context.Background(), "app-1", "q-new-1", "fresh answer")
	require.NoError(t, err)
	assert.False(t, res.InterviewCompleted)
	assert.Equal(t, 1, res.QuestionsRemaining)
	assert.Equal(t, 0, client.callsFor("evaluate"), "no report while current questions remain")

	a, _ := apps.Get(context.Background(), "app-1")
	assert.False(t, a.InterviewCompleted)

	// Answering the last current question completes the interview even
	// though the stale response is still on the record.
	res, err = svc.SubmitAnswer(context.Background(), "app-1", "q-new-2", "final answer")
	require.NoError(t, err)
	assert.True(t, res.InterviewCompleted)
	assert.Equal(t, 0, res.QuestionsRemaining)

	a, _ = apps.Get(context.Background(), "app-1")
	assert.True(t, a.InterviewCompleted)
}

func TestSubmitAnswer_Validation(t *testing.T) {
	t.Parallel()
	jobs, apps := twoQuestionFixture()
	client := newFakeAI()
	svc := newServices(jobs, apps, client)
	ctx := context.Background()

	_, err := svc.SubmitAnswer(ctx, "app-1", "q-1", "   ")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.SubmitAnswer(ctx, "missing", "q-1", "answer")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.SubmitAnswer(ctx, "app-1", "q-404", "answer")
	require.ErrorIs(t, err, domain.ErrUnknownQuestion)

	// No answer may reach the model before validation passes.
	assert.Empty(t, client.calls)
}

func TestSubmitAnswer_DuplicateRejected(t *testing.T) {
	t.Parallel()
	jobs, apps := twoQuestionFixture()
	client := newFakeAI()
	client.replies["score_answer"] = goodAnalysisJSON
	svc := newServices(jobs, apps, client)
	ctx := context.Background()

	_, err := svc.SubmitAnswer(ctx, "app-1", "q-1", "first answer")
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, "app-1", "q-1", "second try")
	require.ErrorIs(t, err, domain.ErrDuplicateAnswer)
}

func TestSubmitAnswer_CompletedRejected(t *testing.T) {
	t.Parallel()
	jobs, _ := twoQuestionFixture()
	apps := newFakeAppRepo(domain.Application{ID: "app-1", JobID: "job-1", InterviewCompleted: true})
	svc := newServices(jobs, apps, newFakeAI())

	_, err := svc.SubmitAnswer(context.Background(), "app-1", "q-1", "too late")
	require.ErrorIs(t, err, domain.ErrAlreadyCompleted)
}

func TestSubmitAnswer_ScoringFailureDegrades(t *testing.T) {
	t.Parallel()
	jobs, apps := twoQuestionFixture()
	client := newFakeAI()
	client.errs["score_answer"] = domain.ErrUpstreamRequest
	svc := newServices(jobs, apps, client)

	res, err := svc.SubmitAnswer(context.Background(), "app-1", "q-1", "my answer")
	require.NoError(t, err, "a scoring outage must not lose the answer")
	assert.Equal(t, 5, res.Score)
	assert.Equal(t, domain.AnalysisPendingMarker, res.Response.AnalysisText)

	a, _ := apps.Get(context.Background(), "app-1")
	require.Len(t, a.InterviewResponses, 1)
	assert.Equal(t, "my answer", a.InterviewResponses[0].AnswerText)
}

func TestSubmitAnswer_ReportFailureLeavesIncomplete(t *testing.T) {
	t.Parallel()
	jobs := newFakeJobRepo(domain.JobPosting{
		ID:                 "job-1",
		Description:        "Role.",
		InterviewQuestions: []domain.Question{{ID: "q-1", Text: "Only question?"}},
	})
	apps := newFakeAppRepo(domain.Application{ID: "app-1", JobID: "job-1"})
	client := newFakeAI()
	client.replies["score_answer"] = goodAnalysisJSON
	client.errs["evaluate"] = domain.ErrUpstreamRequest
	svc := newServices(jobs, apps, client)

	res, err := svc.SubmitAnswer(context.Background(), "app-1", "q-1", "the answer")
	require.NoError(t, err)
	assert.False(t, res.InterviewCompleted)
	assert.Equal(t, 0, res.QuestionsRemaining)

	a, _ := apps.Get(context.Background(), "app-1")
	assert.False(t, a.InterviewCompleted)
	assert.Len(t, a.InterviewResponses, 1)
	assert.Nil(t, a.EvaluationReport)
}

func TestSubmitAnswer_UnparseableReportLeavesIncomplete(t *testing.T) {
	t.Parallel()
	jobs := newFakeJobRepo(domain.JobPosting{
		ID:                 "job-1",
		Description:        "Role.",
		InterviewQuestions: []domain.Question{{ID: "q-1", Text: "Only question?"}},
	})
	apps := newFakeAppRepo(domain.Application{ID: "app-1", JobID: "job-1"})
	client := newFakeAI()
	client.replies["score_answer"] = goodAnalysisJSON
	client.replies["evaluate"] = "sorry, no report today"
	svc := newServices(jobs, apps, client)

	res, err := svc.SubmitAnswer(context.Background(), "app-1", "q-1", "the answer")
	require.NoError(t, err)
	assert.False(t, res.InterviewCompleted)

	a, _ := apps.Get(context.Background(), "app-1")
	assert.False(t, a.InterviewCompleted)
	assert.Nil(t, a.EvaluationReport)
}

func TestSubmitAnswer_AppendRaceLoserGetsDuplicate(t *testing.T) {
	t.Parallel()
	jobs, apps := twoQuestionFixture()
	client := newFakeAI()
	client.replies["score_answer"] = goodAnalysisJSON
	svc := newServices(jobs, apps, client)
	ctx := context.Background()

	// Another writer lands the same question first.
	require.NoError(t, apps.AppendResponse(ctx, "app-1", domain.InterviewResponse{QuestionID: "q-1", AnswerText: "raced"}))

	_, err := svc.SubmitAnswer(ctx, "app-1", "q-1", "slow answer")
	require.ErrorIs(t, err, domain.ErrDuplicateAnswer)

	got, _ := apps.Get(ctx, "app-1")
	assert.Len(t, got.InterviewResponses, 1)
	assert.Equal(t, "raced", got.InterviewResponses[0].AnswerText)
}
