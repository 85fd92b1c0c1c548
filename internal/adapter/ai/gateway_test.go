package ai_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredeck/hiredeck/internal/adapter/ai"
	"github.com/hiredeck/hiredeck/internal/domain"
)

type recordingCompleter struct {
	last  domain.CompletionRequest
	reply string
	err   error
}

func (r *recordingCompleter) Complete(_ domain.Context, req domain.CompletionRequest) (string, error) {
	r.last = req
	return r.reply, r.err
}

func TestInterviewGateway_RequestShaping(t *testing.T) {
	t.Parallel()
	rc := &recordingCompleter{reply: `[{"question": "Describe a recent project?"}]`}
	g := ai.NewInterviewGateway(rc)
	ctx := context.Background()

	qs, degraded, err := g.GenerateQuestions(ctx, "the question prompt", 3)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, qs, 1)
	assert.Equal(t, "generate_questions", rc.last.Op)
	assert.Equal(t, "the question prompt", rc.last.Prompt)
	assert.InDelta(t, 0.7, rc.last.Temperature, 1e-9)
	assert.Equal(t, 2000, rc.last.MaxTokens)

	rc.reply = `{"score": 6, "analysis": "fine"}`
	a, err := g.ScoreAnswer(ctx, "the scoring prompt")
	require.NoError(t, err)
	assert.Equal(t, 6, a.Score)
	assert.Equal(t, "score_answer", rc.last.Op)
	assert.InDelta(t, 0.1, rc.last.Temperature, 1e-9)
	assert.Equal(t, 1000, rc.last.MaxTokens)

	rc.reply = `{"overall_assessment": "hire", "suitability_rating": "good", "overall_score": 80,
		"technical_skills_score": 82, "communication_score": 78, "cultural_fit_score": 75}`
	rep, err := g.EvaluateInterview(ctx, "the report prompt")
	require.NoError(t, err)
	assert.Equal(t, 80, rep.OverallScore)
	assert.Equal(t, "evaluate", rc.last.Op)
	assert.InDelta(t, 0.1, rc.last.Temperature, 1e-9)
	assert.Equal(t, 2000, rc.last.MaxTokens)
}

func TestInterviewGateway_ErrorPassthrough(t *testing.T) {
	t.Parallel()
	rc := &recordingCompleter{err: domain.ErrUpstreamAuth}
	g := ai.NewInterviewGateway(rc)
	ctx := context.Background()

	_, _, err := g.GenerateQuestions(ctx, "p", 3)
	require.ErrorIs(t, err, domain.ErrUpstreamAuth)

	_, err = g.ScoreAnswer(ctx, "p")
	require.ErrorIs(t, err, domain.ErrUpstreamAuth)

	_, err = g.EvaluateInterview(ctx, "p")
	require.ErrorIs(t, err, domain.ErrUpstreamAuth)
}

func TestInterviewGateway_UnparseableReportFailsLoud(t *testing.T) {
	t.Parallel()
	rc := &recordingCompleter{reply: "no report, sorry"}
	g := ai.NewInterviewGateway(rc)

	_, err := g.EvaluateInterview(context.Background(), "p")
	require.ErrorIs(t, err, domain.ErrCoercion)
}
