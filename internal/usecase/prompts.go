// Package usecase contains the interview orchestration services.
package usecase

import (
	"fmt"
	"strings"

	"github.com/hiredeck/hiredeck/internal/domain"
	"github.com/hiredeck/hiredeck/internal/tokencount"
)

// BuildQuestionPrompt renders the question-generation instruction for a job
// description. n must already be clamped to [1,10] by the caller.
func BuildQuestionPrompt(jobDescription string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d interview questions for the following job description.\n\n", n)
	fmt.Fprintf(&b, "Job Description:\n%s\n\n", strings.TrimSpace(jobDescription))
	b.WriteString("Cover a mix of technical depth, behavioral signals, and situational judgement where the role warrants it.\n\n")
	fmt.Fprintf(&b, "Return a JSON array of exactly %d objects, each shaped as:\n", n)
	b.WriteString(`[{"question": "...", "type": "technical|behavioral|situational|general", "expected_answer": "what a strong answer covers"}]`)
	b.WriteString("\n\nRules:\n- \"type\" must be one of: technical, behavioral, situational, general.\n- Questions must be open-ended, specific to this role, and answerable verbally.\n- Output the JSON array only.")
	return b.String()
}

// BuildAnswerAnalysisPrompt renders the per-answer scoring instruction.
func BuildAnswerAnalysisPrompt(question, answer, jobDescription string) string {
	var b strings.Builder
	b.WriteString("Score the candidate's answer to one interview question for the role below.\n\n")
	fmt.Fprintf(&b, "Job Description:\n%s\n\n", strings.TrimSpace(jobDescription))
	fmt.Fprintf(&b, "Question:\n%s\n\n", strings.TrimSpace(question))
	fmt.Fprintf(&b, "Candidate Answer:\n%s\n\n", strings.TrimSpace(answer))
	b.WriteString("Return a JSON object shaped as:\n")
	b.WriteString(`{"score": 1-10, "strengths": ["..."], "concerns": ["..."], "analysis": "2-4 sentence assessment", "relevance_to_role": "how the answer maps to the role"}`)
	b.WriteString("\n\nScore 1-10 where 10 is an outstanding, complete answer. Output the JSON object only.")
	return b.String()
}

// BuildEvaluationPrompt serializes the full Q&A transcript plus candidate
// profile into the final-report instruction. The transcript is budgeted
// with a token count; oldest entries are dropped first when over budget.
func BuildEvaluationPrompt(jobDescription string, responses []domain.InterviewResponse, candidateProfile string, tokenBudget int) string {
	entries := make([]string, len(responses))
	for i, r := range responses {
		entries[i] = fmt.Sprintf("Q%d: %s\nAnswer: %s\nInterim analysis: %s\nInterim score: %d/10",
			i+1, r.QuestionText, r.AnswerText, r.AnalysisText, r.Score)
	}
	transcript := strings.Join(entries, "\n\n")
	if tokenBudget > 0 {
		dropped := 0
		for len(entries) > 1 && tokencount.Count(transcript) > tokenBudget {
			entries = entries[1:]
			dropped++
			transcript = strings.Join(entries, "\n\n")
		}
		if dropped > 0 {
			transcript = fmt.Sprintf("[%d earlier responses omitted for length]\n\n%s", dropped, transcript)
		}
	}

	var b strings.Builder
	b.WriteString("Produce a final structured evaluation of a completed interview.\n\n")
	fmt.Fprintf(&b, "Job Description:\n%s\n\n", strings.TrimSpace(jobDescription))
	if p := strings.TrimSpace(candidateProfile); p != "" {
		fmt.Fprintf(&b, "Candidate Profile:\n%s\n\n", p)
	}
	fmt.Fprintf(&b, "Interview Transcript:\n%s\n\n", transcript)
	b.WriteString("Return a JSON object shaped as:\n")
	b.WriteString(`{"overall_assessment": "...", "strengths": ["..."], "weaknesses": ["..."], "recommendations": "...", "technical_skills_score": 0-100, "communication_score": 0-100, "cultural_fit_score": 0-100, "suitability_rating": "excellent|good|average|below-average|poor", "overall_score": 0-100}`)
	b.WriteString("\n\nAll four scores must be integers in [0,100]. \"suitability_rating\" must be exactly one of the five listed values. Output the JSON object only.")
	return b.String()
}
