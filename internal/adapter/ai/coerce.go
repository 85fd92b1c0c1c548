package ai

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/hiredeck/hiredeck/internal/adapter/observability"
	"github.com/hiredeck/hiredeck/internal/domain"
)

// fallbackQuestionCap bounds the heuristic extractor when no explicit
// request count is known.
const fallbackQuestionCap = 5

const fallbackAnswerHint = "No expected answer available; assess for relevance and depth."

type questionJSON struct {
	Question           string `json:"question"`
	Text               string `json:"text"`
	Type               string `json:"type"`
	Category           string `json:"category"`
	ExpectedAnswer     string `json:"expected_answer"`
	ExpectedAnswerHint string `json:"expected_answer_hint"`
}

// CoerceQuestionList parses raw model output into a question list. When the
// strict parse fails it falls back to a line-oriented extractor so the
// user-facing flow always gets a non-empty (if degraded) set. The second
// return value reports whether the fallback fired.
func CoerceQuestionList(raw string, requested int) ([]domain.QuestionDraft, bool) {
	cap := requested
	if cap < 1 {
		cap = fallbackQuestionCap
	}

	var items []questionJSON
	ok := decodeStrict(raw, &items, true)
	if !ok || len(items) == 0 {
		// Some models wrap the array in an envelope object.
		var wrapped struct {
			Questions []questionJSON `json:"questions"`
		}
		if decodeStrict(raw, &wrapped, false) && len(wrapped.Questions) > 0 {
			items, ok = wrapped.Questions, true
		} else {
			ok = false
		}
	}

	if ok && len(items) > 0 {
		out := make([]domain.QuestionDraft, 0, len(items))
		for _, it := range items {
			text := strings.TrimSpace(it.Question)
			if text == "" {
				text = strings.TrimSpace(it.Text)
			}
			if text == "" {
				continue
			}
			cat := normalizeCategory(firstNonEmpty(it.Type, it.Category))
			hint := strings.TrimSpace(firstNonEmpty(it.ExpectedAnswer, it.ExpectedAnswerHint))
			if hint == "" {
				hint = fallbackAnswerHint
			}
			out = append(out, domain.QuestionDraft{Text: text, Category: cat, ExpectedAnswerHint: hint})
			if len(out) == cap {
				break
			}
		}
		if len(out) > 0 {
			return out, false
		}
	}

	slog.Warn("question list parse failed; using fallback extractor", slog.Int("raw_length", len(raw)))
	observability.CoercionFallbackTotal.WithLabelValues("question_list").Inc()
	return fallbackExtractQuestions(raw, cap), true
}

// fallbackExtractQuestions scans for numbered-list or question-mark
// terminated lines and synthesizes minimal general-category records.
func fallbackExtractQuestions(raw string, cap int) []domain.QuestionDraft {
	out := make([]domain.QuestionDraft, 0, cap)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		stripped := stripListMarker(line)
		numbered := stripped != line
		if stripped == "" {
			continue
		}
		if !numbered && !strings.HasSuffix(stripped, "?") {
			continue
		}
		if len(stripped) < 8 {
			continue
		}
		out = append(out, domain.QuestionDraft{
			Text:               stripped,
			Category:           domain.CategoryGeneral,
			ExpectedAnswerHint: fallbackAnswerHint,
		})
		if len(out) == cap {
			break
		}
	}
	if len(out) == 0 {
		// Degraded floor: never hand back an empty interview.
		out = append(out, domain.QuestionDraft{
			Text:               "Walk me through your experience most relevant to this role.",
			Category:           domain.CategoryGeneral,
			ExpectedAnswerHint: fallbackAnswerHint,
		})
	}
	return out
}

func stripListMarker(line string) string {
	s := strings.TrimLeft(line, "-*> \t")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	} else if i > 0 {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(s)
}

func normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if domain.ValidCategory(c) {
		return c
	}
	return domain.CategoryGeneral
}

type answerAnalysisJSON struct {
	Score           *float64 `json:"score"`
	Strengths       []string `json:"strengths"`
	Concerns        []string `json:"concerns"`
	Analysis        string   `json:"analysis"`
	RelevanceToRole string   `json:"relevance_to_role"`
}

// CoerceAnswerAnalysis parses a per-answer scoring object. On parse failure,
// or when the parsed object carries no score field at all, it returns a
// degraded record that preserves whatever the model did say for human
// review; it never fails the submission flow.
func CoerceAnswerAnalysis(raw string) domain.AnswerAnalysis {
	var obj answerAnalysisJSON
	if !decodeStrict(raw, &obj, false) {
		slog.Warn("answer analysis parse failed; recording default", slog.Int("raw_length", len(raw)))
		observability.CoercionFallbackTotal.WithLabelValues("answer_analysis").Inc()
		return domain.DegradedAnswerAnalysis(raw)
	}
	if obj.Score == nil {
		slog.Warn("answer analysis missing score; recording default", slog.Int("raw_length", len(raw)))
		observability.CoercionFallbackTotal.WithLabelValues("answer_analysis").Inc()
		a := domain.DegradedAnswerAnalysis(firstNonEmpty(strings.TrimSpace(obj.Analysis), strings.TrimSpace(raw)))
		if len(obj.Strengths) > 0 {
			a.Strengths = obj.Strengths
		}
		a.Concerns = append(a.Concerns, obj.Concerns...)
		a.RelevanceToRole = strings.TrimSpace(obj.RelevanceToRole)
		return a
	}
	a := domain.AnswerAnalysis{
		Score:           clampInt(int(math.Round(*obj.Score)), 0, 10),
		Strengths:       obj.Strengths,
		Concerns:        obj.Concerns,
		Analysis:        strings.TrimSpace(obj.Analysis),
		RelevanceToRole: strings.TrimSpace(obj.RelevanceToRole),
	}
	if a.Analysis == "" {
		a.Analysis = strings.TrimSpace(raw)
	}
	return a
}

type evaluationReportJSON struct {
	OverallAssessment    string   `json:"overall_assessment"`
	Strengths            []string `json:"strengths"`
	Weaknesses           []string `json:"weaknesses"`
	Recommendations      string   `json:"recommendations"`
	TechnicalSkillsScore float64  `json:"technical_skills_score"`
	CommunicationScore   float64  `json:"communication_score"`
	CulturalFitScore     float64  `json:"cultural_fit_score"`
	SuitabilityRating    string   `json:"suitability_rating"`
	OverallScore         float64  `json:"overall_score"`
}

// CoerceEvaluationReport parses the final report. Unlike the other two
// shapes this fails loudly: a placeholder report would misrepresent a
// hiring decision. Numeric fields are clamped to [0,100] and the rating is
// coerced to a valid enum member before the caller ever sees the record.
func CoerceEvaluationReport(raw string) (domain.EvaluationReport, error) {
	var obj evaluationReportJSON
	if !decodeStrict(raw, &obj, false) {
		return domain.EvaluationReport{}, fmt.Errorf("%w: evaluation report not parseable", domain.ErrCoercion)
	}
	if strings.TrimSpace(obj.OverallAssessment) == "" && obj.OverallScore == 0 && obj.SuitabilityRating == "" {
		return domain.EvaluationReport{}, fmt.Errorf("%w: evaluation report empty", domain.ErrCoercion)
	}
	return domain.EvaluationReport{
		OverallAssessment:    strings.TrimSpace(obj.OverallAssessment),
		Strengths:            obj.Strengths,
		Weaknesses:           obj.Weaknesses,
		Recommendations:      strings.TrimSpace(obj.Recommendations),
		TechnicalSkillsScore: clampInt(int(math.Round(obj.TechnicalSkillsScore)), 0, 100),
		CommunicationScore:   clampInt(int(math.Round(obj.CommunicationScore)), 0, 100),
		CulturalFitScore:     clampInt(int(math.Round(obj.CulturalFitScore)), 0, 100),
		SuitabilityRating:    normalizeRating(obj.SuitabilityRating),
		OverallScore:         clampInt(int(math.Round(obj.OverallScore)), 0, 100),
	}, nil
}

func normalizeRating(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	r = strings.ReplaceAll(r, " ", "-")
	r = strings.ReplaceAll(r, "_", "-")
	if domain.ValidRating(r) {
		return r
	}
	return domain.RatingAverage
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
