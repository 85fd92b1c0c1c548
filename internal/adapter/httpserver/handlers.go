package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hiredeck/hiredeck/internal/adapter/observability"
	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/domain"
	"github.com/hiredeck/hiredeck/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Interviews usecase.InterviewService
	Reports    usecase.ReportService
	DBCheck    func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, interviews usecase.InterviewService, reports usecase.ReportService, dbCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Interviews: interviews, Reports: reports, DBCheck: dbCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type submitAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	AnswerText string `json:"answer_text" validate:"required"`
}

type questionsResponse struct {
	JobID     string            `json:"job_id"`
	Questions []domain.Question `json:"questions"`
}

type submitAnswerResponse struct {
	QuestionID         string `json:"question_id"`
	Score              int    `json:"score"`
	AnalysisText       string `json:"analysis_text"`
	InterviewCompleted bool   `json:"interview_completed"`
	QuestionsRemaining int    `json:"questions_remaining"`
}

// GetQuestionsHandler returns the job's interview questions, generating
// them on first request.
func (s *Server) GetQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		qs, err := s.Interviews.EnsureQuestions(r.Context(), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, questionsResponse{JobID: jobID, Questions: qs})
	}
}

// RegenerateQuestionsHandler discards the job's question set and generates
// a fresh one. Administrative endpoint.
func (s *Server) RegenerateQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		qs, err := s.Interviews.RegenerateQuestions(r.Context(), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, questionsResponse{JobID: jobID, Questions: qs})
	}
}

// SubmitAnswerHandler records one answer with its interim score and reports
// whether the interview is now complete.
func (s *Server) SubmitAnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID := chi.URLParam(r, "id")
		var req submitAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json body", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: question_id and answer_text are required", domain.ErrInvalidArgument), nil)
			return
		}
		res, err := s.Interviews.SubmitAnswer(r.Context(), appID, req.QuestionID, req.AnswerText)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if res.InterviewCompleted {
			observability.InterviewsCompletedTotal.Inc()
		}
		writeJSON(w, http.StatusCreated, submitAnswerResponse{
			QuestionID:         res.Response.QuestionID,
			Score:              res.Score,
			AnalysisText:       res.Response.AnalysisText,
			InterviewCompleted: res.InterviewCompleted,
			QuestionsRemaining: res.QuestionsRemaining,
		})
	}
}

// GenerateReportHandler force-generates an evaluation report from whatever
// responses exist. Administrative endpoint.
func (s *Server) GenerateReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID := chi.URLParam(r, "id")
		report, err := s.Reports.Generate(r.Context(), appID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// GetReportHandler returns the stored evaluation report.
func (s *Server) GetReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID := chi.URLParam(r, "id")
		report, err := s.Reports.Get(r.Context(), appID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// ReadyzHandler reports readiness of the service's dependencies.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DBCheck != nil {
			if err := s.DBCheck(r.Context()); err != nil {
				LoggerFrom(r).Error("readiness check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
