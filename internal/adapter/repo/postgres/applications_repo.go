package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hiredeck/hiredeck/internal/domain"
)

// ApplicationRepo persists and loads applications using a minimal pgx pool.
type ApplicationRepo struct{ Pool PgxPool }

// NewApplicationRepo constructs an ApplicationRepo with the given pool.
func NewApplicationRepo(p PgxPool) *ApplicationRepo { return &ApplicationRepo{Pool: p} }

// Create stores a new application and returns its id (generates one if empty).
func (r *ApplicationRepo) Create(ctx domain.Context, a domain.Application) (string, error) {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "applications"),
	)
	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	respJSON, err := marshalJSONB(a.InterviewResponses)
	if err != nil {
		return "", fmt.Errorf("op=application.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO applications (id, job_id, candidate_name, candidate_profile, interview_responses, interview_completed, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5::jsonb,$6,$7,$8)`
	if _, err := r.Pool.Exec(ctx, q, id, a.JobID, a.CandidateName, a.CandidateProfile, respJSON, a.InterviewCompleted, now, now); err != nil {
		return "", fmt.Errorf("op=application.create: %w", err)
	}
	return id, nil
}

// Get loads an application by id or returns ErrNotFound.
func (r *ApplicationRepo) Get(ctx domain.Context, id string) (domain.Application, error) {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "applications"),
	)
	q := `SELECT id, job_id, candidate_name, candidate_profile, interview_responses, interview_completed, interview_score, evaluation_report, created_at, updated_at
	      FROM applications WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var a domain.Application
	var respJSON, reportJSON []byte
	if err := row.Scan(&a.ID, &a.JobID, &a.CandidateName, &a.CandidateProfile, &respJSON, &a.InterviewCompleted, &a.InterviewScore, &reportJSON, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Application{}, fmt.Errorf("op=application.get: %w", domain.ErrNotFound)
		}
		return domain.Application{}, fmt.Errorf("op=application.get: %w", err)
	}
	if len(respJSON) > 0 {
		if err := json.Unmarshal(respJSON, &a.InterviewResponses); err != nil {
			return domain.Application{}, fmt.Errorf("op=application.get: decode responses: %w", err)
		}
	}
	if len(reportJSON) > 0 {
		var rep domain.EvaluationReport
		if err := json.Unmarshal(reportJSON, &rep); err != nil {
			return domain.Application{}, fmt.Errorf("op=application.get: decode report: %w", err)
		}
		a.EvaluationReport = &rep
	}
	return a, nil
}

// AppendResponse appends resp unless a response for the same question id
// already exists. The duplicate guard runs inside the UPDATE itself so two
// racing submitters cannot both land.
func (r *ApplicationRepo) AppendResponse(ctx domain.Context, applicationID string, resp domain.InterviewResponse) error {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.AppendResponse")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "applications"),
	)
	respJSON, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("op=application.append_response: %w", err)
	}
	q := `UPDATE applications
	      SET interview_responses = COALESCE(interview_responses, '[]'::jsonb) || $2::jsonb,
	          updated_at = $3
	      WHERE id = $1
	        AND NOT EXISTS (
	          SELECT 1 FROM jsonb_array_elements(COALESCE(interview_responses, '[]'::jsonb)) e
	          WHERE e->>'question_id' = $4
	        )`
	tag, err := r.Pool.Exec(ctx, q, applicationID, string(respJSON), time.Now().UTC(), resp.QuestionID)
	if err != nil {
		return fmt.Errorf("op=application.append_response: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Nothing updated: tell a missing application apart from a duplicate.
	var exists bool
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id=$1)`, applicationID).Scan(&exists); err != nil {
		return fmt.Errorf("op=application.append_response: %w", err)
	}
	if !exists {
		return fmt.Errorf("op=application.append_response: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("op=application.append_response: question %s: %w", resp.QuestionID, domain.ErrDuplicateAnswer)
}

// SaveReport atomically replaces the evaluation report, sets the interview
// score, and raises the completed flag. The flag is monotonic: once true it
// never drops, even when a later force-regeneration covers fewer questions.
func (r *ApplicationRepo) SaveReport(ctx domain.Context, applicationID string, report domain.EvaluationReport, score int, completed bool) error {
	tracer := otel.Tracer("repo.applications")
	ctx, span := tracer.Start(ctx, "applications.SaveReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "applications"),
	)
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("op=application.save_report: %w", err)
	}
	q := `UPDATE applications
	      SET evaluation_report = $2::jsonb,
	          interview_score = $3,
	          interview_completed = interview_completed OR $4,
	          updated_at = $5
	      WHERE id = $1`
	tag, err := r.Pool.Exec(ctx, q, applicationID, string(reportJSON), score, completed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=application.save_report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=application.save_report: %w", domain.ErrNotFound)
	}
	return nil
}
