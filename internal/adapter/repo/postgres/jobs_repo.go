// Package postgres provides PostgreSQL database adapters.
//
// It implements the repository interfaces for data persistence. Interview
// questions, responses and reports live in JSONB columns; all multi-writer
// updates are guarded single statements so concurrent callers never
// interleave partial state.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hiredeck/hiredeck/internal/domain"
)

// JobRepo persists and loads job postings using a minimal pgx pool.
type JobRepo struct{ Pool PgxPool }

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// Create stores a new job posting and returns its id (generates one if empty).
func (r *JobRepo) Create(ctx domain.Context, j domain.JobPosting) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "job_postings"),
	)
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	qsJSON, err := marshalJSONB(j.InterviewQuestions)
	if err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO job_postings (id, title, description, interview_questions, created_at, updated_at) VALUES ($1,$2,$3,$4::jsonb,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, id, j.Title, j.Description, qsJSON, now, now); err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	return id, nil
}

// Get loads a job posting by id or returns ErrNotFound.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.JobPosting, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "job_postings"),
	)
	q := `SELECT id, title, description, interview_questions, created_at, updated_at FROM job_postings WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var j domain.JobPosting
	var qsJSON []byte
	if err := row.Scan(&j.ID, &j.Title, &j.Description, &qsJSON, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.JobPosting{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.JobPosting{}, fmt.Errorf("op=job.get: %w", err)
	}
	if len(qsJSON) > 0 {
		if err := json.Unmarshal(qsJSON, &j.InterviewQuestions); err != nil {
			return domain.JobPosting{}, fmt.Errorf("op=job.get: decode questions: %w", err)
		}
	}
	return j, nil
}

// SetQuestionsIfEmpty persists qs only when the job still has no questions.
// Returns false when the row was not updated, either because another writer
// won the race or the job does not exist; callers re-read to tell apart.
func (r *JobRepo) SetQuestionsIfEmpty(ctx domain.Context, jobID string, qs []domain.Question) (bool, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SetQuestionsIfEmpty")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_postings"),
	)
	qsJSON, err := marshalJSONB(qs)
	if err != nil {
		return false, fmt.Errorf("op=job.set_questions_if_empty: %w", err)
	}
	q := `UPDATE job_postings
	      SET interview_questions=$2::jsonb, updated_at=$3
	      WHERE id=$1 AND (interview_questions IS NULL OR interview_questions = '[]'::jsonb)`
	tag, err := r.Pool.Exec(ctx, q, jobID, qsJSON, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("op=job.set_questions_if_empty: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReplaceQuestions overwrites the question set unconditionally.
func (r *JobRepo) ReplaceQuestions(ctx domain.Context, jobID string, qs []domain.Question) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ReplaceQuestions")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "job_postings"),
	)
	qsJSON, err := marshalJSONB(qs)
	if err != nil {
		return fmt.Errorf("op=job.replace_questions: %w", err)
	}
	q := `UPDATE job_postings SET interview_questions=$2::jsonb, updated_at=$3 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, jobID, qsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=job.replace_questions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.replace_questions: %w", domain.ErrNotFound)
	}
	return nil
}

// marshalJSONB renders v as a JSON text parameter, never null for empty
// slices so the CAS guard on '[]' keeps working.
func marshalJSONB(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(b)
	if s == "null" {
		s = "[]"
	}
	return s, nil
}
