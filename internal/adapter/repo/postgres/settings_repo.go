package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hiredeck/hiredeck/internal/domain"
)

// SettingsRepo reads and updates the single-row AI settings record.
// Settings mutate at runtime through the admin panel of the wider platform,
// so every gateway call reads them fresh instead of caching at boot.
type SettingsRepo struct{ Pool PgxPool }

// NewSettingsRepo constructs a SettingsRepo with the given pool.
func NewSettingsRepo(p PgxPool) *SettingsRepo { return &SettingsRepo{Pool: p} }

// Get returns the current settings. A missing row is not an error; it
// returns zero settings and the gateway reports the unconfigured state.
func (r *SettingsRepo) Get(ctx domain.Context) (domain.AISettings, error) {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "ai_settings"),
	)
	q := `SELECT api_key, model_name, referer_url, site_name FROM ai_settings WHERE id = 1`
	row := r.Pool.QueryRow(ctx, q)
	var s domain.AISettings
	if err := row.Scan(&s.APIKey, &s.ModelName, &s.RefererURL, &s.SiteName); err != nil {
		if err == pgx.ErrNoRows {
			return domain.AISettings{}, nil
		}
		return domain.AISettings{}, fmt.Errorf("op=settings.get: %w", err)
	}
	return s, nil
}

// SetModelName upserts the model name, creating the settings row if the
// self-heal fires before an administrator ever saved settings.
func (r *SettingsRepo) SetModelName(ctx domain.Context, name string) error {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.SetModelName")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "ai_settings"),
	)
	q := `INSERT INTO ai_settings (id, api_key, model_name, referer_url, site_name, updated_at)
	      VALUES (1, '', $1, '', '', $2)
	      ON CONFLICT (id) DO UPDATE SET model_name = EXCLUDED.model_name, updated_at = EXCLUDED.updated_at`
	if _, err := r.Pool.Exec(ctx, q, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=settings.set_model_name: %w", err)
	}
	return nil
}
