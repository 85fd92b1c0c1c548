package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hiredeck/hiredeck/internal/domain"
)

type seedJob struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type seedFile struct {
	Jobs []seedJob `yaml:"jobs"`
}

// seedJobPostings loads demo job postings from a YAML fixture. Existing
// postings are left alone so repeated startups stay idempotent.
func seedJobPostings(ctx context.Context, path string, jobs domain.JobRepository) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for _, sj := range sf.Jobs {
		if sj.ID != "" {
			if _, err := jobs.Get(ctx, sj.ID); err == nil {
				continue
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		id, err := jobs.Create(ctx, domain.JobPosting{ID: sj.ID, Title: sj.Title, Description: sj.Description})
		if err != nil {
			return fmt.Errorf("seed job %q: %w", sj.Title, err)
		}
		slog.Info("seeded job posting", slog.String("job_id", id), slog.String("title", sj.Title))
	}
	return nil
}
