// Package sqlite stores training jobs in a single-file SQLite database for
// deployments that do not run Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinicalGym/domain"

	"gorm.io/datatypes"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS training_jobs (
	id                 TEXT PRIMARY KEY,
	environment        TEXT NOT NULL,
	policy             TEXT NOT NULL,
	episodes           INTEGER NOT NULL,
	max_steps          INTEGER NOT NULL DEFAULT 0,
	seed               INTEGER,
	status             TEXT NOT NULL,
	created_by         TEXT NOT NULL DEFAULT '',
	episodes_completed INTEGER NOT NULL DEFAULT 0,
	failed_episodes    INTEGER NOT NULL DEFAULT 0,
	total_steps        INTEGER NOT NULL DEFAULT 0,
	mean_reward        REAL NOT NULL DEFAULT 0,
	std_reward         REAL NOT NULL DEFAULT 0,
	min_reward         REAL NOT NULL DEFAULT 0,
	max_reward         REAL NOT NULL DEFAULT 0,
	weights            TEXT,
	episode_rewards    TEXT,
	final_kpis         TEXT,
	error              TEXT NOT NULL DEFAULT '',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL,
	started_at         TEXT,
	finished_at        TEXT
);

CREATE INDEX IF NOT EXISTS idx_training_jobs_env ON training_jobs(environment);
CREATE INDEX IF NOT EXISTS idx_training_jobs_status ON training_jobs(status);
`

const columns = `id, environment, policy, episodes, max_steps, seed, status, created_by,
	episodes_completed, failed_episodes, total_steps, mean_reward, std_reward, min_reward, max_reward,
	weights, episode_rewards, final_kpis, error, created_at, updated_at, started_at, finished_at`

type TrainingRepository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*TrainingRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &TrainingRepository{db: db}, nil
}

func (r *TrainingRepository) Close() error {
	return r.db.Close()
}

func (r *TrainingRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *TrainingRepository) Create(ctx context.Context, job *domain.TrainingJob) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	args, err := rowArgs(job)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO training_jobs (`+columns+`) VALUES (`+placeholders(23)+`)`, args...)
	if err != nil {
		return fmt.Errorf("insert training job: %w", err)
	}
	return nil
}

func (r *TrainingRepository) Update(ctx context.Context, job *domain.TrainingJob) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	args, err := rowArgs(job)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO training_jobs (`+columns+`) VALUES (`+placeholders(23)+`)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			episodes_completed = excluded.episodes_completed,
			failed_episodes = excluded.failed_episodes,
			total_steps = excluded.total_steps,
			mean_reward = excluded.mean_reward,
			std_reward = excluded.std_reward,
			min_reward = excluded.min_reward,
			max_reward = excluded.max_reward,
			episode_rewards = excluded.episode_rewards,
			final_kpis = excluded.final_kpis,
			error = excluded.error,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`, args...)
	if err != nil {
		return fmt.Errorf("upsert training job: %w", err)
	}
	return nil
}

func (r *TrainingRepository) FindByID(ctx context.Context, id string) (*domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM training_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTrainingJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query training job: %w", err)
	}
	return job, nil
}

func (r *TrainingRepository) FindAll(ctx context.Context, filter domain.TrainingJobFilter) ([]domain.TrainingJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var (
		where []string
		args  []any
	)
	if filter.Environment != "" {
		where = append(where, "environment = ?")
		args = append(args, filter.Environment)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	q := `SELECT ` + columns + ` FROM training_jobs`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list training jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.TrainingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*domain.TrainingJob, error) {
	var (
		job                    domain.TrainingJob
		seed                   sql.NullInt64
		status                 string
		weights, rewards, kpis sql.NullString
		createdAt, updatedAt   string
		startedAt, finishedAt  sql.NullString
	)
	err := s.Scan(
		&job.ID, &job.Environment, &job.Policy, &job.Episodes, &job.MaxSteps, &seed, &status, &job.CreatedBy,
		&job.EpisodesCompleted, &job.FailedEpisodes, &job.TotalSteps,
		&job.MeanReward, &job.StdReward, &job.MinReward, &job.MaxReward,
		&weights, &rewards, &kpis, &job.Error, &createdAt, &updatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = domain.TrainingStatus(status)
	if seed.Valid {
		v := seed.Int64
		job.Seed = &v
	}
	if weights.Valid && weights.String != "" {
		if err := json.Unmarshal([]byte(weights.String), &job.Weights); err != nil {
			return nil, fmt.Errorf("unmarshal weights: %w", err)
		}
	}
	if rewards.Valid && rewards.String != "" {
		var rs []float64
		if err := json.Unmarshal([]byte(rewards.String), &rs); err != nil {
			return nil, fmt.Errorf("unmarshal episode rewards: %w", err)
		}
		job.EpisodeRewards = datatypes.NewJSONType(rs)
	}
	if kpis.Valid && kpis.String != "" {
		job.FinalKPIs = datatypes.JSON(kpis.String)
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if job.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, err
	}
	if job.FinishedAt, err = parseNullTime(finishedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

func rowArgs(job *domain.TrainingJob) ([]any, error) {
	var seed any
	if job.Seed != nil {
		seed = *job.Seed
	}

	var weights any
	if len(job.Weights) > 0 {
		raw, err := json.Marshal(job.Weights)
		if err != nil {
			return nil, fmt.Errorf("marshal weights: %w", err)
		}
		weights = string(raw)
	}

	rewards, err := json.Marshal(job.EpisodeRewards.Data())
	if err != nil {
		return nil, fmt.Errorf("marshal episode rewards: %w", err)
	}

	var kpis any
	if len(job.FinalKPIs) > 0 {
		kpis = string(job.FinalKPIs)
	}

	return []any{
		job.ID, job.Environment, job.Policy, job.Episodes, job.MaxSteps, seed, string(job.Status), job.CreatedBy,
		job.EpisodesCompleted, job.FailedEpisodes, job.TotalSteps,
		job.MeanReward, job.StdReward, job.MinReward, job.MaxReward,
		weights, string(rewards), kpis, job.Error,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt), formatNullTime(job.StartedAt), formatNullTime(job.FinishedAt),
	}, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// fixed-width so timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
