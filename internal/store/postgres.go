package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entari/mjbridge/internal/task"
)

// PostgresStore keeps records in a single table with an expires_at column.
// Queries filter lapsed rows; Save opportunistically purges them so the table
// does not grow without bound.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, ttl time.Duration) (*PostgresStore, error) {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initTaskSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, ttl: ttl}, nil
}

func initTaskSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			prompt TEXT NOT NULL DEFAULT '',
			prompt_en TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			submit_time BIGINT NOT NULL,
			start_time BIGINT NOT NULL DEFAULT 0,
			finish_time BIGINT NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			progress TEXT NOT NULL DEFAULT '',
			fail_reason TEXT NOT NULL DEFAULT '',
			final_prompt TEXT NOT NULL DEFAULT '',
			notify_hook TEXT NOT NULL DEFAULT '',
			related_task_id TEXT NOT NULL DEFAULT '',
			message_id TEXT NOT NULL DEFAULT '',
			message_hash TEXT NOT NULL DEFAULT '',
			correlation_key TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_expires ON tasks (expires_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init task schema: %w", err)
		}
	}
	return nil
}

const taskColumns = `id, action, prompt, prompt_en, description, state,
	submit_time, start_time, finish_time, image_url, status, progress,
	fail_reason, final_prompt, notify_hook, related_task_id, message_id,
	message_hash, correlation_key`

func (s *PostgresStore) Save(ctx context.Context, rec task.Record) error {
	_, _ = s.pool.Exec(ctx, `DELETE FROM tasks WHERE expires_at < now()`)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
			action=EXCLUDED.action,
			prompt=EXCLUDED.prompt,
			prompt_en=EXCLUDED.prompt_en,
			description=EXCLUDED.description,
			state=EXCLUDED.state,
			submit_time=EXCLUDED.submit_time,
			start_time=EXCLUDED.start_time,
			finish_time=EXCLUDED.finish_time,
			image_url=EXCLUDED.image_url,
			status=EXCLUDED.status,
			progress=EXCLUDED.progress,
			fail_reason=EXCLUDED.fail_reason,
			final_prompt=EXCLUDED.final_prompt,
			notify_hook=EXCLUDED.notify_hook,
			related_task_id=EXCLUDED.related_task_id,
			message_id=EXCLUDED.message_id,
			message_hash=EXCLUDED.message_hash,
			correlation_key=EXCLUDED.correlation_key,
			expires_at=EXCLUDED.expires_at`,
		rec.ID, string(rec.Action), rec.Prompt, rec.PromptEn, rec.Description,
		rec.State, rec.SubmitTime, rec.StartTime, rec.FinishTime, rec.ImageURL,
		string(rec.Status), rec.Progress, rec.FailReason, rec.FinalPrompt,
		rec.NotifyHook, rec.RelatedTaskID, rec.MessageID, rec.MessageHash,
		rec.Key, time.Now().Add(s.ttl),
	)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (task.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id=$1 AND expires_at > now()`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return task.Record{}, ErrNotFound
	}
	if err != nil {
		return task.Record{}, fmt.Errorf("get task: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]task.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE expires_at > now() ORDER BY submit_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []task.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListBy(ctx context.Context, cond task.Condition) ([]task.Record, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(recs, cond), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (task.Record, error) {
	var rec task.Record
	var action, status string
	err := row.Scan(
		&rec.ID, &action, &rec.Prompt, &rec.PromptEn, &rec.Description,
		&rec.State, &rec.SubmitTime, &rec.StartTime, &rec.FinishTime,
		&rec.ImageURL, &status, &rec.Progress, &rec.FailReason,
		&rec.FinalPrompt, &rec.NotifyHook, &rec.RelatedTaskID,
		&rec.MessageID, &rec.MessageHash, &rec.Key,
	)
	if err != nil {
		return task.Record{}, err
	}
	rec.Action = task.Action(action)
	rec.Status = task.Status(status)
	return rec, nil
}
