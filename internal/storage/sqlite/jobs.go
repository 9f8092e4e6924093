package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
)

var _ core.JobJournal = (*JobsRepo)(nil)

// JobsRepo persists the live extraction job of each conversation. Writes
// are ordered by seq so late writers never resurrect a superseded job.
type JobsRepo struct {
	db *sql.DB
}

func NewJobsRepo(db *sql.DB) *JobsRepo {
	return &JobsRepo{db: db}
}

func (r *JobsRepo) Save(ctx context.Context, job core.JobRecord) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal job params: %w", err)
	}

	query := `INSERT INTO jobs (conversation_id, id, seq, fire_at, params) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			id = excluded.id,
			seq = excluded.seq,
			fire_at = excluded.fire_at,
			params = excluded.params
		WHERE excluded.seq > jobs.seq`
	_, err = r.db.ExecContext(ctx, query, job.ConversationID, job.ID, int64(job.Seq), job.FireAt.UTC(), string(params))
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (r *JobsRepo) Delete(ctx context.Context, conversationID string, seq uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE conversation_id = ? AND seq = ?`, conversationID, int64(seq))
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (r *JobsRepo) Pending(ctx context.Context) ([]core.JobRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT conversation_id, id, seq, fire_at, params FROM jobs ORDER BY fire_at, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []core.JobRecord
	for rows.Next() {
		var (
			job    core.JobRecord
			seq    int64
			params string
		)
		if err := rows.Scan(&job.ConversationID, &job.ID, &seq, &job.FireAt, &params); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job params: %w", err)
		}
		job.Seq = uint64(seq)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobsRepo) MaxSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM jobs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to query max seq: %w", err)
	}
	return uint64(seq.Int64), nil
}
