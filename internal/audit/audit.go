package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Entry is one recorded mutating operation.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Sink receives audit entries. Recording is best-effort: implementations
// swallow and log failures so auditing never blocks the operation it traces.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// NopSink discards every entry. Used by tests.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) {}

// Recorder persists audit entries in Postgres.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

const createTableQuery = `
CREATE TABLE IF NOT EXISTS audit_log (
    id BIGSERIAL PRIMARY KEY,
    actor_id TEXT NOT NULL,
    action TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    detail JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Init creates the audit table when it does not exist yet.
func (r *Recorder) Init(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, createTableQuery)
	return err
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		log.Error().Err(err).Str("action", entry.Action).Msg("failed to encode audit detail")
		return
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_log (actor_id, action, entity_type, entity_id, detail) VALUES ($1, $2, $3, $4, $5)`,
		entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, detail,
	)
	if err != nil {
		log.Error().Err(err).Str("action", entry.Action).Msg("failed to record audit entry")
	}
}

// List returns the newest entries first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, actor_id, action, entity_type, entity_id, detail, created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var detail []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.EntityType, &entry.EntityID, &detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				log.Warn().Err(err).Int64("id", entry.ID).Msg("malformed audit detail")
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
