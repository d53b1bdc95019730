// Package store archives finished games. It is an append-only record; rooms
// are never restored from it.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scythe504/forsale-backend/internal"
)

// Archive is what the server needs from a results backend.
type Archive interface {
	Record(ctx context.Context, result internal.GameResult) error
	Recent(ctx context.Context, limit int) ([]internal.GameResult, error)
	Health(ctx context.Context) map[string]string
	Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
	id          BIGSERIAL PRIMARY KEY,
	room_id     TEXT        NOT NULL,
	version     BIGINT      NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	standings   JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS game_results_finished_at_idx ON game_results (finished_at DESC);
`

type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ Archive = (*Postgres)(nil)
	_ Archive = Discard{}
)

// Open connects to dsn and makes sure the schema exists.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Record(ctx context.Context, result internal.GameResult) error {
	standings, err := json.Marshal(result.Standings)
	if err != nil {
		return fmt.Errorf("encoding standings: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO game_results (room_id, version, finished_at, standings) VALUES ($1, $2, $3, $4)`,
		result.RoomID, result.Version, result.FinishedAt, standings)
	if err != nil {
		return fmt.Errorf("inserting result for room %s: %w", result.RoomID, err)
	}
	return nil
}

// Recent returns up to limit results, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]internal.GameResult, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT room_id, version, finished_at, standings FROM game_results ORDER BY finished_at DESC, id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	results := make([]internal.GameResult, 0, limit)
	for rows.Next() {
		var (
			res       internal.GameResult
			standings []byte
		)
		if err := rows.Scan(&res.RoomID, &res.Version, &res.FinishedAt, &standings); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if err := json.Unmarshal(standings, &res.Standings); err != nil {
			return nil, fmt.Errorf("decoding standings for room %s: %w", res.RoomID, err)
		}
		res.FinishedAt = res.FinishedAt.UTC()
		results = append(results, res)
	}
	return results, rows.Err()
}

func (p *Postgres) Health(ctx context.Context) map[string]string {
	stats := map[string]string{"archive": "postgres"}
	if err := p.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}
	s := p.pool.Stat()
	stats["status"] = "up"
	stats["open_connections"] = fmt.Sprint(s.TotalConns())
	stats["idle"] = fmt.Sprint(s.IdleConns())
	stats["in_use"] = fmt.Sprint(s.AcquiredConns())
	return stats
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Discard is the archive used when no database is configured.
type Discard struct{}

func (Discard) Record(context.Context, internal.GameResult) error { return nil }

func (Discard) Recent(context.Context, int) ([]internal.GameResult, error) {
	return []internal.GameResult{}, nil
}

func (Discard) Health(context.Context) map[string]string {
	return map[string]string{"archive": "disabled", "status": "up"}
}

func (Discard) Close() {}
