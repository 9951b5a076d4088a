package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/petrel-labs/liveboard/internal/match"
)

// Archive writes finished games to Postgres. Archival is best effort: the
// coordinator logs failures instead of failing the move that ended the game.
type Archive struct {
	db *sql.DB
}

func NewArchive(databaseURL string) (*Archive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// EnsureSchema creates the archive table if it does not exist.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS archived_games (
        game_id     TEXT PRIMARY KEY,
        white_id    TEXT NOT NULL,
        black_id    TEXT NOT NULL,
        start_fen   TEXT NOT NULL,
        final_fen   TEXT NOT NULL,
        status      TEXT NOT NULL,
        winner      TEXT NOT NULL,
        moves_uci   JSONB NOT NULL,
        version     BIGINT NOT NULL,
        started_at  TIMESTAMPTZ NOT NULL,
        ended_at    TIMESTAMPTZ NOT NULL,
        duration_ms BIGINT NOT NULL
    )`)
	return err
}

// SaveResult upserts the final record of a finished game.
func (a *Archive) SaveResult(ctx context.Context, snap match.Snapshot, finalFEN string) error {
	if a == nil || a.db == nil {
		return nil
	}
	movesRaw, err := json.Marshal(snap.MovesUCI)
	if err != nil {
		return err
	}
	duration := snap.UpdatedAt.Sub(snap.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO archived_games (
        game_id, white_id, black_id, start_fen, final_fen,
        status, winner, moves_uci, version,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
      ) ON CONFLICT (game_id) DO UPDATE SET
        final_fen=EXCLUDED.final_fen,
        status=EXCLUDED.status,
        winner=EXCLUDED.winner,
        moves_uci=EXCLUDED.moves_uci,
        version=EXCLUDED.version,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = a.db.ExecContext(ctx, q,
		snap.ID,
		snap.WhiteID, snap.BlackID,
		snap.StartFEN, finalFEN,
		string(snap.Status), snap.Winner,
		movesRaw, snap.Version,
		snap.CreatedAt, snap.UpdatedAt, duration,
	)
	return err
}
