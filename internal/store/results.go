package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ValidatedResult carries server-computed fields only.
type ValidatedResult struct {
	PlayerID       string
	DisplayName    string
	Email          string
	WPM            int
	Accuracy       int
	CorrectChars   int
	IncorrectChars int
	Duration       int
	Theme          string
	Language       string
}

type SavedResult struct {
	ID        string
	CreatedAt time.Time
}

// RankedResult is a stored result joined with its owner's profile.
type RankedResult struct {
	ID          string
	PlayerID    string
	DisplayName string
	Email       string
	WPM         int
	Accuracy    int
	CreatedAt   time.Time
}

// InsertValidatedResult records the player's profile details and inserts the
// result through insert_validated_result in one transaction.
func (db *DB) InsertValidatedResult(ctx context.Context, r ValidatedResult) (saved *SavedResult, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			saved, err = nil, e
		}
	}()

	const upsert = `
INSERT INTO profiles (id, display_name, email)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, email = EXCLUDED.email`
	if _, err = tx.Exec(ctx, upsert, r.PlayerID, r.DisplayName, r.Email); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	const ins = `
SELECT id::text, created_at
FROM insert_validated_result($1, $2, $3, $4, $5, $6, $7, $8)`
	var s SavedResult
	err = tx.QueryRow(ctx, ins,
		r.PlayerID, r.WPM, r.Accuracy, r.CorrectChars, r.IncorrectChars, r.Duration, r.Theme, r.Language,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}
	return &s, nil
}

const rankedColumns = `r.id::text, r.player_id, COALESCE(p.display_name, ''), COALESCE(p.email, ''), r.wpm, r.accuracy, r.created_at`

// TopResults returns a slice of the duration's ranking: wpm desc, accuracy
// desc, earliest first.
func (db *DB) TopResults(ctx context.Context, duration, offset, limit int) ([]RankedResult, error) {
	q := `
SELECT ` + rankedColumns + `
FROM test_results r LEFT JOIN profiles p ON p.id = r.player_id
WHERE r.duration = $1
ORDER BY r.wpm DESC, r.accuracy DESC, r.created_at ASC, r.id DESC
OFFSET $2 LIMIT $3`
	rows, err := db.Pool.Query(ctx, q, duration, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RankedResult, 0, limit)
	for rows.Next() {
		var r RankedResult
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.DisplayName, &r.Email, &r.WPM, &r.Accuracy, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PlayerRank returns the player's best result for the duration and its rank:
// one plus the number of results that strictly outrank it.
func (db *DB) PlayerRank(ctx context.Context, playerID string, duration int) (int, *RankedResult, error) {
	best := `
SELECT ` + rankedColumns + `
FROM test_results r LEFT JOIN profiles p ON p.id = r.player_id
WHERE r.player_id = $1 AND r.duration = $2
ORDER BY r.wpm DESC, r.accuracy DESC, r.created_at ASC
LIMIT 1`
	var r RankedResult
	err := db.Pool.QueryRow(ctx, best, playerID, duration).
		Scan(&r.ID, &r.PlayerID, &r.DisplayName, &r.Email, &r.WPM, &r.Accuracy, &r.CreatedAt)
	if err != nil {
		return 0, nil, notFound(err)
	}

	const ahead = `
SELECT count(*) FROM test_results
WHERE duration = $1
  AND (wpm > $2 OR (wpm = $2 AND accuracy > $3) OR (wpm = $2 AND accuracy = $3 AND created_at < $4))`
	var n int
	if err := db.Pool.QueryRow(ctx, ahead, duration, r.WPM, r.Accuracy, r.CreatedAt).Scan(&n); err != nil {
		return 0, nil, err
	}
	return n + 1, &r, nil
}
