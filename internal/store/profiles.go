package store

import (
	"context"
	"time"
)

type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Coins       int64
	CreatedAt   time.Time
}

func (db *DB) GetProfile(ctx context.Context, id string) (*Profile, error) {
	const q = `
SELECT id, display_name, email, coins, created_at
FROM profiles WHERE id=$1`
	var p Profile
	if err := db.Pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.DisplayName, &p.Email, &p.Coins, &p.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
