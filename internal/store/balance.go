package store

import "context"

// AddBalance credits amount atomically and returns the new balance.
func (db *DB) AddBalance(ctx context.Context, playerID string, amount int64) (int64, error) {
	const q = `SELECT add_balance($1, $2)`
	var total int64
	if err := db.Pool.QueryRow(ctx, q, playerID, amount).Scan(&total); err != nil {
		return 0, notFound(err)
	}
	return total, nil
}

func (db *DB) GetBalance(ctx context.Context, playerID string) (int64, error) {
	const q = `SELECT coins FROM profiles WHERE id=$1`
	var coins int64
	if err := db.Pool.QueryRow(ctx, q, playerID).Scan(&coins); err != nil {
		return 0, notFound(err)
	}
	return coins, nil
}

// CompareAndSwapBalance writes next only if the balance still equals prev.
func (db *DB) CompareAndSwapBalance(ctx context.Context, playerID string, prev, next int64) (bool, error) {
	const q = `UPDATE profiles SET coins=$3 WHERE id=$1 AND coins=$2`
	tag, err := db.Pool.Exec(ctx, q, playerID, prev, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
