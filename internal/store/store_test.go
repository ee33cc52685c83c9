package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestInsertValidatedResult_Commits(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := ValidatedResult{
		PlayerID: "p1", DisplayName: "Ada", Email: "ada@example.com",
		WPM: 92, Accuracy: 98, CorrectChars: 460, IncorrectChars: 9,
		Duration: 60, Theme: "dark", Language: "en",
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO profiles \(id, display_name, email\)`).
		WithArgs("p1", "Ada", "ada@example.com").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM insert_validated_result\(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`).
		WithArgs("p1", 92, 98, 460, 9, 60, "dark", "en").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("r-1", created))
	mock.ExpectCommit()

	saved, err := db.InsertValidatedResult(ctx, r)
	require.NoError(t, err)
	require.Equal(t, "r-1", saved.ID)
	require.Equal(t, created, saved.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertValidatedResult_RollsBackOnFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO profiles`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM insert_validated_result`).
		WillReturnError(errors.New("check constraint violated"))
	mock.ExpectRollback()

	saved, err := db.InsertValidatedResult(context.Background(), ValidatedResult{PlayerID: "p1", Duration: 30})
	require.Error(t, err)
	require.Nil(t, saved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopResults(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{"id", "player_id", "display_name", "email", "wpm", "accuracy", "created_at"}
	mock.ExpectQuery(`ORDER BY r.wpm DESC, r.accuracy DESC, r.created_at ASC, r.id DESC OFFSET \$2 LIMIT \$3`).
		WithArgs(30, 0, 2).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("a", "p1", "Ada", "ada@example.com", 120, 99, t0).
			AddRow("b", "p2", "Bob", "", 120, 99, t0.Add(time.Second)))

	got, err := db.TopResults(context.Background(), 30, 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ID)
	require.Equal(t, "Bob", got[1].DisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerRank(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{"id", "player_id", "display_name", "email", "wpm", "accuracy", "created_at"}
	mock.ExpectQuery(`WHERE r.player_id = \$1 AND r.duration = \$2`).
		WithArgs("p1", 60).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("a", "p1", "Ada", "", 88, 97, t0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM test_results`).
		WithArgs(60, 88, 97, t0).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	rank, best, err := db.PlayerRank(ctx, "p1", 60)
	require.NoError(t, err)
	require.Equal(t, 5, rank)
	require.Equal(t, 88, best.WPM)

	mock.ExpectQuery(`WHERE r.player_id = \$1 AND r.duration = \$2`).
		WithArgs("p2", 60).
		WillReturnError(pgx.ErrNoRows)
	_, _, err = db.PlayerRank(ctx, "p2", 60)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceOperations(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT add_balance\(\$1, \$2\)`).
		WithArgs("p1", int64(257)).
		WillReturnRows(pgxmock.NewRows([]string{"add_balance"}).AddRow(int64(1257)))
	total, err := db.AddBalance(ctx, "p1", 257)
	require.NoError(t, err)
	require.Equal(t, int64(1257), total)

	mock.ExpectQuery(`SELECT coins FROM profiles WHERE id=\$1`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"coins"}).AddRow(int64(1257)))
	coins, err := db.GetBalance(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(1257), coins)

	mock.ExpectQuery(`SELECT coins FROM profiles WHERE id=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	_, err = db.GetBalance(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(`UPDATE profiles SET coins=\$3 WHERE id=\$1 AND coins=\$2`).
		WithArgs("p1", int64(1257), int64(1300)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := db.CompareAndSwapBalance(ctx, "p1", 1257, 1300)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`UPDATE profiles SET coins=\$3 WHERE id=\$1 AND coins=\$2`).
		WithArgs("p1", int64(1257), int64(1300)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = db.CompareAndSwapBalance(ctx, "p1", 1257, 1300)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	t0 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, display_name, email, coins, created_at FROM profiles WHERE id=\$1`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "display_name", "email", "coins", "created_at"}).
			AddRow("p1", "Ada", "ada@example.com", int64(40), t0))
	p, err := db.GetProfile(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "Ada", p.DisplayName)
	require.Equal(t, int64(40), p.Coins)

	mock.ExpectQuery(`FROM profiles WHERE id=\$1`).
		WithArgs("p2").
		WillReturnError(pgx.ErrNoRows)
	_, err = db.GetProfile(context.Background(), "p2")
	require.ErrorIs(t, err, ErrNotFound)
}
