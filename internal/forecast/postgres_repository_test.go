package forecast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedExec struct {
	sql  string
	args []any
}

type recordingTx struct {
	pgx.Tx
	execs      []recordedExec
	copied     int
	failOn     string
	committed  bool
	rolledBack bool
}

func (tx *recordingTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.execs = append(tx.execs, recordedExec{sql: sql, args: args})
	if tx.failOn != "" && strings.Contains(sql, tx.failOn) {
		return pgconn.CommandTag{}, errors.New("connection reset")
	}
	return pgconn.CommandTag{}, nil
}

func (tx *recordingTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	for src.Next() {
		if _, err := src.Values(); err != nil {
			return 0, err
		}
		tx.copied++
	}
	return int64(tx.copied), nil
}

func (tx *recordingTx) Commit(context.Context) error   { tx.committed = true; return nil }
func (tx *recordingTx) Rollback(context.Context) error { tx.rolledBack = true; return nil }

type recordingBeginner struct {
	tx *recordingTx
}

func (b *recordingBeginner) Begin(context.Context) (pgx.Tx, error) {
	return b.tx, nil
}

func steps(locationID string) []*Forecast {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]*Forecast, 0, Steps)
	for i := 1; i <= Steps; i++ {
		out = append(out, &Forecast{
			ID:           "fct_" + string(rune('a'+i)),
			LocationID:   locationID,
			Timestamp:    now.Add(time.Duration(i) * StepInterval),
			ModelVersion: ModelVersion,
			CreatedAt:    now,
		})
	}
	return out
}

func TestPostgresRepository_ReplaceLocksLocationBeforeDelete(t *testing.T) {
	tx := &recordingTx{}
	repo := &PostgresRepository{txer: &recordingBeginner{tx: tx}}

	require.NoError(t, repo.Replace(context.Background(), "loc_harbour", steps("loc_harbour")))

	require.Len(t, tx.execs, 2)
	assert.Contains(t, tx.execs[0].sql, "pg_advisory_xact_lock")
	assert.Equal(t, []any{replaceLockClass, "loc_harbour"}, tx.execs[0].args)
	assert.Contains(t, tx.execs[1].sql, "DELETE FROM forecasts")
	assert.Equal(t, Steps, tx.copied)
	assert.True(t, tx.committed)
}

func TestPostgresRepository_ReplaceLockFailureRollsBack(t *testing.T) {
	tx := &recordingTx{failOn: "pg_advisory_xact_lock"}
	repo := &PostgresRepository{txer: &recordingBeginner{tx: tx}}

	err := repo.Replace(context.Background(), "loc_harbour", steps("loc_harbour"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock location forecasts")

	assert.Len(t, tx.execs, 1)
	assert.Zero(t, tx.copied)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}
