package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakePool struct {
	txs  []*fakeTx
	opts []pgx.TxOptions
}

func (p *fakePool) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{}
	p.txs = append(p.txs, tx)
	p.opts = append(p.opts, opts)
	return tx, nil
}

func TestWithTxCommits(t *testing.T) {
	pool := &fakePool{}
	require.NoError(t, WithTx(context.Background(), pool, func(pgx.Tx) error { return nil }))
	require.Len(t, pool.txs, 1)
	assert.True(t, pool.txs[0].committed)
	assert.Equal(t, pgx.RepeatableRead, pool.opts[0].IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	pool := &fakePool{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), pool, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Len(t, pool.txs, 1)
	assert.True(t, pool.txs[0].rolledBack)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	pool := &fakePool{}
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("insert ledger: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, pool.txs[2].committed)

	calls = 0
	err = WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.True(t, Retryable(err))
	assert.Equal(t, maxAttempts, calls)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(errors.New("plain")))
	assert.False(t, Retryable(&pgconn.PgError{Code: "23505"}))
	assert.True(t, Retryable(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"})))
}
