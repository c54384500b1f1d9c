package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// serializableAttempts bounds how often a serializable unit is replayed after
// a conflict.
const serializableAttempts = 10

// retryBackoff is the base pause before a replay; each attempt waits a random
// duration up to attempt*retryBackoff.
const retryBackoff = 5 * time.Millisecond

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	return runTx(ctx, pool, pgx.TxOptions{}, fn)
}

// withSerializableTx runs fn under SERIALIZABLE isolation and replays it when
// Postgres reports a serialization failure or a deadlock, or when fn reports
// domain.ErrConcurrentModification.
func withSerializableTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	var err error
	for attempt := 0; attempt < serializableAttempts; attempt++ {
		err = runTx(ctx, pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if !isRetryable(err) {
			return err
		}
		pause := time.Duration(rand.Int63n(int64(retryBackoff) * int64(attempt+1)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	if errors.Is(err, domain.ErrConcurrentModification) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
}

func runTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// db routes statements through the transaction carried by ctx, if any.
type db struct {
	pool *pgxpool.Pool
}

func (d db) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return d.pool.Exec(ctx, sql, args...)
}

func (d db) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return d.pool.QueryRow(ctx, sql, args...)
}

func (d db) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return d.pool.Query(ctx, sql, args...)
}

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == "23505"
}

// violatesConstraint reports a unique violation of the named constraint or
// index.
func violatesConstraint(err error, name string) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == "23505" && pgErr.ConstraintName == name
}

func isForeignKeyViolation(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == "23503"
}

// isInvalidDate matches malformed or out-of-range date input.
func isInvalidDate(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && (pgErr.Code == "22007" || pgErr.Code == "22008")
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrConcurrentModification) {
		return true
	}
	pgErr := pgError(err)
	return pgErr != nil && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
