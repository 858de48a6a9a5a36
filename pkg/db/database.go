package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crossrepo/crossrepo/pkg/logging"
)

type TxFunc func(tx Tx) (interface{}, error)

type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
}

type Database interface {
	Querier
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Transact(ctx context.Context, fn TxFunc, opts ...TxOpt) (interface{}, error)

	Close()
	Stats() sql.DBStats
	Pool() *pgxpool.Pool
}

// Void wraps a procedure with no return value as a TxFunc
func Void(fn func(tx Tx) error) TxFunc {
	return func(tx Tx) (interface{}, error) { return nil, fn(tx) }
}

type QueryOptions struct {
	logger logging.Logger
}

type PgxDatabase struct {
	db           *pgxpool.Pool
	queryOptions *QueryOptions
}

func NewPgxDatabase(db *pgxpool.Pool) *PgxDatabase {
	return &PgxDatabase{db: db}
}

func (d *PgxDatabase) getLogger(ctx context.Context, fields logging.Fields) logging.Logger {
	var log logging.Logger
	if d.queryOptions != nil {
		log = d.queryOptions.logger
	} else {
		log = logging.Default()
	}
	return log.WithContext(ctx).WithFields(fields)
}

func (d *PgxDatabase) Close() {
	d.db.Close()
}

func (d *PgxDatabase) Pool() *pgxpool.Pool {
	return d.db
}

// performAndReport performs fn and logs a "done" report if its duration was long enough.
func (d *PgxDatabase) performAndReport(ctx context.Context, fields logging.Fields, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	ret, err := fn()
	duration := time.Since(start)
	if duration > 100*time.Millisecond {
		logger := d.getLogger(ctx, fields).WithField("took", duration)
		if err != nil {
			logger = logger.WithError(err)
		}
		logger.Info("database done")
	}
	return ret, err
}

func (d *PgxDatabase) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	_, err := d.performAndReport(ctx, logging.Fields{
		"type":  "get",
		"query": query,
		"args":  args,
	}, func() (interface{}, error) {
		return nil, pgxscan.Get(ctx, d.db, dest, query, args...)
	})
	if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (d *PgxDatabase) Query(ctx context.Context, query string, args ...interface{}) (rows pgx.Rows, err error) {
	l := d.getLogger(ctx, logging.Fields{
		"type":  "start query",
		"query": query,
		"args":  args,
	})
	ret, err := d.db.Query(ctx, query, args...)
	if err != nil {
		l.WithError(err).Error("SQL query failed with error")
		return nil, err
	}
	l.Trace("SQL query started successfully")
	return ret, nil
}

func (d *PgxDatabase) Select(ctx context.Context, results interface{}, query string, args ...interface{}) error {
	rows, err := d.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return pgxscan.ScanAll(results, rows)
}

func (d *PgxDatabase) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	ret, err := d.performAndReport(ctx, logging.Fields{
		"type":  "exec",
		"query": query,
		"args":  args,
	}, func() (interface{}, error) { return d.db.Exec(ctx, query, args...) })
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return ret.(pgconn.CommandTag), nil
}

func (d *PgxDatabase) getTxOptions(ctx context.Context) *TxOptions {
	options := DefaultTxOptions(ctx)
	if d.queryOptions != nil {
		options.logger = d.queryOptions.logger
	}
	return options
}

func (d *PgxDatabase) Transact(ctx context.Context, fn TxFunc, opts ...TxOpt) (interface{}, error) {
	options := d.getTxOptions(ctx)
	for _, opt := range opts {
		opt(options)
	}
	var attempt int
	var ret interface{}
	var err error
	var tx pgx.Tx
	defer func() {
		if p := recover(); p != nil && tx != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()
	for attempt < SerializationRetryMaxAttempts {
		if attempt > 0 {
			duration := SerializationRetryStartInterval * time.Duration(attempt)
			dbRetriesCount.Inc()
			options.logger.
				WithField("attempt", attempt).
				WithField("sleep_interval", duration).
				Warn("retrying transaction due to serialization error")
			time.Sleep(duration)
		}

		tx, err = d.db.BeginTx(ctx, pgx.TxOptions{
			IsoLevel:   options.isolationLevel,
			AccessMode: options.accessMode,
		})
		if err != nil {
			return nil, err
		}
		ret, err = fn(&dbTx{tx: tx, logger: options.logger, ctx: ctx})
		if err != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil {
				// returning the original error and not the rollbackErr
				// there are cases we use the return value with specific error, so we capture 'ret'
				return ret, err
			}
			// retry on serialization error
			if IsSerializationError(err) {
				attempt++
				continue
			}
		} else {
			commitErr := tx.Commit(ctx)
			if commitErr != nil {
				// retry on serialization error
				if IsSerializationError(commitErr) {
					attempt++
					continue
				}
				// other commit error
				return nil, commitErr
			}
			// committed successfully, we're done
		}
		// always return the callback value with or without the error - some cases depends on the data with an error
		return ret, err
	}
	if attempt == SerializationRetryMaxAttempts {
		options.logger.
			WithField("attempt", attempt).
			Warn("transaction failed after max attempts due to serialization error")
	}
	return nil, ErrSerialization
}

func (d *PgxDatabase) Stats() sql.DBStats {
	stat := d.db.Stat()
	return sql.DBStats{
		MaxOpenConnections: int(stat.MaxConns()),
		// Includes conns being constructed, so this violates the invariant documented
		// in DBStats that OpenConnections = InUse + Idle.
		OpenConnections: int(stat.TotalConns()),
		InUse:           int(stat.AcquiredConns()),
		Idle:            int(stat.IdleConns()),
		// WaitCount is the number of connections for which sql had to wait.
		// EmptyAcquireCount is the number of connections that pgx acquired after
		// waiting.  The two are close enough (but race each other).
		WaitCount: stat.EmptyAcquireCount(),
		// Time to acquire is close enough to time spent waiting; fudge.
		WaitDuration: stat.AcquireDuration(),
	}
}

var _ Database = (*PgxDatabase)(nil)
