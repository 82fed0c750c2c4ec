package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // PostgreSQL driver and error codes
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/config"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// pqForeignKeyViolation is the SQLSTATE for a broken REFERENCES constraint
const pqForeignKeyViolation = "23503"

// PostgresStore implements DirectoryStore on PostgreSQL
type PostgresStore struct {
	db  *sqlx.DB
	log *logrus.Entry
}

// Connect opens and verifies a PostgreSQL connection pool
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", utils.ErrDatabase, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s:%d/%s: %w", utils.ErrDatabase, cfg.Host, cfg.Port, cfg.DBName, err)
	}
	return db, nil
}

// NewPostgresStore wraps an open connection pool
func NewPostgresStore(db *sqlx.DB, log *logrus.Entry) *PostgresStore {
	return &PostgresStore{db: db, log: log.WithField("component", "postgres_store")}
}

// Ping verifies the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", utils.ErrDatabase, err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.log.Info("Closing database connection pool...")
	return s.db.Close()
}

// dbErr wraps a driver error with ErrDatabase and the failing operation
func dbErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", utils.ErrDatabase, op, err)
}

// execRequireRows maps "no rows affected" to notFoundErr
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
