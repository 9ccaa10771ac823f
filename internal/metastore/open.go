package metastore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"gazettemachine/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// OpenSQLite opens or creates a sqlite database at path.
func OpenSQLite(ctx context.Context, path, taskURLBase string) (*SQL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "metadata", "open", "create database directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "metadata", "open", "open sqlite db", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrConfiguration, "metadata", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}
	store := NewSQL(db, sq.Question, taskURLBase)
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenPostgres connects through pgx's database/sql driver.
func OpenPostgres(ctx context.Context, dsn, taskURLBase string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "metadata", "open", "open postgres db", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrTransient, "metadata", "open", "ping postgres", err)
	}
	store := NewSQL(db, sq.Dollar, taskURLBase)
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQL) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return services.Wrap(services.ErrConfiguration, "metadata", "init schema", "create schema", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case isNoRows(err):
		insert, args, buildErr := s.builder.Insert("schema_version").Columns("version").Values(schemaVersion).ToSql()
		if buildErr != nil {
			return buildErr
		}
		if _, err := s.db.ExecContext(ctx, insert, args...); err != nil {
			return services.Wrap(services.ErrConfiguration, "metadata", "init schema", "record schema version", err)
		}
		return nil
	case err != nil:
		return services.Wrap(services.ErrConfiguration, "metadata", "init schema", "read schema version", err)
	case version != schemaVersion:
		return services.Wrap(services.ErrConfiguration, "metadata", "init schema",
			fmt.Sprintf("database has version %d, expected %d", version, schemaVersion), ErrSchemaMismatch)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
