package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

var gazetteColumns = []string{
	"key", "jurisdiction", "name", "frbr_work_uri", "publication", "number", "date", "year",
	"source", "location", "sources", "ocred", "size", "created_at",
}

// SQL stores records in postgres or sqlite.
type SQL struct {
	db          *sql.DB
	builder     sq.StatementBuilderType
	taskURLBase string
	now         func() time.Time
}

// NewSQL wraps an open database. The schema must already exist.
func NewSQL(db *sql.DB, placeholder sq.PlaceholderFormat, taskURLBase string) *SQL {
	return &SQL{
		db:          db,
		builder:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		taskURLBase: taskURLBase,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Save inserts the record. Zero affected rows means the key already exists.
func (s *SQL) Save(ctx context.Context, rec *gazette.Record) (SaveResult, error) {
	if err := requireKeyed("save", rec); err != nil {
		return SaveResult{}, err
	}
	sources, err := json.Marshal(lo.Map(rec.Sources, func(loc gazette.Location, _ int) string { return loc.String() }))
	if err != nil {
		return SaveResult{}, services.Wrap(services.ErrValidation, "metadata", "save", "encode sources", err)
	}
	now := s.now().Format(time.RFC3339)

	insert, args, err := s.builder.Insert("gazettes").
		Columns(gazetteColumns...).
		Values(rec.Key, rec.Jurisdiction, rec.Name, rec.FRBRWorkURI, rec.Publication, rec.Number, rec.Date, rec.Year,
			rec.Source.String(), rec.WorkingLocation.String(), string(sources), rec.OCRed, rec.Size, now).
		Suffix("ON CONFLICT (key) DO NOTHING").
		ToSql()
	if err != nil {
		return SaveResult{}, services.Wrap(services.ErrValidation, "metadata", "save", "build insert", err)
	}

	var affected int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insert, args...)
		if err != nil {
			return err
		}
		if affected, err = res.RowsAffected(); err != nil {
			return err
		}
		return s.markSeen(ctx, tx, rec, now)
	})
	if err != nil {
		return SaveResult{}, services.Wrap(services.ErrTransient, "metadata", "save", rec.Key, err)
	}
	if affected == 0 {
		return SaveResult{Record: rec, Duplicate: true}, nil
	}
	return SaveResult{Record: rec.Clone()}, nil
}

// CreateManualTask records a review task and returns its URL.
func (s *SQL) CreateManualTask(ctx context.Context, rec *gazette.Record) (string, error) {
	if rec == nil {
		return "", services.Wrap(services.ErrValidation, "metadata", "create task", "record is required", nil)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "metadata", "create task", "encode record", err)
	}
	id := uuid.NewString()
	url := s.taskURL(id)
	now := s.now().Format(time.RFC3339)

	insert, args, err := s.builder.Insert("manual_tasks").
		Columns("id", "jurisdiction", "source", "record", "url", "created_at").
		Values(id, rec.Jurisdiction, rec.Source.String(), string(payload), url, now).
		ToSql()
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "metadata", "create task", "build insert", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return err
		}
		return s.markSeen(ctx, tx, rec, now)
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "metadata", "create task", rec.Source.String(), err)
	}
	return url, nil
}

// FilterSeen drops urls already submitted through Save or CreateManualTask.
func (s *SQL) FilterSeen(ctx context.Context, urls []string) ([]string, error) {
	urls = lo.Uniq(lo.Filter(urls, func(u string, _ int) bool { return u != "" }))
	if len(urls) == 0 {
		return nil, nil
	}
	query, args, err := s.builder.Select("url").From("seen_urls").Where(sq.Eq{"url": urls}).ToSql()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "metadata", "filter seen", "build query", err)
	}

	var seen []string
	err = retryOnBusy(ctx, func() error {
		seen = seen[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var url string
			if err := rows.Scan(&url); err != nil {
				return err
			}
			seen = append(seen, url)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "metadata", "filter seen", fmt.Sprintf("%d urls", len(urls)), err)
	}
	return lo.Without(urls, seen...), nil
}

// Close releases the database handle.
func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQL) markSeen(ctx context.Context, tx *sql.Tx, rec *gazette.Record, now string) error {
	if rec.Source.Kind != gazette.SourceURL {
		return nil
	}
	insert, args, err := s.builder.Insert("seen_urls").
		Columns("url", "seen_at").
		Values(rec.Source.URL, now).
		Suffix("ON CONFLICT (url) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, insert, args...)
	return err
}

func (s *SQL) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func (s *SQL) taskURL(id string) string {
	if s.taskURLBase == "" {
		return "urn:uuid:" + id
	}
	return strings.TrimRight(s.taskURLBase, "/") + "/" + id
}

// keepOrder returns the members of input present in subset, preserving
// input order and dropping repeats.
func keepOrder(input, subset []string) []string {
	return lo.Uniq(lo.Filter(input, func(u string, _ int) bool {
		return lo.Contains(subset, u)
	}))
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
