package metastore

import (
	"context"
	"errors"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/DATA-DOG/go-sqlmock"

	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

func newSQLWithMock(t *testing.T) (*SQL, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	store := NewSQL(db, sq.Dollar, "https://tasks.test/")
	store.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return store, mock, func() { _ = db.Close() }
}

func TestSQLSaveInsertsRecord(t *testing.T) {
	store, mock, done := newSQLWithMock(t)
	defer done()

	rec := archivedRecord()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO gazettes .* ON CONFLICT \(key\) DO NOTHING`).
		WithArgs(rec.Key, "na", rec.Name, rec.FRBRWorkURI, "Government Gazette", "31", "2018-01-01", "2018",
			rec.Source.String(), "incoming/temp/abc-31.pdf", "[]", false, int64(2048), "2024-05-01T12:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO seen_urls .* ON CONFLICT \(url\) DO NOTHING`).
		WithArgs("https://example.org/na/31.pdf", "2024-05-01T12:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := store.Save(context.Background(), rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if result.Duplicate {
		t.Fatal("expected fresh insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLSaveZeroRowsIsDuplicate(t *testing.T) {
	store, mock, done := newSQLWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO gazettes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO seen_urls").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := store.Save(context.Background(), archivedRecord())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("expected duplicate when no rows were affected")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLSaveErrorIsNotDuplicate(t *testing.T) {
	store, mock, done := newSQLWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO gazettes").WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	result, err := store.Save(context.Background(), archivedRecord())
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Duplicate {
		t.Fatal("store errors must not be read as duplicates")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLCreateManualTask(t *testing.T) {
	store, mock, done := newSQLWithMock(t)
	defer done()

	rec := gazette.NewRecord("bw", gazette.FileSource("/data/scan.pdf"))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO manual_tasks").
		WithArgs(sqlmock.AnyArg(), "bw", "/data/scan.pdf", sqlmock.AnyArg(), sqlmock.AnyArg(), "2024-05-01T12:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	url, err := store.CreateManualTask(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateManualTask: %v", err)
	}
	if len(url) <= len("https://tasks.test/") || url[:len("https://tasks.test/")] != "https://tasks.test/" {
		t.Fatalf("unexpected task url %q", url)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLFilterSeen(t *testing.T) {
	store, mock, done := newSQLWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT url FROM seen_urls WHERE url IN \(\$1,\$2,\$3\)`).
		WithArgs("https://x.test/a.pdf", "https://x.test/b.pdf", "https://x.test/c.pdf").
		WillReturnRows(sqlmock.NewRows([]string{"url"}).AddRow("https://x.test/b.pdf"))

	unseen, err := store.FilterSeen(context.Background(), []string{
		"https://x.test/a.pdf", "https://x.test/b.pdf", "", "https://x.test/a.pdf", "https://x.test/c.pdf",
	})
	if err != nil {
		t.Fatalf("FilterSeen: %v", err)
	}
	if len(unseen) != 2 || unseen[0] != "https://x.test/a.pdf" || unseen[1] != "https://x.test/c.pdf" {
		t.Fatalf("unexpected unseen urls %v", unseen)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
