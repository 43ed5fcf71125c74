package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/and161185/habithive/internal/errs"
	"github.com/and161185/habithive/internal/model"
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

var (
	qGetByField = regexp.QuoteMeta(`SELECT id, fields, created_at, updated_at FROM documents WHERE collection=$1 AND fields->>$2 = $3 ORDER BY created_at ASC, id ASC`)
	qGetByID    = regexp.QuoteMeta(`SELECT fields, created_at, updated_at FROM documents WHERE collection=$1 AND id=$2`)
	qAdd        = regexp.QuoteMeta(`INSERT INTO documents (collection, id, fields) VALUES ($1,$2,$3)`)
	qSet        = regexp.QuoteMeta(`INSERT INTO documents (collection, id, fields) VALUES ($1,$2,$3) ON CONFLICT (collection, id) DO UPDATE SET fields=EXCLUDED.fields, updated_at=now()`)
	qUpdate     = regexp.QuoteMeta(`UPDATE documents SET fields = fields || $3::jsonb, updated_at=now() WHERE collection=$1 AND id=$2`)
	qDelete     = regexp.QuoteMeta(`DELETE FROM documents WHERE collection=$1 AND id=$2`)
	qList       = regexp.QuoteMeta(`SELECT id, fields, created_at, updated_at FROM documents WHERE collection=$1 ORDER BY created_at DESC, id ASC`)
)

func TestDocStore_GetByField_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore(db)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(qGetByField).
		WithArgs(model.CollectionPosts, "uid", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "fields", "created_at", "updated_at"}).
			AddRow("p1", []byte(`{"uid":"u1","title":"a"}`), ts, ts).
			AddRow("p2", []byte(`{"uid":"u1","title":"b"}`), ts, ts))

	docs, err := s.GetByField(context.Background(), model.CollectionPosts, "uid", "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "p1", docs[0].ID)
	require.Equal(t, model.CollectionPosts, docs[0].Collection)
	require.Equal(t, "b", docs[1].Fields["title"])
	require.Equal(t, ts, docs[1].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocStore_GetByField_QueryError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore(db)

	boom := errors.New("conn reset")
	mock.ExpectQuery(qGetByField).
		WithArgs(model.CollectionHabits, "uid", "u1").
		WillReturnError(boom)

	_, err := s.GetByField(context.Background(), model.CollectionHabits, "uid", "u1")
	require.ErrorIs(t, err, boom)
}

func TestDocStore_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore(db)
	ts := time.Now().UTC()

	mock.ExpectQuery(qGetByID).
		WithArgs(model.CollectionUsers, "u1").
		WillReturnRows(pgxmock.NewRows([]string{"fields", "created_at", "updated_at"}).
			AddRow([]byte(`{"uid":"u1","name":"Ann"}`), ts, ts))
	d, err := s.GetByID(context.Background(), model.CollectionUsers, "u1")
	require.NoError(t, err)
	require.Equal(t, "Ann", d.Fields["name"])
	require.Equal(t, "u1", d.ID)

	mock.ExpectQuery(qGetByID).
		WithArgs(model.CollectionUsers, "nope").
		WillReturnError(pgx.ErrNoRows)
	_, err = s.GetByID(context.Background(), model.CollectionUsers, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocStore_Add_GeneratesID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore(db)

	mock.ExpectExec(qAdd).
		WithArgs(model.CollectionPosts, pgxmock.AnyArg(), []byte(`{"title":"hi","uid":"u1"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.Add(context.Background(), model.CollectionPosts, map[string]any{"uid": "u1", "title": "hi"})
	require.NoError(t, err)
	require.Len(t, id, 36)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocStore_Set_Upserts(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore(db)

	mock.ExpectExec(qSet).
		WithArgs(model.CollectionUsers, "u1", []byte(`{"name":"Ann","uid":"u1"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Set(context.Background(), model.CollectionUsers, "u1", map[string]any{"uid": "u1", "name": "Ann"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocStore_Update_MergeAndMissing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore(db)
	ctx := context.Background()

	mock.ExpectExec(qUpdate).
		WithArgs(model.CollectionPosts, "p1", []byte(`{"userName":"Bob"}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.Update(ctx, model.CollectionPosts, "p1", map[string]any{"userName": "Bob"}))

	mock.ExpectExec(qUpdate).
		WithArgs(model.CollectionPosts, "gone", []byte(`{"userName":"Bob"}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := s.Update(ctx, model.CollectionPosts, "gone", map[string]any{"userName": "Bob"})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocStore_Delete_Idempotent(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore(db)

	mock.ExpectExec(qDelete).
		WithArgs(model.CollectionPosts, "p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.NoError(t, s.Delete(context.Background(), model.CollectionPosts, "p1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocStore_List_DecodeError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := NewDocStore(db)
	ts := time.Now()

	mock.ExpectQuery(qList).
		WithArgs(model.CollectionPosts).
		WillReturnRows(pgxmock.NewRows([]string{"id", "fields", "created_at", "updated_at"}).
			AddRow("p1", []byte(`not json`), ts, ts))

	_, err := s.List(context.Background(), model.CollectionPosts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "posts/p1")
}
