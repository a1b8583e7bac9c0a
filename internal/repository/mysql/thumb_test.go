package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlmock "gopkg.in/DATA-DOG/go-sqlmock.v1"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ericpp/thumbs/domain"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

func TestHasThumb(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewThumbRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `thumb` WHERE user_id = ? AND blog_id = ?")).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

	liked, err := repo.HasThumb(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasThumb_NotFound(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewThumbRepository(gdb)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `thumb`")).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))

	liked, err := repo.HasThumb(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestFetchUserLikedBlogs(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewThumbRepository(gdb)

	mock.ExpectQuery("SELECT (.+) FROM `thumb` WHERE user_id = \\?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"blog_id"}).AddRow(30).AddRow(10))

	ids, err := repo.FetchUserLikedBlogs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 10}, ids)
}

func TestApplyToggleChanges_EmptyIsNoop(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewThumbRepository(gdb)

	// 空变更连事务都不该开
	err := repo.ApplyToggleChanges(context.Background(), domain.ToggleChanges{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyToggleChanges_SingleTransaction(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewThumbRepository(gdb)

	changes := domain.ToggleChanges{
		CountDeltas: map[int64]int64{10: 1},
		ToInsert: []domain.ThumbRecord{
			{UserID: 1, BlogID: 10, CreatedAt: time.Now()},
		},
		ToRemove: []domain.ThumbRecord{
			{UserID: 2, BlogID: 20},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `thumb` WHERE (user_id = ? AND blog_id = ?)")).
		WithArgs(int64(2), int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE blog SET thumb_count = thumb_count + CASE id WHEN ? THEN ? ELSE 0 END WHERE id IN (?)")).
		WithArgs(int64(10), int64(1), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `thumb`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyToggleChanges(context.Background(), changes)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyToggleChanges_RollbackOnFailure(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewThumbRepository(gdb)

	changes := domain.ToggleChanges{
		CountDeltas: map[int64]int64{10: -1},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE blog SET thumb_count").
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := repo.ApplyToggleChanges(context.Background(), changes)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemovePredicate(t *testing.T) {
	pred, args := removePredicate([]domain.ThumbRecord{
		{UserID: 1, BlogID: 10},
		{UserID: 2, BlogID: 20},
	})
	assert.Equal(t, "(user_id = ? AND blog_id = ?) OR (user_id = ? AND blog_id = ?)", pred)
	assert.Equal(t, []any{int64(1), int64(10), int64(2), int64(20)}, args)
}

func TestCountDeltaStatement(t *testing.T) {
	query, args := countDeltaStatement(map[int64]int64{10: 3})
	assert.Equal(t, "UPDATE blog SET thumb_count = thumb_count + CASE id WHEN ? THEN ? ELSE 0 END WHERE id IN (?)", query)
	assert.Equal(t, []any{int64(10), int64(3), int64(10)}, args)
}
