package imagestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flexibleSQLMatcher makes SQL expectations insensitive to whitespace.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 42, time.UTC)

func TestKeys(t *testing.T) {
	key := NewKey("3f1c2a90-run", "img", fixedTime)
	assert.Equal(t, "3f1c2a90-run/img_"+"1714564800000000042"+".png", key)
	assert.NoError(t, ValidateKey(key))

	for _, bad := range []string{"", "../etc/passwd", "run/../../x.png", "run/img.jpg", "a/b/c.png", "/run/img.png"} {
		assert.ErrorIs(t, ValidateKey(bad), ErrInvalidKey, bad)
	}

	assert.Equal(t, "/api/images/r/k.png", refFor("/api/images/", "r/k.png"))
	assert.Equal(t, "r/k.png", refFor("", "r/k.png"))
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "images")

	s, err := NewFSStore(dir, "/api/images", zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return fixedTime }

	ref, err := s.Save(ctx, "run-1", "before_annotated_img", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/api/images/run-1/before_annotated_img_1714564800000000042.png", ref)

	_, err = os.Stat(filepath.Join(dir, "run-1", "before_annotated_img_1714564800000000042.png"))
	require.NoError(t, err)

	data, err := s.Load(ctx, "run-1/before_annotated_img_1714564800000000042.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	_, err = s.Load(ctx, "run-1/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load(ctx, "../secrets.png")
	assert.ErrorIs(t, err, ErrInvalidKey)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Save(cancelled, "run-1", "img", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSStore_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := NewFSStore("~/uxpilot-images", "", zap.NewNop())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.Root(), home), "root %s should live under %s", s.Root(), home)
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		t.Cleanup(mockPool.Close)
		s := NewPostgresStore(mockPool, "/api/images", zap.NewNop())
		s.now = func() time.Time { return fixedTime }
		return s, mockPool
	}

	t.Run("EnsureSchema", func(t *testing.T) {
		s, mockPool := newStore(t)
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateImages)).
			WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

		require.NoError(t, s.EnsureSchema(ctx))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Save inserts a row", func(t *testing.T) {
		s, mockPool := newStore(t)
		key := "run-1/img_1714564800000000042.png"
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertImage)).
			WithArgs(key, "run-1", "img", []byte{0x89, 0x50}, fixedTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		ref, err := s.Save(ctx, "run-1", "img", []byte{0x89, 0x50})
		require.NoError(t, err)
		assert.Equal(t, "/api/images/"+key, ref)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Save propagates insert errors", func(t *testing.T) {
		s, mockPool := newStore(t)
		dbErr := errors.New("connection reset")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertImage)).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(dbErr)

		_, err := s.Save(ctx, "run-1", "img", []byte{1})
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Load returns stored bytes", func(t *testing.T) {
		s, mockPool := newStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectImage)).
			WithArgs("run-1/img_1.png").
			WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte("png")))

		data, err := s.Load(ctx, "run-1/img_1.png")
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), data)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Load maps missing rows to ErrNotFound", func(t *testing.T) {
		s, mockPool := newStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectImage)).
			WithArgs("run-1/img_2.png").
			WillReturnError(pgx.ErrNoRows)

		_, err := s.Load(ctx, "run-1/img_2.png")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Load rejects invalid keys without querying", func(t *testing.T) {
		s, mockPool := newStore(t)
		_, err := s.Load(ctx, "../../etc/passwd")
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
