package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
)

var favoriteColumns = []string{"id", "user_id", "product_id", "price_at_favorite", "created_at"}

func TestFavoriteRepository_Create(t *testing.T) {
	t.Run("Inserted", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewFavoriteRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `favorites` \\(`user_id`,`product_id`,`price_at_favorite`,`created_at`\\)").
			WillReturnResult(sqlmock.NewResult(11, 1))
		mock.ExpectCommit()

		fav := &model.Favorite{UserID: 1, ProductID: 2, PriceAtFavorite: decimal.NewFromInt(1000)}
		require.NoError(t, repo.Create(context.Background(), fav))
		assert.Equal(t, uint64(11), fav.ID)
	})

	t.Run("DuplicateKeyIsConflict", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewFavoriteRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `favorites`").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-2' for key 'uk_favorites_user_product'"})
		mock.ExpectRollback()

		err := repo.Create(context.Background(), &model.Favorite{UserID: 1, ProductID: 2})
		assert.ErrorIs(t, err, ErrDuplicateFavorite)
	})

	t.Run("OtherErrorsPassThrough", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewFavoriteRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `favorites`").
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := repo.Create(context.Background(), &model.Favorite{UserID: 1, ProductID: 2})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateFavorite)
	})
}

func TestFavoriteRepository_Get(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewFavoriteRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `favorites` WHERE user_id = \\? AND product_id = \\?").
		WillReturnRows(sqlmock.NewRows(favoriteColumns))

	_, err := repo.Get(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrFavoriteNotFound)
}

func TestFavoriteRepository_Exists(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewFavoriteRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `favorites` WHERE user_id = \\? AND product_id = \\?").
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.Exists(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFavoriteRepository_Delete(t *testing.T) {
	t.Run("Removed", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewFavoriteRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `favorites` WHERE user_id = \\? AND product_id = \\?").
			WithArgs(1, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.Delete(context.Background(), 1, 2))
	})

	t.Run("Absent", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewFavoriteRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `favorites`").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.ErrorIs(t, repo.Delete(context.Background(), 1, 2), ErrFavoriteNotFound)
	})
}

func TestFavoriteRepository_ListByUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewFavoriteRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(favoriteColumns).
		AddRow(9, 1, 4, "80.00", now).
		AddRow(8, 1, 2, "1000.00", now.Add(-time.Hour))
	mock.ExpectQuery("SELECT \\* FROM `favorites` WHERE user_id = \\? ORDER BY created_at DESC, id DESC LIMIT \\?").
		WillReturnRows(rows)

	favorites, err := repo.ListByUser(context.Background(), 1, 500)
	require.NoError(t, err)
	require.Len(t, favorites, 2)
	assert.Equal(t, uint64(9), favorites[0].ID)
	assert.True(t, favorites[1].PriceAtFavorite.Equal(decimal.NewFromInt(1000)))
}

func TestFavoriteRepository_ListByProduct(t *testing.T) {
	t.Run("Unbounded", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewFavoriteRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `favorites` WHERE product_id = \\? AND id > \\? ORDER BY id ASC$").
			WithArgs(3, 0).
			WillReturnRows(sqlmock.NewRows(favoriteColumns).AddRow(1, 5, 3, "10.00", time.Now()))

		favorites, err := repo.ListByProduct(context.Background(), 3, 0, 0)
		require.NoError(t, err)
		assert.Len(t, favorites, 1)
	})

	t.Run("PageAfterCursor", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewFavoriteRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `favorites` WHERE product_id = \\? AND id > \\? ORDER BY id ASC LIMIT \\?").
			WithArgs(3, 40, 2).
			WillReturnRows(sqlmock.NewRows(favoriteColumns).
				AddRow(41, 5, 3, "10.00", time.Now()).
				AddRow(44, 6, 3, "12.00", time.Now()))

		favorites, err := repo.ListByProduct(context.Background(), 3, 40, 2)
		require.NoError(t, err)
		require.Len(t, favorites, 2)
		assert.Equal(t, uint64(44), favorites[1].ID)
	})
}
