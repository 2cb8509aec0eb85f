package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
)

var productColumns = []string{"id", "name", "price", "previous_price", "stock"}

func TestProductRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProductRepository(db)

	product := &model.Product{
		Name:  "Desk Lamp",
		Price: decimal.RequireFromString("650.00"),
		Stock: 10,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `products`").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), product))
	assert.Equal(t, uint64(5), product.ID)
}

func TestProductRepository_GetByID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		rows := sqlmock.NewRows(productColumns).
			AddRow(1, "Desk Lamp", "650.00", "700.00", 10)
		mock.ExpectQuery("SELECT \\* FROM `products` WHERE id = \\?").
			WithArgs(1, 1).
			WillReturnRows(rows)

		product, err := repo.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Desk Lamp", product.Name)
		assert.True(t, product.Price.Equal(decimal.NewFromInt(650)))
		assert.True(t, product.PreviousPrice.Valid)
		assert.True(t, product.IsDiscounted())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `products` WHERE id = \\?").
			WillReturnRows(sqlmock.NewRows(productColumns))

		_, err := repo.GetByID(context.Background(), 99)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestProductRepository_GetByIDs(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProductRepository(db)

	rows := sqlmock.NewRows(productColumns).
		AddRow(1, "Desk Lamp", "650.00", nil, 10).
		AddRow(3, "Chair", "1200.00", nil, 2)
	mock.ExpectQuery("SELECT \\* FROM `products` WHERE id IN \\(\\?,\\?,\\?\\)").
		WillReturnRows(rows)

	products, err := repo.GetByIDs(context.Background(), []uint64{1, 3, 4})
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, "Chair", products[3].Name)
	assert.NotContains(t, products, uint64(4))
}

func TestProductRepository_GetByIDsEmpty(t *testing.T) {
	db, _ := setupMockDB(t)
	repo := NewProductRepository(db)

	products, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestProductRepository_List(t *testing.T) {
	t.Run("Unfiltered", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `products`$").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
		mock.ExpectQuery("SELECT \\* FROM `products` ORDER BY id ASC LIMIT \\?").
			WillReturnRows(sqlmock.NewRows(productColumns).AddRow(1, "Desk Lamp", "650.00", nil, 10))

		products, total, err := repo.List(context.Background(), ProductFilter{}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(12), total)
		assert.Len(t, products, 1)
	})

	t.Run("Filtered", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)
		minPrice, maxPrice := decimal.NewFromInt(10), decimal.NewFromInt(100)
		filter := ProductFilter{
			Query:    " lamp ",
			Category: "lighting",
			MinPrice: &minPrice,
			MaxPrice: &maxPrice,
			Sort:     SortPriceDesc,
		}
		where := "WHERE \\(name LIKE \\? OR description LIKE \\?\\) AND category = \\? AND price >= \\? AND price <= \\?"

		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `products` " + where).
			WithArgs("%lamp%", "%lamp%", "lighting", "10", "100").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectQuery("SELECT \\* FROM `products` " + where + " ORDER BY price DESC, id ASC LIMIT \\?").
			WithArgs("%lamp%", "%lamp%", "lighting", "10", "100", 10).
			WillReturnRows(sqlmock.NewRows(productColumns).
				AddRow(4, "Floor Lamp", "90.00", nil, 1).
				AddRow(1, "Desk Lamp", "40.00", nil, 3))

		products, total, err := repo.List(context.Background(), filter, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, products, 2)
		assert.Equal(t, uint64(4), products[0].ID)
	})

	t.Run("Newest", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `products`").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT \\* FROM `products` ORDER BY id DESC LIMIT \\?").
			WillReturnRows(sqlmock.NewRows(productColumns))

		products, _, err := repo.List(context.Background(), ProductFilter{Sort: SortNewest}, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, products)
	})
}

func TestProductRepository_Update(t *testing.T) {
	const lockedSelect = "SELECT \\* FROM `products` WHERE id = \\? ORDER BY `products`.`id` LIMIT \\? FOR UPDATE"

	t.Run("WritesOnlyReportedColumns", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockedSelect).
			WithArgs(1, 1).
			WillReturnRows(sqlmock.NewRows(productColumns).AddRow(1, "Desk Lamp", "100.00", nil, 3))
		// stock is absent from the SET list, so a checkout that committed
		// after the read cannot be undone by this write
		mock.ExpectExec("UPDATE `products` SET `price`=\\?,`previous_price`=\\?,`updated_at`=\\? WHERE `id` = \\?$").
			WithArgs("90", "100", sqlmock.AnyArg(), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		product, err := repo.Update(context.Background(), 1, func(p *model.Product) ([]string, error) {
			p.ApplyPrice(decimal.NewFromInt(90))
			return []string{"price", "previous_price"}, nil
		})
		require.NoError(t, err)
		assert.True(t, product.Price.Equal(decimal.NewFromInt(90)))
		assert.Equal(t, 3, product.Stock)
	})

	t.Run("NothingToWrite", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockedSelect).
			WillReturnRows(sqlmock.NewRows(productColumns).AddRow(1, "Desk Lamp", "100.00", nil, 3))
		mock.ExpectCommit()

		product, err := repo.Update(context.Background(), 1, func(*model.Product) ([]string, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Desk Lamp", product.Name)
	})

	t.Run("Missing", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockedSelect).
			WillReturnRows(sqlmock.NewRows(productColumns))
		mock.ExpectRollback()

		called := false
		_, err := repo.Update(context.Background(), 9, func(*model.Product) ([]string, error) {
			called = true
			return []string{"name"}, nil
		})
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.False(t, called)
	})
}

func TestProductRepository_Delete(t *testing.T) {
	t.Run("CascadesFavorites", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `favorites` WHERE product_id = \\?").
			WithArgs(7).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec("DELETE FROM `products` WHERE id = \\?").
			WithArgs(7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.Delete(context.Background(), 7))
	})

	t.Run("MissingRollsBack", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `favorites`").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM `products`").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Delete(context.Background(), 7), ErrProductNotFound)
	})
}

func TestProductRepository_ListBestSellers(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProductRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "price", "stock", "line_count"}).
		AddRow(3, "Chair", "1200.00", 2, 9).
		AddRow(1, "Desk Lamp", "650.00", 10, 4)
	mock.ExpectQuery("SELECT products.\\*, COUNT\\(order_lines.id\\) AS line_count FROM `products` JOIN order_lines ON order_lines.product_id = products.id GROUP BY .* ORDER BY line_count DESC, products.id ASC").
		WillReturnRows(rows)

	sellers, err := repo.ListBestSellers(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sellers, 2)
	assert.Equal(t, uint64(3), sellers[0].ID)
	assert.Equal(t, int64(9), sellers[0].LineCount)
}
