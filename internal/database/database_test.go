package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return db, mock
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"error", logger.Error},
		{"warn", logger.Warn},
		{"info", logger.Info},
		{"debug", logger.Info},
		{"", logger.Warn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, getLogLevel(tt.level), tt.level)
	}
}

func TestHealth(t *testing.T) {
	t.Run("Uninitialized", func(t *testing.T) {
		assert.Error(t, Health(context.Background(), nil))
	})

	t.Run("Ping", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectPing()

		assert.NoError(t, Health(context.Background(), db))
	})
}

func TestMissingTables(t *testing.T) {
	db, mock := setupMockDB(t)

	for _, table := range []string{"users", "products", "favorites", "notifications", "orders", "order_lines"} {
		count := 1
		if table == "notifications" {
			count = 0
		}
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM information_schema.tables").
			WithArgs(table).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
	}

	missing, err := MissingTables(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"notifications"}, missing)
}
