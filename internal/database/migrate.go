package database

import (
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/model"
	"storefront/pkg/log"
)

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.Favorite{},
		&model.Notification{},
		&model.Order{},
		&model.OrderLine{},
	}
}

// AutoMigrate creates or alters tables to match the models
func AutoMigrate(db *gorm.DB) error {
	log.Info("Starting database migration...")

	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
		log.Debugf("Migrated model: %T", m)
	}

	log.Info("Database migration completed successfully")
	return nil
}

// MissingTables returns the names of model tables absent from the current schema
func MissingTables(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("failed to parse %T: %w", m, err)
		}

		var count int64
		err := db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
			stmt.Schema.Table).Scan(&count).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", stmt.Schema.Table, err)
		}
		if count == 0 {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}
