package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrFavoriteNotFound     = errors.New("favorite not found")
	ErrDuplicateFavorite    = errors.New("favorite already exists")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("email already registered")
)

// InsufficientStockError a checkout line asked for more units than remain
type InsufficientStockError struct {
	ProductID uint64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.Name, e.Requested, e.Available)
}

// MissingProductError a checkout line references a product that does not exist
type MissingProductError struct {
	ProductID uint64
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// Is makes errors.Is(err, ErrProductNotFound) hold
func (e *MissingProductError) Is(target error) bool {
	return target == ErrProductNotFound
}

const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
