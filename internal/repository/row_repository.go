package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chatrewind/internal/model"
)

// ErrStorage marks I/O or schema failures at the storage layer. Callers
// match it with errors.Is.
var ErrStorage = errors.New("storage failure")

// RowRepository is the gorm data access layer for the append-only
// conversation log. Rows are only ever inserted or deleted wholesale; there
// is no update path.
type RowRepository struct {
	db *gorm.DB
}

func NewRowRepository(db *gorm.DB) *RowRepository {
	return &RowRepository{db: db}
}

// Append inserts one new row holding a serialized batch.
func (r *RowRepository) Append(payload []byte) error {
	row := &model.StoreRow{BatchJSON: payload}
	if err := r.db.Create(row).Error; err != nil {
		return fmt.Errorf("%w: append row: %v", ErrStorage, err)
	}
	return nil
}

// List returns every row in insertion order.
func (r *RowRepository) List() ([]model.StoreRow, error) {
	var rows []model.StoreRow
	if err := r.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list rows: %v", ErrStorage, err)
	}
	return rows, nil
}

// DeleteAll removes every row. Irreversible.
func (r *RowRepository) DeleteAll() error {
	if err := r.db.Where("1 = 1").Delete(&model.StoreRow{}).Error; err != nil {
		return fmt.Errorf("%w: delete rows: %v", ErrStorage, err)
	}
	return nil
}
