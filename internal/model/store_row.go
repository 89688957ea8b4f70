package model

// StoreRow is one durable unit of the conversation log. The autoincrement ID
// defines insertion order; BatchJSON holds a serialized Batch. Rows are
// immutable once written: the store only appends new rows or deletes all of
// them.
type StoreRow struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	BatchJSON []byte `gorm:"type:text;not null" json:"batch_json"`
}

func (StoreRow) TableName() string {
	return "store_rows"
}
